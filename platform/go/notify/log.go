package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes notifications to the structured log instead of sending
// mail. Default in development and tests.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		panic("logger is required")
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) ApprovalRequested(_ context.Context, note ApprovalRequestNote) error {
	n.logger.Info("approval requested notification",
		zap.String("turn_number", note.TurnNumber),
		zap.String("approval_type", note.ApprovalType),
		zap.String("amount", note.Amount.String()),
		zap.String("recipient", note.Recipient.Email),
	)
	return nil
}

func (n *LogNotifier) ApprovalDecided(_ context.Context, note ApprovalDecisionNote) error {
	n.logger.Info("approval decision notification",
		zap.String("turn_number", note.TurnNumber),
		zap.String("approval_type", note.ApprovalType),
		zap.Bool("approved", note.Approved),
		zap.String("recipient", note.Recipient.Email),
	)
	return nil
}

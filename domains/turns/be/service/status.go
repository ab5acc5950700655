package service

import "github.com/arunavo4/turns-management-sub001/platform/go/persistence"

// autoStatusToTurnStatus maps a stage's auto-status tag to the coarse turn
// status applied on entry. Tags outside this table, and stages without a tag,
// leave the status untouched.
var autoStatusToTurnStatus = map[persistence.AutoStatus]persistence.TurnStatus{
	persistence.AutoStatusDraft:     persistence.TurnStatusDraft,
	persistence.AutoStatusActive:    persistence.TurnStatusInProgress,
	persistence.AutoStatusPending:   persistence.TurnStatusOnHold,
	persistence.AutoStatusOnHold:    persistence.TurnStatusOnHold,
	persistence.AutoStatusCompleted: persistence.TurnStatusComplete,
	persistence.AutoStatusCancelled: persistence.TurnStatusCancelled,
}

func statusForStage(stage persistence.TurnStage) *persistence.TurnStatus {
	if stage.AutoStatus == nil {
		return nil
	}
	status, ok := autoStatusToTurnStatus[*stage.AutoStatus]
	if !ok {
		return nil
	}
	return &status
}

package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig configures the outbound mail relay.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	DialTimeout time.Duration
}

// SMTPNotifier sends plain-text approval mail through a relay. Each send dials
// a fresh connection with a bounded timeout; a stuck relay fails the send
// instead of hanging the caller.
type SMTPNotifier struct {
	cfg SMTPConfig
}

func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &SMTPNotifier{cfg: cfg}, nil
}

func (n *SMTPNotifier) ApprovalRequested(ctx context.Context, note ApprovalRequestNote) error {
	subject := fmt.Sprintf("Approval needed: turn %s (%s)", note.TurnNumber, strings.ToUpper(note.ApprovalType))
	body := fmt.Sprintf(
		"An approval of type %s is required for turn %s.\n\nProperty: %s\nEstimated cost: $%s\nPriority: %s\nRequested by: %s\n\n%s\n",
		strings.ToUpper(note.ApprovalType), note.TurnNumber, note.PropertyAddress,
		note.Amount.StringFixed(2), note.Priority, note.RequestedBy, note.Notes,
	)
	return n.send(ctx, note.Recipient, subject, body)
}

func (n *SMTPNotifier) ApprovalDecided(ctx context.Context, note ApprovalDecisionNote) error {
	outcome := "approved"
	if !note.Approved {
		outcome = "rejected"
	}
	subject := fmt.Sprintf("Turn %s: %s approval %s", note.TurnNumber, strings.ToUpper(note.ApprovalType), outcome)
	body := fmt.Sprintf(
		"Your %s approval request for turn %s was %s by %s.\n\n%s\n",
		strings.ToUpper(note.ApprovalType), note.TurnNumber, outcome, note.DecidedBy, note.Comments,
	)
	return n.send(ctx, note.Recipient, subject, body)
}

func (n *SMTPNotifier) send(ctx context.Context, to Recipient, subject, body string) error {
	if to.Email == "" {
		return fmt.Errorf("recipient email is required")
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	timeout := n.cfg.DialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("dial smtp relay: %w", err)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if n.cfg.Username != "" {
		auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := client.Mail(n.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to.Email); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", n.cfg.From, to.Email, subject, body)
	if _, err := w.Write([]byte(msg)); err != nil {
		w.Close()
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close body: %w", err)
	}

	return client.Quit()
}

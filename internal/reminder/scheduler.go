package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Sender delivers an out-of-band message to an identity.
type Sender interface {
	SendMessage(ctx context.Context, to, body string) error
}

// Scheduler arranges deferred reminder delivery. Reminders are held in
// process only; a restart drops anything still pending.
type Scheduler struct {
	timer  Timer
	sender Sender
}

// NewScheduler creates a Scheduler using the given timer and sender.
func NewScheduler(timer Timer, sender Sender) *Scheduler {
	return &Scheduler{timer: timer, sender: sender}
}

// Schedule arranges delivery of "Reminder: <message>" to the identity at
// the given time. Delivery failures are logged and swallowed, the user
// already received a confirmation on the scheduling turn.
func (s *Scheduler) Schedule(identity string, when time.Time, message string) error {
	_, err := s.timer.ScheduleAt(when, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		body := "Reminder: " + message
		if err := s.sender.SendMessage(ctx, identity, body); err != nil {
			slog.Error("Scheduler: reminder delivery failed", "to", identity, "error", err)
			return
		}
		slog.Info("Scheduler: reminder delivered", "to", identity)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder: %w", err)
	}
	slog.Info("Scheduler: reminder scheduled", "to", identity, "when", when)
	return nil
}

// Active returns the number of pending reminders.
func (s *Scheduler) Active() int {
	return len(s.timer.ListActive())
}

// Stop cancels all pending reminders.
func (s *Scheduler) Stop() {
	s.timer.Stop()
}

// ConfirmationMessage renders the reply sent after a reminder is accepted.
func ConfirmationMessage(when time.Time, message string) string {
	return fmt.Sprintf("Reminder set for %s with the message: '%s'.",
		when.Format("Monday, January 02, 2006 at 03:04 PM"), message)
}

// Package engine holds the core temporal logic: recognizing events in free
// text, expanding recurrences, planning tiered reminders, and driving the
// reminder delivery state machine.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/circle97/remind/internal/notify"
	"github.com/circle97/remind/internal/store"
)

// defaultSendTimeout bounds a single notification channel call when the
// caller does not configure one.
const defaultSendTimeout = 10 * time.Second

// Engine orchestrates reminder planning and delivery over the store.
type Engine struct {
	DB          *store.DB
	Notifier    notify.Notifier
	SendTimeout time.Duration
}

// New creates an Engine with the default send timeout.
func New(db *store.DB, notifier notify.Notifier) *Engine {
	return &Engine{
		DB:          db,
		Notifier:    notifier,
		SendTimeout: defaultSendTimeout,
	}
}

// PlanReminders materializes and persists the tiered reminders for an event.
// Returns the created reminders in tier order.
func (e *Engine) PlanReminders(eventID string) ([]store.Reminder, error) {
	ev, err := e.DB.GetEvent(eventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, fmt.Errorf("no event found for %s", eventID)
	}

	reminders, err := Materialize(ev)
	if err != nil {
		return nil, err
	}
	if err := e.DB.CreateReminders(reminders); err != nil {
		return nil, fmt.Errorf("persist reminders: %w", err)
	}
	return reminders, nil
}

// Report summarizes one delivery pass.
type Report struct {
	Due       int `json:"due"`
	Attempted int `json:"attempted"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// ProcessDue runs one delivery pass: select due pending reminders, claim each
// with an atomic pending→sending transition, invoke the notification channel
// under the send timeout, and resolve to sent or failed. A reminder that
// cannot be claimed was taken by a concurrent pass and is skipped, so
// overlapping invocations never double-deliver. Failures are recorded on the
// reminder and never returned as errors; a caller decides whether to retry.
func (e *Engine) ProcessDue(ctx context.Context, now time.Time) (Report, error) {
	var report Report

	due, err := e.DB.DueReminders(now)
	if err != nil {
		return report, fmt.Errorf("select due reminders: %w", err)
	}
	report.Due = len(due)

	for i := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r := &due[i]

		claimed, err := e.DB.ClaimReminder(r.ID, now)
		if err != nil {
			return report, fmt.Errorf("claim %s: %w", r.ID, err)
		}
		if !claimed {
			continue
		}
		report.Attempted++

		if err := e.deliver(ctx, r); err != nil {
			if _, markErr := e.DB.MarkFailed(r.ID, err.Error(), now); markErr != nil {
				return report, markErr
			}
			report.Failed++
			log.Printf("process: reminder %s failed: %v", r.ID, err)
			continue
		}

		sent, err := e.DB.MarkSent(r.ID, now)
		if err != nil {
			return report, err
		}
		if !sent {
			// Cancelled while in flight; the cancel wins.
			log.Printf("process: reminder %s cancelled during delivery", r.ID)
			continue
		}
		report.Sent++
	}

	return report, nil
}

func (e *Engine) deliver(ctx context.Context, r *store.DueReminder) error {
	timeout := e.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return e.Notifier.Send(sendCtx, notify.Message{
		Channel:   r.Channel,
		Recipient: r.OwnerID,
		Content:   r.Content,
	})
}

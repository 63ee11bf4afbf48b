// Package notify defines the notification channel contract the delivery
// processor calls out to. Actual transport (email, SMS, push) is supplied by
// the host application; the engine only sees this interface.
package notify

import (
	"context"
	"log"
)

// Message is one notification to deliver.
type Message struct {
	Channel   string // push, email, sms, im
	Recipient string
	Content   string
}

// Notifier delivers a message over some transport. A returned error (including
// context deadline errors) is treated as a delivery failure by the processor.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, msg Message) error

func (f Func) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogNotifier writes notifications to the process log. It is the default
// channel for serve/process so the engine runs without any transport wired.
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Printf("notify: [%s] to=%s %s", msg.Channel, msg.Recipient, msg.Content)
	return nil
}

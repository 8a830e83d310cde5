package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notification is everything a reminder email needs. It is built from the
// reminder's snapshot, never from the live event.
type Notification struct {
	ToEmail       string
	ToName        string
	EventTitle    string
	EventDate     time.Time
	EventTime     string
	EventLocation string
}

// Notifier delivers a reminder. It reports success as a bool and never
// returns an error or panics; transport faults become false.
type Notifier interface {
	Notify(ctx context.Context, n Notification) bool
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, n Notification) bool

func (f NotifierFunc) Notify(ctx context.Context, n Notification) bool {
	return f(ctx, n)
}

// DisabledNotifier is used when no mail transport is configured. Every
// delivery fails, so reminders are recorded but never sent.
type DisabledNotifier struct {
	log  *zap.Logger
	once sync.Once
}

func NewDisabledNotifier(log *zap.Logger) *DisabledNotifier {
	return &DisabledNotifier{log: log}
}

func (d *DisabledNotifier) Notify(_ context.Context, n Notification) bool {
	d.once.Do(func() {
		d.log.Warn("Email service not configured, reminder emails will not be delivered; set SENDGRID_API_KEY")
	})
	d.log.Debug("Dropped reminder email", zap.String("event_title", n.EventTitle))
	return false
}

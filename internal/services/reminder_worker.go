package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"eventease/internal/models"
	"eventease/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultScanConcurrency = 4
	defaultSendTimeout     = 10 * time.Second
)

// DueReminderStore is the slice of the reminder store the scanner needs
type DueReminderStore interface {
	FindDueForMilestone(ctx context.Context, m models.Milestone, windowStart, windowEnd time.Time) ([]models.Reminder, error)
	MarkSent(ctx context.Context, reminderID string, m models.Milestone) (bool, error)
}

// ContactDirectory resolves the recipient of a reminder
type ContactDirectory interface {
	Contact(ctx context.Context, userID string) (store.Contact, error)
}

// ScanResult summarizes one milestone pass
type ScanResult struct {
	Milestone   models.Milestone `json:"milestone"`
	WindowStart time.Time        `json:"window_start"`
	WindowEnd   time.Time        `json:"window_end"`
	Due         int              `json:"due"`
	Sent        int              `json:"sent"`
	Failed      int              `json:"failed"`
	Skipped     int              `json:"skipped"`
}

// ReminderScanner finds reminders whose milestone window contains the event
// start and sends each one at most once
type ReminderScanner struct {
	reminders   DueReminderStore
	contacts    ContactDirectory
	notifier    Notifier
	metrics     *ScanMetrics
	log         *zap.Logger
	concurrency int
	sendTimeout time.Duration
	now         func() time.Time
}

type ScannerOption func(*ReminderScanner)

// WithConcurrency bounds the number of deliveries in flight per milestone
func WithConcurrency(n int) ScannerOption {
	return func(s *ReminderScanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithSendTimeout(d time.Duration) ScannerOption {
	return func(s *ReminderScanner) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

func WithMetrics(m *ScanMetrics) ScannerOption {
	return func(s *ReminderScanner) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) ScannerOption {
	return func(s *ReminderScanner) {
		if now != nil {
			s.now = now
		}
	}
}

func NewReminderScanner(reminders DueReminderStore, contacts ContactDirectory, notifier Notifier, log *zap.Logger, opts ...ScannerOption) *ReminderScanner {
	s := &ReminderScanner{
		reminders:   reminders,
		contacts:    contacts,
		notifier:    notifier,
		log:         log,
		concurrency: defaultScanConcurrency,
		sendTimeout: defaultSendTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs every milestone against the current time
func (s *ReminderScanner) Scan(ctx context.Context) ([]ScanResult, error) {
	return s.ScanAt(ctx, s.now())
}

// ScanAt runs every milestone against now. A failing milestone does not stop
// the others; their errors are joined.
func (s *ReminderScanner) ScanAt(ctx context.Context, now time.Time) ([]ScanResult, error) {
	results := make([]ScanResult, 0, len(models.Milestones))
	var errs []error

	for _, m := range models.Milestones {
		result, err := s.ScanMilestone(ctx, m, now)
		if err != nil {
			s.log.Error("Reminder scan failed", zap.Stringer("milestone", m), zap.Error(err))
			errs = append(errs, err)
		}
		results = append(results, result)
	}

	err := errors.Join(errs...)
	if err == nil {
		s.metrics.markSuccess(now)
	}
	return results, err
}

// ScanMilestone sends the milestone's reminders for events starting inside
// its window relative to now
func (s *ReminderScanner) ScanMilestone(ctx context.Context, m models.Milestone, now time.Time) (ScanResult, error) {
	const op = "services.ReminderScanner.ScanMilestone"

	started := time.Now()
	windowStart, windowEnd := m.Window().Bounds(now)
	result := ScanResult{Milestone: m, WindowStart: windowStart, WindowEnd: windowEnd}

	due, err := s.reminders.FindDueForMilestone(ctx, m, windowStart, windowEnd)
	if err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		s.metrics.observeResult(result, time.Since(started), err)
		return result, err
	}
	result.Due = len(due)

	// Deliveries already started are allowed to finish after ctx is cancelled
	sendCtx := context.WithoutCancel(ctx)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	for _, reminder := range due {
		reminder := reminder
		g.Go(func() error {
			outcome := s.deliver(sendCtx, m, reminder)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeSent:
				result.Sent++
			case outcomeFailed:
				result.Failed++
			default:
				result.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.observeResult(result, time.Since(started), nil)

	if result.Due > 0 {
		s.log.Info("Reminder scan completed",
			zap.Stringer("milestone", m),
			zap.Time("window_start", windowStart),
			zap.Time("window_end", windowEnd),
			zap.Int("due", result.Due),
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed),
			zap.Int("skipped", result.Skipped),
		)
	} else {
		s.log.Debug("No reminders due", zap.Stringer("milestone", m))
	}

	return result, nil
}

// deliver handles one reminder. The flag is only set after a successful
// send, so failures are retried by the next scan while the window is open.
func (s *ReminderScanner) deliver(ctx context.Context, m models.Milestone, reminder models.Reminder) string {
	log := s.log.With(
		zap.String("reminder_id", reminder.ID),
		zap.String("event_id", reminder.EventID),
		zap.Stringer("milestone", m),
	)

	if reminder.Sent(m) {
		return outcomeSkipped
	}

	contact, err := s.contacts.Contact(ctx, reminder.UserID)
	if err != nil {
		log.Warn("Skipping reminder, recipient not resolvable", zap.Error(err))
		return outcomeSkipped
	}
	if contact.Email == "" {
		log.Warn("Skipping reminder, recipient has no email")
		return outcomeSkipped
	}

	notifyCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if !s.notifier.Notify(notifyCtx, notificationFor(reminder, contact)) {
		log.Warn("Reminder delivery failed, will retry on next scan")
		return outcomeFailed
	}

	changed, err := s.reminders.MarkSent(ctx, reminder.ID, m)
	if err != nil {
		log.Error("Reminder sent but flag not recorded", zap.Error(err))
		return outcomeFailed
	}
	if !changed {
		log.Debug("Reminder flag already set by a concurrent scan")
	}

	return outcomeSent
}

func notificationFor(reminder models.Reminder, contact store.Contact) Notification {
	return Notification{
		ToEmail:       contact.Email,
		ToName:        contact.Name,
		EventTitle:    reminder.EventTitle,
		EventDate:     reminder.EventDate,
		EventTime:     reminder.EventTime,
		EventLocation: reminder.EventLocation,
	}
}

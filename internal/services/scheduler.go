package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"eventease/internal/models"
	"eventease/internal/utils"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultReminderSchedule runs the scan hourly at minute 0
const DefaultReminderSchedule = "0 * * * *"

var (
	ErrScanInProgress    = errors.New("reminder scan already in progress")
	ErrCadenceTooSlow    = errors.New("scan cadence is slower than the narrowest reminder window")
	ErrSchedulerStarted  = errors.New("reminder scheduler already started")
	ErrSchedulerStopped  = errors.New("reminder scheduler stopped")
	errScheduleNeverFire = errors.New("schedule never fires")
)

// cadenceHorizon bounds how far ahead activations are inspected. Eight days
// covers every weekly pattern.
const cadenceHorizon = 8 * 24 * time.Hour

// Scanner runs one scan over every milestone
type Scanner interface {
	Scan(ctx context.Context) ([]ScanResult, error)
}

// ScanLock serializes scans across processes. Acquire reports false when
// another holder owns the lock.
type ScanLock interface {
	Acquire(ctx context.Context) (release func(), acquired bool, err error)
}

// SchedulerStatus describes the scheduler's most recent run
type SchedulerStatus struct {
	Schedule     string       `json:"schedule"`
	Running      bool         `json:"running"`
	LastTrigger  string       `json:"last_trigger,omitempty"`
	LastStarted  time.Time    `json:"last_started,omitempty"`
	LastFinished time.Time    `json:"last_finished,omitempty"`
	LastError    string       `json:"last_error,omitempty"`
	LastResults  []ScanResult `json:"last_results,omitempty"`
	NextRun      time.Time    `json:"next_run,omitempty"`
}

// ReminderScheduler drives the scanner on a cron cadence plus once at start
type ReminderScheduler struct {
	scanner  Scanner
	spec     string
	schedule cron.Schedule
	cron     *cron.Cron
	lock     ScanLock
	log      *zap.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
	entryID cron.EntryID
	status  SchedulerStatus
}

type SchedulerOption func(*ReminderScheduler)

// WithScanLock makes every run acquire lock first
func WithScanLock(lock ScanLock) SchedulerOption {
	return func(s *ReminderScheduler) {
		s.lock = lock
	}
}

// NewReminderScheduler validates spec against the reminder windows and
// prepares a stopped scheduler
func NewReminderScheduler(scanner Scanner, spec string, log *zap.Logger, opts ...SchedulerOption) (*ReminderScheduler, error) {
	const op = "services.NewReminderScheduler"

	if spec == "" {
		spec = DefaultReminderSchedule
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid schedule %q: %w", op, spec, err)
	}
	if _, err := validateCadence(schedule); err != nil {
		return nil, fmt.Errorf("%s: %q: %w", op, spec, err)
	}

	cronLogger := utils.NewCronLogger(log)
	s := &ReminderScheduler{
		scanner:  scanner,
		spec:     spec,
		schedule: schedule,
		cron:     cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger))),
		log:      log.Named("reminders"),
		status:   SchedulerStatus{Schedule: spec},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ValidateCadence returns the largest gap between consecutive activations of
// spec, or ErrCadenceTooSlow when that gap exceeds the narrowest reminder window
func ValidateCadence(spec string) (time.Duration, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return validateCadence(schedule)
}

func validateCadence(schedule cron.Schedule) (time.Duration, error) {
	ref := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	horizon := ref.Add(cadenceHorizon)

	prev := schedule.Next(ref)
	if prev.IsZero() {
		return 0, errScheduleNeverFire
	}

	var maxGap time.Duration
	for prev.Before(horizon) {
		next := schedule.Next(prev)
		if next.IsZero() {
			return 0, errScheduleNeverFire
		}
		if gap := next.Sub(prev); gap > maxGap {
			maxGap = gap
		}
		prev = next
	}

	if limit := models.NarrowestWindow(); maxGap > limit {
		return maxGap, fmt.Errorf("%w: activations up to %s apart, windows need at most %s", ErrCadenceTooSlow, maxGap, limit)
	}
	return maxGap, nil
}

// Start registers the cron job, runs one scan immediately and starts the cron loop
func (s *ReminderScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}
	if s.started {
		return ErrSchedulerStarted
	}
	s.started = true

	s.entryID = s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		s.runLogged(ctx, "cron")
	}))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLogged(ctx, "startup")
	}()

	s.cron.Start()
	s.log.Info("Reminder scheduler started", zap.String("schedule", s.spec))
	return nil
}

// Stop halts the cadence. The returned context is done once any in-flight scan has finished.
func (s *ReminderScheduler) Stop() context.Context {
	// Runs are only added to wg under mu while not stopped, so Wait below
	// never races an Add.
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronDone := s.cron.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		cancel()
	}()

	s.log.Info("Reminder scheduler stopping")
	return ctx
}

// Trigger runs a scan on demand. It returns ErrScanInProgress when another
// scan holds the guard or the distributed lock, and ErrSchedulerStopped once
// Stop has been called.
func (s *ReminderScheduler) Trigger(ctx context.Context) ([]ScanResult, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrSchedulerStopped
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	return s.run(ctx, "manual")
}

// Status returns a snapshot of the last run
func (s *ReminderScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.status
	status.Running = s.running.Load()
	status.LastResults = append([]ScanResult(nil), s.status.LastResults...)
	if s.started {
		status.NextRun = s.cron.Entry(s.entryID).Next
	}
	return status
}

func (s *ReminderScheduler) runLogged(ctx context.Context, trigger string) {
	if _, err := s.run(ctx, trigger); err != nil {
		if errors.Is(err, ErrScanInProgress) {
			s.log.Info("Skipping reminder scan, previous scan still running", zap.String("trigger", trigger))
			return
		}
		s.log.Error("Reminder scan finished with errors", zap.String("trigger", trigger), zap.Error(err))
	}
}

func (s *ReminderScheduler) run(ctx context.Context, trigger string) ([]ScanResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	defer s.running.Store(false)

	if s.lock != nil {
		release, acquired, err := s.lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire scan lock: %w", err)
		}
		if !acquired {
			return nil, ErrScanInProgress
		}
		defer release()
	}

	s.mu.Lock()
	s.status.LastTrigger = trigger
	s.status.LastStarted = time.Now()
	s.mu.Unlock()

	results, err := s.scanner.Scan(ctx)

	s.mu.Lock()
	s.status.LastFinished = time.Now()
	s.status.LastResults = results
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	s.log.Debug("Reminder scan run finished", zap.String("trigger", trigger), zap.Int("milestones", len(results)))
	return results, err
}

// Package localnotify implements the client-side reminder checker. It keeps
// its own entries and de-duplication markers in session storage and never
// reads or writes the server's reminder records.
package localnotify

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// EntriesKey holds every scheduled entry as one JSON object
	EntriesKey = "eventReminders"

	notifiedPrefix = "notified_"

	// DisplayWindow is how long after its reminder time an entry may still be shown
	DisplayWindow = time.Hour
)

// Entry is one locally scheduled reminder
type Entry struct {
	EventID      string    `json:"eventId"`
	EventTitle   string    `json:"eventTitle"`
	Location     string    `json:"location"`
	ReminderTime time.Time `json:"reminderTime"`
}

// Alert is what the presenter shows
type Alert struct {
	Title string
	Body  string
	Tag   string
}

// Presenter displays an alert. It reports false when the alert could not be
// shown, e.g. because permission was not granted; the entry is retried then.
type Presenter interface {
	Present(alert Alert) bool
}

// CheckResult reports what one Check pass did
type CheckResult struct {
	Presented []string
	Pruned    []string
}

// Scheduler checks locally stored entries and presents due ones once
type Scheduler struct {
	storage   Storage
	presenter Presenter
	log       *zap.Logger
	mu        sync.Mutex
}

func NewScheduler(storage Storage, presenter Presenter, log *zap.Logger) *Scheduler {
	return &Scheduler{storage: storage, presenter: presenter, log: log}
}

// NotifiedKey is the marker set once the entry under key has been shown
func NotifiedKey(key string) string {
	return notifiedPrefix + key
}

// Schedule adds or replaces the entry under key
func (s *Scheduler) Schedule(key string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[key] = entry
	return s.save(entries)
}

// Entries returns the stored entries
func (s *Scheduler) Entries() (map[string]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Check presents entries whose reminder time passed less than an hour ago and
// prunes entries more than an hour past, together with their markers
func (s *Scheduler) Check(now time.Time) (CheckResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result CheckResult
	entries, err := s.load()
	if err != nil {
		return result, err
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entry := entries[key]
		diff := now.Sub(entry.ReminderTime)

		switch {
		case diff >= 0 && diff < DisplayWindow:
			marker := NotifiedKey(key)
			if _, shown := s.storage.Get(marker); shown {
				continue
			}
			if s.presenter.Present(alertFor(entry)) {
				s.storage.Set(marker, "true")
				result.Presented = append(result.Presented, key)
			}
		case diff > DisplayWindow:
			delete(entries, key)
			s.storage.Delete(NotifiedKey(key))
			result.Pruned = append(result.Pruned, key)
		}
	}

	if err := s.save(entries); err != nil {
		return result, err
	}

	if len(result.Presented) > 0 || len(result.Pruned) > 0 {
		s.log.Debug("Local reminders checked",
			zap.Strings("presented", result.Presented),
			zap.Strings("pruned", result.Pruned),
		)
	}
	return result, nil
}

func alertFor(entry Entry) Alert {
	return Alert{
		Title: fmt.Sprintf("Reminder: %s", entry.EventTitle),
		Body:  fmt.Sprintf("The event %q is starting soon at %s", entry.EventTitle, entry.Location),
		Tag:   "event-" + entry.EventID,
	}
}

func (s *Scheduler) load() (map[string]Entry, error) {
	entries := make(map[string]Entry)
	raw, ok := s.storage.Get(EntriesKey)
	if !ok || raw == "" {
		return entries, nil
	}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("localnotify: decode %s: %w", EntriesKey, err)
	}
	return entries, nil
}

func (s *Scheduler) save(entries map[string]Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("localnotify: encode %s: %w", EntriesKey, err)
	}
	s.storage.Set(EntriesKey, string(data))
	return nil
}

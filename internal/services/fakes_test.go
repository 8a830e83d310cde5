package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"eventease/internal/models"
	"eventease/internal/store"
)

type fakeReminderStore struct {
	mu        sync.Mutex
	reminders map[string]*models.Reminder
	findErr   map[models.Milestone]error
	markErr   error
}

func newFakeReminderStore(reminders ...models.Reminder) *fakeReminderStore {
	s := &fakeReminderStore{
		reminders: make(map[string]*models.Reminder),
		findErr:   make(map[models.Milestone]error),
	}
	for i := range reminders {
		r := reminders[i]
		s.reminders[r.ID] = &r
	}
	return s
}

func (s *fakeReminderStore) FindDueForMilestone(_ context.Context, m models.Milestone, start, end time.Time) ([]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.findErr[m]; err != nil {
		return nil, err
	}

	var due []models.Reminder
	for _, r := range s.reminders {
		if r.Sent(m) || r.EventDate.Before(start) || r.EventDate.After(end) {
			continue
		}
		due = append(due, *r)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].EventDate.Before(due[j].EventDate) })
	return due, nil
}

func (s *fakeReminderStore) MarkSent(_ context.Context, id string, m models.Milestone) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.markErr != nil {
		return false, s.markErr
	}
	r, ok := s.reminders[id]
	if !ok {
		return false, nil
	}
	switch m {
	case models.OneDayBefore:
		if r.OneDaySent {
			return false, nil
		}
		r.OneDaySent = true
	case models.TwoHoursBefore:
		if r.TwoHoursSent {
			return false, nil
		}
		r.TwoHoursSent = true
	}
	return true, nil
}

func (s *fakeReminderStore) get(id string) models.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.reminders[id]
}

type fakeContacts map[string]store.Contact

func (f fakeContacts) Contact(_ context.Context, userID string) (store.Contact, error) {
	c, ok := f[userID]
	if !ok {
		return store.Contact{}, store.ErrUserNotFound
	}
	return c, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []Notification
	failFor map[string]bool
}

func (n *recordingNotifier) Notify(_ context.Context, notification Notification) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.failFor[notification.ToEmail] {
		return false
	}
	n.sent = append(n.sent, notification)
	return true
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

var errDatabaseDown = errors.New("database down")

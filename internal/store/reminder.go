package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventease/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DueWindowQueryPattern matches the SQL issued by FindDueForMilestone. The
// database logger filters it so hourly scans do not flood the SQL log.
const DueWindowQueryPattern = "WHERE event_date BETWEEN"

// ReminderStore persists one reminder record per (user, event) pair
type ReminderStore struct {
	db *gorm.DB
}

func NewReminderStore(db *gorm.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

// Upsert creates the reminder for the pair or fully replaces its snapshot.
// Both sent-flags are reset. Callers must have verified an active RSVP.
func (s *ReminderStore) Upsert(ctx context.Context, userID, eventID string, snap models.ReminderSnapshot) (models.Reminder, error) {
	const op = "store.ReminderStore.Upsert"

	if err := validateSnapshot(userID, eventID, snap); err != nil {
		return models.Reminder{}, fmt.Errorf("%s: %w", op, err)
	}

	reminder := models.Reminder{
		UserID:        userID,
		EventID:       eventID,
		EventTitle:    snap.EventTitle,
		EventDate:     snap.EventDate.UTC(),
		EventTime:     snap.EventTime,
		EventLocation: snap.EventLocation,
	}

	var stored models.Reminder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "event_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"event_title":    reminder.EventTitle,
				"event_date":     reminder.EventDate,
				"event_time":     reminder.EventTime,
				"event_location": reminder.EventLocation,
				"one_day_sent":   false,
				"two_hours_sent": false,
				"updated_at":     time.Now().UTC(),
			}),
		}).Create(&reminder).Error; err != nil {
			return err
		}

		// On conflict the generated ID is discarded. Read into a fresh value so
		// that ID does not end up in the WHERE clause.
		return tx.Where("user_id = ? AND event_id = ?", userID, eventID).First(&stored).Error
	})
	if err != nil {
		return models.Reminder{}, fmt.Errorf("%s: %w", op, err)
	}

	return stored, nil
}

func validateSnapshot(userID, eventID string, snap models.ReminderSnapshot) error {
	switch {
	case strings.TrimSpace(userID) == "":
		return fmt.Errorf("%w: user id is empty", ErrInvalidSnapshot)
	case strings.TrimSpace(eventID) == "":
		return fmt.Errorf("%w: event id is empty", ErrInvalidSnapshot)
	case strings.TrimSpace(snap.EventTitle) == "":
		return fmt.Errorf("%w: event title is empty", ErrInvalidSnapshot)
	case snap.EventDate.IsZero():
		return fmt.Errorf("%w: event date is empty", ErrInvalidSnapshot)
	}
	return nil
}

// Remove deletes the pair's reminder. It reports whether a record existed.
func (s *ReminderStore) Remove(ctx context.Context, userID, eventID string) (bool, error) {
	const op = "store.ReminderStore.Remove"

	removed, err := removeReminder(s.db.WithContext(ctx), userID, eventID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return removed, nil
}

func removeReminder(db *gorm.DB, userID, eventID string) (bool, error) {
	result := db.Where("user_id = ? AND event_id = ?", userID, eventID).Delete(&models.Reminder{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindDueForMilestone returns reminders whose event starts within
// [windowStart, windowEnd] and whose milestone flag is still false.
func (s *ReminderStore) FindDueForMilestone(ctx context.Context, m models.Milestone, windowStart, windowEnd time.Time) ([]models.Reminder, error) {
	const op = "store.ReminderStore.FindDueForMilestone"

	if !m.Valid() {
		return nil, fmt.Errorf("%s: %w", op, ErrUnknownMilestone)
	}

	var reminders []models.Reminder
	err := s.db.WithContext(ctx).
		Where("event_date BETWEEN ? AND ?", windowStart.UTC(), windowEnd.UTC()).
		Where(m.Column()+" = ?", false).
		Order("event_date ASC").
		Find(&reminders).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return reminders, nil
}

// MarkSent sets the milestone's flag. The update is conditional on the flag
// still being false, so repeated or overlapping calls converge. It reports
// whether this call changed the flag.
func (s *ReminderStore) MarkSent(ctx context.Context, reminderID string, m models.Milestone) (bool, error) {
	const op = "store.ReminderStore.MarkSent"

	if !m.Valid() {
		return false, fmt.Errorf("%s: %w", op, ErrUnknownMilestone)
	}

	result := s.db.WithContext(ctx).
		Model(&models.Reminder{}).
		Where("id = ? AND "+m.Column()+" = ?", reminderID, false).
		Updates(map[string]interface{}{
			m.Column():   true,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("%s: %w", op, result.Error)
	}

	return result.RowsAffected > 0, nil
}

// Get returns a single reminder by id
func (s *ReminderStore) Get(ctx context.Context, reminderID string) (models.Reminder, error) {
	const op = "store.ReminderStore.Get"

	var reminder models.Reminder
	if err := s.db.WithContext(ctx).Where("id = ?", reminderID).First(&reminder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Reminder{}, fmt.Errorf("%s: %w", op, ErrReminderNotFound)
		}
		return models.Reminder{}, fmt.Errorf("%s: %w", op, err)
	}
	return reminder, nil
}

// ListForUser returns the user's reminders with their events preloaded,
// soonest first. Event is nil when the referenced event no longer exists.
func (s *ReminderStore) ListForUser(ctx context.Context, userID string) ([]models.Reminder, error) {
	const op = "store.ReminderStore.ListForUser"

	var reminders []models.Reminder
	err := s.db.WithContext(ctx).
		Preload("Event").
		Where("user_id = ?", userID).
		Order("event_date ASC").
		Find(&reminders).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return reminders, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eventease/internal/models"

	"gorm.io/gorm"
)

// Contact is where reminder emails for a user are delivered
type Contact struct {
	Email string
	Name  string
}

// UserDirectory resolves user ids to contacts
type UserDirectory struct {
	db *gorm.DB
}

func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

// Contact looks up the user's email address and display name
func (d *UserDirectory) Contact(ctx context.Context, userID string) (Contact, error) {
	const op = "store.UserDirectory.Contact"

	var user models.User
	if err := d.db.WithContext(ctx).Select("id, name, email").Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Contact{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return Contact{}, fmt.Errorf("%s: %w", op, err)
	}

	return Contact{Email: strings.TrimSpace(user.Email), Name: user.Name}, nil
}

// User returns the full user record
func (d *UserDirectory) User(ctx context.Context, userID string) (models.User, error) {
	const op = "store.UserDirectory.User"

	var user models.User
	if err := d.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// EventStore reads events and manages RSVPs
type EventStore struct {
	db *gorm.DB
}

func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db}
}

// Event returns an event by id
func (s *EventStore) Event(ctx context.Context, eventID string) (models.Event, error) {
	const op = "store.EventStore.Event"

	var event models.Event
	if err := s.db.WithContext(ctx).Where("id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Event{}, fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}
		return models.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	return event, nil
}

// HasRSVP reports whether the user holds an RSVP for the event
func (s *EventStore) HasRSVP(ctx context.Context, eventID, userID string) (bool, error) {
	const op = "store.EventStore.HasRSVP"

	var count int64
	err := s.db.WithContext(ctx).Model(&models.EventRSVP{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return count > 0, nil
}

// AddRSVP records the user's RSVP for the event
func (s *EventStore) AddRSVP(ctx context.Context, eventID, userID string) (models.EventRSVP, error) {
	const op = "store.EventStore.AddRSVP"

	var rsvp models.EventRSVP
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Event{}).Where("id = ?", eventID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrEventNotFound
		}

		if err := tx.Model(&models.EventRSVP{}).
			Where("event_id = ? AND user_id = ?", eventID, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrRSVPExists
		}

		rsvp = models.EventRSVP{EventID: eventID, UserID: userID}
		return tx.Create(&rsvp).Error
	})
	if err != nil {
		return models.EventRSVP{}, fmt.Errorf("%s: %w", op, err)
	}
	return rsvp, nil
}

// CancelRSVP withdraws the user's RSVP and deletes any reminder for the pair
// in the same transaction. It reports whether a reminder was removed.
func (s *EventStore) CancelRSVP(ctx context.Context, eventID, userID string) (bool, error) {
	const op = "store.EventStore.CancelRSVP"

	var reminderRemoved bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("event_id = ? AND user_id = ?", eventID, userID).Delete(&models.EventRSVP{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRSVPNotFound
		}

		removed, err := removeReminder(tx, userID, eventID)
		if err != nil {
			return err
		}
		reminderRemoved = removed
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return reminderRemoved, nil
}

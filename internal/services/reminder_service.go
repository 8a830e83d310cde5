package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventease/internal/models"
	"eventease/internal/store"

	"go.uber.org/zap"
)

var (
	ErrRSVPRequired         = errors.New("an RSVP is required before setting a reminder")
	ErrInvalidEventSchedule = errors.New("event has no valid start time")
)

// EventDirectory reads events and RSVPs
type EventDirectory interface {
	Event(ctx context.Context, eventID string) (models.Event, error)
	HasRSVP(ctx context.Context, eventID, userID string) (bool, error)
	AddRSVP(ctx context.Context, eventID, userID string) (models.EventRSVP, error)
	CancelRSVP(ctx context.Context, eventID, userID string) (bool, error)
}

// ReminderRecords is the reminder store as seen by request handlers
type ReminderRecords interface {
	Upsert(ctx context.Context, userID, eventID string, snap models.ReminderSnapshot) (models.Reminder, error)
	Remove(ctx context.Context, userID, eventID string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]models.Reminder, error)
}

// ReminderService sets and clears reminders on behalf of a user
type ReminderService struct {
	events    EventDirectory
	reminders ReminderRecords
	loc       *time.Location
	log       *zap.Logger
}

func NewReminderService(events EventDirectory, reminders ReminderRecords, loc *time.Location, log *zap.Logger) *ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderService{events: events, reminders: reminders, loc: loc, log: log}
}

// Set snapshots the event onto the user's reminder. Re-setting replaces the
// snapshot and re-arms both milestones.
func (s *ReminderService) Set(ctx context.Context, userID, eventID string) (models.Reminder, error) {
	const op = "services.ReminderService.Set"

	event, err := s.events.Event(ctx, eventID)
	if err != nil {
		return models.Reminder{}, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.events.HasRSVP(ctx, eventID, userID)
	if err != nil {
		return models.Reminder{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return models.Reminder{}, fmt.Errorf("%s: %w", op, ErrRSVPRequired)
	}

	startsAt, err := event.StartsAt(s.loc)
	if err != nil {
		return models.Reminder{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidEventSchedule, err)
	}

	reminder, err := s.reminders.Upsert(ctx, userID, eventID, models.ReminderSnapshot{
		EventTitle:    event.Title,
		EventDate:     startsAt,
		EventTime:     event.Time,
		EventLocation: event.Location,
	})
	if err != nil {
		return models.Reminder{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("Reminder set",
		zap.String("user_id", userID),
		zap.String("event_id", eventID),
		zap.Time("starts_at", startsAt),
	)
	return reminder, nil
}

// Remove deletes the user's reminder for the event
func (s *ReminderService) Remove(ctx context.Context, userID, eventID string) error {
	const op = "services.ReminderService.Remove"

	removed, err := s.reminders.Remove(ctx, userID, eventID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !removed {
		return fmt.Errorf("%s: %w", op, store.ErrReminderNotFound)
	}
	return nil
}

// List returns the user's reminders, soonest event first
func (s *ReminderService) List(ctx context.Context, userID string) ([]models.Reminder, error) {
	const op = "services.ReminderService.List"

	reminders, err := s.reminders.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reminders, nil
}

// RSVP records the user's attendance
func (s *ReminderService) RSVP(ctx context.Context, userID, eventID string) (models.EventRSVP, error) {
	const op = "services.ReminderService.RSVP"

	rsvp, err := s.events.AddRSVP(ctx, eventID, userID)
	if err != nil {
		return models.EventRSVP{}, fmt.Errorf("%s: %w", op, err)
	}
	return rsvp, nil
}

// CancelRSVP withdraws attendance and drops the reminder with it
func (s *ReminderService) CancelRSVP(ctx context.Context, userID, eventID string) error {
	const op = "services.ReminderService.CancelRSVP"

	reminderRemoved, err := s.events.CancelRSVP(ctx, eventID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("RSVP withdrawn",
		zap.String("user_id", userID),
		zap.String("event_id", eventID),
		zap.Bool("reminder_removed", reminderRemoved),
	)
	return nil
}

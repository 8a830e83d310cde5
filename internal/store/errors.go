package store

import "errors"

var (
	ErrReminderNotFound = errors.New("reminder not found")
	ErrEventNotFound    = errors.New("event not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrRSVPExists       = errors.New("rsvp already exists")
	ErrRSVPNotFound     = errors.New("rsvp not found")
	ErrInvalidSnapshot  = errors.New("invalid reminder snapshot")
	ErrUnknownMilestone = errors.New("unknown milestone")
)

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Milestone is one of the fixed lead times before an event at which a
// single reminder email fires.
type Milestone int

const (
	OneDayBefore Milestone = iota + 1
	TwoHoursBefore
)

// Milestones lists every milestone in scan order
var Milestones = []Milestone{OneDayBefore, TwoHoursBefore}

// Window is the tolerance interval, measured as time until event start,
// inside which a milestone is due.
type Window struct {
	Lower time.Duration
	Upper time.Duration
}

// Width returns the length of the window
func (w Window) Width() time.Duration {
	return w.Upper - w.Lower
}

// Bounds returns the absolute event-start interval for a scan at now
func (w Window) Bounds(now time.Time) (time.Time, time.Time) {
	return now.Add(w.Lower), now.Add(w.Upper)
}

// Contains reports whether an event starting at eventStart is due at now
func (w Window) Contains(now, eventStart time.Time) bool {
	until := eventStart.Sub(now)
	return until >= w.Lower && until <= w.Upper
}

// Window returns the milestone's due window
func (m Milestone) Window() Window {
	switch m {
	case OneDayBefore:
		return Window{Lower: 23 * time.Hour, Upper: 25 * time.Hour}
	case TwoHoursBefore:
		return Window{Lower: 90 * time.Minute, Upper: 150 * time.Minute}
	}
	return Window{}
}

// LeadTime is the nominal time before the event the milestone stands for
func (m Milestone) LeadTime() time.Duration {
	switch m {
	case OneDayBefore:
		return 24 * time.Hour
	case TwoHoursBefore:
		return 2 * time.Hour
	}
	return 0
}

// Column is the sent-flag column tracking the milestone
func (m Milestone) Column() string {
	switch m {
	case OneDayBefore:
		return "one_day_sent"
	case TwoHoursBefore:
		return "two_hours_sent"
	}
	return ""
}

// Valid reports whether m is a known milestone
func (m Milestone) Valid() bool {
	return m == OneDayBefore || m == TwoHoursBefore
}

func (m Milestone) String() string {
	switch m {
	case OneDayBefore:
		return "one_day_before"
	case TwoHoursBefore:
		return "two_hours_before"
	}
	return "unknown"
}

// NarrowestWindow returns the smallest window width across all milestones.
// The scan cadence must not exceed it.
func NarrowestWindow() time.Duration {
	var narrowest time.Duration
	for _, m := range Milestones {
		if w := m.Window().Width(); narrowest == 0 || w < narrowest {
			narrowest = w
		}
	}
	return narrowest
}

// ReminderSnapshot is the copy of an event's schedule-relevant fields taken
// when a reminder is set. Notification content is built from it alone.
type ReminderSnapshot struct {
	EventTitle    string
	EventDate     time.Time
	EventTime     string
	EventLocation string
}

// Reminder tracks which reminder emails have been sent to one user for one event
type Reminder struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	UserID        string    `gorm:"size:36;not null;uniqueIndex:idx_reminder_user_event" json:"user_id"`
	EventID       string    `gorm:"size:36;not null;uniqueIndex:idx_reminder_user_event" json:"event_id"`
	EventTitle    string    `gorm:"size:200;not null" json:"event_title"`
	EventDate     time.Time `gorm:"not null;index" json:"event_date"`
	EventTime     string    `gorm:"size:20;not null" json:"event_time"`
	EventLocation string    `gorm:"size:255;not null" json:"event_location"`
	OneDaySent    bool      `gorm:"not null;default:false" json:"one_day_sent"`
	TwoHoursSent  bool      `gorm:"not null;default:false" json:"two_hours_sent"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`

	Event *Event `gorm:"foreignKey:EventID;references:ID" json:"event,omitempty"`
}

// BeforeCreate assigns a UUID when none was supplied
func (r *Reminder) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// TableName specifies the table name for the Reminder model
func (Reminder) TableName() string {
	return "reminder"
}

// Sent reports whether the milestone's email has already gone out
func (r Reminder) Sent(m Milestone) bool {
	switch m {
	case OneDayBefore:
		return r.OneDaySent
	case TwoHoursBefore:
		return r.TwoHoursSent
	}
	return false
}

// Snapshot returns the event fields captured on the reminder
func (r Reminder) Snapshot() ReminderSnapshot {
	return ReminderSnapshot{
		EventTitle:    r.EventTitle,
		EventDate:     r.EventDate,
		EventTime:     r.EventTime,
		EventLocation: r.EventLocation,
	}
}

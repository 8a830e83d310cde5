package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Category represents the kind of campus event
type Category string

const (
	AcademicCategory   Category = "academic"
	SocialCategory     Category = "social"
	SportsCategory     Category = "sports"
	CulturalCategory   Category = "cultural"
	FundraiserCategory Category = "fundraiser"
	ConcertCategory    Category = "concert"
	WorkshopCategory   Category = "workshop"
	OtherCategory      Category = "other"
)

// Event represents a campus event. Date holds the calendar day and Time the
// local time of day ("18:00"), both interpreted in the service's event zone.
type Event struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	Title          string         `gorm:"size:200;not null" json:"title"`
	Description    string         `gorm:"type:text" json:"description"`
	Category       Category       `gorm:"size:20;not null;index:idx_event_date_category" json:"category"`
	Date           datatypes.Date `gorm:"not null;index:idx_event_date_category" json:"date"`
	Time           string         `gorm:"size:20;not null" json:"time"`
	Location       string         `gorm:"size:255;not null" json:"location"`
	OrganizerID    string         `gorm:"size:36;not null;index" json:"organizer_id"`
	OrganizerName  string         `gorm:"size:100" json:"organizer_name"`
	ExternalSource *string        `gorm:"size:50" json:"external_source,omitempty"`
	ExternalID     *string        `gorm:"size:100" json:"external_id,omitempty"`
	RSVPs          []EventRSVP    `gorm:"foreignKey:EventID" json:"-"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
}

// BeforeCreate assigns a UUID when none was supplied
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// TableName specifies the table name for the Event model
func (Event) TableName() string {
	return "event"
}

// StartsAt combines the event's calendar day and time of day into one instant in loc.
func (e Event) StartsAt(loc *time.Location) (time.Time, error) {
	return CombineDateAndTime(time.Time(e.Date), e.Time, loc)
}

var timeOfDayLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3PM", "3 PM"}

// CombineDateAndTime builds the instant for a calendar day and a time-of-day string.
// Only the year, month and day of date are used.
func CombineDateAndTime(date time.Time, timeOfDay string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if date.IsZero() {
		return time.Time{}, fmt.Errorf("event date is empty")
	}

	clock := strings.ToUpper(strings.TrimSpace(timeOfDay))
	var parsed time.Time
	var err error
	for _, layout := range timeOfDayLayouts {
		parsed, err = time.Parse(layout, clock)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid event time %q", timeOfDay)
	}

	y, m, d := date.Date()
	return time.Date(y, m, d, parsed.Hour(), parsed.Minute(), parsed.Second(), 0, loc), nil
}

// EventRSVP records that a user intends to attend an event
type EventRSVP struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"size:36;not null;uniqueIndex:idx_rsvp_event_user" json:"event_id"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_rsvp_event_user;index" json:"user_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// TableName specifies the table name for the EventRSVP model
func (EventRSVP) TableName() string {
	return "event_rsvp"
}

package services

import (
	"fmt"
	"io"
	"strings"
	"time"

	"eventease/internal/models"

	"github.com/emersion/go-ical"
)

const calendarProductID = "-//EventEase//Reminders//EN"

// BuildReminderCalendar renders the reminders as VEVENTs, each carrying one
// display alarm per milestone so calendar apps fire the same reminders locally
func BuildReminderCalendar(reminders []models.Reminder, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, calendarProductID)

	for _, reminder := range reminders {
		cal.Children = append(cal.Children, reminderEvent(reminder, now))
	}
	return cal
}

// WriteCalendar encodes cal as text/calendar
func WriteCalendar(w io.Writer, cal *ical.Calendar) error {
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func reminderEvent(reminder models.Reminder, now time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, reminder.ID+"@eventease")
	ve.Props.SetText(ical.PropSummary, reminder.EventTitle)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, reminder.EventDate.UTC())

	if reminder.EventLocation != "" {
		ve.Props.SetText(ical.PropLocation, reminder.EventLocation)
	}
	if reminder.Event != nil && reminder.Event.Description != "" {
		ve.Props.SetText(ical.PropDescription, reminder.Event.Description)
	}

	for _, m := range models.Milestones {
		ve.Children = append(ve.Children, milestoneAlarm(reminder.EventTitle, m))
	}
	return ve
}

func milestoneAlarm(title string, m models.Milestone) *ical.Component {
	alarm := ical.NewComponent(ical.CompAlarm)
	alarm.Props.SetText(ical.PropAction, "DISPLAY")
	alarm.Props.SetText(ical.PropDescription, fmt.Sprintf("Reminder: %s is coming up!", title))

	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = icalDuration(-m.LeadTime())
	alarm.Props.Set(trigger)

	return alarm
}

// icalDuration formats d as an RFC 5545 duration, e.g. -PT24H or -PT1H30M
func icalDuration(d time.Duration) string {
	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	b.WriteString("PT")

	hours := d / time.Hour
	minutes := (d % time.Hour) / time.Minute
	if hours > 0 {
		fmt.Fprintf(&b, "%dH", hours)
	}
	if minutes > 0 || hours == 0 {
		fmt.Fprintf(&b, "%dM", minutes)
	}
	return b.String()
}

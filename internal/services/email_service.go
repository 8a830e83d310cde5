package services

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ReminderDateLayout renders the event day in reminder emails, e.g. "Monday, June 9, 2025"
const ReminderDateLayout = "Monday, January 2, 2006"

// EmailConfig configures the SendGrid-backed notifier
type EmailConfig struct {
	APIKey        string
	FromEmail     string
	FromName      string
	RatePerSecond float64
	Location      *time.Location
}

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailService sends reminder emails through SendGrid
type EmailService struct {
	client    mailSender
	fromEmail string
	fromName  string
	limiter   *rate.Limiter
	loc       *time.Location
	log       *zap.Logger
}

// NewNotifier returns a SendGrid notifier, or a DisabledNotifier when no API key is configured
func NewNotifier(cfg EmailConfig, log *zap.Logger) Notifier {
	if cfg.APIKey == "" {
		return NewDisabledNotifier(log)
	}
	return NewEmailService(sendgrid.NewSendClient(cfg.APIKey), cfg, log)
}

func NewEmailService(client mailSender, cfg EmailConfig, log *zap.Logger) *EmailService {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &EmailService{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		limiter:   rate.NewLimiter(limit, 1),
		loc:       loc,
		log:       log,
	}
}

// Notify sends one reminder email
func (s *EmailService) Notify(ctx context.Context, n Notification) (delivered bool) {
	log := s.log.With(zap.String("to", n.ToEmail), zap.String("event_title", n.EventTitle))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Reminder email panicked", zap.Any("panic", r))
			delivered = false
		}
	}()

	if err := s.limiter.Wait(ctx); err != nil {
		log.Warn("Reminder email not sent", zap.Error(err))
		return false
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(n.ToName, n.ToEmail)
	subject, plainContent, htmlContent := BuildReminderEmail(n, s.loc)

	message := mail.NewSingleEmail(from, subject, to, plainContent, htmlContent)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		log.Error("Failed to send reminder email", zap.Error(err))
		return false
	}
	if response == nil || response.StatusCode >= 400 {
		status := 0
		if response != nil {
			status = response.StatusCode
		}
		log.Error("Reminder email rejected", zap.Int("status", status))
		return false
	}

	log.Info("Reminder email sent", zap.Int("status", response.StatusCode))
	return true
}

// BuildReminderEmail renders the subject, plain text and HTML bodies of a reminder
func BuildReminderEmail(n Notification, loc *time.Location) (subject, plainContent, htmlContent string) {
	if loc == nil {
		loc = time.UTC
	}
	formattedDate := n.EventDate.In(loc).Format(ReminderDateLayout)

	subject = fmt.Sprintf("Reminder: %s is coming up!", n.EventTitle)

	plainContent = fmt.Sprintf("Reminder: %s is coming up!\n\n"+
		"Hi %s,\n\n"+
		"This is a reminder about an upcoming event you've RSVP'd to:\n\n"+
		"%s\n"+
		"Date: %s\n"+
		"Time: %s\n"+
		"Location: %s\n\n"+
		"We hope to see you there!\n\n"+
		"Best regards,\n"+
		"The EventEase Team\n",
		n.EventTitle, n.ToName, n.EventTitle, formattedDate, n.EventTime, n.EventLocation)

	htmlContent = fmt.Sprintf("<h1>Event Reminder</h1>"+
		"<p>Hi %s,</p>"+
		"<p>This is a reminder about an upcoming event you've RSVP'd to:</p>"+
		"<div><p><strong>%s</strong></p>"+
		"<p><strong>Date:</strong> %s</p>"+
		"<p><strong>Time:</strong> %s</p>"+
		"<p><strong>Location:</strong> %s</p></div>"+
		"<p>We hope to see you there!</p>"+
		"<p>Best regards,<br>The EventEase Team</p>"+
		"<p><small>This is an automated reminder from EventEase</small></p>",
		html.EscapeString(n.ToName),
		html.EscapeString(n.EventTitle),
		html.EscapeString(formattedDate),
		html.EscapeString(n.EventTime),
		html.EscapeString(n.EventLocation))

	return subject, plainContent, htmlContent
}

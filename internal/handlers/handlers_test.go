package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eventease/internal/auth"
	"eventease/internal/database"
	"eventease/internal/handlers"
	"eventease/internal/models"
	"eventease/internal/services"
	"eventease/internal/store"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeScans struct {
	results []services.ScanResult
	err     error
	calls   int
}

func (f *fakeScans) Trigger(context.Context) ([]services.ScanResult, error) {
	f.calls++
	return f.results, f.err
}

func (f *fakeScans) Status() services.SchedulerStatus {
	return services.SchedulerStatus{Schedule: services.DefaultReminderSchedule}
}

type suite struct {
	db     *gorm.DB
	router *gin.Engine
	tokens *auth.TokenManager
	scans  *fakeScans
}

func newSuite(t *testing.T) *suite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), database.NewGormConfig(zap.NewNop(), logger.Silent))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	reminders := services.NewReminderService(store.NewEventStore(db), store.NewReminderStore(db), time.UTC, zap.NewNop())
	scans := &fakeScans{}
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	router := gin.New()
	handlers.New(reminders, store.NewUserDirectory(db), scans, zap.NewNop()).RegisterRoutes(router, tokens)

	return &suite{db: db, router: router, tokens: tokens, scans: scans}
}

func (s *suite) user(t *testing.T, role models.Role) (models.User, string) {
	t.Helper()
	user := models.User{Name: gofakeit.Name(), Email: gofakeit.Email(), Role: role}
	require.NoError(t, s.db.Create(&user).Error)

	token, err := s.tokens.GenerateToken(user.ID, role)
	require.NoError(t, err)
	return user, token
}

func (s *suite) event(t *testing.T, day time.Time) models.Event {
	t.Helper()
	event := models.Event{
		Title:       gofakeit.Sentence(2),
		Category:    models.AcademicCategory,
		Date:        datatypes.Date(day),
		Time:        "18:00",
		Location:    gofakeit.City(),
		OrganizerID: gofakeit.UUID(),
	}
	require.NoError(t, s.db.Create(&event).Error)
	return event
}

func (s *suite) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newSuite(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/health", "").Code)
}

func TestGetCurrentUser(t *testing.T) {
	s := newSuite(t)
	user, token := s.user(t, models.OrganizerRole)

	w := s.do(t, http.MethodGet, "/api/me", token)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, user.ID, body["id"])
	assert.Equal(t, user.Email, body["email"])
	assert.Equal(t, "organizer", body["role"])

	ghost, err := s.tokens.GenerateToken(gofakeit.UUID(), models.StudentRole)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/me", ghost).Code)
}

func TestRemindersRequireAuth(t *testing.T) {
	s := newSuite(t)

	w := s.do(t, http.MethodGet, "/api/reminders", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/reminders", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSetReminder(t *testing.T) {
	s := newSuite(t)
	_, token := s.user(t, models.StudentRole)
	event := s.event(t, time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC))

	w := s.do(t, http.MethodPost, "/api/reminders/"+gofakeit.UUID(), token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/reminders/"+event.ID, token)
	assert.Equal(t, http.StatusBadRequest, w.Code, "no RSVP yet")

	w = s.do(t, http.MethodPost, "/api/events/"+event.ID+"/rsvp", token)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/events/"+event.ID+"/rsvp", token)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/reminders/"+event.ID, token)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Message  string          `json:"message"`
		Reminder models.Reminder `json:"reminder"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Reminder set successfully", body.Message)
	assert.Equal(t, event.ID, body.Reminder.EventID)
	assert.True(t, time.Date(2025, time.June, 10, 18, 0, 0, 0, time.UTC).Equal(body.Reminder.EventDate))
}

func TestSetReminderTwiceReplacesSnapshot(t *testing.T) {
	s := newSuite(t)
	_, token := s.user(t, models.StudentRole)
	event := s.event(t, time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC))

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/events/"+event.ID+"/rsvp", token).Code)

	setReminder := func() models.Reminder {
		t.Helper()
		w := s.do(t, http.MethodPost, "/api/reminders/"+event.ID, token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var body struct {
			Reminder models.Reminder `json:"reminder"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body.Reminder
	}

	first := setReminder()

	sent := 0
	scanner := services.NewReminderScanner(
		store.NewReminderStore(s.db),
		store.NewUserDirectory(s.db),
		services.NotifierFunc(func(context.Context, services.Notification) bool {
			sent++
			return true
		}),
		zap.NewNop(),
	)
	_, err := scanner.ScanAt(context.Background(), time.Date(2025, time.June, 9, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	flipped, err := store.NewReminderStore(s.db).Get(context.Background(), first.ID)
	require.NoError(t, err)
	require.True(t, flipped.OneDaySent)

	require.NoError(t, s.db.Model(&models.Event{}).Where("id = ?", event.ID).
		Updates(map[string]interface{}{"location": "Moved Hall", "time": "19:30"}).Error)

	second := setReminder()
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Moved Hall", second.EventLocation)
	assert.Equal(t, "19:30", second.EventTime)
	assert.True(t, time.Date(2025, time.June, 10, 19, 30, 0, 0, time.UTC).Equal(second.EventDate))
	assert.False(t, second.OneDaySent)
	assert.False(t, second.TwoHoursSent)

	w := s.do(t, http.MethodGet, "/api/reminders", token)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Reminder
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.False(t, list[0].OneDaySent)
	assert.Equal(t, "Moved Hall", list[0].EventLocation)
}

func TestListAndRemoveReminders(t *testing.T) {
	s := newSuite(t)
	_, token := s.user(t, models.StudentRole)
	later := s.event(t, time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC))
	sooner := s.event(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))

	for _, e := range []models.Event{later, sooner} {
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/events/"+e.ID+"/rsvp", token).Code)
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/reminders/"+e.ID, token).Code)
	}

	w := s.do(t, http.MethodGet, "/api/reminders", token)
	require.Equal(t, http.StatusOK, w.Code)

	var list []models.Reminder
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, sooner.ID, list[0].EventID)
	require.NotNil(t, list[0].Event)
	assert.Equal(t, sooner.Title, list[0].Event.Title)
	assert.Equal(t, models.AcademicCategory, list[0].Event.Category)

	w = s.do(t, http.MethodDelete, "/api/reminders/"+sooner.ID, token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/api/reminders/"+sooner.ID, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelRSVPRemovesReminder(t *testing.T) {
	s := newSuite(t)
	_, token := s.user(t, models.StudentRole)
	event := s.event(t, time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC))

	w := s.do(t, http.MethodDelete, "/api/events/"+event.ID+"/rsvp", token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/events/"+event.ID+"/rsvp", token).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/reminders/"+event.ID, token).Code)

	w = s.do(t, http.MethodDelete, "/api/events/"+event.ID+"/rsvp", token)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/reminders", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestReminderCalendar(t *testing.T) {
	s := newSuite(t)
	_, token := s.user(t, models.StudentRole)
	event := s.event(t, time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC))

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/events/"+event.ID+"/rsvp", token).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/reminders/"+event.ID, token).Code)

	w := s.do(t, http.MethodGet, "/api/reminders/calendar.ics", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar"))

	body := w.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "DTSTART:20250610T180000Z")
	assert.Contains(t, body, "TRIGGER:-PT24H")
	assert.Contains(t, body, "TRIGGER:-PT2H")
}

func TestTriggerScan(t *testing.T) {
	s := newSuite(t)
	_, student := s.user(t, models.StudentRole)
	_, organizer := s.user(t, models.OrganizerRole)

	w := s.do(t, http.MethodPost, "/api/admin/reminders/scan", student)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, s.scans.calls)

	s.scans.results = []services.ScanResult{{Milestone: models.OneDayBefore, Due: 2, Sent: 2}}
	w = s.do(t, http.MethodPost, "/api/admin/reminders/scan", organizer)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Results []services.ScanResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, 2, body.Results[0].Sent)

	s.scans.err = services.ErrScanInProgress
	w = s.do(t, http.MethodPost, "/api/admin/reminders/scan", organizer)
	assert.Equal(t, http.StatusConflict, w.Code)

	s.scans.err = services.ErrSchedulerStopped
	w = s.do(t, http.MethodPost, "/api/admin/reminders/scan", organizer)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/reminders/scan", organizer)
	assert.Equal(t, http.StatusOK, w.Code)
}

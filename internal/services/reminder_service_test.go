package services_test

import (
	"context"
	"testing"
	"time"

	"eventease/internal/database"
	"eventease/internal/models"
	"eventease/internal/services"
	"eventease/internal/store"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db        *gorm.DB
	reminders *store.ReminderStore
	service   *services.ReminderService
	loc       *time.Location
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.NewGormConfig(zap.NewNop(), logger.Silent))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	reminders := store.NewReminderStore(db)
	return testEnv{
		db:        db,
		reminders: reminders,
		service:   services.NewReminderService(store.NewEventStore(db), reminders, loc, zap.NewNop()),
		loc:       loc,
	}
}

func (e testEnv) seedUser(t *testing.T) models.User {
	t.Helper()
	user := models.User{Name: gofakeit.Name(), Email: gofakeit.Email()}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

// seedEvent creates an event on 2025-06-10 at the given local time
func (e testEnv) seedEvent(t *testing.T, clock string) models.Event {
	t.Helper()
	event := models.Event{
		Title:       "Hack Night",
		Category:    models.WorkshopCategory,
		Date:        datatypes.Date(time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)),
		Time:        clock,
		Location:    "Engineering Building",
		OrganizerID: gofakeit.UUID(),
	}
	require.NoError(t, e.db.Create(&event).Error)
	return event
}

func TestReminderService_SetRequiresRSVP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.seedUser(t)
	event := env.seedEvent(t, "18:00")

	_, err := env.service.Set(ctx, user.ID, event.ID)
	require.ErrorIs(t, err, services.ErrRSVPRequired)

	list, err := env.service.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, list, "no record is created without an RSVP")

	_, err = env.service.Set(ctx, user.ID, gofakeit.UUID())
	require.ErrorIs(t, err, store.ErrEventNotFound)
}

func TestReminderService_SetSnapshotsEvent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.seedUser(t)
	event := env.seedEvent(t, "18:00")

	_, err := env.service.RSVP(ctx, user.ID, event.ID)
	require.NoError(t, err)

	reminder, err := env.service.Set(ctx, user.ID, event.ID)
	require.NoError(t, err)

	want := time.Date(2025, time.June, 10, 18, 0, 0, 0, env.loc)
	assert.True(t, want.Equal(reminder.EventDate), "got %s", reminder.EventDate)
	assert.Equal(t, "Hack Night", reminder.EventTitle)
	assert.Equal(t, "18:00", reminder.EventTime)
	assert.Equal(t, "Engineering Building", reminder.EventLocation)
}

func TestReminderService_SetRejectsUnparseableTime(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.seedUser(t)
	event := env.seedEvent(t, "after lunch")

	_, err := env.service.RSVP(ctx, user.ID, event.ID)
	require.NoError(t, err)

	_, err = env.service.Set(ctx, user.ID, event.ID)
	require.ErrorIs(t, err, services.ErrInvalidEventSchedule)
}

func TestReminderService_RemoveAndCascade(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.seedUser(t)
	event := env.seedEvent(t, "18:00")

	require.ErrorIs(t, env.service.Remove(ctx, user.ID, event.ID), store.ErrReminderNotFound)

	_, err := env.service.RSVP(ctx, user.ID, event.ID)
	require.NoError(t, err)
	_, err = env.service.Set(ctx, user.ID, event.ID)
	require.NoError(t, err)

	require.NoError(t, env.service.CancelRSVP(ctx, user.ID, event.ID))

	list, err := env.service.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.ErrorIs(t, env.service.CancelRSVP(ctx, user.ID, event.ID), store.ErrRSVPNotFound)
}

func TestReminderFlow_EndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.seedUser(t)
	event := env.seedEvent(t, "13:00")

	_, err := env.service.RSVP(ctx, user.ID, event.ID)
	require.NoError(t, err)
	reminder, err := env.service.Set(ctx, user.ID, event.ID)
	require.NoError(t, err)

	// 13:00 in Chicago on 2025-06-10 is 18:00 UTC
	require.True(t, time.Date(2025, time.June, 10, 18, 0, 0, 0, time.UTC).Equal(reminder.EventDate))

	var delivered []services.Notification
	notifier := services.NotifierFunc(func(_ context.Context, n services.Notification) bool {
		delivered = append(delivered, n)
		return true
	})

	scanner := services.NewReminderScanner(env.reminders, store.NewUserDirectory(env.db), notifier, zap.NewNop(),
		services.WithConcurrency(1))

	scans := []time.Time{
		time.Date(2025, time.June, 9, 18, 30, 0, 0, time.UTC),
		time.Date(2025, time.June, 9, 19, 30, 0, 0, time.UTC),
		time.Date(2025, time.June, 10, 16, 15, 0, 0, time.UTC),
		time.Date(2025, time.June, 10, 17, 0, 0, 0, time.UTC),
	}
	for _, now := range scans {
		_, err := scanner.ScanAt(ctx, now)
		require.NoError(t, err)
	}

	require.Len(t, delivered, 2)
	for _, n := range delivered {
		assert.Equal(t, user.Email, n.ToEmail)
		assert.Equal(t, "Hack Night", n.EventTitle)
	}

	stored, err := env.reminders.Get(ctx, reminder.ID)
	require.NoError(t, err)
	assert.True(t, stored.OneDaySent)
	assert.True(t, stored.TwoHoursSent)
}

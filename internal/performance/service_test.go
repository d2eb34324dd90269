package performance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderdesk/orderdesk-backend/internal/worktime"
	"github.com/orderdesk/orderdesk-backend/pkg/db/models"
	"github.com/orderdesk/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/orderdesk/orderdesk-backend/pkg/errors"
)

type stubOrders struct {
	rows []models.Order
	err  error
	from time.Time
	to   time.Time
}

func (s *stubOrders) ListAssignedToAgent(_ context.Context, _ uuid.UUID, from, to time.Time) ([]models.Order, error) {
	s.from, s.to = from, to
	return s.rows, s.err
}

type stubSettings struct {
	settings worktime.Settings
	err      error
}

func (s stubSettings) Load(context.Context) (worktime.Settings, error) {
	return s.settings, s.err
}

func weekdays() worktime.Settings {
	return worktime.Settings{
		WorkStart: worktime.MustClock("09:00"),
		WorkEnd:   worktime.MustClock("17:00"),
		WorkDays:  []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Location:  time.UTC,
	}
}

func ts(value string) *time.Time {
	t, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestAgentStats(t *testing.T) {
	agentID := uuid.New()
	orders := &stubOrders{rows: []models.Order{
		{Status: enums.OrderStatusCompleted, AssignedAt: ts("2026-03-02 10:00"), CompletedAt: ts("2026-03-02 12:30")},
		{Status: enums.OrderStatusCompleted, AssignedAt: ts("2026-03-02 16:00"), CompletedAt: ts("2026-03-03 10:00")},
		{Status: enums.OrderStatusCompleted, AssignedAt: ts("2026-03-03 09:00")},
		{Status: enums.OrderStatusProcessing, AssignedAt: ts("2026-03-03 11:00")},
		{Status: enums.OrderStatusRecall, AssignedAt: ts("2026-03-03 11:30")},
		{Status: enums.OrderStatusCanceled, AssignedAt: ts("2026-03-04 09:00")},
	}}
	svc, err := NewService(orders, stubSettings{settings: weekdays()})
	require.NoError(t, err)

	from, to := *ts("2026-03-02 00:00"), *ts("2026-03-09 00:00")
	stats, err := svc.AgentStats(context.Background(), agentID, from, to)
	require.NoError(t, err)

	assert.Equal(t, from, orders.from)
	assert.Equal(t, to, orders.to)
	assert.Equal(t, 6, stats.Assigned)
	assert.Equal(t, 3, stats.Completed)
	assert.Equal(t, 2, stats.Open)
	assert.Equal(t, 1, stats.Canceled)
	assert.Equal(t, 270, stats.TotalNetMinutes)
	assert.Equal(t, 150, stats.LongestNetMinutes)
	assert.InDelta(t, 135.0, stats.AverageNetMinutes, 0.001)
}

func TestAgentStatsEmptyWindow(t *testing.T) {
	svc, err := NewService(&stubOrders{}, stubSettings{settings: weekdays()})
	require.NoError(t, err)

	stats, err := svc.AgentStats(context.Background(), uuid.New(), *ts("2026-03-02 00:00"), *ts("2026-03-03 00:00"))
	require.NoError(t, err)
	assert.Zero(t, stats.Assigned)
	assert.Zero(t, stats.AverageNetMinutes)
}

func TestAgentStatsErrors(t *testing.T) {
	from, to := *ts("2026-03-02 00:00"), *ts("2026-03-03 00:00")

	svc, err := NewService(&stubOrders{}, stubSettings{settings: weekdays()})
	require.NoError(t, err)
	_, err = svc.AgentStats(context.Background(), uuid.Nil, from, to)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	_, err = svc.AgentStats(context.Background(), uuid.New(), to, from)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	svc, err = NewService(&stubOrders{err: errors.New("boom")}, stubSettings{settings: weekdays()})
	require.NoError(t, err)
	_, err = svc.AgentStats(context.Background(), uuid.New(), from, to)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())

	loadErr := pkgerrors.New(pkgerrors.CodeInternal, "bad row")
	svc, err = NewService(&stubOrders{}, stubSettings{err: loadErr})
	require.NoError(t, err)
	_, err = svc.AgentStats(context.Background(), uuid.New(), from, to)
	assert.ErrorIs(t, err, loadErr)

	_, err = NewService(nil, stubSettings{})
	assert.Error(t, err)
}

package assignment

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderdesk/orderdesk-backend/internal/eligibility"
	"github.com/orderdesk/orderdesk-backend/pkg/enums"
	"github.com/orderdesk/orderdesk-backend/pkg/logger"
	"github.com/orderdesk/orderdesk-backend/pkg/metrics"
)

func agent(id string) eligibility.Agent {
	return eligibility.Agent{
		ID:            uuid.MustParse(id),
		Role:          enums.AgentRoleAgent,
		Status:        enums.AgentStatusActive,
		CanViewOrders: true,
	}
}

var (
	agentA = agent("aaaaaaaa-0000-0000-0000-000000000001")
	agentB = agent("bbbbbbbb-0000-0000-0000-000000000002")
	agentC = agent("cccccccc-0000-0000-0000-000000000003")
)

func line(allowed, hidden []uuid.UUID) eligibility.ProductConstraint {
	return eligibility.ProductConstraint{AssignedAgentIDs: allowed, HiddenForAgentIDs: hidden}
}

func TestDecideStrictLineUsesAllowList(t *testing.T) {
	order := Order{Lines: []eligibility.ProductConstraint{line([]uuid.UUID{agentB.ID, agentC.ID}, []uuid.UUID{agentC.ID})}}
	got := Decide(order, []eligibility.Agent{agentA, agentB}, Loads{agentA.ID: 0, agentB.ID: 9})

	assert.Equal(t, agentB.ID, got.AgentID, "allow-list beats load")
	assert.Equal(t, enums.AssignmentReasonStrict, got.Reason)
	assert.False(t, got.Fallback)
	assert.Equal(t, 1, got.CandidateCount)
}

func TestDecideOpenLineNeverPicksHidden(t *testing.T) {
	order := Order{Lines: []eligibility.ProductConstraint{
		line(nil, []uuid.UUID{agentA.ID}),
		line(nil, []uuid.UUID{agentC.ID}),
	}}
	got := Decide(order, []eligibility.Agent{agentA, agentB, agentC}, nil)

	assert.Equal(t, agentB.ID, got.AgentID)
	assert.Equal(t, enums.AssignmentReasonOpen, got.Reason)
}

func TestDecideFallsBackWhenIntersectionEmpty(t *testing.T) {
	order := Order{Lines: []eligibility.ProductConstraint{line([]uuid.UUID{uuid.New()}, nil)}}
	got := Decide(order, []eligibility.Agent{agentA, agentB}, Loads{agentA.ID: 3, agentB.ID: 1})

	assert.True(t, got.Fallback)
	assert.Equal(t, enums.AssignmentReasonFallback, got.Reason)
	assert.Equal(t, agentB.ID, got.AgentID)
	assert.Equal(t, 2, got.CandidateCount)
}

func TestDecideConflictingLinesFallBack(t *testing.T) {
	order := Order{Lines: []eligibility.ProductConstraint{
		line([]uuid.UUID{agentA.ID}, nil),
		line([]uuid.UUID{agentB.ID}, nil),
	}}
	got := Decide(order, []eligibility.Agent{agentA, agentB}, nil)
	assert.True(t, got.Fallback)
	assert.NotEqual(t, uuid.Nil, got.AgentID)
}

func TestDecideEmptyRosterIsUnassignable(t *testing.T) {
	got := Decide(Order{Lines: []eligibility.ProductConstraint{line(nil, nil)}}, nil, nil)
	assert.True(t, got.Unassignable)
	assert.Equal(t, uuid.Nil, got.AgentID)
	assert.Equal(t, enums.AssignmentReasonUnassignable, got.Reason)
}

func TestDecideIsIdempotentForAssignedOrder(t *testing.T) {
	existing := agentC.ID
	order := Order{AgentID: &existing, Lines: []eligibility.ProductConstraint{line([]uuid.UUID{agentA.ID}, nil)}}

	first := Decide(order, []eligibility.Agent{agentA}, nil)
	second := Decide(order, nil, nil)
	assert.Equal(t, existing, first.AgentID)
	assert.Equal(t, first, second)
	assert.True(t, first.AlreadyAssigned)
	assert.Equal(t, enums.AssignmentReasonExisting, first.Reason)
}

func TestDecideZeroLinesUsesRoster(t *testing.T) {
	got := Decide(Order{}, []eligibility.Agent{agentA, agentB}, Loads{agentA.ID: 1})
	assert.Equal(t, agentB.ID, got.AgentID)
	assert.False(t, got.Fallback)
	assert.Equal(t, 2, got.CandidateCount)
}

func TestDecideTieBreak(t *testing.T) {
	earlier := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	a, b, c := agentA, agentB, agentC
	a.LastAssignedAt = &later
	b.LastAssignedAt = &earlier
	roster := []eligibility.Agent{a, b, c}

	got := Decide(Order{}, roster, Loads{a.ID: 1, b.ID: 1, c.ID: 2})
	assert.Equal(t, b.ID, got.AgentID, "equal load prefers the oldest assignment")

	c.LastAssignedAt = nil
	got = Decide(Order{}, []eligibility.Agent{a, b, c}, Loads{})
	assert.Equal(t, c.ID, got.AgentID, "never-assigned agents go first")

	a.LastAssignedAt, b.LastAssignedAt, c.LastAssignedAt = nil, nil, nil
	got = Decide(Order{}, []eligibility.Agent{c, b, a}, nil)
	assert.Equal(t, a.ID, got.AgentID, "lowest id wins the final tie")
}

func TestDecideIsDeterministic(t *testing.T) {
	roster := []eligibility.Agent{agentC, agentA, agentB}
	first := Decide(Order{}, roster, nil)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Decide(Order{}, roster, nil))
	}
}

func TestEngineAssignLogsFallback(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf, Format: logger.FormatJSON})
	reg := prometheus.NewRegistry()
	engine := NewEngine(logg, metrics.NewAssignmentMetrics(reg))

	order := Order{OrderNumber: "1001", Lines: []eligibility.ProductConstraint{line([]uuid.UUID{uuid.New()}, nil)}}
	got := engine.Assign(context.Background(), order, []eligibility.Agent{agentA}, nil)
	require.True(t, got.Fallback)
	assert.Contains(t, buf.String(), "assigned from full roster")
	assert.Contains(t, buf.String(), `"order_number":"1001"`)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var fallbacks float64
	for _, mf := range mfs {
		if mf.GetName() == "orderdesk_assignment_fallback_total" {
			fallbacks = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), fallbacks)
}

func TestEngineAssignWarnsWhenUnassignable(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.InfoLevel, Output: &buf, Format: logger.FormatJSON})
	engine := NewEngine(logg, nil)

	got := engine.Assign(context.Background(), Order{OrderNumber: "1002"}, nil, nil)
	assert.True(t, got.Unassignable)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "order left unassigned")
}

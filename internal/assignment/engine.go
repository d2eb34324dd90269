// Package assignment picks the single agent that owns an order.
package assignment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orderdesk/orderdesk-backend/internal/eligibility"
	"github.com/orderdesk/orderdesk-backend/pkg/enums"
	"github.com/orderdesk/orderdesk-backend/pkg/logger"
	"github.com/orderdesk/orderdesk-backend/pkg/metrics"
)

// Order is the engine's view of an order: its current owner and line constraints.
type Order struct {
	ID          uuid.UUID
	OrderNumber string
	AgentID     *uuid.UUID
	Lines       []eligibility.ProductConstraint
}

// Loads maps agent ids to their count of open orders.
type Loads map[uuid.UUID]int

// Decision is the result of one engine run. AgentID is uuid.Nil only when
// Unassignable is set.
type Decision struct {
	AgentID         uuid.UUID
	Reason          enums.AssignmentReason
	Fallback        bool
	Unassignable    bool
	AlreadyAssigned bool
	CandidateCount  int
}

// Decide runs eligibility over every line, intersects the sets, falls back to
// the whole roster when nothing survives and picks the least loaded agent.
// roster must already be filtered to assignable agents.
func Decide(order Order, roster []eligibility.Agent, loads Loads) Decision {
	if order.AgentID != nil && *order.AgentID != uuid.Nil {
		return Decision{
			AgentID:         *order.AgentID,
			Reason:          enums.AssignmentReasonExisting,
			AlreadyAssigned: true,
		}
	}
	if len(roster) == 0 {
		return Decision{Reason: enums.AssignmentReasonUnassignable, Unassignable: true}
	}

	candidates, strict := candidateSet(order.Lines, roster)
	reason := enums.AssignmentReasonOpen
	if strict {
		reason = enums.AssignmentReasonStrict
	}
	fallback := false
	if candidates.Len() == 0 {
		candidates = eligibility.RosterSet(roster)
		reason = enums.AssignmentReasonFallback
		fallback = true
	}

	return Decision{
		AgentID:        pickLeastLoaded(candidates, roster, loads),
		Reason:         reason,
		Fallback:       fallback,
		CandidateCount: candidates.Len(),
	}
}

func candidateSet(lines []eligibility.ProductConstraint, roster []eligibility.Agent) (eligibility.Set, bool) {
	if len(lines) == 0 {
		return eligibility.RosterSet(roster), false
	}
	strict := false
	var out eligibility.Set
	for i, line := range lines {
		if line.IsStrict() {
			strict = true
		}
		set := eligibility.Resolve(line, roster)
		if i == 0 {
			out = set
			continue
		}
		out = out.Intersect(set)
	}
	return out, strict
}

// pickLeastLoaded orders candidates by open orders, then by the oldest
// LastAssignedAt with never-assigned agents first, then by id string.
func pickLeastLoaded(candidates eligibility.Set, roster []eligibility.Agent, loads Loads) uuid.UUID {
	lastAssigned := make(map[uuid.UUID]*time.Time, len(roster))
	for _, agent := range roster {
		lastAssigned[agent.ID] = agent.LastAssignedAt
	}

	var best uuid.UUID
	for _, id := range candidates.Sorted() {
		if best == uuid.Nil || less(id, best, loads, lastAssigned) {
			best = id
		}
	}
	return best
}

func less(a, b uuid.UUID, loads Loads, lastAssigned map[uuid.UUID]*time.Time) bool {
	if loads[a] != loads[b] {
		return loads[a] < loads[b]
	}
	ta, tb := lastAssigned[a], lastAssigned[b]
	switch {
	case ta == nil && tb != nil:
		return true
	case ta != nil && tb == nil:
		return false
	case ta != nil && tb != nil && !ta.Equal(*tb):
		return ta.Before(*tb)
	}
	return strings.Compare(a.String(), b.String()) < 0
}

// Engine wraps Decide with operator-visible logging and metrics.
type Engine struct {
	logg    *logger.Logger
	metrics *metrics.AssignmentMetrics
}

// NewEngine builds an engine. metrics may be nil.
func NewEngine(logg *logger.Logger, m *metrics.AssignmentMetrics) *Engine {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Engine{logg: logg, metrics: m}
}

// Assign decides the owner of order and reports fallbacks and unassignable
// orders at warn level.
func (e *Engine) Assign(ctx context.Context, order Order, roster []eligibility.Agent, loads Loads) Decision {
	decision := Decide(order, roster, loads)
	if decision.AlreadyAssigned {
		return decision
	}

	e.metrics.ObserveCandidates(decision.CandidateCount)
	logCtx := e.logg.WithFields(ctx, map[string]any{
		"order_number":    order.OrderNumber,
		"order_id":        order.ID.String(),
		"roster_size":     len(roster),
		"line_count":      len(order.Lines),
		"candidate_count": decision.CandidateCount,
		"reason":          decision.Reason.String(),
	})

	switch {
	case decision.Unassignable:
		e.logg.Warn(logCtx, "no active agents on roster; order left unassigned")
	case decision.Fallback:
		e.metrics.IncFallback()
		logCtx = e.logg.WithAgentID(logCtx, decision.AgentID.String())
		e.logg.Warn(logCtx, "product constraints excluded every agent; assigned from full roster")
	default:
		logCtx = e.logg.WithAgentID(logCtx, decision.AgentID.String())
		e.logg.Debug(logCtx, "agent selected")
	}
	return decision
}

// Package eligibility decides which agents may own an order line.
package eligibility

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orderdesk/orderdesk-backend/pkg/enums"
)

// Agent is the roster view of a staff account.
type Agent struct {
	ID             uuid.UUID
	Role           enums.AgentRole
	Status         enums.AgentStatus
	CanViewOrders  bool
	LastAssignedAt *time.Time
}

// ProductConstraint holds the visibility rules of one order line.
// An empty AssignedAgentIDs means the product has no allow-list.
type ProductConstraint struct {
	ProductID         string
	AssignedAgentIDs  []uuid.UUID
	HiddenForAgentIDs []uuid.UUID
}

// IsStrict reports whether the constraint carries an explicit allow-list.
func (c ProductConstraint) IsStrict() bool {
	for _, id := range c.AssignedAgentIDs {
		if id != uuid.Nil {
			return true
		}
	}
	return false
}

// Resolve returns the roster agents allowed to own a line with constraint.
// Hidden ids always win over allowed ids.
func Resolve(constraint ProductConstraint, roster []Agent) Set {
	hidden := NewSet(constraint.HiddenForAgentIDs...)
	strict := constraint.IsStrict()
	allowed := NewSet(constraint.AssignedAgentIDs...)

	out := make(Set, len(roster))
	for _, agent := range roster {
		if hidden.Contains(agent.ID) {
			continue
		}
		if strict && !allowed.Contains(agent.ID) {
			continue
		}
		out.Add(agent.ID)
	}
	return out
}

// IsCandidate reports whether agent may appear on the assignment roster.
func IsCandidate(agent Agent, roles []enums.AgentRole) bool {
	if agent.ID == uuid.Nil {
		return false
	}
	if agent.Status != enums.AgentStatusActive || !agent.CanViewOrders {
		return false
	}
	return slices.Contains(roles, agent.Role)
}

// FilterRoster keeps the agents that pass IsCandidate, dropping duplicate ids.
func FilterRoster(agents []Agent, roles []enums.AgentRole) []Agent {
	seen := make(Set, len(agents))
	out := make([]Agent, 0, len(agents))
	for _, agent := range agents {
		if !IsCandidate(agent, roles) || seen.Contains(agent.ID) {
			continue
		}
		seen.Add(agent.ID)
		out = append(out, agent)
	}
	return out
}

// Set is a set of agent ids.
type Set map[uuid.UUID]struct{}

// NewSet builds a set from ids, ignoring uuid.Nil.
func NewSet(ids ...uuid.UUID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// RosterSet returns the ids of every roster agent.
func RosterSet(roster []Agent) Set {
	s := make(Set, len(roster))
	for _, agent := range roster {
		s.Add(agent.ID)
	}
	return s
}

func (s Set) Add(id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	s[id] = struct{}{}
}

func (s Set) Contains(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

func (s Set) Len() int { return len(s) }

// Intersect returns the ids present in both sets.
func (s Set) Intersect(other Set) Set {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(Set, len(small))
	for id := range small {
		if large.Contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted returns the ids ordered by their canonical string form.
func (s Set) Sorted() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return strings.Compare(a.String(), b.String())
	})
	return ids
}

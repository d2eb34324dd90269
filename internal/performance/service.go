// Package performance reports per-agent throughput in working minutes.
package performance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orderdesk/orderdesk-backend/internal/worktime"
	"github.com/orderdesk/orderdesk-backend/pkg/db/models"
	"github.com/orderdesk/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/orderdesk/orderdesk-backend/pkg/errors"
)

type orderLister interface {
	ListAssignedToAgent(ctx context.Context, agentID uuid.UUID, from, to time.Time) ([]models.Order, error)
}

type settingsLoader interface {
	Load(ctx context.Context) (worktime.Settings, error)
}

// Stats summarizes the orders assigned to an agent within a window.
type Stats struct {
	AgentID           uuid.UUID `json:"agentId"`
	From              time.Time `json:"from"`
	To                time.Time `json:"to"`
	Assigned          int       `json:"assigned"`
	Completed         int       `json:"completed"`
	Canceled          int       `json:"canceled"`
	Open              int       `json:"open"`
	TotalNetMinutes   int       `json:"totalNetMinutes"`
	AverageNetMinutes float64   `json:"averageNetMinutes"`
	LongestNetMinutes int       `json:"longestNetMinutes"`
}

// Service computes agent statistics.
type Service interface {
	// AgentStats covers orders whose assigned_at falls in [from, to). Net
	// minutes run from assignment to completion on completed orders only.
	AgentStats(ctx context.Context, agentID uuid.UUID, from, to time.Time) (Stats, error)
}

type service struct {
	orders   orderLister
	settings settingsLoader
}

// NewService builds a performance service.
func NewService(orders orderLister, settings settingsLoader) (Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	return &service{orders: orders, settings: settings}, nil
}

func (s *service) AgentStats(ctx context.Context, agentID uuid.UUID, from, to time.Time) (Stats, error) {
	if agentID == uuid.Nil {
		return Stats{}, pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}
	if !to.After(from) {
		return Stats{}, pkgerrors.New(pkgerrors.CodeValidation, "to must be after from")
	}

	cal, err := s.settings.Load(ctx)
	if err != nil {
		return Stats{}, err
	}
	rows, err := s.orders.ListAssignedToAgent(ctx, agentID, from, to)
	if err != nil {
		return Stats{}, pkgerrors.WrapDependency(err, "list agent orders")
	}

	out := Stats{AgentID: agentID, From: from.UTC(), To: to.UTC(), Assigned: len(rows)}
	measured := 0
	for _, order := range rows {
		switch {
		case order.Status == enums.OrderStatusCompleted:
			out.Completed++
			if order.AssignedAt == nil || order.CompletedAt == nil {
				continue
			}
			net := worktime.NetMinutes(*order.AssignedAt, *order.CompletedAt, cal)
			measured++
			out.TotalNetMinutes += net
			if net > out.LongestNetMinutes {
				out.LongestNetMinutes = net
			}
		case order.Status == enums.OrderStatusCanceled:
			out.Canceled++
		case order.Status.IsOpen():
			out.Open++
		}
	}
	if measured > 0 {
		out.AverageNetMinutes = float64(out.TotalNetMinutes) / float64(measured)
	}
	return out, nil
}

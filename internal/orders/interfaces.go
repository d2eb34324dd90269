package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderdesk/orderdesk-backend/pkg/db/models"
)

// Repository defines persistence operations for orders, their lines and the
// assignment audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	AssignIfUnassigned(ctx context.Context, params AssignParams) (bool, error)
	ListUnassigned(ctx context.Context, limit int) ([]models.Order, error)
	CountOpenByAgent(ctx context.Context, agentIDs []uuid.UUID) (map[uuid.UUID]int, error)
	ListAssignedToAgent(ctx context.Context, agentID uuid.UUID, from, to time.Time) ([]models.Order, error)
	InsertAssignment(ctx context.Context, entry *models.OrderAssignment) error
	ListAssignments(ctx context.Context, orderID uuid.UUID) ([]models.OrderAssignment, error)
	LatestAssignment(ctx context.Context, orderID uuid.UUID) (*models.OrderAssignment, error)
}

// AssignParams describe a conditional owner write.
type AssignParams struct {
	OrderID    uuid.UUID
	AgentID    uuid.UUID
	AssignedAt time.Time
	Fallback   bool
}

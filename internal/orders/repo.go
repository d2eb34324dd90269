package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderdesk/orderdesk-backend/pkg/db/models"
	"github.com/orderdesk/orderdesk-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order together with its lines.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order == nil {
		return errors.New("order is required")
	}
	for i := range order.Lines {
		order.Lines[i].Position = i
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// AssignIfUnassigned sets the owner only while agent_id is still null and
// reports whether this call won.
func (r *repository) AssignIfUnassigned(ctx context.Context, params AssignParams) (bool, error) {
	if params.AgentID == uuid.Nil {
		return false, errors.New("agent id is required")
	}
	assignedAt := params.AssignedAt.UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND agent_id IS NULL", params.OrderID).
		Updates(map[string]any{
			"agent_id":            params.AgentID,
			"assigned_at":         assignedAt,
			"assignment_fallback": params.Fallback,
			"updated_at":          assignedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListUnassigned returns open orders without an owner, oldest first.
func (r *repository) ListUnassigned(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("agent_id IS NULL").
		Where("status IN ?", enums.OpenOrderStatuses).
		Order("placed_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountOpenByAgent counts open orders per agent. Agents without open orders
// are absent from the result.
func (r *repository) CountOpenByAgent(ctx context.Context, agentIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(agentIDs))
	if len(agentIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		AgentID uuid.UUID
		Total   int
	}
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("agent_id, COUNT(*) AS total").
		Where("agent_id IN ?", agentIDs).
		Where("status IN ?", enums.OpenOrderStatuses).
		Group("agent_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.AgentID] = row.Total
	}
	return out, nil
}

// ListAssignedToAgent returns orders owned by agentID with assigned_at in [from, to).
func (r *repository) ListAssignedToAgent(ctx context.Context, agentID uuid.UUID, from, to time.Time) ([]models.Order, error) {
	var out []models.Order
	err := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Where("assigned_at >= ? AND assigned_at < ?", from.UTC(), to.UTC()).
		Order("assigned_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) InsertAssignment(ctx context.Context, entry *models.OrderAssignment) error {
	if entry == nil {
		return errors.New("assignment entry is required")
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListAssignments(ctx context.Context, orderID uuid.UUID) ([]models.OrderAssignment, error) {
	var out []models.OrderAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LatestAssignment returns the newest audit entry for the order, or nil when
// the order has none.
func (r *repository) LatestAssignment(ctx context.Context, orderID uuid.UUID) (*models.OrderAssignment, error) {
	var out []models.OrderAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

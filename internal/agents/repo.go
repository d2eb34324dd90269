package agents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderdesk/orderdesk-backend/internal/eligibility"
	"github.com/orderdesk/orderdesk-backend/pkg/db/models"
	"github.com/orderdesk/orderdesk-backend/pkg/enums"
)

// Repository exposes agent persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an agents repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new agent.
func (r *Repository) Create(ctx context.Context, agent *models.Agent) error {
	if agent == nil {
		return errors.New("agent is required")
	}
	return r.db.WithContext(ctx).Create(agent).Error
}

// FindByID loads an agent by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	if err := r.db.WithContext(ctx).First(&agent, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}

// ListRoster returns active agents that can view orders and hold one of roles.
func (r *Repository) ListRoster(ctx context.Context, roles []enums.AgentRole) ([]models.Agent, error) {
	var out []models.Agent
	if len(roles) == 0 {
		return out, nil
	}
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.AgentStatusActive).
		Where("can_view_orders = ?", true).
		Where("role IN ?", roles).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus activates or blocks an agent.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.AgentStatus) error {
	if !status.IsValid() {
		return errors.New("invalid agent status")
	}
	return r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Where("id = ?", id).
		UpdateColumn("status", status).Error
}

// TouchLastAssigned records the latest assignment time of an agent.
func (r *Repository) TouchLastAssigned(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Where("id = ?", id).
		UpdateColumn("last_assigned_at", at.UTC()).Error
}

// ToRosterAgent converts a stored agent into the eligibility view.
func ToRosterAgent(a models.Agent) eligibility.Agent {
	return eligibility.Agent{
		ID:             a.ID,
		Role:           a.Role,
		Status:         a.Status,
		CanViewOrders:  a.CanViewOrders,
		LastAssignedAt: a.LastAssignedAt,
	}
}

// ToRoster converts stored agents and keeps only assignable ones.
func ToRoster(agents []models.Agent, roles []enums.AgentRole) []eligibility.Agent {
	out := make([]eligibility.Agent, 0, len(agents))
	for _, a := range agents {
		out = append(out, ToRosterAgent(a))
	}
	return eligibility.FilterRoster(out, roles)
}

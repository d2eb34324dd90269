package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderdesk/orderdesk-backend/pkg/enums"
)

// OrderAssignment is the audit trail of engine decisions for an order.
// AgentID is nil when the order could not be assigned.
type OrderAssignment struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	AgentID        *uuid.UUID             `gorm:"column:agent_id;type:uuid"`
	Reason         enums.AssignmentReason `gorm:"column:reason;type:text;not null"`
	Fallback       bool                   `gorm:"column:fallback;not null;default:false"`
	CandidateCount int                    `gorm:"column:candidate_count;not null;default:0"`
	Trigger        string                 `gorm:"column:trigger;not null"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (OrderAssignment) TableName() string { return "order_assignments" }

func (a *OrderAssignment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

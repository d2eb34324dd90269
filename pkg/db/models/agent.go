package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderdesk/orderdesk-backend/pkg/enums"
)

// Agent is a back-office staff account that can own orders.
type Agent struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Email          string            `gorm:"column:email;not null;uniqueIndex"`
	DisplayName    string            `gorm:"column:display_name;not null"`
	Role           enums.AgentRole   `gorm:"column:role;type:text;not null"`
	Status         enums.AgentStatus `gorm:"column:status;type:text;not null;default:'active'"`
	CanViewOrders  bool              `gorm:"column:can_view_orders;not null;default:false"`
	LastAssignedAt *time.Time        `gorm:"column:last_assigned_at"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Agent) TableName() string { return "agents" }

func (a *Agent) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

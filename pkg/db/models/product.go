package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/orderdesk/orderdesk-backend/pkg/db/types"
)

// Product carries the per-product visibility rules used for order assignment.
// An empty AssignedAgentIDs list means any agent may own orders for it.
type Product struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ExternalID        string            `gorm:"column:external_id;not null;uniqueIndex"`
	Title             string            `gorm:"column:title;not null"`
	AssignedAgentIDs  dbtypes.UUIDArray `gorm:"column:assigned_agent_ids;type:uuid[];not null"`
	HiddenForAgentIDs dbtypes.UUIDArray `gorm:"column:hidden_for_agent_ids;type:uuid[];not null"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.AssignedAgentIDs == nil {
		p.AssignedAgentIDs = dbtypes.UUIDArray{}
	}
	if p.HiddenForAgentIDs == nil {
		p.HiddenForAgentIDs = dbtypes.UUIDArray{}
	}
	return nil
}

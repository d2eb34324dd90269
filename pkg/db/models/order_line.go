package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/orderdesk/orderdesk-backend/pkg/db/types"
)

// OrderLine is one product line of an order. The agent id lists are the
// constraints delivered with the payload; the products table wins when it
// knows the product.
type OrderLine struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Position          int               `gorm:"column:position;not null"`
	ProductExternalID string            `gorm:"column:product_external_id;not null"`
	Name              string            `gorm:"column:name;not null;default:''"`
	Quantity          int               `gorm:"column:quantity;not null;default:1"`
	UnitPrice         decimal.Decimal   `gorm:"column:unit_price;type:numeric(12,2);not null"`
	AssignedAgentIDs  dbtypes.UUIDArray `gorm:"column:assigned_agent_ids;type:uuid[];not null"`
	HiddenForAgentIDs dbtypes.UUIDArray `gorm:"column:hidden_for_agent_ids;type:uuid[];not null"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (OrderLine) TableName() string { return "order_lines" }

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.AssignedAgentIDs == nil {
		l.AssignedAgentIDs = dbtypes.UUIDArray{}
	}
	if l.HiddenForAgentIDs == nil {
		l.HiddenForAgentIDs = dbtypes.UUIDArray{}
	}
	return nil
}

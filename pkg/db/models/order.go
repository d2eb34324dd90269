package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/orderdesk/orderdesk-backend/pkg/enums"
)

// Order is a storefront order mirrored into the back office.
type Order struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber        string            `gorm:"column:order_number;not null;uniqueIndex"`
	Source             string            `gorm:"column:source;not null;default:'webhook'"`
	Status             enums.OrderStatus `gorm:"column:status;type:text;not null;default:'new'"`
	AgentID            *uuid.UUID        `gorm:"column:agent_id;type:uuid"`
	AssignedAt         *time.Time        `gorm:"column:assigned_at"`
	AssignmentFallback bool              `gorm:"column:assignment_fallback;not null;default:false"`
	CustomerName       string            `gorm:"column:customer_name;not null;default:''"`
	CustomerPhone      *string           `gorm:"column:customer_phone"`
	CustomerEmail      *string           `gorm:"column:customer_email"`
	TotalAmount        decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency           string            `gorm:"column:currency;not null;default:'USD'"`
	PlacedAt           time.Time         `gorm:"column:placed_at;not null"`
	CompletedAt        *time.Time        `gorm:"column:completed_at"`
	Lines              []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// IsAssigned reports whether an agent already owns the order.
func (o *Order) IsAssigned() bool {
	return o != nil && o.AgentID != nil && *o.AgentID != uuid.Nil
}

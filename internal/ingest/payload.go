package ingest

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderdesk/orderdesk-backend/pkg/db/models"
	dbtypes "github.com/orderdesk/orderdesk-backend/pkg/db/types"
	"github.com/orderdesk/orderdesk-backend/pkg/enums"
)

// LinePayload is one product line of an inbound order. The agent id lists
// are used only when the product is unknown to the products table.
type LinePayload struct {
	ProductID         string          `json:"productId" validate:"required,max=128"`
	Name              string          `json:"name" validate:"max=256"`
	Quantity          int             `json:"quantity" validate:"gte=0"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	AssignedAgentIDs  []uuid.UUID     `json:"assignedAgentIds"`
	HiddenForAgentIDs []uuid.UUID     `json:"hiddenForAgentIds"`
}

// OrderPayload is an already authenticated and parsed storefront order.
type OrderPayload struct {
	OrderNumber   string          `json:"externalOrderNumber" validate:"required,max=64"`
	Status        string          `json:"status" validate:"omitempty,oneof=new processing on_hold recall completed canceled"`
	CreatedAt     time.Time       `json:"createdAt"`
	CustomerName  string          `json:"customerName" validate:"max=256"`
	CustomerPhone string          `json:"customerPhone" validate:"max=64"`
	CustomerEmail string          `json:"customerEmail" validate:"omitempty,email"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Currency      string          `json:"currency" validate:"omitempty,len=3"`
	Lines         []LinePayload   `json:"lines" validate:"required,min=1,dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

func (p *OrderPayload) normalize() {
	p.OrderNumber = strings.TrimSpace(p.OrderNumber)
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
	p.CustomerName = strings.TrimSpace(p.CustomerName)
	p.CustomerPhone = strings.TrimSpace(p.CustomerPhone)
	p.CustomerEmail = strings.TrimSpace(p.CustomerEmail)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	for i := range p.Lines {
		p.Lines[i].ProductID = strings.TrimSpace(p.Lines[i].ProductID)
		p.Lines[i].Name = strings.TrimSpace(p.Lines[i].Name)
	}
}

// Validate normalizes the payload in place and checks it can be stored.
func (p *OrderPayload) Validate() error {
	p.normalize()
	if err := validate.Struct(p); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			fe := errs[0]
			return fmt.Errorf("%s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return err
	}
	if p.TotalAmount.IsNegative() {
		return fmt.Errorf("totalAmount must not be negative")
	}
	for i, line := range p.Lines {
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("lines[%d].unitPrice must not be negative", i)
		}
	}
	return nil
}

// toModel maps a validated payload to a new order row.
func (p OrderPayload) toModel(source string, now time.Time) *models.Order {
	status := enums.OrderStatusNew
	if p.Status != "" {
		status = enums.OrderStatus(p.Status)
	}
	placedAt := p.CreatedAt
	if placedAt.IsZero() {
		placedAt = now
	}
	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}
	order := &models.Order{
		OrderNumber:  p.OrderNumber,
		Source:       source,
		Status:       status,
		CustomerName: p.CustomerName,
		TotalAmount:  p.TotalAmount,
		Currency:     currency,
		PlacedAt:     placedAt.UTC(),
		Lines:        make([]models.OrderLine, 0, len(p.Lines)),
	}
	if p.CustomerPhone != "" {
		phone := p.CustomerPhone
		order.CustomerPhone = &phone
	}
	if p.CustomerEmail != "" {
		email := p.CustomerEmail
		order.CustomerEmail = &email
	}
	for _, line := range p.Lines {
		qty := line.Quantity
		if qty == 0 {
			qty = 1
		}
		order.Lines = append(order.Lines, models.OrderLine{
			ProductExternalID: line.ProductID,
			Name:              line.Name,
			Quantity:          qty,
			UnitPrice:         line.UnitPrice,
			AssignedAgentIDs:  dbtypes.UUIDArray(line.AssignedAgentIDs).Compact(),
			HiddenForAgentIDs: dbtypes.UUIDArray(line.HiddenForAgentIDs).Compact(),
		})
	}
	return order
}

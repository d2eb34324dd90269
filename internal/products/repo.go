package products

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orderdesk/orderdesk-backend/internal/eligibility"
	"github.com/orderdesk/orderdesk-backend/pkg/db/models"
)

// Repository persists product visibility rules keyed by external product id.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a products repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert inserts the product or replaces the title and agent lists of the
// row with the same external id.
func (r *Repository) Upsert(ctx context.Context, product *models.Product) error {
	if product == nil {
		return errors.New("product is required")
	}
	if strings.TrimSpace(product.ExternalID) == "" {
		return errors.New("product external id is required")
	}
	product.AssignedAgentIDs = product.AssignedAgentIDs.Compact()
	product.HiddenForAgentIDs = product.HiddenForAgentIDs.Compact()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "assigned_agent_ids", "hidden_for_agent_ids", "updated_at"}),
		}).
		Create(product).Error
}

// FindByExternalID loads one product.
func (r *Repository) FindByExternalID(ctx context.Context, externalID string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "external_id = ?", externalID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByExternalIDs loads the known products among externalIDs keyed by
// external id. Unknown ids are absent from the result.
func (r *Repository) FindByExternalIDs(ctx context.Context, externalIDs []string) (map[string]models.Product, error) {
	out := make(map[string]models.Product, len(externalIDs))
	if len(externalIDs) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("external_id IN ?", externalIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ExternalID] = row
	}
	return out, nil
}

// Constraint converts a stored product into its eligibility rules.
func Constraint(p models.Product) eligibility.ProductConstraint {
	return eligibility.ProductConstraint{
		ProductID:         p.ExternalID,
		AssignedAgentIDs:  []uuid.UUID(p.AssignedAgentIDs.Compact()),
		HiddenForAgentIDs: []uuid.UUID(p.HiddenForAgentIDs.Compact()),
	}
}

// LineConstraint returns the rules of a stored order line: the product's
// rules when known, otherwise the ones delivered with the line.
func LineConstraint(line models.OrderLine, known map[string]models.Product) eligibility.ProductConstraint {
	if p, ok := known[line.ProductExternalID]; ok {
		return Constraint(p)
	}
	return eligibility.ProductConstraint{
		ProductID:         line.ProductExternalID,
		AssignedAgentIDs:  []uuid.UUID(line.AssignedAgentIDs.Compact()),
		HiddenForAgentIDs: []uuid.UUID(line.HiddenForAgentIDs.Compact()),
	}
}

// ExternalIDs returns the distinct product ids referenced by lines.
func ExternalIDs(lines []models.OrderLine) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductExternalID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

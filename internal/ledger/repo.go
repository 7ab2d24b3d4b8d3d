package ledger

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
)

// Entry captures one immutable money lifecycle event for an order.
type Entry struct {
	OrderID     uuid.UUID
	BuyerID     uuid.UUID
	SellerID    uuid.UUID
	Type        enums.LedgerEventType
	AmountCents int
	Metadata    map[string]any
}

// Repository appends and reads ledger events. Rows are never updated.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Append(ctx context.Context, entry Entry) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a ledger repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, entry Entry) error {
	if !entry.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger event type")
	}
	row := models.LedgerEvent{
		ID:          uuid.New(),
		OrderID:     entry.OrderID,
		BuyerID:     entry.BuyerID,
		SellerID:    entry.SellerID,
		Type:        entry.Type,
		AmountCents: entry.AmountCents,
	}
	if entry.Metadata != nil {
		payload, err := json.Marshal(entry.Metadata)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode ledger metadata")
		}
		row.Metadata = payload
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger event")
	}
	return nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error) {
	var rows []models.LedgerEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger events")
	}
	return rows, nil
}

package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
)

// Reserver adjusts catalog stock inside a caller-owned transaction.
type Reserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type reserverImpl struct{}

// NewReserver exposes the default stock reservation implementation.
func NewReserver() Reserver {
	return reserverImpl{}
}

// Reserve decrements available stock by qty. The decrement and the
// sufficiency check run as one statement so concurrent orders can never
// drive stock negative.
func (reserverImpl) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock reservation")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET available_stock = available_stock - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_active AND available_stock >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}
	if res.RowsAffected == 0 {
		var product models.Product
		err := tx.WithContext(ctx).First(&product, "id = ?", productID).Error
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "product is not active")
		}
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")
	}
	return nil
}

// Release restores stock previously reserved for a cancelled order.
func (reserverImpl) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET available_stock = available_stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

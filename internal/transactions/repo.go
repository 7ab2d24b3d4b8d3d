package transactions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
)

// Repository exposes transaction persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a transactions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
	}
	return txn, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	return &txn, nil
}

// UpdatePaymentStatus moves the payment status from an expected current value.
// The guard in the WHERE clause keeps the single mutation rule honest under
// concurrent callbacks.
func (r *repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND payment_status = ?", id, from).
		Update("payment_status", to)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update payment status")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction payment status already settled")
	}
	return nil
}

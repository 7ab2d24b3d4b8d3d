package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
)

// Repository correlates orders with provider checkout sessions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, session *models.PaymentSession) (*models.PaymentSession, error)
	FindByProviderSessionID(ctx context.Context, providerSessionID string) (*models.PaymentSession, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentSession, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payment session repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, session *models.PaymentSession) (*models.PaymentSession, error) {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment session")
	}
	return session, nil
}

func (r *repository) FindByProviderSessionID(ctx context.Context, providerSessionID string) (*models.PaymentSession, error) {
	var session models.PaymentSession
	err := r.db.WithContext(ctx).First(&session, "provider_session_id = ?", providerSessionID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment session")
	}
	return &session, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentSession, error) {
	var session models.PaymentSession
	err := r.db.WithContext(ctx).First(&session, "order_id = ?", orderID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment session")
	}
	return &session, nil
}

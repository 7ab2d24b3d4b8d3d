package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
)

// Repository exposes escrow payout persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, payout *models.EscrowPayout) (*models.EscrowPayout, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.EscrowPayout, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowPayout, error)
	MarkReleased(ctx context.Context, id uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an escrow repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payout *models.EscrowPayout) (*models.EscrowPayout, error) {
	if payout.ID == uuid.Nil {
		payout.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(payout).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create escrow payout")
	}
	return payout, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.EscrowPayout, error) {
	var payout models.EscrowPayout
	if err := r.db.WithContext(ctx).First(&payout, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow payout")
	}
	return &payout, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowPayout, error) {
	var payout models.EscrowPayout
	if err := r.db.WithContext(ctx).First(&payout, "order_id = ?", orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow payout")
	}
	return &payout, nil
}

// MarkReleased flips a held payout to released. The held guard in the WHERE
// clause is the double-release protection.
func (r *repository) MarkReleased(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.EscrowPayout{}).
		Where("id = ? AND status = ?", id, enums.EscrowStatusHeld).
		Updates(map[string]any{
			"status":      enums.EscrowStatusReleased,
			"released_at": at,
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release escrow payout")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow payout already released")
	}
	return nil
}

package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
)

// Repository exposes buyer and seller persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	EnsureBuyer(ctx context.Context, subjectID, email, displayName string) (*models.Buyer, error)
	FindBuyerByID(ctx context.Context, id uuid.UUID) (*models.Buyer, error)
	FindBuyerBySubject(ctx context.Context, subjectID string) (*models.Buyer, error)

	EnsureSeller(ctx context.Context, subjectID, email, displayName string) (*models.Seller, error)
	FindSellerByID(ctx context.Context, id uuid.UUID) (*models.Seller, error)
	FindSellerBySubject(ctx context.Context, subjectID string) (*models.Seller, error)
	UpdateSellerPayout(ctx context.Context, id uuid.UUID, bankName, accountNumber string) error
	MarkSellerVerified(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a users repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// EnsureBuyer loads the buyer for the identity subject, creating the row on
// first contact.
func (r *repository) EnsureBuyer(ctx context.Context, subjectID, email, displayName string) (*models.Buyer, error) {
	buyer := models.Buyer{
		ID:          uuid.New(),
		SubjectID:   subjectID,
		Email:       email,
		DisplayName: displayName,
	}
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		FirstOrCreate(&buyer).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure buyer")
	}
	return &buyer, nil
}

func (r *repository) FindBuyerByID(ctx context.Context, id uuid.UUID) (*models.Buyer, error) {
	var buyer models.Buyer
	if err := r.db.WithContext(ctx).First(&buyer, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}
	return &buyer, nil
}

func (r *repository) FindBuyerBySubject(ctx context.Context, subjectID string) (*models.Buyer, error) {
	var buyer models.Buyer
	if err := r.db.WithContext(ctx).First(&buyer, "subject_id = ?", subjectID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}
	return &buyer, nil
}

// EnsureSeller loads the seller for the identity subject, creating the row on
// first contact. New sellers start unverified and without payout details.
func (r *repository) EnsureSeller(ctx context.Context, subjectID, email, displayName string) (*models.Seller, error) {
	seller := models.Seller{
		ID:          uuid.New(),
		SubjectID:   subjectID,
		Email:       email,
		DisplayName: displayName,
	}
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		FirstOrCreate(&seller).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure seller")
	}
	return &seller, nil
}

func (r *repository) FindSellerByID(ctx context.Context, id uuid.UUID) (*models.Seller, error) {
	var seller models.Seller
	if err := r.db.WithContext(ctx).First(&seller, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	return &seller, nil
}

func (r *repository) FindSellerBySubject(ctx context.Context, subjectID string) (*models.Seller, error) {
	var seller models.Seller
	if err := r.db.WithContext(ctx).First(&seller, "subject_id = ?", subjectID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	return &seller, nil
}

func (r *repository) UpdateSellerPayout(ctx context.Context, id uuid.UUID, bankName, accountNumber string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Seller{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"bank_name":      bankName,
			"account_number": accountNumber,
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update seller payout")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
	}
	return nil
}

func (r *repository) MarkSellerVerified(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Seller{}).
		Where("id = ?", id).
		Update("is_verified", true)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "verify seller")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
	}
	return nil
}

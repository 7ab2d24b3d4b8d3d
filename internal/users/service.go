package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
)

// Service maps external identity subjects onto buyer/seller rows and manages
// seller account state.
type Service interface {
	ResolveActor(ctx context.Context, subjectID, email, displayName string, role enums.ActorRole) (uuid.UUID, error)
	UpdatePayoutDetails(ctx context.Context, sellerID uuid.UUID, bankName, accountNumber string) error
	VerifySeller(ctx context.Context, sellerID uuid.UUID) (*models.Seller, error)
	GetSeller(ctx context.Context, sellerID uuid.UUID) (*models.Seller, error)
}

type service struct {
	repo Repository
}

// NewService builds a users service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{repo: repo}, nil
}

// ResolveActor provisions the local row for the identity subject on first
// contact. Admins act without a row; their actor id is the zero uuid.
func (s *service) ResolveActor(ctx context.Context, subjectID, email, displayName string, role enums.ActorRole) (uuid.UUID, error) {
	if strings.TrimSpace(subjectID) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity subject")
	}

	switch role {
	case enums.ActorRoleBuyer:
		buyer, err := s.repo.EnsureBuyer(ctx, subjectID, email, displayName)
		if err != nil {
			return uuid.Nil, err
		}
		return buyer.ID, nil
	case enums.ActorRoleSeller:
		seller, err := s.repo.EnsureSeller(ctx, subjectID, email, displayName)
		if err != nil {
			return uuid.Nil, err
		}
		return seller.ID, nil
	case enums.ActorRoleAdmin:
		return uuid.Nil, nil
	default:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown actor role")
	}
}

// UpdatePayoutDetails stores the seller's bank destination. Both fields are
// required; escrow release checks their presence.
func (s *service) UpdatePayoutDetails(ctx context.Context, sellerID uuid.UUID, bankName, accountNumber string) error {
	bankName = strings.TrimSpace(bankName)
	accountNumber = strings.TrimSpace(accountNumber)
	if bankName == "" || accountNumber == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "bank name and account number are required")
	}
	return s.repo.UpdateSellerPayout(ctx, sellerID, bankName, accountNumber)
}

// VerifySeller flips the verification flag and returns the updated row.
func (s *service) VerifySeller(ctx context.Context, sellerID uuid.UUID) (*models.Seller, error) {
	if err := s.repo.MarkSellerVerified(ctx, sellerID); err != nil {
		return nil, err
	}
	return s.repo.FindSellerByID(ctx, sellerID)
}

func (s *service) GetSeller(ctx context.Context, sellerID uuid.UUID) (*models.Seller, error) {
	return s.repo.FindSellerByID(ctx, sellerID)
}

package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
)

// CreateInput carries a seller's new catalog listing.
type CreateInput struct {
	SellerID     uuid.UUID
	Title        string
	Description  *string
	PriceCents   int
	InitialStock int
}

// Service manages the seller-facing catalog surface.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Product, error)
	ListMine(ctx context.Context, sellerID uuid.UUID) ([]models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type service struct {
	repo Repository
}

// NewService builds a products service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.InitialStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial stock must not be negative")
	}

	product := &models.Product{
		SellerID:       input.SellerID,
		Title:          title,
		Description:    input.Description,
		PriceCents:     input.PriceCents,
		AvailableStock: input.InitialStock,
		IsActive:       true,
	}
	return s.repo.Create(ctx, product)
}

func (s *service) ListMine(ctx context.Context, sellerID uuid.UUID) ([]models.Product, error) {
	return s.repo.ListBySeller(ctx, sellerID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.repo.FindByID(ctx, id)
}

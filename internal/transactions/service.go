package transactions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/internal/posts"
	"github.com/dealcrest/dealcrest-backend/internal/products"
	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
)

// CreateInput carries a purchase intent against an explicitly typed item.
type CreateInput struct {
	BuyerID            uuid.UUID
	ItemType           enums.ItemType
	ItemID             uuid.UUID
	DeclaredTotalCents int
	Quantity           int
	PaymentMethod      enums.PaymentMethod
}

// Service validates and creates the immutable intent-to-pay record.
type Service interface {
	CreateTx(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Transaction, error)
}

type service struct {
	repo     Repository
	products products.Repository
	posts    posts.Repository
}

// NewService builds a transactions service with the required dependencies.
func NewService(repo Repository, productRepo products.Repository, postsRepo posts.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if postsRepo == nil {
		return nil, fmt.Errorf("posts repository required")
	}
	return &service{repo: repo, products: productRepo, posts: postsRepo}, nil
}

// CreateTx resolves the typed item, checks the declared total against the
// authoritative price, and persists the transaction inside the caller's
// database transaction. Offer-backed purchases are only open to the buyer
// who owns the parent post. It never mutates the product, offer, or post.
func (s *service) CreateTx(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Transaction, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.DeclaredTotalCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total must be positive")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	txn := &models.Transaction{
		BuyerID:       input.BuyerID,
		Quantity:      input.Quantity,
		TotalCents:    input.DeclaredTotalCents,
		PaymentMethod: input.PaymentMethod,
		PaymentStatus: enums.PaymentStatusPending,
	}

	switch input.ItemType {
	case enums.ItemTypeProduct:
		product, err := s.products.WithTx(tx).FindByID(ctx, input.ItemID)
		if err != nil {
			return nil, err
		}
		expected := product.PriceCents * input.Quantity
		if input.DeclaredTotalCents != expected {
			return nil, pkgerrors.New(pkgerrors.CodePriceMismatch, "declared total does not match product price").
				WithDetails(map[string]int{"expected_cents": expected, "declared_cents": input.DeclaredTotalCents})
		}
		txn.SellerID = product.SellerID
		productID := product.ID
		txn.ProductID = &productID

	case enums.ItemTypeOffer:
		postsRepo := s.posts.WithTx(tx)
		offer, err := postsRepo.FindOfferByID(ctx, input.ItemID)
		if err != nil {
			return nil, err
		}
		post, err := postsRepo.FindPostByID(ctx, offer.PostID)
		if err != nil {
			return nil, err
		}
		if post.BuyerID != input.BuyerID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "offer belongs to another buyer's post")
		}
		if input.Quantity != 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer-backed purchases have quantity 1")
		}
		if input.DeclaredTotalCents != offer.AmountCents {
			return nil, pkgerrors.New(pkgerrors.CodePriceMismatch, "declared total does not match offer amount").
				WithDetails(map[string]int{"expected_cents": offer.AmountCents, "declared_cents": input.DeclaredTotalCents})
		}
		txn.SellerID = offer.SellerID
		offerID := offer.ID
		txn.OfferID = &offerID

	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item type must be product or offer")
	}

	return s.repo.WithTx(tx).Create(ctx, txn)
}

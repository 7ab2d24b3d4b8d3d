package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/dealcrest/dealcrest-backend/internal/posts"
	"github.com/dealcrest/dealcrest-backend/internal/products"
	"github.com/dealcrest/dealcrest-backend/pkg/config"
	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
	"github.com/dealcrest/dealcrest-backend/pkg/stripe"
)

// SessionCreator abstracts the hosted-payment provider.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, input stripe.CheckoutInput) (*stripe.CheckoutSession, error)
}

// Service builds hosted checkout sessions for pending online orders. It
// resolves the unit price from the transaction's typed item and never
// mutates the order, transaction, offer, or post.
type Service interface {
	OpenSession(ctx context.Context, order *models.Order, txn *models.Transaction) (*models.PaymentSession, error)
}

type service struct {
	repo     Repository
	products products.Repository
	posts    posts.Repository
	provider SessionCreator
	payments config.PaymentsConfig
}

// NewService builds a checkout service with the required dependencies.
func NewService(
	repo Repository,
	productRepo products.Repository,
	postsRepo posts.Repository,
	provider SessionCreator,
	payments config.PaymentsConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment session repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if postsRepo == nil {
		return nil, fmt.Errorf("posts repository required")
	}
	if provider == nil {
		return nil, fmt.Errorf("session provider required")
	}
	return &service{
		repo:     repo,
		products: productRepo,
		posts:    postsRepo,
		provider: provider,
		payments: payments,
	}, nil
}

// OpenSession creates the provider session and stores the correlation row so
// both the redirect and webhook callback paths resolve to the same order.
func (s *service) OpenSession(ctx context.Context, order *models.Order, txn *models.Transaction) (*models.PaymentSession, error) {
	if order == nil || txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order and transaction required")
	}

	itemName, unitCents, itemType, err := s.resolveItem(ctx, txn)
	if err != nil {
		return nil, err
	}

	input := stripe.CheckoutInput{
		OrderID:       order.ID.String(),
		TransactionID: txn.ID.String(),
		ItemType:      itemType.String(),
		ItemName:      itemName,
		UnitCents:     int64(unitCents),
		Quantity:      int64(order.Quantity),
		Currency:      s.payments.Currency,
		SuccessURL:    s.payments.SuccessURL,
		CancelURL:     s.payments.CancelURL,
	}
	if s.payments.SessionTimeout > 0 {
		// Stripe enforces a 30 minute floor on expiry; shorter configured
		// timeouts only bound our own request context.
		if s.payments.SessionTimeout >= 30*time.Minute {
			input.ExpiresAt = time.Now().Add(s.payments.SessionTimeout)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.payments.SessionTimeout)
		defer cancel()
	}

	providerSession, err := s.provider.CreateCheckoutSession(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open checkout session")
	}

	session := &models.PaymentSession{
		OrderID:           order.ID,
		TransactionID:     txn.ID,
		ProviderSessionID: providerSession.ProviderSessionID,
		CheckoutURL:       providerSession.URL,
	}
	return s.repo.Create(ctx, session)
}

func (s *service) resolveItem(ctx context.Context, txn *models.Transaction) (string, int, enums.ItemType, error) {
	switch {
	case txn.IsProductBacked():
		product, err := s.products.FindByID(ctx, *txn.ProductID)
		if err != nil {
			return "", 0, "", err
		}
		return product.Title, product.PriceCents, enums.ItemTypeProduct, nil

	case txn.IsOfferBacked():
		offer, err := s.posts.FindOfferByID(ctx, *txn.OfferID)
		if err != nil {
			return "", 0, "", err
		}
		post, err := s.posts.FindPostByID(ctx, offer.PostID)
		if err != nil {
			return "", 0, "", err
		}
		return post.Title, offer.AmountCents, enums.ItemTypeOffer, nil

	default:
		return "", 0, "", pkgerrors.New(pkgerrors.CodeInternal, "transaction has no item attached")
	}
}

package posts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
	"github.com/dealcrest/dealcrest-backend/pkg/outbox"
	"github.com/dealcrest/dealcrest-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines post and offer operations.
type Service interface {
	CreatePost(ctx context.Context, input CreatePostInput) (*models.Post, error)
	ListOpenPosts(ctx context.Context, params pagination.Params) ([]models.Post, string, error)
	CreateOffer(ctx context.Context, input CreateOfferInput) (*models.Offer, error)
	AcceptOffer(ctx context.Context, input AcceptOfferInput) error
	AcceptOfferTx(ctx context.Context, tx *gorm.DB, input AcceptOfferInput) (bool, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// CreatePostInput carries a buyer's request-for-offers.
type CreatePostInput struct {
	BuyerID     uuid.UUID
	Title       string
	Description *string
	BudgetCents int
}

// CreateOfferInput carries a seller's bid against an open post.
type CreateOfferInput struct {
	PostID      uuid.UUID
	SellerID    uuid.UUID
	AmountCents int
	Message     *string
}

// AcceptOfferInput identifies the offer plus the actor driving the accept.
// ActorBuyerID is zero when acceptance comes from a successful payment;
// transaction creation already verified the paying buyer owns the post.
type AcceptOfferInput struct {
	OfferID      uuid.UUID
	ActorBuyerID uuid.UUID
}

// OfferAcceptedEvent is emitted once per offer when the accept transition fires.
type OfferAcceptedEvent struct {
	OfferID  uuid.UUID `json:"offer_id"`
	PostID   uuid.UUID `json:"post_id"`
	SellerID uuid.UUID `json:"seller_id"`
	BuyerID  uuid.UUID `json:"buyer_id"`
}

// NewService builds a posts service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("posts repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc}, nil
}

func (s *service) CreatePost(ctx context.Context, input CreatePostInput) (*models.Post, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "post title is required")
	}
	if input.BudgetCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "post budget must not be negative")
	}
	post := &models.Post{
		BuyerID:     input.BuyerID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		BudgetCents: input.BudgetCents,
		Status:      enums.PostStatusOpen,
	}
	return s.repo.CreatePost(ctx, post)
}

func (s *service) ListOpenPosts(ctx context.Context, params pagination.Params) ([]models.Post, string, error) {
	return s.repo.ListOpenPosts(ctx, params)
}

func (s *service) CreateOffer(ctx context.Context, input CreateOfferInput) (*models.Offer, error) {
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer amount must be positive")
	}

	post, err := s.repo.FindPostByID(ctx, input.PostID)
	if err != nil {
		return nil, err
	}
	if post.Status != enums.PostStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "post is closed to new offers")
	}
	if post.BuyerID == input.SellerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot offer on own post")
	}

	offer := &models.Offer{
		PostID:      input.PostID,
		SellerID:    input.SellerID,
		AmountCents: input.AmountCents,
		Message:     input.Message,
		Status:      enums.OfferStatusPending,
	}
	return s.repo.CreateOffer(ctx, offer)
}

// AcceptOffer runs the accept transition in its own transaction. Used by the
// explicit buyer action.
func (s *service) AcceptOffer(ctx context.Context, input AcceptOfferInput) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.AcceptOfferTx(ctx, tx, input)
		return err
	})
}

// AcceptOfferTx is the single accept transition shared by the explicit buyer
// action and the payment callback. It reports whether the transition actually
// fired so callers never double-emit side effects: re-accepting an already
// accepted offer is a no-op.
func (s *service) AcceptOfferTx(ctx context.Context, tx *gorm.DB, input AcceptOfferInput) (bool, error) {
	repo := s.repo.WithTx(tx)

	offer, err := repo.FindOfferByID(ctx, input.OfferID)
	if err != nil {
		return false, err
	}
	if offer.Status == enums.OfferStatusAccepted {
		return false, nil
	}
	if offer.Status == enums.OfferStatusRejected {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "offer was rejected")
	}

	post, err := repo.FindPostByID(ctx, offer.PostID)
	if err != nil {
		return false, err
	}
	if post.Status != enums.PostStatusOpen {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "post already closed")
	}
	if input.ActorBuyerID != uuid.Nil && post.BuyerID != input.ActorBuyerID {
		return false, pkgerrors.New(pkgerrors.CodeForbidden, "only the post owner may accept an offer")
	}

	if err := repo.MarkOfferAccepted(ctx, offer.ID, time.Now()); err != nil {
		return false, err
	}
	if err := repo.RejectPendingOffers(ctx, post.ID, offer.ID); err != nil {
		return false, err
	}
	if err := repo.UpdatePostStatus(ctx, post.ID, enums.PostStatusClosed); err != nil {
		return false, err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOfferAccepted,
		AggregateType: enums.AggregateOffer,
		AggregateID:   offer.ID,
		Version:       1,
		Data: OfferAcceptedEvent{
			OfferID:  offer.ID,
			PostID:   post.ID,
			SellerID: offer.SellerID,
			BuyerID:  post.BuyerID,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return false, err
	}
	postEvent := outbox.DomainEvent{
		EventType:     enums.EventPostClosed,
		AggregateType: enums.AggregatePost,
		AggregateID:   post.ID,
		Version:       1,
		Data:          map[string]any{"post_id": post.ID.String(), "offer_id": offer.ID.String()},
	}
	if err := s.outbox.Emit(ctx, tx, postEvent); err != nil {
		return false, err
	}
	return true, nil
}

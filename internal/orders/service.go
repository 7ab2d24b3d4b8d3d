package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/internal/inventory"
	"github.com/dealcrest/dealcrest-backend/internal/ledger"
	"github.com/dealcrest/dealcrest-backend/internal/posts"
	"github.com/dealcrest/dealcrest-backend/internal/transactions"
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

// Service defines order-level operations beyond repository reads.
type Service interface {
	CreateTx(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Order, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	ConfirmTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	CancelTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	Get(ctx context.Context, input ActorInput, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, input ActorInput, params pagination.Params) ([]models.Order, string, error)
}

type service struct {
	repo      Repository
	posts     posts.Repository
	txns      transactions.Repository
	ledger    ledger.Repository
	inventory inventory.Reserver
	tx        txRunner
	outbox    outboxPublisher
}

// CreateInput derives the fulfillment order from an already persisted
// transaction.
type CreateInput struct {
	Transaction *models.Transaction
	Address     string
}

// ActorInput identifies who is acting and in which role.
type ActorInput struct {
	ActorID uuid.UUID
	Role    enums.ActorRole
}

// UpdateStatusInput carries a status transition request.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	Actor   ActorInput
}

// StatusChangedEvent is emitted when an order moves to a new status.
type StatusChangedEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	TransactionID uuid.UUID         `json:"transaction_id"`
	BuyerID       uuid.UUID         `json:"buyer_id"`
	SellerID      uuid.UUID         `json:"seller_id"`
	Status        enums.OrderStatus `json:"status"`
}

// NewService builds an orders service with the required dependencies.
func NewService(
	repo Repository,
	postsRepo posts.Repository,
	txnRepo transactions.Repository,
	ledgerRepo ledger.Repository,
	reserver inventory.Reserver,
	tx txRunner,
	outboxSvc outboxPublisher,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if postsRepo == nil {
		return nil, fmt.Errorf("posts repository required")
	}
	if txnRepo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if reserver == nil {
		return nil, fmt.Errorf("inventory reserver required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:      repo,
		posts:     postsRepo,
		txns:      txnRepo,
		ledger:    ledgerRepo,
		inventory: reserver,
		tx:        tx,
		outbox:    outboxSvc,
	}, nil
}

// CreateTx places the order inside the caller's database transaction.
// Product-backed orders reserve stock here; offer-backed orders attach the
// parent post after checking the offer was not rejected. Exactly one of
// product_id/post_id ends up set. Online orders start pending and wait for
// the payment webhook; cash-on-delivery has nothing to wait for, so those
// orders start confirmed.
func (s *service) CreateTx(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Order, error) {
	txn := input.Transaction
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction record required")
	}
	if strings.TrimSpace(input.Address) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address is required")
	}

	status := enums.OrderStatusPending
	if txn.PaymentMethod == enums.PaymentMethodCOD {
		status = enums.OrderStatusConfirmed
	}

	order := &models.Order{
		BuyerID:       txn.BuyerID,
		SellerID:      txn.SellerID,
		TransactionID: txn.ID,
		Address:       strings.TrimSpace(input.Address),
		Quantity:      txn.Quantity,
		TotalCents:    txn.TotalCents,
		Status:        status,
	}

	switch {
	case txn.IsProductBacked():
		if err := s.inventory.Reserve(ctx, tx, *txn.ProductID, txn.Quantity); err != nil {
			return nil, err
		}
		order.ProductID = txn.ProductID

	case txn.IsOfferBacked():
		postsRepo := s.posts.WithTx(tx)
		offer, err := postsRepo.FindOfferByID(ctx, *txn.OfferID)
		if err != nil {
			return nil, err
		}
		if offer.Status == enums.OfferStatusRejected {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "offer was rejected")
		}
		post, err := postsRepo.FindPostByID(ctx, offer.PostID)
		if err != nil {
			return nil, err
		}
		postID := post.ID
		order.PostID = &postID

	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction has no item attached")
	}

	return s.repo.WithTx(tx).Create(ctx, order)
}

// UpdateStatus applies an actor-driven transition in its own transaction.
// Buyers may only cancel their own orders; sellers may confirm, deliver, and
// cancel theirs; admins may do either.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if err := authorizeTransition(order, input.Actor, input.Target); err != nil {
			return err
		}
		if err := s.applyTransition(ctx, tx, order, input.Target); err != nil {
			return err
		}
		updated, err = repo.FindByID(ctx, input.OrderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ConfirmTx moves a pending order to confirmed inside the caller's
// transaction. Used by the payment callback.
func (s *service) ConfirmTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	order, err := s.repo.WithTx(tx).FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	return s.applyTransition(ctx, tx, order, enums.OrderStatusConfirmed)
}

// CancelTx cancels an order inside the caller's transaction, releasing stock
// for product-backed orders. Used by the payment callback and the purchase
// compensation path.
func (s *service) CancelTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	order, err := s.repo.WithTx(tx).FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	return s.applyTransition(ctx, tx, order, enums.OrderStatusCancelled)
}

func (s *service) Get(ctx context.Context, input ActorInput, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canView(order, input) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another party")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, input ActorInput, params pagination.Params) ([]models.Order, string, error) {
	switch input.Role {
	case enums.ActorRoleBuyer:
		return s.repo.ListByBuyer(ctx, input.ActorID, params)
	case enums.ActorRoleSeller:
		return s.repo.ListBySeller(ctx, input.ActorID, params)
	default:
		return nil, "", pkgerrors.New(pkgerrors.CodeForbidden, "listing requires a buyer or seller role")
	}
}

// applyTransition is the one place an order changes status. It validates the
// state machine, applies the guarded update, releases stock on cancellation
// of product-backed orders, flips COD transactions to paid on delivery, and
// emits the matching domain event.
func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, order *models.Order, target enums.OrderStatus) error {
	if !order.Status.CanTransitionTo(target) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, target))
	}

	now := time.Now()
	repo := s.repo.WithTx(tx)
	if err := repo.TransitionStatus(ctx, order.ID, order.Status, target, now); err != nil {
		return err
	}

	if target == enums.OrderStatusCancelled && order.IsProductBacked() {
		if err := s.inventory.Release(ctx, tx, *order.ProductID, order.Quantity); err != nil {
			return err
		}
	}

	if target == enums.OrderStatusDelivered {
		if err := s.settleCashOnDelivery(ctx, tx, order, now); err != nil {
			return err
		}
	}

	event := outbox.DomainEvent{
		EventType:     eventTypeFor(target),
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		OccurredAt:    now,
		Data: StatusChangedEvent{
			OrderID:       order.ID,
			TransactionID: order.TransactionID,
			BuyerID:       order.BuyerID,
			SellerID:      order.SellerID,
			Status:        target,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

// settleCashOnDelivery flips a COD transaction to paid when the order is
// delivered. Online transactions were settled by the payment callback and
// are left alone.
func (s *service) settleCashOnDelivery(ctx context.Context, tx *gorm.DB, order *models.Order, at time.Time) error {
	txnRepo := s.txns.WithTx(tx)
	txn, err := txnRepo.FindByID(ctx, order.TransactionID)
	if err != nil {
		return err
	}
	if txn.PaymentMethod != enums.PaymentMethodCOD || txn.PaymentStatus != enums.PaymentStatusPending {
		return nil
	}
	if err := txnRepo.UpdatePaymentStatus(ctx, txn.ID, enums.PaymentStatusPending, enums.PaymentStatusPaid); err != nil {
		return err
	}
	return s.ledger.WithTx(tx).Append(ctx, ledger.Entry{
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		SellerID:    order.SellerID,
		Type:        enums.LedgerEventCashCollected,
		AmountCents: order.TotalCents,
		Metadata:    map[string]any{"delivered_at": at.UTC().Format(time.RFC3339)},
	})
}

func authorizeTransition(order *models.Order, actor ActorInput, target enums.OrderStatus) error {
	switch actor.Role {
	case enums.ActorRoleAdmin:
		return nil
	case enums.ActorRoleBuyer:
		if order.BuyerID != actor.ActorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
		}
		if target != enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeForbidden, "buyers may only cancel orders")
		}
		return nil
	case enums.ActorRoleSeller:
		if order.SellerID != actor.ActorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another seller")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}
}

func canView(order *models.Order, actor ActorInput) bool {
	switch actor.Role {
	case enums.ActorRoleAdmin:
		return true
	case enums.ActorRoleBuyer:
		return order.BuyerID == actor.ActorID
	case enums.ActorRoleSeller:
		return order.SellerID == actor.ActorID
	default:
		return false
	}
}

func eventTypeFor(status enums.OrderStatus) enums.OutboxEventType {
	switch status {
	case enums.OrderStatusConfirmed:
		return enums.EventOrderConfirmed
	case enums.OrderStatusDelivered:
		return enums.EventOrderDelivered
	default:
		return enums.EventOrderCancelled
	}
}

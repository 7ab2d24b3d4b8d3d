package purchase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/internal/checkout"
	"github.com/dealcrest/dealcrest-backend/internal/escrow"
	"github.com/dealcrest/dealcrest-backend/internal/orders"
	"github.com/dealcrest/dealcrest-backend/internal/transactions"
	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
	"github.com/dealcrest/dealcrest-backend/pkg/metrics"
	"github.com/dealcrest/dealcrest-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Input carries one purchase request against an explicitly typed item.
type Input struct {
	BuyerID            uuid.UUID
	ItemType           enums.ItemType
	ItemID             uuid.UUID
	Quantity           int
	DeclaredTotalCents int
	Address            string
}

// Result bundles everything a purchase produced. Escrow and CheckoutURL are
// only set on the online path.
type Result struct {
	Order       *models.Order
	Transaction *models.Transaction
	Escrow      *models.EscrowPayout
	CheckoutURL string
}

// CompletedEvent is emitted once per purchase, inside the same database
// transaction that created the order.
type CompletedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	TransactionID uuid.UUID           `json:"transaction_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	SellerID      uuid.UUID           `json:"seller_id"`
	ItemType      enums.ItemType      `json:"item_type"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalCents    int                 `json:"total_cents"`
}

// Service is the single entry point for buying an item. Both payment methods
// create the transaction and order atomically; online purchases additionally
// open a held escrow payout and a hosted checkout session.
type Service interface {
	PerformOnline(ctx context.Context, input Input) (*Result, error)
	PerformCOD(ctx context.Context, input Input) (*Result, error)
}

type service struct {
	txns     transactions.Service
	txnRepo  transactions.Repository
	orders   orders.Service
	escrow   escrow.Service
	checkout checkout.Service
	tx       txRunner
	outbox   outboxPublisher
	metrics  *metrics.CommerceMetrics
}

// NewService builds a purchase orchestrator with the required dependencies.
func NewService(
	txnSvc transactions.Service,
	txnRepo transactions.Repository,
	orderSvc orders.Service,
	escrowSvc escrow.Service,
	checkoutSvc checkout.Service,
	tx txRunner,
	outboxSvc outboxPublisher,
	commerceMetrics *metrics.CommerceMetrics,
) (Service, error) {
	if txnSvc == nil {
		return nil, fmt.Errorf("transactions service required")
	}
	if txnRepo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if escrowSvc == nil {
		return nil, fmt.Errorf("escrow service required")
	}
	if checkoutSvc == nil {
		return nil, fmt.Errorf("checkout service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		txns:     txnSvc,
		txnRepo:  txnRepo,
		orders:   orderSvc,
		escrow:   escrowSvc,
		checkout: checkoutSvc,
		tx:       tx,
		outbox:   outboxSvc,
		metrics:  commerceMetrics,
	}, nil
}

// PerformOnline creates the transaction, order, and held escrow payout in one
// database transaction, then opens the hosted checkout session. If the
// provider call fails the purchase is compensated: the order is cancelled
// (restocking product-backed items) and the payment marked failed.
func (s *service) PerformOnline(ctx context.Context, input Input) (*Result, error) {
	result, err := s.perform(ctx, input, enums.PaymentMethodOnline)
	if err != nil {
		return nil, err
	}

	session, err := s.checkout.OpenSession(ctx, result.Order, result.Transaction)
	if err != nil {
		if compErr := s.compensate(ctx, result); compErr != nil {
			err = multierr.Append(err, compErr)
		}
		s.metrics.IncPurchase(enums.PaymentMethodOnline.String(), "failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open payment session")
	}

	result.CheckoutURL = session.CheckoutURL
	s.metrics.IncPurchase(enums.PaymentMethodOnline.String(), "success")
	return result, nil
}

// PerformCOD creates the transaction and order in one database transaction.
// No escrow is held and no payment session opens; the order starts confirmed
// and payment settles when the seller marks it delivered.
func (s *service) PerformCOD(ctx context.Context, input Input) (*Result, error) {
	result, err := s.perform(ctx, input, enums.PaymentMethodCOD)
	if err != nil {
		return nil, err
	}
	s.metrics.IncPurchase(enums.PaymentMethodCOD.String(), "success")
	return result, nil
}

func (s *service) perform(ctx context.Context, input Input, method enums.PaymentMethod) (*Result, error) {
	start := time.Now()
	result := &Result{}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txn, err := s.txns.CreateTx(ctx, tx, transactions.CreateInput{
			BuyerID:            input.BuyerID,
			ItemType:           input.ItemType,
			ItemID:             input.ItemID,
			DeclaredTotalCents: input.DeclaredTotalCents,
			Quantity:           input.Quantity,
			PaymentMethod:      method,
		})
		if err != nil {
			return err
		}

		order, err := s.orders.CreateTx(ctx, tx, orders.CreateInput{
			Transaction: txn,
			Address:     input.Address,
		})
		if err != nil {
			return err
		}

		if method == enums.PaymentMethodOnline {
			payout, err := s.escrow.CreateTx(ctx, tx, order)
			if err != nil {
				return err
			}
			result.Escrow = payout
		}

		err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{SubjectID: input.BuyerID.String(), Role: enums.ActorRoleBuyer.String()},
			Data: CompletedEvent{
				OrderID:       order.ID,
				TransactionID: txn.ID,
				BuyerID:       txn.BuyerID,
				SellerID:      txn.SellerID,
				ItemType:      input.ItemType,
				PaymentMethod: method,
				TotalCents:    txn.TotalCents,
			},
		})
		if err != nil {
			return err
		}

		result.Transaction = txn
		result.Order = order
		return nil
	})
	if err != nil {
		s.metrics.IncPurchase(method.String(), "failed")
		return nil, err
	}

	s.metrics.ObservePurchaseDuration(method.String(), time.Since(start))
	return result, nil
}

// compensate unwinds an already committed purchase after the payment session
// could not be opened. Cancellation restocks product-backed items; the held
// escrow payout stays attached to the cancelled order and is never releasable
// through the normal delivered flow.
func (s *service) compensate(ctx context.Context, result *Result) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.CancelTx(ctx, tx, result.Order.ID); err != nil {
			return err
		}
		return s.txnRepo.WithTx(tx).UpdatePaymentStatus(
			ctx, result.Transaction.ID, enums.PaymentStatusPending, enums.PaymentStatusFailed)
	})
}

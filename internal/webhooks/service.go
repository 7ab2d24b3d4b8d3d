package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	stripego "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/internal/checkout"
	"github.com/dealcrest/dealcrest-backend/internal/ledger"
	"github.com/dealcrest/dealcrest-backend/internal/orders"
	"github.com/dealcrest/dealcrest-backend/internal/posts"
	"github.com/dealcrest/dealcrest-backend/internal/transactions"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
	"github.com/dealcrest/dealcrest-backend/pkg/logger"
	"github.com/dealcrest/dealcrest-backend/pkg/metrics"
	"github.com/dealcrest/dealcrest-backend/pkg/outbox"
	"github.com/dealcrest/dealcrest-backend/pkg/redis"
)

const idempotencyScope = "stripe_webhook"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Outcome is the terminal result of a payment session.
type Outcome string

const (
	OutcomePaid   Outcome = "paid"
	OutcomeFailed Outcome = "failed"
)

// ApplyInput identifies one provider callback delivery.
type ApplyInput struct {
	EventID           string
	ProviderSessionID string
	Outcome           Outcome
}

// PaymentEvent is emitted on the transaction aggregate when a payment
// callback settles.
type PaymentEvent struct {
	OrderID           uuid.UUID `json:"order_id"`
	TransactionID     uuid.UUID `json:"transaction_id"`
	ProviderSessionID string    `json:"provider_session_id"`
	Outcome           Outcome   `json:"outcome"`
}

// Service applies payment provider callbacks to the order state machine.
// Deliveries are at-least-once, so every path is idempotent: a best-effort
// Redis guard on the event id short-circuits replays, and the pending-order
// check makes the database the final arbiter when Redis is unavailable.
type Service interface {
	HandleEvent(ctx context.Context, event *stripego.Event) error
	ApplyOutcome(ctx context.Context, input ApplyInput) error
}

type service struct {
	sessions checkout.Repository
	orders   orders.Service
	ordRepo  orders.Repository
	txnRepo  transactions.Repository
	posts    posts.Service
	ledger   ledger.Repository
	tx       txRunner
	outbox   outboxPublisher
	idem     redis.IdempotencyStore
	idemTTL  time.Duration
	metrics  *metrics.CommerceMetrics
	logg     *logger.Logger
}

// NewService builds a webhook service with the required dependencies. The
// idempotency store may be nil, in which case replay protection relies on the
// order status guard alone.
func NewService(
	sessionRepo checkout.Repository,
	orderSvc orders.Service,
	orderRepo orders.Repository,
	txnRepo transactions.Repository,
	postSvc posts.Service,
	ledgerRepo ledger.Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	idem redis.IdempotencyStore,
	idemTTL time.Duration,
	commerceMetrics *metrics.CommerceMetrics,
	logg *logger.Logger,
) (Service, error) {
	if sessionRepo == nil {
		return nil, fmt.Errorf("payment session repository required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if txnRepo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if postSvc == nil {
		return nil, fmt.Errorf("posts service required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		sessions: sessionRepo,
		orders:   orderSvc,
		ordRepo:  orderRepo,
		txnRepo:  txnRepo,
		posts:    postSvc,
		ledger:   ledgerRepo,
		tx:       tx,
		outbox:   outboxSvc,
		idem:     idem,
		idemTTL:  idemTTL,
		metrics:  commerceMetrics,
		logg:     logg,
	}, nil
}

// HandleEvent maps a verified provider event onto a payment outcome.
// Unrecognized event types are acknowledged without action so the provider
// stops redelivering them.
func (s *service) HandleEvent(ctx context.Context, event *stripego.Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event required")
	}

	var session stripego.CheckoutSession
	switch event.Type {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired":
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session payload")
		}
	default:
		return nil
	}

	input := ApplyInput{EventID: event.ID, ProviderSessionID: session.ID}
	switch event.Type {
	case "checkout.session.completed":
		// Async payment methods complete the session before the charge
		// settles; the follow-up async event carries the real outcome.
		if session.PaymentStatus != stripego.CheckoutSessionPaymentStatusPaid {
			return nil
		}
		input.Outcome = OutcomePaid
	case "checkout.session.async_payment_succeeded":
		input.Outcome = OutcomePaid
	default:
		input.Outcome = OutcomeFailed
	}
	return s.ApplyOutcome(ctx, input)
}

// ApplyOutcome settles one payment session. Paid confirms the order, marks
// the transaction paid, and accepts the backing offer for post-backed
// purchases; failed cancels the order and restocks product-backed items.
// Replayed deliveries are acknowledged without side effects.
func (s *service) ApplyOutcome(ctx context.Context, input ApplyInput) error {
	if input.ProviderSessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider session id required")
	}
	if input.Outcome != OutcomePaid && input.Outcome != OutcomeFailed {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment outcome")
	}

	claimed, idemKey := s.claimEvent(ctx, input.EventID)
	if !claimed {
		return nil
	}

	err := s.applyOutcome(ctx, input)
	if err != nil && idemKey != "" {
		if delErr := s.idem.Del(ctx, idemKey); delErr != nil {
			s.warn(ctx, delErr, "release webhook idempotency key")
		}
	}
	if err == nil {
		s.metrics.IncPaymentOutcome(string(input.Outcome))
	}
	return err
}

func (s *service) applyOutcome(ctx context.Context, input ApplyInput) error {
	session, err := s.sessions.FindByProviderSessionID(ctx, input.ProviderSessionID)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.ordRepo.WithTx(tx).FindByID(ctx, session.OrderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return nil
		}

		txnRepo := s.txnRepo.WithTx(tx)
		txn, err := txnRepo.FindByID(ctx, session.TransactionID)
		if err != nil {
			return err
		}

		switch input.Outcome {
		case OutcomePaid:
			if err := txnRepo.UpdatePaymentStatus(ctx, txn.ID, enums.PaymentStatusPending, enums.PaymentStatusPaid); err != nil {
				return err
			}
			if err := s.orders.ConfirmTx(ctx, tx, order.ID); err != nil {
				return err
			}
			if txn.IsOfferBacked() {
				if _, err := s.posts.AcceptOfferTx(ctx, tx, posts.AcceptOfferInput{OfferID: *txn.OfferID}); err != nil {
					return err
				}
			}
			err = s.ledger.WithTx(tx).Append(ctx, ledger.Entry{
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				SellerID:    order.SellerID,
				Type:        enums.LedgerEventPaymentCaptured,
				AmountCents: order.TotalCents,
				Metadata:    map[string]any{"provider_session_id": input.ProviderSessionID},
			})
			if err != nil {
				return err
			}

		case OutcomeFailed:
			if err := txnRepo.UpdatePaymentStatus(ctx, txn.ID, enums.PaymentStatusPending, enums.PaymentStatusFailed); err != nil {
				return err
			}
			if err := s.orders.CancelTx(ctx, tx, order.ID); err != nil {
				return err
			}
			err = s.ledger.WithTx(tx).Append(ctx, ledger.Entry{
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				SellerID:    order.SellerID,
				Type:        enums.LedgerEventPaymentFailed,
				AmountCents: order.TotalCents,
				Metadata:    map[string]any{"provider_session_id": input.ProviderSessionID},
			})
			if err != nil {
				return err
			}
		}

		eventType := enums.EventPaymentSucceeded
		if input.Outcome == OutcomeFailed {
			eventType = enums.EventPaymentFailed
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txn.ID,
			Data: PaymentEvent{
				OrderID:           order.ID,
				TransactionID:     txn.ID,
				ProviderSessionID: input.ProviderSessionID,
				Outcome:           input.Outcome,
			},
		})
	})
}

// claimEvent reserves the provider event id in Redis. Redis outages degrade
// to processing the delivery, relying on the order status guard.
func (s *service) claimEvent(ctx context.Context, eventID string) (bool, string) {
	if s.idem == nil || eventID == "" {
		return true, ""
	}
	key := s.idem.IdempotencyKey(idempotencyScope, eventID)
	ok, err := s.idem.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), s.idemTTL)
	if err != nil {
		s.warn(ctx, err, "claim webhook idempotency key")
		return true, ""
	}
	return ok, key
}

func (s *service) warn(ctx context.Context, err error, msg string) {
	if s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
	}
}

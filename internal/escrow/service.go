package escrow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/internal/ledger"
	"github.com/dealcrest/dealcrest-backend/internal/users"
	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
	"github.com/dealcrest/dealcrest-backend/pkg/metrics"
	"github.com/dealcrest/dealcrest-backend/pkg/money"
	"github.com/dealcrest/dealcrest-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service manages the escrow payout lifecycle: created held alongside an
// online order, released once by an administrative action.
type Service interface {
	CreateTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.EscrowPayout, error)
	Release(ctx context.Context, escrowID uuid.UUID) (*models.EscrowPayout, error)
	Get(ctx context.Context, escrowID uuid.UUID) (*models.EscrowPayout, error)
}

type service struct {
	repo    Repository
	users   users.Repository
	ledger  ledger.Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.CommerceMetrics
}

// ReleasedEvent is emitted when a payout leaves escrow.
type ReleasedEvent struct {
	EscrowID  uuid.UUID `json:"escrow_id"`
	OrderID   uuid.UUID `json:"order_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	NetCents  int       `json:"net_cents"`
	FeeCents  int       `json:"fee_cents"`
	GrossCent int       `json:"gross_cents"`
}

// NewService builds an escrow service with the required dependencies.
func NewService(
	repo Repository,
	userRepo users.Repository,
	ledgerRepo ledger.Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	commerceMetrics *metrics.CommerceMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("escrow repository required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("users repository required")
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
		repo:    repo,
		users:   userRepo,
		ledger:  ledgerRepo,
		tx:      tx,
		outbox:  outboxSvc,
		metrics: commerceMetrics,
	}, nil
}

// CreateTx opens the held payout for an order inside the caller's database
// transaction. The platform fee is computed once here and never recomputed.
func (s *service) CreateTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.EscrowPayout, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order required for escrow creation")
	}

	fee := money.PlatformFeeCents(order.TotalCents)
	payout := &models.EscrowPayout{
		OrderID:          order.ID,
		SellerID:         order.SellerID,
		TotalCents:       order.TotalCents,
		PlatformFeeCents: fee,
		NetCents:         order.TotalCents - fee,
		Status:           enums.EscrowStatusHeld,
	}
	payout, err := s.repo.WithTx(tx).Create(ctx, payout)
	if err != nil {
		return nil, err
	}

	err = s.ledger.WithTx(tx).Append(ctx, ledger.Entry{
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		SellerID:    order.SellerID,
		Type:        enums.LedgerEventEscrowHeld,
		AmountCents: payout.NetCents,
		Metadata:    map[string]any{"platform_fee_cents": fee},
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// Release moves a held payout to released. It requires a delivered order and
// a verified seller with complete bank details, and refuses to fire twice.
func (s *service) Release(ctx context.Context, escrowID uuid.UUID) (*models.EscrowPayout, error) {
	var released *models.EscrowPayout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := repo.FindByID(ctx, escrowID)
		if err != nil {
			return err
		}
		if payout.Status != enums.EscrowStatusHeld {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow payout already released")
		}

		var order models.Order
		if err := tx.WithContext(ctx).First(&order, "id = ?", payout.OrderID).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout order")
		}
		if order.Status != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodePrecondition, "order is not delivered")
		}

		seller, err := s.users.WithTx(tx).FindSellerByID(ctx, payout.SellerID)
		if err != nil {
			return err
		}
		if !seller.IsVerified {
			return pkgerrors.New(pkgerrors.CodePrecondition, "seller is not verified")
		}
		if !seller.HasPayoutDetails() {
			return pkgerrors.New(pkgerrors.CodePrecondition, "seller payout bank details are incomplete")
		}

		now := time.Now()
		if err := repo.MarkReleased(ctx, payout.ID, now); err != nil {
			return err
		}

		err = s.ledger.WithTx(tx).Append(ctx, ledger.Entry{
			OrderID:     payout.OrderID,
			BuyerID:     order.BuyerID,
			SellerID:    payout.SellerID,
			Type:        enums.LedgerEventEscrowReleased,
			AmountCents: payout.NetCents,
		})
		if err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventEscrowReleased,
			AggregateType: enums.AggregateEscrow,
			AggregateID:   payout.ID,
			Version:       1,
			OccurredAt:    now,
			Data: ReleasedEvent{
				EscrowID:  payout.ID,
				OrderID:   payout.OrderID,
				SellerID:  payout.SellerID,
				NetCents:  payout.NetCents,
				FeeCents:  payout.PlatformFeeCents,
				GrossCent: payout.TotalCents,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		released, err = repo.FindByID(ctx, payout.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncEscrowRelease()
	return released, nil
}

func (s *service) Get(ctx context.Context, escrowID uuid.UUID) (*models.EscrowPayout, error) {
	return s.repo.FindByID(ctx, escrowID)
}

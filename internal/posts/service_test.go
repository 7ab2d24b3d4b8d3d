package posts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
	"github.com/dealcrest/dealcrest-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:posts_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS posts (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  budget_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS offers (
  id TEXT PRIMARY KEY,
  post_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  message TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  accepted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	} {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(
		NewRepository(db),
		gormTxRunner{db: db},
		outbox.NewService(outbox.NewRepository(db), nil),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateOfferAgainstClosedPost(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	post := models.Post{
		ID:          uuid.New(),
		BuyerID:     uuid.New(),
		Title:       "Need a cargo trailer",
		BudgetCents: 50000,
		Status:      enums.PostStatusClosed,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}

	_, err := svc.CreateOffer(ctx, CreateOfferInput{
		PostID:      post.ID,
		SellerID:    uuid.New(),
		AmountCents: 45000,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAcceptOfferClosesPostAndRejectsSiblings(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	buyerID := uuid.New()
	post := models.Post{
		ID:          uuid.New(),
		BuyerID:     buyerID,
		Title:       "Fence installation",
		BudgetCents: 120000,
		Status:      enums.PostStatusOpen,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}
	winner := models.Offer{
		ID:          uuid.New(),
		PostID:      post.ID,
		SellerID:    uuid.New(),
		AmountCents: 110000,
		Status:      enums.OfferStatusPending,
	}
	loser := models.Offer{
		ID:          uuid.New(),
		PostID:      post.ID,
		SellerID:    uuid.New(),
		AmountCents: 115000,
		Status:      enums.OfferStatusPending,
	}
	for _, offer := range []*models.Offer{&winner, &loser} {
		if err := db.Create(offer).Error; err != nil {
			t.Fatalf("seed offer: %v", err)
		}
	}

	if err := svc.AcceptOffer(ctx, AcceptOfferInput{OfferID: winner.ID, ActorBuyerID: buyerID}); err != nil {
		t.Fatalf("accept offer: %v", err)
	}

	var gotPost models.Post
	if err := db.First(&gotPost, "id = ?", post.ID).Error; err != nil {
		t.Fatalf("load post: %v", err)
	}
	if gotPost.Status != enums.PostStatusClosed {
		t.Fatalf("expected closed post, got %s", gotPost.Status)
	}

	var gotWinner, gotLoser models.Offer
	if err := db.First(&gotWinner, "id = ?", winner.ID).Error; err != nil {
		t.Fatalf("load winner: %v", err)
	}
	if err := db.First(&gotLoser, "id = ?", loser.ID).Error; err != nil {
		t.Fatalf("load loser: %v", err)
	}
	if gotWinner.Status != enums.OfferStatusAccepted || gotWinner.AcceptedAt == nil {
		t.Fatalf("unexpected winner state: %+v", gotWinner)
	}
	if gotLoser.Status != enums.OfferStatusRejected {
		t.Fatalf("expected sibling rejected, got %s", gotLoser.Status)
	}

	var eventCount int64
	if err := db.Model(&models.OutboxEvent{}).Count(&eventCount).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if eventCount != 2 {
		t.Fatalf("expected offer_accepted + post_closed events, got %d", eventCount)
	}
}

func TestAcceptOfferIsIdempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	buyerID := uuid.New()
	post := models.Post{
		ID:          uuid.New(),
		BuyerID:     buyerID,
		Title:       "Deck repair",
		BudgetCents: 80000,
		Status:      enums.PostStatusOpen,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}
	offer := models.Offer{
		ID:          uuid.New(),
		PostID:      post.ID,
		SellerID:    uuid.New(),
		AmountCents: 75000,
		Status:      enums.OfferStatusPending,
	}
	if err := db.Create(&offer).Error; err != nil {
		t.Fatalf("seed offer: %v", err)
	}

	if err := svc.AcceptOffer(ctx, AcceptOfferInput{OfferID: offer.ID, ActorBuyerID: buyerID}); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if err := svc.AcceptOffer(ctx, AcceptOfferInput{OfferID: offer.ID, ActorBuyerID: buyerID}); err != nil {
		t.Fatalf("second accept must be a no-op: %v", err)
	}

	var eventCount int64
	if err := db.Model(&models.OutboxEvent{}).Count(&eventCount).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if eventCount != 2 {
		t.Fatalf("re-accept must not re-emit events, got %d", eventCount)
	}
}

func TestAcceptOfferWrongBuyer(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	post := models.Post{
		ID:          uuid.New(),
		BuyerID:     uuid.New(),
		Title:       "Gutter cleaning",
		BudgetCents: 20000,
		Status:      enums.PostStatusOpen,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}
	offer := models.Offer{
		ID:          uuid.New(),
		PostID:      post.ID,
		SellerID:    uuid.New(),
		AmountCents: 18000,
		Status:      enums.OfferStatusPending,
	}
	if err := db.Create(&offer).Error; err != nil {
		t.Fatalf("seed offer: %v", err)
	}

	err := svc.AcceptOffer(ctx, AcceptOfferInput{OfferID: offer.ID, ActorBuyerID: uuid.New()})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAcceptRejectedOffer(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	buyerID := uuid.New()
	post := models.Post{
		ID:          uuid.New(),
		BuyerID:     buyerID,
		Title:       "Tree removal",
		BudgetCents: 60000,
		Status:      enums.PostStatusOpen,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}
	offer := models.Offer{
		ID:          uuid.New(),
		PostID:      post.ID,
		SellerID:    uuid.New(),
		AmountCents: 55000,
		Status:      enums.OfferStatusRejected,
	}
	if err := db.Create(&offer).Error; err != nil {
		t.Fatalf("seed offer: %v", err)
	}

	err := svc.AcceptOffer(ctx, AcceptOfferInput{OfferID: offer.ID, ActorBuyerID: buyerID})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

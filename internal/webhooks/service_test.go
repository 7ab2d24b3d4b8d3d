package webhooks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	stripego "github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/internal/checkout"
	"github.com/dealcrest/dealcrest-backend/internal/inventory"
	"github.com/dealcrest/dealcrest-backend/internal/ledger"
	"github.com/dealcrest/dealcrest-backend/internal/orders"
	"github.com/dealcrest/dealcrest-backend/internal/posts"
	"github.com/dealcrest/dealcrest-backend/internal/transactions"
	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	"github.com/dealcrest/dealcrest-backend/pkg/metrics"
	"github.com/dealcrest/dealcrest-backend/pkg/outbox"
	"github.com/dealcrest/dealcrest-backend/pkg/redis"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type fakeIdemStore struct {
	claimed map[string]bool
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{claimed: map[string]bool{}}
}

func (f *fakeIdemStore) Get(_ context.Context, key string) (string, error) {
	if f.claimed[key] {
		return "1", nil
	}
	return "", nil
}

func (f *fakeIdemStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.claimed[key] {
		return false, nil
	}
	f.claimed[key] = true
	return true, nil
}

func (f *fakeIdemStore) IdempotencyKey(scope, id string) string {
	return "test:idem:" + scope + ":" + id
}

func (f *fakeIdemStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.claimed, key)
	}
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:webhooks_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  price_cents INTEGER NOT NULL,
  available_stock INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
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
		`CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  product_id TEXT,
  offer_id TEXT,
  quantity INTEGER NOT NULL DEFAULT 1,
  total_cents INTEGER NOT NULL,
  payment_method TEXT NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  transaction_id TEXT NOT NULL,
  product_id TEXT,
  post_id TEXT,
  address TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 1,
  total_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS escrow_payouts (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  total_cents INTEGER NOT NULL,
  platform_fee_cents INTEGER NOT NULL,
  net_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'held',
  released_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS payment_sessions (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  transaction_id TEXT NOT NULL,
  provider_session_id TEXT NOT NULL,
  checkout_url TEXT NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS ledger_events (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  type TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  metadata TEXT,
  created_at DATETIME
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

func newTestService(t *testing.T, db *gorm.DB, idem redis.IdempotencyStore) Service {
	t.Helper()

	runner := gormTxRunner{db: db}
	outboxSvc := outbox.NewService(outbox.NewRepository(db), nil)

	orderSvc, err := orders.NewService(
		orders.NewRepository(db),
		posts.NewRepository(db),
		transactions.NewRepository(db),
		ledger.NewRepository(db),
		inventory.NewReserver(),
		runner,
		outboxSvc,
	)
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	postSvc, err := posts.NewService(posts.NewRepository(db), runner, outboxSvc)
	if err != nil {
		t.Fatalf("posts service: %v", err)
	}

	svc, err := NewService(
		checkout.NewRepository(db),
		orderSvc,
		orders.NewRepository(db),
		transactions.NewRepository(db),
		postSvc,
		ledger.NewRepository(db),
		runner,
		outboxSvc,
		idem,
		time.Hour,
		metrics.NewCommerceMetrics(nil),
		nil,
	)
	if err != nil {
		t.Fatalf("webhooks service: %v", err)
	}
	return svc
}

type purchaseFixture struct {
	product models.Product
	txn     models.Transaction
	order   models.Order
	session models.PaymentSession
}

// seedProductPurchase writes a pending online purchase as it looks after
// checkout opened: stock already reserved, escrow held elsewhere.
func seedProductPurchase(t *testing.T, db *gorm.DB, remainingStock, qty int) purchaseFixture {
	t.Helper()
	product := models.Product{
		ID:             uuid.New(),
		SellerID:       uuid.New(),
		Title:          "Record Player",
		PriceCents:     60000,
		AvailableStock: remainingStock,
		IsActive:       true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	productID := product.ID
	txn := models.Transaction{
		ID:            uuid.New(),
		BuyerID:       uuid.New(),
		SellerID:      product.SellerID,
		ProductID:     &productID,
		Quantity:      qty,
		TotalCents:    product.PriceCents * qty,
		PaymentMethod: enums.PaymentMethodOnline,
		PaymentStatus: enums.PaymentStatusPending,
	}
	if err := db.Create(&txn).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	order := models.Order{
		ID:            uuid.New(),
		BuyerID:       txn.BuyerID,
		SellerID:      txn.SellerID,
		TransactionID: txn.ID,
		ProductID:     &productID,
		Address:       "12 Harbor Lane",
		Quantity:      qty,
		TotalCents:    txn.TotalCents,
		Status:        enums.OrderStatusPending,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	session := models.PaymentSession{
		ID:                uuid.New(),
		OrderID:           order.ID,
		TransactionID:     txn.ID,
		ProviderSessionID: "cs_test_" + uuid.NewString(),
		CheckoutURL:       "https://checkout.example.com/" + order.ID.String(),
	}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return purchaseFixture{product: product, txn: txn, order: order, session: session}
}

func TestApplyOutcomePaidConfirmsOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	fx := seedProductPurchase(t, db, 3, 2)
	ctx := context.Background()

	err := svc.ApplyOutcome(ctx, ApplyInput{
		EventID:           "evt_" + uuid.NewString(),
		ProviderSessionID: fx.session.ProviderSessionID,
		Outcome:           OutcomePaid,
	})
	if err != nil {
		t.Fatalf("apply outcome: %v", err)
	}

	var order models.Order
	if err := db.First(&order, "id = ?", fx.order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed order, got %s", order.Status)
	}

	var txn models.Transaction
	if err := db.First(&txn, "id = ?", fx.txn.ID).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid transaction, got %s", txn.PaymentStatus)
	}

	var ledgerRows []models.LedgerEvent
	if err := db.Where("type = ?", enums.LedgerEventPaymentCaptured).Find(&ledgerRows).Error; err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if len(ledgerRows) != 1 || ledgerRows[0].AmountCents != fx.order.TotalCents {
		t.Fatalf("expected one payment_captured row for the full amount, got %+v", ledgerRows)
	}

	var events []models.OutboxEvent
	if err := db.Where("event_type = ?", enums.EventPaymentSucceeded).Find(&events).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one payment_succeeded event, got %d", len(events))
	}
}

func TestApplyOutcomeReplayIsNoOp(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	fx := seedProductPurchase(t, db, 3, 2)
	ctx := context.Background()

	input := ApplyInput{
		EventID:           "evt_" + uuid.NewString(),
		ProviderSessionID: fx.session.ProviderSessionID,
		Outcome:           OutcomePaid,
	}
	if err := svc.ApplyOutcome(ctx, input); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.ApplyOutcome(ctx, input); err != nil {
		t.Fatalf("replayed delivery must be acknowledged: %v", err)
	}

	var ledgerCount, eventCount int64
	if err := db.Model(&models.LedgerEvent{}).Count(&ledgerCount).Error; err != nil {
		t.Fatalf("count ledger: %v", err)
	}
	if err := db.Model(&models.OutboxEvent{}).Count(&eventCount).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if ledgerCount != 1 {
		t.Fatalf("expected one ledger row after replay, got %d", ledgerCount)
	}
	if eventCount != 2 {
		t.Fatalf("expected payment and confirm events only, got %d", eventCount)
	}
}

func TestApplyOutcomeFailedCancelsAndRestocks(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	fx := seedProductPurchase(t, db, 3, 2)
	ctx := context.Background()

	err := svc.ApplyOutcome(ctx, ApplyInput{
		EventID:           "evt_" + uuid.NewString(),
		ProviderSessionID: fx.session.ProviderSessionID,
		Outcome:           OutcomeFailed,
	})
	if err != nil {
		t.Fatalf("apply outcome: %v", err)
	}

	var order models.Order
	if err := db.First(&order, "id = ?", fx.order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled order, got %s", order.Status)
	}

	var txn models.Transaction
	if err := db.First(&txn, "id = ?", fx.txn.ID).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("expected failed transaction, got %s", txn.PaymentStatus)
	}

	var product models.Product
	if err := db.First(&product, "id = ?", fx.product.ID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.AvailableStock != 5 {
		t.Fatalf("expected restocked quantity 5, got %d", product.AvailableStock)
	}
}

func TestApplyOutcomePaidAcceptsBackingOffer(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	post := models.Post{
		ID:          uuid.New(),
		BuyerID:     uuid.New(),
		Title:       "Dining table restoration",
		BudgetCents: 200000,
		Status:      enums.PostStatusOpen,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}
	offer := models.Offer{
		ID:          uuid.New(),
		PostID:      post.ID,
		SellerID:    uuid.New(),
		AmountCents: 180000,
		Status:      enums.OfferStatusPending,
	}
	if err := db.Create(&offer).Error; err != nil {
		t.Fatalf("seed offer: %v", err)
	}
	sibling := models.Offer{
		ID:          uuid.New(),
		PostID:      post.ID,
		SellerID:    uuid.New(),
		AmountCents: 190000,
		Status:      enums.OfferStatusPending,
	}
	if err := db.Create(&sibling).Error; err != nil {
		t.Fatalf("seed sibling offer: %v", err)
	}

	offerID := offer.ID
	postID := post.ID
	txn := models.Transaction{
		ID:            uuid.New(),
		BuyerID:       post.BuyerID,
		SellerID:      offer.SellerID,
		OfferID:       &offerID,
		Quantity:      1,
		TotalCents:    offer.AmountCents,
		PaymentMethod: enums.PaymentMethodOnline,
		PaymentStatus: enums.PaymentStatusPending,
	}
	if err := db.Create(&txn).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	order := models.Order{
		ID:            uuid.New(),
		BuyerID:       txn.BuyerID,
		SellerID:      txn.SellerID,
		TransactionID: txn.ID,
		PostID:        &postID,
		Address:       "12 Harbor Lane",
		Quantity:      1,
		TotalCents:    txn.TotalCents,
		Status:        enums.OrderStatusPending,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	session := models.PaymentSession{
		ID:                uuid.New(),
		OrderID:           order.ID,
		TransactionID:     txn.ID,
		ProviderSessionID: "cs_test_" + uuid.NewString(),
		CheckoutURL:       "https://checkout.example.com/" + order.ID.String(),
	}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}

	err := svc.ApplyOutcome(ctx, ApplyInput{
		EventID:           "evt_" + uuid.NewString(),
		ProviderSessionID: session.ProviderSessionID,
		Outcome:           OutcomePaid,
	})
	if err != nil {
		t.Fatalf("apply outcome: %v", err)
	}

	var gotOffer models.Offer
	if err := db.First(&gotOffer, "id = ?", offer.ID).Error; err != nil {
		t.Fatalf("load offer: %v", err)
	}
	if gotOffer.Status != enums.OfferStatusAccepted {
		t.Fatalf("expected accepted offer, got %s", gotOffer.Status)
	}
	var gotSibling models.Offer
	if err := db.First(&gotSibling, "id = ?", sibling.ID).Error; err != nil {
		t.Fatalf("load sibling: %v", err)
	}
	if gotSibling.Status != enums.OfferStatusRejected {
		t.Fatalf("expected rejected sibling, got %s", gotSibling.Status)
	}
	var gotPost models.Post
	if err := db.First(&gotPost, "id = ?", post.ID).Error; err != nil {
		t.Fatalf("load post: %v", err)
	}
	if gotPost.Status != enums.PostStatusClosed {
		t.Fatalf("expected closed post, got %s", gotPost.Status)
	}
}

func TestApplyOutcomeClaimedEventShortCircuits(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := newFakeIdemStore()
	svc := newTestService(t, db, store)
	ctx := context.Background()

	eventID := "evt_" + uuid.NewString()
	key := store.IdempotencyKey(idempotencyScope, eventID)
	store.claimed[key] = true

	// The session id does not exist; only the idempotency guard can make
	// this delivery succeed.
	err := svc.ApplyOutcome(ctx, ApplyInput{
		EventID:           eventID,
		ProviderSessionID: "cs_test_unknown",
		Outcome:           OutcomePaid,
	})
	if err != nil {
		t.Fatalf("claimed delivery must be acknowledged: %v", err)
	}
}

func TestHandleEventIgnoresIncompleteSessions(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	fx := seedProductPurchase(t, db, 3, 2)
	ctx := context.Background()

	payload, err := json.Marshal(map[string]string{
		"id":             fx.session.ProviderSessionID,
		"payment_status": "unpaid",
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	event := &stripego.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: "checkout.session.completed",
		Data: &stripego.EventData{Raw: payload},
	}
	if err := svc.HandleEvent(ctx, event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	var order models.Order
	if err := db.First(&order, "id = ?", fx.order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("incomplete session must not settle the order, got %s", order.Status)
	}
}

func TestHandleEventAsyncSuccessSettles(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	fx := seedProductPurchase(t, db, 3, 2)
	ctx := context.Background()

	payload, err := json.Marshal(map[string]string{
		"id":             fx.session.ProviderSessionID,
		"payment_status": "paid",
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	event := &stripego.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: "checkout.session.async_payment_succeeded",
		Data: &stripego.EventData{Raw: payload},
	}
	if err := svc.HandleEvent(ctx, event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	var order models.Order
	if err := db.First(&order, "id = ?", fx.order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed order, got %s", order.Status)
	}
}

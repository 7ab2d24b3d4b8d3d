package purchase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/internal/checkout"
	"github.com/dealcrest/dealcrest-backend/internal/escrow"
	"github.com/dealcrest/dealcrest-backend/internal/inventory"
	"github.com/dealcrest/dealcrest-backend/internal/ledger"
	"github.com/dealcrest/dealcrest-backend/internal/orders"
	"github.com/dealcrest/dealcrest-backend/internal/posts"
	"github.com/dealcrest/dealcrest-backend/internal/products"
	"github.com/dealcrest/dealcrest-backend/internal/transactions"
	"github.com/dealcrest/dealcrest-backend/internal/users"
	"github.com/dealcrest/dealcrest-backend/pkg/config"
	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
	"github.com/dealcrest/dealcrest-backend/pkg/metrics"
	"github.com/dealcrest/dealcrest-backend/pkg/money"
	"github.com/dealcrest/dealcrest-backend/pkg/outbox"
	"github.com/dealcrest/dealcrest-backend/pkg/stripe"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type checkoutStub struct {
	err error
}

func (c *checkoutStub) CreateCheckoutSession(_ context.Context, input stripe.CheckoutInput) (*stripe.CheckoutSession, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &stripe.CheckoutSession{
		ProviderSessionID: "cs_test_" + uuid.NewString(),
		URL:               "https://checkout.example.com/" + input.OrderID,
	}, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:purchase_" + uuid.NewString() + "?mode=memory&cache=shared"
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

func newTestService(t *testing.T, db *gorm.DB, provider checkout.SessionCreator) Service {
	t.Helper()

	runner := gormTxRunner{db: db}
	outboxSvc := outbox.NewService(outbox.NewRepository(db), nil)
	commerceMetrics := metrics.NewCommerceMetrics(nil)

	txnRepo := transactions.NewRepository(db)
	txnSvc, err := transactions.NewService(txnRepo, products.NewRepository(db), posts.NewRepository(db))
	if err != nil {
		t.Fatalf("transactions service: %v", err)
	}
	orderSvc, err := orders.NewService(
		orders.NewRepository(db),
		posts.NewRepository(db),
		txnRepo,
		ledger.NewRepository(db),
		inventory.NewReserver(),
		runner,
		outboxSvc,
	)
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	escrowSvc, err := escrow.NewService(
		escrow.NewRepository(db),
		users.NewRepository(db),
		ledger.NewRepository(db),
		runner,
		outboxSvc,
		commerceMetrics,
	)
	if err != nil {
		t.Fatalf("escrow service: %v", err)
	}
	checkoutSvc, err := checkout.NewService(
		checkout.NewRepository(db),
		products.NewRepository(db),
		posts.NewRepository(db),
		provider,
		config.PaymentsConfig{
			Currency:   "usd",
			SuccessURL: "https://dealcrest.example.com/payments/success",
			CancelURL:  "https://dealcrest.example.com/payments/cancel",
		},
	)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}

	svc, err := NewService(txnSvc, txnRepo, orderSvc, escrowSvc, checkoutSvc, runner, outboxSvc, commerceMetrics)
	if err != nil {
		t.Fatalf("purchase service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, stock int) models.Product {
	t.Helper()
	product := models.Product{
		ID:             uuid.New(),
		SellerID:       uuid.New(),
		Title:          "Espresso Machine",
		PriceCents:     45000,
		AvailableStock: stock,
		IsActive:       true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func TestPerformOnlineProductBacked(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, &checkoutStub{})
	product := seedProduct(t, db, 5)
	ctx := context.Background()

	result, err := svc.PerformOnline(ctx, Input{
		BuyerID:            uuid.New(),
		ItemType:           enums.ItemTypeProduct,
		ItemID:             product.ID,
		Quantity:           2,
		DeclaredTotalCents: 90000,
		Address:            "12 Harbor Lane",
	})
	if err != nil {
		t.Fatalf("perform online: %v", err)
	}
	if result.Order == nil || result.Order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending order, got %+v", result.Order)
	}
	if result.CheckoutURL == "" {
		t.Fatalf("expected a checkout url")
	}
	if result.Escrow == nil || result.Escrow.Status != enums.EscrowStatusHeld {
		t.Fatalf("expected held escrow, got %+v", result.Escrow)
	}
	wantFee := money.PlatformFeeCents(90000)
	if result.Escrow.PlatformFeeCents != wantFee || result.Escrow.NetCents != 90000-wantFee {
		t.Fatalf("unexpected escrow split: %+v", result.Escrow)
	}

	var got models.Product
	if err := db.First(&got, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if got.AvailableStock != 3 {
		t.Fatalf("expected stock 3 after purchase, got %d", got.AvailableStock)
	}

	var session models.PaymentSession
	if err := db.First(&session, "order_id = ?", result.Order.ID).Error; err != nil {
		t.Fatalf("load payment session: %v", err)
	}
	if session.TransactionID != result.Transaction.ID {
		t.Fatalf("session references wrong transaction: %s", session.TransactionID)
	}

	var events []models.OutboxEvent
	if err := db.Where("event_type = ?", enums.EventPurchaseCompleted).Find(&events).Error; err != nil {
		t.Fatalf("load outbox events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one purchase_completed event, got %d", len(events))
	}
}

func TestPerformOnlineOfferBacked(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, &checkoutStub{})
	ctx := context.Background()

	post := models.Post{
		ID:          uuid.New(),
		BuyerID:     uuid.New(),
		Title:       "Vintage turntable wanted",
		BudgetCents: 120000,
		Status:      enums.PostStatusOpen,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}
	offer := models.Offer{
		ID:          uuid.New(),
		PostID:      post.ID,
		SellerID:    uuid.New(),
		AmountCents: 110000,
		Status:      enums.OfferStatusAccepted,
	}
	if err := db.Create(&offer).Error; err != nil {
		t.Fatalf("seed offer: %v", err)
	}

	result, err := svc.PerformOnline(ctx, Input{
		BuyerID:            post.BuyerID,
		ItemType:           enums.ItemTypeOffer,
		ItemID:             offer.ID,
		Quantity:           1,
		DeclaredTotalCents: 110000,
		Address:            "12 Harbor Lane",
	})
	if err != nil {
		t.Fatalf("perform online: %v", err)
	}
	if result.Order.PostID == nil || *result.Order.PostID != post.ID {
		t.Fatalf("offer-backed order must attach the post: %+v", result.Order)
	}
	if result.Order.ProductID != nil {
		t.Fatalf("offer-backed order must not carry a product: %+v", result.Order)
	}
}

func TestPerformOnlineOfferForeignBuyerRejected(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, &checkoutStub{})

	post := models.Post{
		ID:          uuid.New(),
		BuyerID:     uuid.New(),
		Title:       "Vintage turntable wanted",
		BudgetCents: 120000,
		Status:      enums.PostStatusOpen,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}
	offer := models.Offer{
		ID:          uuid.New(),
		PostID:      post.ID,
		SellerID:    uuid.New(),
		AmountCents: 110000,
		Status:      enums.OfferStatusAccepted,
	}
	if err := db.Create(&offer).Error; err != nil {
		t.Fatalf("seed offer: %v", err)
	}

	_, err := svc.PerformOnline(context.Background(), Input{
		BuyerID:            uuid.New(),
		ItemType:           enums.ItemTypeOffer,
		ItemID:             offer.ID,
		Quantity:           1,
		DeclaredTotalCents: 110000,
		Address:            "12 Harbor Lane",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("stranger must not buy through another buyer's post: %v", err)
	}

	var gotPost models.Post
	if err := db.First(&gotPost, "id = ?", post.ID).Error; err != nil {
		t.Fatalf("load post: %v", err)
	}
	if gotPost.Status != enums.PostStatusOpen {
		t.Fatalf("post must stay open, got %s", gotPost.Status)
	}

	var orderCount int64
	if err := db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("no order may be written, got %d", orderCount)
	}
}

func TestPerformCODSkipsEscrowAndSession(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, &checkoutStub{})
	product := seedProduct(t, db, 3)

	result, err := svc.PerformCOD(context.Background(), Input{
		BuyerID:            uuid.New(),
		ItemType:           enums.ItemTypeProduct,
		ItemID:             product.ID,
		Quantity:           1,
		DeclaredTotalCents: 45000,
		Address:            "12 Harbor Lane",
	})
	if err != nil {
		t.Fatalf("perform cod: %v", err)
	}
	if result.Escrow != nil || result.CheckoutURL != "" {
		t.Fatalf("cod purchase must not open escrow or a session: %+v", result)
	}
	if result.Transaction.PaymentMethod != enums.PaymentMethodCOD {
		t.Fatalf("unexpected payment method %s", result.Transaction.PaymentMethod)
	}
	if result.Order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("cod order must start confirmed, got %s", result.Order.Status)
	}

	var stored models.Order
	if err := db.First(&stored, "id = ?", result.Order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if stored.Status != enums.OrderStatusConfirmed {
		t.Fatalf("persisted cod order status %s, want confirmed", stored.Status)
	}

	var payoutCount, sessionCount int64
	if err := db.Model(&models.EscrowPayout{}).Count(&payoutCount).Error; err != nil {
		t.Fatalf("count payouts: %v", err)
	}
	if err := db.Model(&models.PaymentSession{}).Count(&sessionCount).Error; err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if payoutCount != 0 || sessionCount != 0 {
		t.Fatalf("expected no payouts or sessions, got %d payouts %d sessions", payoutCount, sessionCount)
	}
}

func TestPerformOnlineSessionFailureCompensates(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, &checkoutStub{err: errors.New("provider unavailable")})
	product := seedProduct(t, db, 4)

	_, err := svc.PerformOnline(context.Background(), Input{
		BuyerID:            uuid.New(),
		ItemType:           enums.ItemTypeProduct,
		ItemID:             product.ID,
		Quantity:           2,
		DeclaredTotalCents: 90000,
		Address:            "12 Harbor Lane",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("unexpected error: %v", err)
	}

	var order models.Order
	if err := db.First(&order).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected compensated order to be cancelled, got %s", order.Status)
	}

	var txn models.Transaction
	if err := db.First(&txn, "id = ?", order.TransactionID).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("expected failed payment status, got %s", txn.PaymentStatus)
	}

	var got models.Product
	if err := db.First(&got, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if got.AvailableStock != 4 {
		t.Fatalf("expected stock restored to 4, got %d", got.AvailableStock)
	}
}

func TestPerformPriceMismatchLeavesNothingBehind(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, &checkoutStub{})
	product := seedProduct(t, db, 4)

	_, err := svc.PerformOnline(context.Background(), Input{
		BuyerID:            uuid.New(),
		ItemType:           enums.ItemTypeProduct,
		ItemID:             product.ID,
		Quantity:           1,
		DeclaredTotalCents: 40000,
		Address:            "12 Harbor Lane",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodePriceMismatch {
		t.Fatalf("unexpected error: %v", err)
	}

	var txnCount, orderCount int64
	if err := db.Model(&models.Transaction{}).Count(&txnCount).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if err := db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if txnCount != 0 || orderCount != 0 {
		t.Fatalf("expected rollback, got %d transactions %d orders", txnCount, orderCount)
	}
}

package transactions

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/internal/posts"
	"github.com/dealcrest/dealcrest-backend/internal/products"
	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:transactions_" + uuid.NewString() + "?mode=memory&cache=shared"
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
	} {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), products.NewRepository(db), posts.NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, priceCents, stock int) models.Product {
	t.Helper()
	product := models.Product{
		ID:             uuid.New(),
		SellerID:       uuid.New(),
		Title:          "Work Bench",
		PriceCents:     priceCents,
		AvailableStock: stock,
		IsActive:       true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func seedOffer(t *testing.T, db *gorm.DB, amountCents int, status enums.OfferStatus) (models.Post, models.Offer) {
	t.Helper()
	post := models.Post{
		ID:          uuid.New(),
		BuyerID:     uuid.New(),
		Title:       "Custom shelving",
		BudgetCents: amountCents,
		Status:      enums.PostStatusOpen,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}
	offer := models.Offer{
		ID:          uuid.New(),
		PostID:      post.ID,
		SellerID:    uuid.New(),
		AmountCents: amountCents,
		Status:      status,
	}
	if err := db.Create(&offer).Error; err != nil {
		t.Fatalf("seed offer: %v", err)
	}
	return post, offer
}

func TestCreateTxProductBacked(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	product := seedProduct(t, db, 20000, 10)

	txn, err := svc.CreateTx(ctx, db, CreateInput{
		BuyerID:            uuid.New(),
		ItemType:           enums.ItemTypeProduct,
		ItemID:             product.ID,
		DeclaredTotalCents: 60000,
		Quantity:           3,
		PaymentMethod:      enums.PaymentMethodOnline,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if !txn.IsProductBacked() || txn.IsOfferBacked() {
		t.Fatalf("expected product-backed transaction: %+v", txn)
	}
	if txn.SellerID != product.SellerID {
		t.Fatalf("seller must come from the product, got %s", txn.SellerID)
	}
	if txn.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("new transaction must be pending, got %s", txn.PaymentStatus)
	}
}

func TestCreateTxProductPriceMismatch(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	product := seedProduct(t, db, 20000, 10)

	_, err := svc.CreateTx(context.Background(), db, CreateInput{
		BuyerID:            uuid.New(),
		ItemType:           enums.ItemTypeProduct,
		ItemID:             product.ID,
		DeclaredTotalCents: 59999,
		Quantity:           3,
		PaymentMethod:      enums.PaymentMethodOnline,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodePriceMismatch {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateTxOfferBacked(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	post, offer := seedOffer(t, db, 45000, enums.OfferStatusPending)

	txn, err := svc.CreateTx(context.Background(), db, CreateInput{
		BuyerID:            post.BuyerID,
		ItemType:           enums.ItemTypeOffer,
		ItemID:             offer.ID,
		DeclaredTotalCents: 45000,
		Quantity:           1,
		PaymentMethod:      enums.PaymentMethodOnline,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if !txn.IsOfferBacked() || txn.IsProductBacked() {
		t.Fatalf("expected offer-backed transaction: %+v", txn)
	}
	if txn.SellerID != offer.SellerID {
		t.Fatalf("seller must come from the offer, got %s", txn.SellerID)
	}
}

func TestCreateTxOfferForeignBuyerForbidden(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	_, offer := seedOffer(t, db, 45000, enums.OfferStatusPending)

	_, err := svc.CreateTx(context.Background(), db, CreateInput{
		BuyerID:            uuid.New(),
		ItemType:           enums.ItemTypeOffer,
		ItemID:             offer.ID,
		DeclaredTotalCents: 45000,
		Quantity:           1,
		PaymentMethod:      enums.PaymentMethodOnline,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("buyer who does not own the post must be rejected: %v", err)
	}

	var count int64
	if err := db.Model(&models.Transaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if count != 0 {
		t.Fatalf("no transaction may be written, got %d", count)
	}
}

func TestCreateTxOfferAmountMismatch(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	post, offer := seedOffer(t, db, 45000, enums.OfferStatusPending)

	_, err := svc.CreateTx(context.Background(), db, CreateInput{
		BuyerID:            post.BuyerID,
		ItemType:           enums.ItemTypeOffer,
		ItemID:             offer.ID,
		DeclaredTotalCents: 44000,
		Quantity:           1,
		PaymentMethod:      enums.PaymentMethodOnline,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodePriceMismatch {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateTxRejectsUnknownItemType(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.CreateTx(context.Background(), db, CreateInput{
		BuyerID:            uuid.New(),
		ItemType:           enums.ItemType("bundle"),
		ItemID:             uuid.New(),
		DeclaredTotalCents: 1000,
		Quantity:           1,
		PaymentMethod:      enums.PaymentMethodOnline,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateTxRejectsMultiQuantityOffer(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	post, offer := seedOffer(t, db, 45000, enums.OfferStatusPending)

	_, err := svc.CreateTx(context.Background(), db, CreateInput{
		BuyerID:            post.BuyerID,
		ItemType:           enums.ItemTypeOffer,
		ItemID:             offer.ID,
		DeclaredTotalCents: 90000,
		Quantity:           2,
		PaymentMethod:      enums.PaymentMethodOnline,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdatePaymentStatusGuard(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	product := seedProduct(t, db, 1000, 1)
	productID := product.ID

	txn := models.Transaction{
		ID:            uuid.New(),
		BuyerID:       uuid.New(),
		SellerID:      product.SellerID,
		ProductID:     &productID,
		Quantity:      1,
		TotalCents:    1000,
		PaymentMethod: enums.PaymentMethodOnline,
		PaymentStatus: enums.PaymentStatusPending,
	}
	if err := db.Create(&txn).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	if err := repo.UpdatePaymentStatus(ctx, txn.ID, enums.PaymentStatusPending, enums.PaymentStatusPaid); err != nil {
		t.Fatalf("first update: %v", err)
	}
	err := repo.UpdatePaymentStatus(ctx, txn.ID, enums.PaymentStatusPending, enums.PaymentStatusFailed)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("settled transaction must not move again: %v", err)
	}
}

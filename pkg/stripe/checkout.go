package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
)

// CheckoutInput describes the hosted payment page to create for one order.
type CheckoutInput struct {
	OrderID       string
	TransactionID string
	ItemType      string
	ItemName      string
	UnitCents     int64
	Quantity      int64
	Currency      string
	SuccessURL    string
	CancelURL     string
	ExpiresAt     time.Time
}

// CheckoutSession is the subset of the provider session the platform stores.
type CheckoutSession struct {
	ProviderSessionID string
	URL               string
}

var (
	errCheckoutOrderRequired  = errors.New("checkout order id is required")
	errCheckoutAmountInvalid  = errors.New("checkout unit amount must be positive")
	errCheckoutURLsRequired   = errors.New("checkout success and cancel urls are required")
	errCheckoutClientRequired = errors.New("stripe client not initialized")
)

// CreateCheckoutSession creates a Stripe Checkout session for a single order.
// The order and transaction ids travel in metadata so the webhook can resolve
// the order without trusting the redirect query string.
func (c *Client) CreateCheckoutSession(ctx context.Context, input CheckoutInput) (*CheckoutSession, error) {
	if c == nil || c.api == nil {
		return nil, errCheckoutClientRequired
	}
	if strings.TrimSpace(input.OrderID) == "" {
		return nil, errCheckoutOrderRequired
	}
	if input.UnitCents <= 0 {
		return nil, errCheckoutAmountInvalid
	}
	if strings.TrimSpace(input.SuccessURL) == "" || strings.TrimSpace(input.CancelURL) == "" {
		return nil, errCheckoutURLsRequired
	}
	if input.Quantity <= 0 {
		input.Quantity = 1
	}
	currency := strings.TrimSpace(strings.ToLower(input.Currency))
	if currency == "" {
		currency = "usd"
	}
	itemName := strings.TrimSpace(input.ItemName)
	if itemName == "" {
		itemName = "Order " + input.OrderID
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(input.SuccessURL),
		CancelURL:         stripe.String(input.CancelURL),
		ClientReferenceID: stripe.String(input.OrderID),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Quantity: stripe.Int64(input.Quantity),
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(input.UnitCents),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(itemName),
					},
				},
			},
		},
	}
	if !input.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(input.ExpiresAt.Unix())
	}
	params.AddMetadata("order_id", input.OrderID)
	if input.TransactionID != "" {
		params.AddMetadata("transaction_id", input.TransactionID)
	}
	if input.ItemType != "" {
		params.AddMetadata("item_type", input.ItemType)
	}

	session, err := c.api.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{
		ProviderSessionID: session.ID,
		URL:               session.URL,
	}, nil
}

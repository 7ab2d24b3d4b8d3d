package stripe

import (
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

// VerifyWebhook checks the Stripe-Signature header against the signing secret
// and returns the decoded event.
func (c *Client) VerifyWebhook(payload []byte, signatureHeader string) (*stripe.Event, error) {
	if c == nil || c.signingSecret == "" {
		return nil, errSecretRequired
	}
	event, err := webhook.ConstructEvent(payload, signatureHeader, c.signingSecret)
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}
	return &event, nil
}

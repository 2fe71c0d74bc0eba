// README: Card processor client wrapper; interface kept small so tests can stub it.
package clients

import (
	"context"

	stripe "github.com/stripe/stripe-go/v78"
	stripeclient "github.com/stripe/stripe-go/v78/client"
)

// Intent is the subset of the processor's payment-intent response the core needs.
type Intent struct {
	ID           string
	ClientSecret string
}

// CardProcessor creates payment intents with an external processor.
type CardProcessor interface {
	CreateIntent(ctx context.Context, amount int64, currency string) (*Intent, error)
}

// StripeProcessor implements CardProcessor with the Stripe SDK.
type StripeProcessor struct {
	api *stripeclient.API
}

func NewStripeProcessor(secretKey string) *StripeProcessor {
	api := &stripeclient.API{}
	api.Init(secretKey, nil)
	return &StripeProcessor{api: api}
}

func (p *StripeProcessor) CreateIntent(ctx context.Context, amount int64, currency string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, err
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

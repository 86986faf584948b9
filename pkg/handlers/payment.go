package handlers

import (
	"context"
	"fmt"

	"github.com/bowtae-labs/tsrc/pkg/contracts"
	"github.com/bowtae-labs/tsrc/pkg/executor"
)

// PaymentSession is the provider's receipt for an opened session.
type PaymentSession struct {
	SessionID string  `json:"session_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
}

// PaymentProvider opens payment sessions with an external processor.
type PaymentProvider interface {
	OpenSession(ctx context.Context, commandID string, amount float64, currency string) (*PaymentSession, error)
}

// Payment opens a payment session for the authorized amount. The
// amount comes from the signed params, so the provider can never be
// asked for more than what was authorized.
func Payment(provider PaymentProvider) executor.Handler {
	return executor.HandlerFunc(func(ctx context.Context, auth *contracts.Authorization) (any, error) {
		amount, ok := numberParam(auth.Params["amount"])
		if !ok || amount <= 0 {
			return nil, fmt.Errorf("handlers: payment: amount missing or non-positive")
		}
		currency, _ := auth.Params["currency"].(string)
		if currency == "" {
			currency = "USD"
		}

		session, err := provider.OpenSession(ctx, auth.CommandID, amount, currency)
		if err != nil {
			return nil, fmt.Errorf("handlers: payment: open session: %w", err)
		}
		return session, nil
	})
}

package domain

import "context"

// EmissionResult is one provider round trip. HTTPStatus and LatencyMs are
// recorded on the invoice whatever the outcome.
type EmissionResult struct {
	Accepted   bool
	DocumentID string
	Message    string
	HTTPStatus int
	LatencyMs  int64
}

// Provider is the external e-invoicing gateway. Emit must be retry-safe:
// the invoice id doubles as the idempotency key, so a timed-out request
// that the provider did process is deduplicated on its side.
type Provider interface {
	Emit(ctx context.Context, endpoint, token string, inv Invoice) (EmissionResult, error)
	Void(ctx context.Context, endpoint, token string, inv Invoice) error
}

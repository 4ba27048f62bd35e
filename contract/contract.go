//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"time"

	"deal-lab/domain"
)

// Clock supplies the single time source for expiration computation.
// Every deadline in the engine is derived from it, never from a wall
// clock captured inside a presentation layer.
type Clock interface {
	Now() time.Time
}

// OrderbookProvider is the external domain/orderbook read collaborator.
// Failures are explicit errors, never corrupted snapshots.
type OrderbookProvider interface {
	FetchDomain(ctx context.Context, key domain.DomainKey) (domain.DomainInfo, error)
	FetchOrderbook(ctx context.Context, key domain.DomainKey) (domain.OrderbookSnapshot, error)
	ListDomains(ctx context.Context) ([]domain.DomainKey, error)
}

// SubmissionReceipt is the backend's answer to a submitted offer.
type SubmissionReceipt struct {
	OfferID string
	TxHash  string
	Status  string
}

// SubmissionBackend settles offers on chain. The engine only maps its
// failures, it never signs or submits transactions itself.
type SubmissionBackend interface {
	Submit(ctx context.Context, key domain.DomainKey, price string,
		expiresAt time.Time, buyer string) (SubmissionReceipt, error)
}

// Subscription is a live stream handle. Close releases it synchronously;
// deliveries racing a Close are expected and must be tolerated downstream.
type Subscription interface {
	Close() error
}

// Transport is the message transport collaborator. Delivery may replay:
// the same message id can arrive through FetchHistory and Subscribe, or
// twice through Subscribe. Deduplication is the channel's concern.
type Transport interface {
	FetchHistory(ctx context.Context, key domain.DomainKey) ([]domain.NegotiationMessage, error)
	Subscribe(ctx context.Context, key domain.DomainKey,
		onMessage func(domain.NegotiationMessage)) (Subscription, error)
	Publish(ctx context.Context, msg domain.NegotiationMessage) error
}

// IdentityProvider supplies the authenticated participant's address.
// The engine treats it as an opaque string and validates nothing.
type IdentityProvider interface {
	Address() string
}

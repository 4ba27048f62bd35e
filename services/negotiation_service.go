//go:generate go run go.uber.org/mock/mockgen -source=negotiation_service.go -destination=../mocks/mock_negotiation_service.go -package=mocks
package services

import (
	"context"
	"time"

	"deal-lab/contract"
	"deal-lab/domain"
	"deal-lab/lifecycle"
	"deal-lab/runtime"
)

// INegotiationService is the only surface the HTTP layer talks to.
type INegotiationService interface {
	StartSession(ctx context.Context, key domain.DomainKey, participants domain.Participants) error
	RestartSession(ctx context.Context) error
	StopSession()
	SessionState() (runtime.SessionState, string)

	SubmitOffer(ctx context.Context, price string, ttlMinutes int) (domain.Offer, error)
	OfferStatus(offerID string) (domain.OfferStatus, error)
	TimeRemaining(offerID string) (time.Duration, error)
	AcceptOffer(ctx context.Context, offerID string) (domain.Offer, error)
	CancelOffer(ctx context.Context, offerID string) (domain.Offer, error)
	Offers() []domain.Offer

	SendText(ctx context.Context, body string) (domain.NegotiationMessage, error)
	SendQuickOffer(ctx context.Context, amount string) (domain.NegotiationMessage, error)
	Messages() []domain.NegotiationMessage

	Domain(ctx context.Context, key domain.DomainKey) (domain.DomainInfo, error)
	Orderbook(ctx context.Context, key domain.DomainKey) (domain.OrderbookSnapshot, error)
	Domains(ctx context.Context) ([]domain.DomainKey, error)
}

type NegotiationService struct {
	orchestrator *runtime.Orchestrator
	offers       *lifecycle.Manager
	market       contract.OrderbookProvider
}

func NewNegotiationService(orchestrator *runtime.Orchestrator, offers *lifecycle.Manager,
	market contract.OrderbookProvider) *NegotiationService {
	return &NegotiationService{orchestrator: orchestrator, offers: offers, market: market}
}

func (s *NegotiationService) StartSession(ctx context.Context, key domain.DomainKey, participants domain.Participants) error {
	return s.orchestrator.Start(ctx, key, participants)
}

func (s *NegotiationService) RestartSession(ctx context.Context) error {
	return s.orchestrator.Restart(ctx)
}

func (s *NegotiationService) StopSession() {
	s.orchestrator.Stop()
}

func (s *NegotiationService) SessionState() (runtime.SessionState, string) {
	return s.orchestrator.State()
}

func (s *NegotiationService) SubmitOffer(ctx context.Context, price string, ttlMinutes int) (domain.Offer, error) {
	return s.orchestrator.SubmitOffer(ctx, price, ttlMinutes)
}

func (s *NegotiationService) OfferStatus(offerID string) (domain.OfferStatus, error) {
	return s.offers.StatusOf(offerID)
}

func (s *NegotiationService) TimeRemaining(offerID string) (time.Duration, error) {
	return s.offers.TimeRemaining(offerID)
}

func (s *NegotiationService) AcceptOffer(ctx context.Context, offerID string) (domain.Offer, error) {
	return s.orchestrator.AcceptOffer(ctx, offerID)
}

func (s *NegotiationService) CancelOffer(ctx context.Context, offerID string) (domain.Offer, error) {
	return s.orchestrator.CancelOffer(ctx, offerID)
}

func (s *NegotiationService) Offers() []domain.Offer {
	return s.orchestrator.Offers()
}

func (s *NegotiationService) SendText(ctx context.Context, body string) (domain.NegotiationMessage, error) {
	return s.orchestrator.SendText(ctx, body)
}

func (s *NegotiationService) SendQuickOffer(ctx context.Context, amount string) (domain.NegotiationMessage, error) {
	return s.orchestrator.SendQuickOffer(ctx, amount)
}

func (s *NegotiationService) Messages() []domain.NegotiationMessage {
	return s.orchestrator.Messages()
}

func (s *NegotiationService) Domain(ctx context.Context, key domain.DomainKey) (domain.DomainInfo, error) {
	return s.market.FetchDomain(ctx, key)
}

func (s *NegotiationService) Orderbook(ctx context.Context, key domain.DomainKey) (domain.OrderbookSnapshot, error) {
	return s.market.FetchOrderbook(ctx, key)
}

func (s *NegotiationService) Domains(ctx context.Context) ([]domain.DomainKey, error) {
	return s.market.ListDomains(ctx)
}

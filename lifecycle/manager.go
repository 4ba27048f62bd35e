// Package lifecycle owns offer records and their status machine.
// Expiration is passive: statuses are derived from the clock at query
// time, no background sweep ever mutates stored state.
package lifecycle

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"deal-lab/contract"
	"deal-lab/domain"
	"deal-lab/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Manager is the only component allowed to mutate offers.
// The channel and UI layers only ever see denormalized copies.
type Manager struct {
	mu     sync.Mutex
	clock  contract.Clock
	log    *slog.Logger
	offers map[string]domain.Offer
}

func NewManager(clock contract.Clock, log *slog.Logger) *Manager {
	return &Manager{
		clock:  clock,
		log:    log,
		offers: make(map[string]domain.Offer),
	}
}

// Create validates the proposal and registers a pending offer whose
// deadline is ttlMinutes from the manager's clock.
func (m *Manager) Create(key domain.DomainKey, price, buyer string, ttlMinutes int) (domain.Offer, error) {
	if _, ok := domain.ParsePrice(price); !ok {
		return domain.Offer{}, fmt.Errorf("%w: price %q must be a positive decimal", errors.ErrInvalidOfferInput, price)
	}
	if ttlMinutes <= 0 {
		return domain.Offer{}, fmt.Errorf("%w: ttl %d minutes", errors.ErrInvalidOfferInput, ttlMinutes)
	}

	now := m.clock.Now()
	offer := domain.Offer{
		ID:        uuid.NewString(),
		Key:       key,
		Price:     price,
		Buyer:     buyer,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(ttlMinutes) * time.Minute),
		Status:    domain.OfferPending,
	}

	m.mu.Lock()
	m.offers[offer.ID] = offer
	m.mu.Unlock()

	m.log.Info("offer created",
		"offer_id", offer.ID,
		"domain", key.Name(),
		"price", price,
		"expires_at", offer.ExpiresAt,
	)
	return offer, nil
}

// Get returns the stored record with its status derived at read time.
// Expired offers remain addressable until session teardown.
func (m *Manager) Get(offerID string) (domain.Offer, error) {
	m.mu.Lock()
	offer, ok := m.offers[offerID]
	m.mu.Unlock()
	if !ok {
		return domain.Offer{}, fmt.Errorf("%w: %s", errors.ErrUnknownOffer, offerID)
	}
	offer.Status = offer.StatusAt(m.clock.Now())
	return offer, nil
}

// StatusOf derives the live status. Two readers at t1 < t2 never observe
// a status regression because the derivation is monotone in time.
func (m *Manager) StatusOf(offerID string) (domain.OfferStatus, error) {
	offer, err := m.Get(offerID)
	if err != nil {
		return "", err
	}
	return offer.Status, nil
}

// TimeRemaining never returns a negative duration.
func (m *Manager) TimeRemaining(offerID string) (time.Duration, error) {
	m.mu.Lock()
	offer, ok := m.offers[offerID]
	m.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", errors.ErrUnknownOffer, offerID)
	}
	return offer.TimeRemainingAt(m.clock.Now()), nil
}

// MarkAccepted records the external settlement signal.
func (m *Manager) MarkAccepted(offerID string) (domain.Offer, error) {
	return m.transition(offerID, domain.OfferAccepted)
}

// MarkCancelled records an explicit cancellation.
func (m *Manager) MarkCancelled(offerID string) (domain.Offer, error) {
	return m.transition(offerID, domain.OfferCancelled)
}

func (m *Manager) transition(offerID string, target domain.OfferStatus) (domain.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	offer, ok := m.offers[offerID]
	if !ok {
		return domain.Offer{}, fmt.Errorf("%w: %s", errors.ErrUnknownOffer, offerID)
	}

	// The derived status gates the transition, so an offer past its
	// deadline can no longer be accepted even while stored as pending.
	derived := offer.StatusAt(m.clock.Now())
	if derived != domain.OfferPending {
		return domain.Offer{}, fmt.Errorf("%w: offer %s is %s", errors.ErrInvalidTransition, offerID, derived)
	}

	offer.Status = target
	m.offers[offerID] = offer
	m.log.Info("offer transitioned", "offer_id", offerID, "status", target)
	return offer, nil
}

// Rekey re-registers an offer under the id assigned by the submission
// backend, keeping the record addressable by its authoritative id.
func (m *Manager) Rekey(localID, backendID string) (domain.Offer, error) {
	if backendID == "" || localID == backendID {
		return m.Get(localID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	offer, ok := m.offers[localID]
	if !ok {
		return domain.Offer{}, fmt.Errorf("%w: %s", errors.ErrUnknownOffer, localID)
	}
	offer.ID = backendID
	delete(m.offers, localID)
	m.offers[backendID] = offer
	return offer, nil
}

// Offers returns copies of every record with live statuses, for display.
func (m *Manager) Offers() []domain.Offer {
	m.mu.Lock()
	records := lo.Values(m.offers)
	m.mu.Unlock()

	now := m.clock.Now()
	return lo.Map(records, func(offer domain.Offer, _ int) domain.Offer {
		offer.Status = offer.StatusAt(now)
		return offer
	})
}

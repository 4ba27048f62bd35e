package lifecycle

import (
	"log/slog"
	"testing"
	"time"

	"deal-lab/clock"
	"deal-lab/domain"
	"deal-lab/errors"

	"github.com/stretchr/testify/require"
)

var testKey = domain.DomainKey{TLD: "ape", Label: "laser"}

func newTestManager(t *testing.T) (*Manager, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	return NewManager(fake, slog.Default()), fake
}

func TestManager_Create_Pending_With_Full_TTL(t *testing.T) {
	req := require.New(t)
	manager, _ := newTestManager(t)

	// When a valid offer is created with a 30 minute TTL
	offer, err := manager.Create(testKey, "100", "0xbuyer", 30)
	req.NoError(err)

	// Then it is pending and the full TTL remains
	status, err := manager.StatusOf(offer.ID)
	req.NoError(err)
	req.Equal(domain.OfferPending, status)

	remaining, err := manager.TimeRemaining(offer.ID)
	req.NoError(err)
	req.Equal(30*time.Minute, remaining)
	req.Equal(offer.CreatedAt.Add(30*time.Minute), offer.ExpiresAt)
}

func TestManager_Create_Rejects_Bad_Input(t *testing.T) {
	req := require.New(t)
	manager, _ := newTestManager(t)

	cases := []struct {
		name  string
		price string
		ttl   int
	}{
		{"zero price", "0", 30},
		{"negative price", "-5", 30},
		{"garbage price", "not-a-number", 30},
		{"empty price", "", 30},
		{"zero ttl", "100", 0},
		{"negative ttl", "100", -10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := manager.Create(testKey, tc.price, "0xbuyer", tc.ttl)
			req.ErrorIs(err, errors.ErrInvalidOfferInput)
		})
	}

	// And nothing was partially applied
	req.Empty(manager.Offers())
}

func TestManager_Expiration_Is_Lazy_And_Terminal(t *testing.T) {
	req := require.New(t)
	manager, fake := newTestManager(t)

	offer, err := manager.Create(testKey, "100", "0xbuyer", 30)
	req.NoError(err)

	// Given the clock passes the deadline
	fake.Advance(30*time.Minute + time.Second)

	// Then every subsequent read observes expired
	for i := 0; i < 3; i++ {
		status, err := manager.StatusOf(offer.ID)
		req.NoError(err)
		req.Equal(domain.OfferExpired, status)
	}

	// And the remaining time is clamped at zero
	remaining, err := manager.TimeRemaining(offer.ID)
	req.NoError(err)
	req.Equal(time.Duration(0), remaining)

	// And the record stays addressable for history
	stored, err := manager.Get(offer.ID)
	req.NoError(err)
	req.Equal("100", stored.Price)
}

func TestManager_Expiration_Exact_Boundary(t *testing.T) {
	req := require.New(t)
	manager, fake := newTestManager(t)

	offer, err := manager.Create(testKey, "100", "0xbuyer", 30)
	req.NoError(err)

	// One second before the deadline the offer is still pending
	fake.Advance(30*time.Minute - time.Second)
	status, err := manager.StatusOf(offer.ID)
	req.NoError(err)
	req.Equal(domain.OfferPending, status)

	// At now == expiresAt the offer reads expired
	fake.Advance(time.Second)
	status, err = manager.StatusOf(offer.ID)
	req.NoError(err)
	req.Equal(domain.OfferExpired, status)
}

func TestManager_MarkAccepted_Only_From_Pending(t *testing.T) {
	req := require.New(t)
	manager, _ := newTestManager(t)

	offer, err := manager.Create(testKey, "250", "0xbuyer", 15)
	req.NoError(err)

	// When the settlement signal arrives
	accepted, err := manager.MarkAccepted(offer.ID)
	req.NoError(err)
	req.Equal(domain.OfferAccepted, accepted.Status)

	// Then a second accept is rejected
	_, err = manager.MarkAccepted(offer.ID)
	req.ErrorIs(err, errors.ErrInvalidTransition)

	// And a cancel after accept is rejected too
	_, err = manager.MarkCancelled(offer.ID)
	req.ErrorIs(err, errors.ErrInvalidTransition)
}

func TestManager_Transitions_Rejected_After_Expiry(t *testing.T) {
	req := require.New(t)
	manager, fake := newTestManager(t)

	offer, err := manager.Create(testKey, "250", "0xbuyer", 15)
	req.NoError(err)

	fake.Advance(16 * time.Minute)

	_, err = manager.MarkAccepted(offer.ID)
	req.ErrorIs(err, errors.ErrInvalidTransition)
	_, err = manager.MarkCancelled(offer.ID)
	req.ErrorIs(err, errors.ErrInvalidTransition)

	// Expired stays expired, no resurrection happened
	status, err := manager.StatusOf(offer.ID)
	req.NoError(err)
	req.Equal(domain.OfferExpired, status)
}

func TestManager_Accept_Freezes_Status_Past_Deadline(t *testing.T) {
	req := require.New(t)
	manager, fake := newTestManager(t)

	offer, err := manager.Create(testKey, "250", "0xbuyer", 15)
	req.NoError(err)

	_, err = manager.MarkAccepted(offer.ID)
	req.NoError(err)

	// The deadline passing does not demote an accepted offer
	fake.Advance(time.Hour)
	status, err := manager.StatusOf(offer.ID)
	req.NoError(err)
	req.Equal(domain.OfferAccepted, status)
}

func TestManager_Rekey_Preserves_Record(t *testing.T) {
	req := require.New(t)
	manager, _ := newTestManager(t)

	offer, err := manager.Create(testKey, "99.50", "0xbuyer", 30)
	req.NoError(err)

	rekeyed, err := manager.Rekey(offer.ID, "DOMA_12345")
	req.NoError(err)
	req.Equal("DOMA_12345", rekeyed.ID)
	req.Equal(offer.ExpiresAt, rekeyed.ExpiresAt)

	// The old id no longer resolves
	_, err = manager.Get(offer.ID)
	req.ErrorIs(err, errors.ErrUnknownOffer)

	// The new id does
	_, err = manager.Get("DOMA_12345")
	req.NoError(err)
}

func TestManager_Unknown_Offer(t *testing.T) {
	req := require.New(t)
	manager, _ := newTestManager(t)

	_, err := manager.StatusOf("nope")
	req.ErrorIs(err, errors.ErrUnknownOffer)
	_, err = manager.TimeRemaining("nope")
	req.ErrorIs(err, errors.ErrUnknownOffer)
	_, err = manager.MarkAccepted("nope")
	req.ErrorIs(err, errors.ErrUnknownOffer)
}

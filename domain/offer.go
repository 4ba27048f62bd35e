// Package domain contains core concepts of the deal system.
// This file defines the time-boxed Offer and its status machine.
// Offers are mutated only by the lifecycle manager, never here.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OfferStatus string

const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferExpired   OfferStatus = "expired"
	OfferCancelled OfferStatus = "cancelled"
)

// Terminal reports whether a status admits no further transition.
func (s OfferStatus) Terminal() bool {
	return s == OfferAccepted || s == OfferExpired || s == OfferCancelled
}

// Offer is a price proposal valid only until ExpiresAt.
// Status is the stored state; expiration is derived lazily from the clock
// and never written back by a timer.
type Offer struct {
	ID        string
	Key       DomainKey
	Price     string
	Buyer     string
	CreatedAt time.Time
	ExpiresAt time.Time
	Status    OfferStatus
}

// StatusAt derives the live status at the given instant.
// A stored pending offer past its deadline reads as expired; any stored
// terminal status is returned unchanged.
func (o Offer) StatusAt(now time.Time) OfferStatus {
	if o.Status == OfferPending && !now.Before(o.ExpiresAt) {
		return OfferExpired
	}
	return o.Status
}

// TimeRemainingAt never returns a negative duration.
func (o Offer) TimeRemainingAt(now time.Time) time.Duration {
	remaining := o.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ParsePrice validates that a price string is a positive decimal.
func ParsePrice(price string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(price)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}

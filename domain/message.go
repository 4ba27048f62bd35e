// Package domain contains core concepts of the deal system.
// This file defines NegotiationMessage events and their ordering rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// MessageKind is an explicit tag carried on the wire.
// Consumers must never infer semantics by scanning message bodies.
type MessageKind string

const (
	KindText   MessageKind = "text"
	KindOffer  MessageKind = "offer"
	KindSystem MessageKind = "system"
)

// NegotiationMessage represents an immutable chat event in a negotiation.
// Amount is set only for offer-kind messages and matches an offer price.
type NegotiationMessage struct {
	ID     string
	Key    DomainKey
	Sender Role
	Kind   MessageKind
	Body   string
	Amount string
	SentAt time.Time
}

// Valid reports whether the message may enter the authoritative log.
// An offer-kind message must carry a positive decimal amount.
func (m NegotiationMessage) Valid() bool {
	if m.ID == "" {
		return false
	}
	if m.Kind == KindOffer {
		_, ok := ParsePrice(m.Amount)
		return ok
	}
	return true
}

// Before is the total order used by the negotiation log: SentAt first,
// ID as a tie-break so the sort is stable across merge sources.
func (m NegotiationMessage) Before(other NegotiationMessage) bool {
	if !m.SentAt.Equal(other.SentAt) {
		return m.SentAt.Before(other.SentAt)
	}
	return m.ID < other.ID
}

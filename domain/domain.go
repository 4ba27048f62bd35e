// Package domain contains core concepts of the deal system.
// This file defines the DomainKey identifying a tokenized domain
// and the DomainInfo read model returned by the orderbook provider.
package domain

import (
	"fmt"
	"strings"

	"deal-lab/errors"
)

// DomainKey identifies the negotiation scope: one tokenized domain name.
// Two keys are equal iff both fields match case-insensitively.
type DomainKey struct {
	TLD   string
	Label string
}

func NewDomainKey(tld, label string) (DomainKey, error) {
	tld = strings.TrimSpace(tld)
	label = strings.TrimSpace(label)
	if tld == "" || label == "" {
		return DomainKey{}, errors.ErrInvalidDomainKey
	}
	return DomainKey{TLD: tld, Label: label}, nil
}

// ParseDomainKey accepts the "label.tld" form used in URLs and offer bodies.
func ParseDomainKey(name string) (DomainKey, error) {
	label, tld, found := strings.Cut(name, ".")
	if !found {
		return DomainKey{}, fmt.Errorf("%w: %q", errors.ErrInvalidDomainKey, name)
	}
	return NewDomainKey(tld, label)
}

// Name returns the human form "label.tld".
func (k DomainKey) Name() string {
	return fmt.Sprintf("%s.%s", k.Label, k.TLD)
}

func (k DomainKey) Equal(other DomainKey) bool {
	return strings.EqualFold(k.TLD, other.TLD) &&
		strings.EqualFold(k.Label, other.Label)
}

// Canonical lowers both fields so a DomainKey can be used as a map key
// without case aliasing.
func (k DomainKey) Canonical() DomainKey {
	return DomainKey{
		TLD:   strings.ToLower(k.TLD),
		Label: strings.ToLower(k.Label),
	}
}

// Participants holds the two wallet addresses attached to a negotiation.
// Addresses are opaque strings supplied by the identity provider.
type Participants struct {
	Buyer  string
	Seller string
}

// DomainInfo is the provider's read model for a tokenized domain.
// Degraded marks a canned fallback record returned when the live
// provider failed; callers must surface it, never treat it as real.
type DomainInfo struct {
	Name           string
	TLD            string
	Label          string
	Owner          string
	TokenID        string
	TokenizedChain string
	Status         string
	Registrar      string
	ExpirationDate string
	Degraded       bool
}

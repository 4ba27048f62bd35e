// Package domain contains core concepts of the deal system.
// This file defines the read-only orderbook snapshot value objects.
// Snapshots are replaced wholesale on each fetch, never patched.
package domain

import "time"

type OrderbookEntry struct {
	Price     string
	Size      int
	Maker     string
	Timestamp time.Time
}

type SaleRecord struct {
	Price     string
	Timestamp time.Time
	TxHash    string
}

// OrderbookSnapshot is an immutable read of the market state for one domain.
// Degraded marks a clearly labelled fallback snapshot returned when the
// live provider failed; callers must surface it, never treat it as real.
type OrderbookSnapshot struct {
	Key       DomainKey
	Asks      []OrderbookEntry
	Bids      []OrderbookEntry
	LastSale  *SaleRecord
	Owner     string
	FetchedAt time.Time
	Degraded  bool
}

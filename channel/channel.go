// Package channel maintains the per-domain negotiation log.
// It merges a one-shot historical fetch with a live stream into one
// ordered, deduplicated view. It never emits events or talks to the UI.
package channel

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"deal-lab/contract"
	"deal-lab/domain"
	"deal-lab/errors"

	"github.com/google/uuid"
)

type IngestResult string

const (
	IngestAccepted  IngestResult = "accepted"
	IngestDuplicate IngestResult = "duplicate"
)

// Channel is the authoritative message log for one domain key.
// History, live deliveries and local sends all go through the same
// insert-or-ignore routine, so arrival order never matters.
type Channel struct {
	mu           sync.Mutex
	key          domain.DomainKey
	participants domain.Participants
	clock        contract.Clock
	log          *slog.Logger
	seen         map[string]struct{}
	messages     []domain.NegotiationMessage
}

func (c *Channel) Key() domain.DomainKey {
	return c.key
}

func (c *Channel) Participants() domain.Participants {
	return c.participants
}

// LoadHistory merges a historical batch. Safe to call before, during or
// after live messages arrived; overlaps collapse on message id.
func (c *Channel) LoadHistory(messages []domain.NegotiationMessage) {
	for _, msg := range messages {
		if _, err := c.Ingest(msg); err != nil {
			c.log.Warn("dropping malformed history message",
				"message_id", msg.ID, "domain", c.key.Name())
		}
	}
}

// Ingest adds a message from the live stream. Redelivered ids are
// reported as duplicates and ignored; malformed offer-kind messages are
// rejected so they never enter the authoritative log.
func (c *Channel) Ingest(msg domain.NegotiationMessage) (IngestResult, error) {
	if !msg.Valid() {
		return "", fmt.Errorf("%w: id=%q kind=%s amount=%q",
			errors.ErrInvalidMessage, msg.ID, msg.Kind, msg.Amount)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertLocked(msg), nil
}

// Send constructs a local message and inserts it through the same path
// as remote deliveries, so ordering and dedup treat both identically.
func (c *Channel) Send(sender domain.Role, kind domain.MessageKind, body, amount string) (domain.NegotiationMessage, error) {
	msg := domain.NegotiationMessage{
		ID:     uuid.NewString(),
		Key:    c.key,
		Sender: sender,
		Kind:   kind,
		Body:   body,
		Amount: amount,
		SentAt: c.clock.Now(),
	}
	if _, err := c.Ingest(msg); err != nil {
		return domain.NegotiationMessage{}, err
	}
	return msg, nil
}

// View returns a stable ordered snapshot for rendering.
func (c *Channel) View() []domain.NegotiationMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	view := make([]domain.NegotiationMessage, len(c.messages))
	copy(view, c.messages)
	return view
}

// insertLocked is the single insertion routine: dedup on id, then a
// sorted insert keyed on (SentAt, ID). Appending would be wrong because
// history and live deliveries overlap in time.
func (c *Channel) insertLocked(msg domain.NegotiationMessage) IngestResult {
	if _, dup := c.seen[msg.ID]; dup {
		return IngestDuplicate
	}
	c.seen[msg.ID] = struct{}{}

	at := sort.Search(len(c.messages), func(i int) bool {
		return msg.Before(c.messages[i])
	})
	c.messages = append(c.messages, domain.NegotiationMessage{})
	copy(c.messages[at+1:], c.messages[at:])
	c.messages[at] = msg
	return IngestAccepted
}

// Book hands out channels and guarantees one instance per domain key
// for the lifetime of a session.
type Book struct {
	mu       sync.Mutex
	clock    contract.Clock
	log      *slog.Logger
	channels map[domain.DomainKey]*Channel
}

func NewBook(clock contract.Clock, log *slog.Logger) *Book {
	return &Book{
		clock:    clock,
		log:      log,
		channels: make(map[domain.DomainKey]*Channel),
	}
}

// Open is idempotent per domain key: opening twice returns the same
// channel instance, keyed case-insensitively.
func (b *Book) Open(key domain.DomainKey, participants domain.Participants) *Channel {
	canonical := key.Canonical()

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.channels[canonical]; ok {
		return existing
	}
	ch := &Channel{
		key:          key,
		participants: participants,
		clock:        b.clock,
		log:          b.log,
		seen:         make(map[string]struct{}),
	}
	b.channels[canonical] = ch
	return ch
}

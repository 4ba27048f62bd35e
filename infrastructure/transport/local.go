// Package transport provides an in-process message transport backed by
// BadgerDB. It stands in for an external secure-messaging bridge when
// none is configured, with the same contract: history fetch, live
// subscription, publish, and the occasional redelivery.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"deal-lab/contract"
	"deal-lab/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type diskMessage struct {
	ID     string    `json:"id"`
	TLD    string    `json:"tld"`
	Label  string    `json:"label"`
	Sender string    `json:"sender"`
	Kind   string    `json:"kind"`
	Body   string    `json:"body"`
	Amount string    `json:"amount,omitempty"`
	SentAt time.Time `json:"sentAt"`
}

// Local is a badger-backed transport. Published messages are persisted
// and fanned out asynchronously to every subscriber of the domain key,
// including the publisher's own subscription; downstream dedup is
// expected, as with any real delivery layer.
type Local struct {
	db  *badger.DB
	log *slog.Logger

	mu          sync.Mutex
	subscribers map[domain.DomainKey]map[string]func(domain.NegotiationMessage)
}

func NewLocal(db *badger.DB, log *slog.Logger) *Local {
	return &Local{
		db:          db,
		log:         log,
		subscribers: make(map[domain.DomainKey]map[string]func(domain.NegotiationMessage)),
	}
}

// historyKey formats "msg:{label}.{tld}:{timestamp_padded}:{uuid}" so a
// prefix scan returns messages in chronological order, with the id as a
// collision disconnector for same-nanosecond messages.
func historyKey(msg domain.NegotiationMessage) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		msg.Key.Canonical().Name(),
		msg.SentAt.UnixNano(),
		msg.ID,
	))
}

func historyPrefix(key domain.DomainKey) []byte {
	return []byte(fmt.Sprintf("msg:%s:", key.Canonical().Name()))
}

func (l *Local) FetchHistory(ctx context.Context, key domain.DomainKey) ([]domain.NegotiationMessage, error) {
	var messages []domain.NegotiationMessage
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := historyPrefix(key)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var stored diskMessage
				if err := json.Unmarshal(v, &stored); err != nil {
					return err
				}
				messages = append(messages, fromDisk(stored))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history scan: %w", err)
	}
	return messages, nil
}

type localSubscription struct {
	cancel func()
}

func (s *localSubscription) Close() error {
	s.cancel()
	return nil
}

// Subscribe registers a live callback. Close removes it synchronously;
// a delivery already in flight may still invoke the callback once after
// Close returns, which subscribers must tolerate.
func (l *Local) Subscribe(ctx context.Context, key domain.DomainKey,
	onMessage func(domain.NegotiationMessage)) (contract.Subscription, error) {
	canonical := key.Canonical()
	id := uuid.NewString()

	l.mu.Lock()
	if _, ok := l.subscribers[canonical]; !ok {
		l.subscribers[canonical] = make(map[string]func(domain.NegotiationMessage))
	}
	l.subscribers[canonical][id] = onMessage
	l.mu.Unlock()

	return &localSubscription{cancel: func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if subs, ok := l.subscribers[canonical]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(l.subscribers, canonical)
			}
		}
	}}, nil
}

func (l *Local) Publish(ctx context.Context, msg domain.NegotiationMessage) error {
	payload, err := json.Marshal(toDisk(msg))
	if err != nil {
		return err
	}
	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(historyKey(msg), payload)
	})
	if err != nil {
		return fmt.Errorf("history write: %w", err)
	}

	l.mu.Lock()
	subs := make([]func(domain.NegotiationMessage), 0, len(l.subscribers[msg.Key.Canonical()]))
	for _, fn := range l.subscribers[msg.Key.Canonical()] {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	// Fanout is asynchronous so a subscriber calling back into the
	// publisher cannot deadlock on its own send path.
	for _, fn := range subs {
		go fn(msg)
	}
	return nil
}

func toDisk(msg domain.NegotiationMessage) diskMessage {
	return diskMessage{
		ID:     msg.ID,
		TLD:    msg.Key.TLD,
		Label:  msg.Key.Label,
		Sender: string(msg.Sender),
		Kind:   string(msg.Kind),
		Body:   msg.Body,
		Amount: msg.Amount,
		SentAt: msg.SentAt,
	}
}

func fromDisk(stored diskMessage) domain.NegotiationMessage {
	return domain.NegotiationMessage{
		ID:     stored.ID,
		Key:    domain.DomainKey{TLD: stored.TLD, Label: stored.Label},
		Sender: domain.Role(stored.Sender),
		Kind:   domain.MessageKind(stored.Kind),
		Body:   stored.Body,
		Amount: stored.Amount,
		SentAt: stored.SentAt,
	}
}

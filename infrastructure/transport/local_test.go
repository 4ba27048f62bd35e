package transport

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"deal-lab/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var (
	testKey   = domain.DomainKey{TLD: "ape", Label: "laser"}
	testEpoch = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
)

func newTestTransport(t *testing.T) *Local {
	t.Helper()
	options := badger.DefaultOptions(t.TempDir()).WithLogger(nil)
	db, err := badger.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewLocal(db, slog.Default())
}

func message(id string, offset time.Duration) domain.NegotiationMessage {
	return domain.NegotiationMessage{
		ID:     id,
		Key:    testKey,
		Sender: domain.RoleBuyer,
		Kind:   domain.KindText,
		Body:   "hello",
		SentAt: testEpoch.Add(offset),
	}
}

func TestLocal_Publish_Then_FetchHistory_In_Time_Order(t *testing.T) {
	req := require.New(t)
	transport := newTestTransport(t)
	ctx := context.Background()

	// Published out of temporal order
	req.NoError(transport.Publish(ctx, message("m2", 20*time.Second)))
	req.NoError(transport.Publish(ctx, message("m1", 10*time.Second)))
	req.NoError(transport.Publish(ctx, message("m3", 30*time.Second)))

	history, err := transport.FetchHistory(ctx, testKey)
	req.NoError(err)

	// The padded timestamp key yields chronological order on scan
	req.Equal([]string{"m1", "m2", "m3"},
		lo.Map(history, func(m domain.NegotiationMessage, _ int) string { return m.ID }))
	req.Equal("hello", history[0].Body)
	req.Equal(testKey, history[0].Key)
}

func TestLocal_FetchHistory_Scoped_Per_Domain(t *testing.T) {
	req := require.New(t)
	transport := newTestTransport(t)
	ctx := context.Background()

	other := message("x1", time.Second)
	other.Key = domain.DomainKey{TLD: "io", Label: "blockchain"}

	req.NoError(transport.Publish(ctx, message("m1", time.Second)))
	req.NoError(transport.Publish(ctx, other))

	history, err := transport.FetchHistory(ctx, testKey)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("m1", history[0].ID)
}

func TestLocal_Subscribe_Receives_Published_Messages(t *testing.T) {
	req := require.New(t)
	transport := newTestTransport(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	var mu sync.Mutex
	var received []domain.NegotiationMessage

	sub, err := transport.Subscribe(ctx, testKey, func(msg domain.NegotiationMessage) {
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		wg.Done()
	})
	req.NoError(err)
	defer sub.Close()

	req.NoError(transport.Publish(ctx, message("m1", time.Second)))
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	req.Len(received, 1)
	req.Equal("m1", received[0].ID)
}

func TestLocal_Closed_Subscription_Stops_Deliveries(t *testing.T) {
	req := require.New(t)
	transport := newTestTransport(t)
	ctx := context.Background()

	var mu sync.Mutex
	count := 0
	sub, err := transport.Subscribe(ctx, testKey, func(domain.NegotiationMessage) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	req.NoError(err)
	req.NoError(sub.Close())

	req.NoError(transport.Publish(ctx, message("m1", time.Second)))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	req.Zero(count)
}

func TestLocal_Subscription_Is_Scoped_To_Domain(t *testing.T) {
	req := require.New(t)
	transport := newTestTransport(t)
	ctx := context.Background()

	var mu sync.Mutex
	count := 0
	sub, err := transport.Subscribe(ctx, domain.DomainKey{TLD: "io", Label: "blockchain"},
		func(domain.NegotiationMessage) {
			mu.Lock()
			count++
			mu.Unlock()
		})
	req.NoError(err)
	defer sub.Close()

	req.NoError(transport.Publish(ctx, message("m1", time.Second)))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	req.Zero(count)
}

package doma

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"deal-lab/clock"
	"deal-lab/domain"

	"github.com/stretchr/testify/require"
)

var (
	testKey   = domain.DomainKey{TLD: "ape", Label: "laser"}
	testEpoch = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
)

func newTestClient(t *testing.T, handler http.Handler, demoFallback bool) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, clock.NewFake(testEpoch), slog.Default(), demoFallback)
}

func TestClient_FetchDomain(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/domains/ape/laser", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":           "laser.ape",
			"owner":          "0xowner",
			"status":         "tokenized",
			"registrar":      "D3 Testnet",
			"tokenizedChain": "Base Sepolia",
		})
	}), false)

	info, err := client.FetchDomain(context.Background(), testKey)
	req.NoError(err)
	req.Equal("laser.ape", info.Name)
	req.Equal("0xowner", info.Owner)
	req.Equal("tokenized", info.Status)
	req.Equal("ape", info.TLD)
}

func TestClient_FetchDomain_Degraded_Fallback_Is_Marked(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), true)

	info, err := client.FetchDomain(context.Background(), testKey)
	req.NoError(err)

	// The canned record is caller-visible as degraded, never silent
	req.True(info.Degraded)
	req.Equal("laser.ape", info.Name)
}

func TestClient_FetchDomain_Live_Response_Is_Not_Degraded(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "laser.ape"})
	}), true)

	info, err := client.FetchDomain(context.Background(), testKey)
	req.NoError(err)
	req.False(info.Degraded)
}

func TestClient_FetchOrderbook(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/orderbook/ape/laser", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"asks": []map[string]any{
				{"price": "100", "size": 1, "maker": "0xmaker1", "timestamp": 1700000000000},
			},
			"bids": []map[string]any{
				{"price": "75", "size": 2, "maker": "0xmaker2", "timestamp": 1700000000000},
			},
			"lastSale": map[string]any{
				"price": "85", "timestamp": 1690000000000, "txHash": "0xsale",
			},
			"owner": "0xowner",
		})
	}), false)

	snapshot, err := client.FetchOrderbook(context.Background(), testKey)
	req.NoError(err)
	req.False(snapshot.Degraded)
	req.Len(snapshot.Asks, 1)
	req.Equal("100", snapshot.Asks[0].Price)
	req.Len(snapshot.Bids, 1)
	req.Equal(2, snapshot.Bids[0].Size)
	req.NotNil(snapshot.LastSale)
	req.Equal("85", snapshot.LastSale.Price)
	req.Equal(testEpoch, snapshot.FetchedAt)
}

func TestClient_FetchOrderbook_Failure_Without_Fallback(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), false)

	// A collaborator failure is an explicit error, not a fabricated snapshot
	_, err := client.FetchOrderbook(context.Background(), testKey)
	req.Error(err)
}

func TestClient_FetchOrderbook_Degraded_Fallback_Is_Marked(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), true)

	snapshot, err := client.FetchOrderbook(context.Background(), testKey)
	req.NoError(err)

	// The demo snapshot is caller-visible as degraded, never silent
	req.True(snapshot.Degraded)
	req.NotEmpty(snapshot.Asks)
	req.Equal(testKey, snapshot.Key)
}

func TestClient_Submit(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		req.Equal("/offers", r.URL.Path)

		var body map[string]any
		req.NoError(json.NewDecoder(r.Body).Decode(&body))
		req.Equal("laser.ape", body["domain"])
		req.Equal("100", body["price"])
		req.Equal("0xbuyer", body["buyer"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"offerId": "DOMA_42", "txHash": "0xtx", "status": "pending",
		})
	}), false)

	receipt, err := client.Submit(context.Background(), testKey, "100",
		testEpoch.Add(30*time.Minute), "0xbuyer")
	req.NoError(err)
	req.Equal("DOMA_42", receipt.OfferID)
	req.Equal("0xtx", receipt.TxHash)
	req.Equal("pending", receipt.Status)
}

func TestClient_Submit_Failure_Never_Falls_Back(t *testing.T) {
	req := require.New(t)

	// Even with the demo fallback enabled, a submission failure must
	// propagate: a fake receipt would masquerade as a settled offer.
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}), true)

	_, err := client.Submit(context.Background(), testKey, "100",
		testEpoch.Add(30*time.Minute), "0xbuyer")
	req.Error(err)
}

func TestClient_ListDomains(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/domains", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"domains": []map[string]string{
				{"tld": "ape", "label": "laser"},
				{"tld": "io", "label": "blockchain"},
			},
		})
	}), false)

	keys, err := client.ListDomains(context.Background())
	req.NoError(err)
	req.Equal([]domain.DomainKey{
		{TLD: "ape", Label: "laser"},
		{TLD: "io", Label: "blockchain"},
	}, keys)
}

func TestClient_ListDomains_Failure_Propagates_Despite_Fallback(t *testing.T) {
	req := require.New(t)

	// A key list has no degradation marker, so the demo mode does not
	// apply and the failure surfaces.
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), true)

	_, err := client.ListDomains(context.Background())
	req.Error(err)
}

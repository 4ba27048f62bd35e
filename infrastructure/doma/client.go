// Package doma is the HTTP adapter for the Doma domain/orderbook API.
// It implements the orderbook provider and the offer submission backend
// consumed by the engine.
package doma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"deal-lab/contract"
	"deal-lab/domain"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"gopkg.in/h2non/gentleman.v2"
)

// Client talks to the Doma REST API.
//
// DemoFallback controls the degraded mode: when enabled, a failed
// domain or orderbook fetch yields a canned snapshot that is explicitly
// marked Degraded instead of an error. It is never silent and never
// applies to offer submission.
type Client struct {
	http         *gentleman.Client
	clock        contract.Clock
	log          *slog.Logger
	demoFallback bool
}

func NewClient(baseURL string, clock contract.Clock, log *slog.Logger, demoFallback bool) *Client {
	return &Client{
		http:         gentleman.New().URL(baseURL),
		clock:        clock,
		log:          log,
		demoFallback: demoFallback,
	}
}

func (c *Client) FetchDomain(ctx context.Context, key domain.DomainKey) (domain.DomainInfo, error) {
	req := c.http.Get()
	req.Path(fmt.Sprintf("/domains/%s/%s", key.TLD, key.Label))
	req.SetHeader("Accept", "application/json")

	resp, err := req.Send()
	if err != nil || !resp.Ok {
		if err == nil {
			err = fmt.Errorf("domain fetch failed: http %d", resp.StatusCode)
			resp.Close()
		}
		if c.demoFallback {
			c.log.Warn("domain fetch degraded to demo data", "domain", key.Name(), "error", err)
			return demoDomain(key), nil
		}
		return domain.DomainInfo{}, err
	}
	defer resp.Close()

	raw := gjson.Parse(resp.String())
	return domain.DomainInfo{
		Name:           raw.Get("name").String(),
		TLD:            key.TLD,
		Label:          key.Label,
		Owner:          raw.Get("owner").String(),
		TokenID:        raw.Get("tokenId").String(),
		TokenizedChain: raw.Get("tokenizedChain").String(),
		Status:         raw.Get("status").String(),
		Registrar:      raw.Get("registrar").String(),
		ExpirationDate: raw.Get("expirationDate").String(),
	}, nil
}

func (c *Client) FetchOrderbook(ctx context.Context, key domain.DomainKey) (domain.OrderbookSnapshot, error) {
	req := c.http.Get()
	req.Path(fmt.Sprintf("/orderbook/%s/%s", key.TLD, key.Label))
	req.SetHeader("Accept", "application/json")

	resp, err := req.Send()
	if err != nil || !resp.Ok {
		if err == nil {
			err = fmt.Errorf("orderbook fetch failed: http %d", resp.StatusCode)
			resp.Close()
		}
		if c.demoFallback {
			c.log.Warn("orderbook fetch degraded to demo data", "domain", key.Name(), "error", err)
			return c.demoOrderbook(key), nil
		}
		return domain.OrderbookSnapshot{}, err
	}
	defer resp.Close()

	raw := gjson.Parse(resp.String())
	snapshot := domain.OrderbookSnapshot{
		Key:       key,
		Asks:      parseEntries(raw.Get("asks")),
		Bids:      parseEntries(raw.Get("bids")),
		Owner:     raw.Get("owner").String(),
		FetchedAt: c.clock.Now(),
	}
	if sale := raw.Get("lastSale"); sale.Exists() {
		snapshot.LastSale = &domain.SaleRecord{
			Price:     sale.Get("price").String(),
			Timestamp: time.UnixMilli(sale.Get("timestamp").Int()),
			TxHash:    sale.Get("txHash").String(),
		}
	}
	return snapshot, nil
}

func (c *Client) ListDomains(ctx context.Context) ([]domain.DomainKey, error) {
	req := c.http.Get()
	req.Path("/domains")
	req.SetHeader("Accept", "application/json")

	// No demo fallback here: a key list carries no field to mark
	// degradation on, so a failure propagates instead.
	resp, err := req.Send()
	if err != nil || !resp.Ok {
		if err == nil {
			err = fmt.Errorf("domain list fetch failed: http %d", resp.StatusCode)
			resp.Close()
		}
		return nil, err
	}
	defer resp.Close()

	keys := gjson.Get(resp.String(), "domains").Array()
	return lo.Map(keys, func(item gjson.Result, _ int) domain.DomainKey {
		return domain.DomainKey{
			TLD:   item.Get("tld").String(),
			Label: item.Get("label").String(),
		}
	}), nil
}

type submitRequest struct {
	Domain    string `json:"domain"`
	Price     string `json:"price"`
	ExpiresAt int64  `json:"expiresAt"`
	Buyer     string `json:"buyer"`
}

// Submit posts a time-boxed offer. Submission failures always propagate;
// a demo receipt would be indistinguishable from a settled offer.
func (c *Client) Submit(ctx context.Context, key domain.DomainKey, price string,
	expiresAt time.Time, buyer string) (contract.SubmissionReceipt, error) {
	payload, err := json.Marshal(submitRequest{
		Domain:    key.Name(),
		Price:     price,
		ExpiresAt: expiresAt.Unix(),
		Buyer:     buyer,
	})
	if err != nil {
		return contract.SubmissionReceipt{}, err
	}

	req := c.http.Post()
	req.Path("/offers")
	req.SetHeader("Content-Type", "application/json")
	req.SetHeader("Accept", "application/json")
	req.Body(bytes.NewReader(payload))

	resp, err := req.Send()
	if err != nil {
		return contract.SubmissionReceipt{}, err
	}
	defer resp.Close()
	if !resp.Ok {
		return contract.SubmissionReceipt{}, fmt.Errorf("offer submission failed: http %d: %s",
			resp.StatusCode, resp.String())
	}

	raw := gjson.Parse(resp.String())
	return contract.SubmissionReceipt{
		OfferID: raw.Get("offerId").String(),
		TxHash:  raw.Get("txHash").String(),
		Status:  raw.Get("status").String(),
	}, nil
}

func demoDomain(key domain.DomainKey) domain.DomainInfo {
	return domain.DomainInfo{
		Name:           key.Name(),
		TLD:            key.TLD,
		Label:          key.Label,
		Owner:          "0x1234567890abcdef1234567890abcdef12345678",
		Status:         "tokenized",
		Registrar:      "D3 Testnet",
		TokenizedChain: "Base Sepolia",
		Degraded:       true,
	}
}

func (c *Client) demoOrderbook(key domain.DomainKey) domain.OrderbookSnapshot {
	now := c.clock.Now()
	return domain.OrderbookSnapshot{
		Key: key,
		Asks: []domain.OrderbookEntry{
			{Price: "100", Size: 1, Maker: "0xabcd...1234", Timestamp: now},
			{Price: "150", Size: 1, Maker: "0xabcd...5678", Timestamp: now},
		},
		Bids: []domain.OrderbookEntry{
			{Price: "75", Size: 1, Maker: "0xefgh...9876", Timestamp: now},
			{Price: "50", Size: 2, Maker: "0xefgh...5432", Timestamp: now},
		},
		LastSale: &domain.SaleRecord{
			Price:     "85",
			Timestamp: now.Add(-24 * time.Hour),
			TxHash:    "0xdemo123",
		},
		Owner:     "0x1234567890abcdef1234567890abcdef12345678",
		FetchedAt: now,
		Degraded:  true,
	}
}

func parseEntries(raw gjson.Result) []domain.OrderbookEntry {
	return lo.Map(raw.Array(), func(item gjson.Result, _ int) domain.OrderbookEntry {
		return domain.OrderbookEntry{
			Price:     item.Get("price").String(),
			Size:      int(item.Get("size").Int()),
			Maker:     item.Get("maker").String(),
			Timestamp: time.UnixMilli(item.Get("timestamp").Int()),
		}
	})
}

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"pulsabot/internal/pkg/httpclient"
)

// CreateResult is the normalized outcome of a create-transaction call.
// The raw API answers with inconsistent field names across deployments
// (refid/reff_id, message/keterangan); normalization happens here and
// nowhere else.
type CreateResult struct {
	RefID   string
	TrxID   string
	Status  string
	Message string
	Time    string
}

// HistoryResult is the normalized outcome of a history lookup.
type HistoryResult struct {
	RefID   string
	Status  string
	Message string
}

// StockItem is one row of the provider's shared-quota stock report.
type StockItem struct {
	Type     string `json:"type"`
	Name     string `json:"nama"`
	SisaSlot int    `json:"sisa_slot"`
}

// Client talks to the top-up provider's GET-style HTTP API.
type Client struct {
	apiKey   string
	baseURL  string
	stockURL string
	http     *httpclient.Client
}

// NewClient creates a provider API client.
func NewClient(apiKey, baseURL, stockURL string, timeout time.Duration) *Client {
	return &Client{
		apiKey:   apiKey,
		baseURL:  strings.TrimSuffix(baseURL, "/") + "/",
		stockURL: strings.TrimSuffix(stockURL, "/") + "/",
		http:     httpclient.New().WithTimeout(timeout),
	}
}

// rawResponse covers the field-name variants the provider is known to emit.
type rawResponse struct {
	RefID      string      `json:"refid"`
	ReffID     string      `json:"reff_id"`
	TrxID      json.Number `json:"trxid"`
	Status     string      `json:"status"`
	Message    string      `json:"message"`
	Keterangan string      `json:"keterangan"`
	Waktu      string      `json:"waktu"`
}

func (r *rawResponse) refID() string {
	if r.RefID != "" {
		return r.RefID
	}
	return r.ReffID
}

func (r *rawResponse) message() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Keterangan
}

// CreateTransaction asks the provider to start a top-up transaction. A nil
// error with an empty RefID means the provider rejected the request; the
// caller decides what to do with Message.
func (c *Client) CreateTransaction(ctx context.Context, productCode, destination, refID string) (*CreateResult, error) {
	u := fmt.Sprintf("%strx?produk=%s&tujuan=%s&reff_id=%s&api_key=%s",
		c.baseURL,
		url.QueryEscape(productCode),
		url.QueryEscape(destination),
		url.QueryEscape(refID),
		url.QueryEscape(c.apiKey),
	)

	body, err := c.http.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("provider create_trx failed: %w", err)
	}

	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("provider create_trx parse error: %w", err)
	}

	return &CreateResult{
		RefID:   raw.refID(),
		TrxID:   raw.TrxID.String(),
		Status:  raw.Status,
		Message: raw.message(),
		Time:    raw.Waktu,
	}, nil
}

// History fetches the provider-side state of a transaction by reference id.
func (c *Client) History(ctx context.Context, refID string) (*HistoryResult, error) {
	u := fmt.Sprintf("%shistory?api_key=%s&refid=%s",
		c.baseURL,
		url.QueryEscape(c.apiKey),
		url.QueryEscape(refID),
	)

	body, err := c.http.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("provider history failed: %w", err)
	}

	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("provider history parse error: %w", err)
	}

	return &HistoryResult{
		RefID:   raw.refID(),
		Status:  raw.Status,
		Message: raw.message(),
	}, nil
}

// CheckStock fetches the shared-quota stock report.
func (c *Client) CheckStock(ctx context.Context) ([]StockItem, error) {
	body, err := c.http.Get(ctx, c.stockURL+"cek_stock_akrab")
	if err != nil {
		return nil, fmt.Errorf("provider stock check failed: %w", err)
	}

	// The endpoint sometimes answers with an HTML error page instead of JSON.
	if strings.Contains(strings.ToLower(string(body)), "<html") {
		return nil, fmt.Errorf("provider stock check returned HTML")
	}

	var payload struct {
		Data []StockItem `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("provider stock parse error: %w", err)
	}
	return payload.Data, nil
}

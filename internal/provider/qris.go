package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"pulsabot/internal/pkg/httpclient"
)

// QRISClient generates dynamic QRIS payment codes from a static QRIS string.
type QRISClient struct {
	apiURL string
	static string
	http   *httpclient.Client
}

// NewQRISClient creates a QRIS generation client.
func NewQRISClient(apiURL, static string) *QRISClient {
	return &QRISClient{
		apiURL: apiURL,
		static: static,
		http:   httpclient.New().WithTimeout(20 * time.Second),
	}
}

// Generate returns a base64-encoded PNG of a QRIS code for the given amount.
func (q *QRISClient) Generate(ctx context.Context, amount int64) (string, error) {
	payload := map[string]string{
		"amount":      strconv.FormatInt(amount, 10),
		"qris_statis": q.static,
	}

	body, err := q.http.Post(ctx, q.apiURL, payload)
	if err != nil {
		return "", fmt.Errorf("qris generate failed: %w", err)
	}

	var resp struct {
		Status     string `json:"status"`
		Message    string `json:"message"`
		QRISBase64 string `json:"qris_base64"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("qris parse error: %w", err)
	}
	if resp.Status != "success" {
		return "", fmt.Errorf("qris generate rejected: %s", resp.Message)
	}
	if resp.QRISBase64 == "" {
		return "", fmt.Errorf("qris generate returned no image")
	}
	return resp.QRISBase64, nil
}

// Package forecast talks to the external net-profit forecasting service.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
)

const maxResponseBytes = 1 << 20

type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

// NewClient returns a client for baseURL. An empty baseURL yields a client
// whose calls fail with an internal error.
func NewClient(baseURL string, timeout time.Duration, logger *log.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.WithComponent(log.ComponentForecast),
	}
}

// RetrainNetProfit posts the series to /predict/net-profit and returns the
// service's JSON response unchanged.
func (c *Client) RetrainNetProfit(ctx context.Context, series []ledger.NetProfitPoint) (json.RawMessage, error) {
	if c.baseURL == "" {
		return nil, core.Internal("forecast service not configured", nil)
	}
	body, err := json.Marshal(series)
	if err != nil {
		return nil, core.Internal("encode series", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict/net-profit", bytes.NewReader(body))
	if err != nil {
		return nil, core.Internal("build forecast request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, core.Internal("forecast request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, core.Internal("read forecast response", err)
	}
	c.logger.InfoContext(ctx, "Forecast retrain requested",
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds(),
		"months", len(series))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, core.Internal(fmt.Sprintf("forecast service returned %d", resp.StatusCode), nil)
	}
	if !json.Valid(payload) {
		return nil, core.Internal("forecast service returned invalid JSON", nil)
	}
	return json.RawMessage(payload), nil
}

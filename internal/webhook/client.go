// Package webhook posts notification payloads to an HTTP flow endpoint
// (Power Automate style) that relays them as email.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/john2100013/kpi-review/internal/config"
	"github.com/john2100013/kpi-review/pkg/logger"
)

// Client handles webhook notifications.
type Client struct {
	url     string
	enabled bool
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates a new webhook client.
func NewClient(cfg *config.WebhookConfig, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:     cfg.URL,
		enabled: cfg.Enabled,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Payload is the JSON body the flow expects.
type Payload struct {
	CompanyID uint   `json:"company_id"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Template  string `json:"template"`
}

// Enabled reports whether the client will post anything.
func (c *Client) Enabled() bool {
	return c.enabled && c.url != ""
}

// Send posts one payload.
func (c *Client) Send(ctx context.Context, p *Payload) error {
	if !c.Enabled() {
		c.log.Debug().Msg("Webhook is disabled, skipping message")
		return nil
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	// Flow triggers answer 202 Accepted
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("template", p.Template).
		Uint("company_id", p.CompanyID).
		Msg("Sent webhook notification")

	return nil
}

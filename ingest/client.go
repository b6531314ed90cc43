// Package ingest posts finished batches to the downstream ingestion
// collaborator and triggers its notification pipeline.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/leafsignal/menuwatch/config"
	"github.com/leafsignal/menuwatch/models"
	"github.com/leafsignal/menuwatch/resilience"
)

// Client talks to the ingestion collaborator.
type Client struct {
	baseURL    string
	notifyBase string
	webhookURL string
	maxEvents  int
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient builds a client from configuration.
func NewClient(ingest config.IngestConfig, notify config.NotifyConfig, timeout time.Duration) *Client {
	return &Client{
		baseURL:    ingest.BaseURL,
		notifyBase: notify.BaseURL,
		webhookURL: notify.WebhookURL,
		maxEvents:  notify.MaxEvents,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// PostBatch delivers the batch payload, retrying transient failures up
// to 3 attempts. A 4xx other than 429 surfaces immediately.
func (c *Client) PostBatch(ctx context.Context, payload models.BatchPayload) error {
	if c.baseURL == "" {
		return fmt.Errorf("ingest: base URL not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ingest: encode batch: %w", err)
	}

	header := http.Header{"Content-Type": []string{"application/json"}}
	_, err = resilience.FetchWithRetry(ctx, c.httpClient, http.MethodPost,
		c.baseURL+"/scraped-batch", body, header, resilience.FetchOptions{
			Timeout: c.timeout,
			Retry:   resilience.RetryOptions{MaxRetries: 2},
		})
	if err != nil {
		return fmt.Errorf("ingest: post batch: %w", err)
	}
	return nil
}

// Notify triggers the downstream notification pipeline, retrying once.
// A missing configuration is a no-op, not an error.
func (c *Client) Notify(ctx context.Context) error {
	if c.notifyBase == "" {
		return nil
	}
	body, err := json.Marshal(map[string]any{
		"webhookUrl": c.webhookURL,
		"maxEvents":  c.maxEvents,
	})
	if err != nil {
		return fmt.Errorf("ingest: encode notify: %w", err)
	}

	header := http.Header{"Content-Type": []string{"application/json"}}
	_, err = resilience.FetchWithRetry(ctx, c.httpClient, http.MethodPost,
		c.notifyBase+"/notify", body, header, resilience.FetchOptions{
			Timeout: c.timeout,
			Retry:   resilience.RetryOptions{MaxRetries: 1},
		})
	if err != nil {
		return fmt.Errorf("ingest: notify: %w", err)
	}
	return nil
}

// Package webhook sends the operator-facing batch summary to a
// Discord-compatible webhook.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/leafsignal/menuwatch/models"
	"github.com/leafsignal/menuwatch/resilience"
)

// Embed colors.
const (
	colorGreen = 0x2ecc71
	colorRed   = 0xe74c3c
)

// maxErrorLines bounds the error list in the summary embed.
const maxErrorLines = 5

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Fields    []embedField `json:"fields"`
	Footer    *footer      `json:"footer,omitempty"`
	Timestamp string       `json:"timestamp"`
}

type footer struct {
	Text string `json:"text"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

// Notifier posts batch summaries. A zero-value URL disables it.
type Notifier struct {
	url        string
	httpClient *http.Client
	log        *slog.Logger
}

// NewNotifier creates a notifier for the given webhook URL.
func NewNotifier(url string) *Notifier {
	return &Notifier{
		url:        url,
		httpClient: &http.Client{},
		log:        slog.Default().With("component", "webhook"),
	}
}

// SendSummary posts the batch roll-up, retrying transient failures.
// Failures are logged and returned, but callers treat them as
// non-fatal; a lost notification never blocks batch completion.
func (n *Notifier) SendSummary(ctx context.Context, summary models.BatchSummary) error {
	if n.url == "" {
		return nil
	}

	body, err := json.Marshal(webhookPayload{Embeds: []embed{buildEmbed(summary)}})
	if err != nil {
		return fmt.Errorf("webhook: encode summary: %w", err)
	}

	header := http.Header{"Content-Type": []string{"application/json"}}
	_, err = resilience.FetchWithRetry(ctx, n.httpClient, http.MethodPost, n.url, body, header,
		resilience.FetchOptions{
			Timeout: 15 * time.Second,
			Retry:   resilience.RetryOptions{MaxRetries: 2, BaseDelay: time.Second},
		})
	if err != nil {
		n.log.Warn("summary delivery failed", "batchId", summary.BatchID, "error", err)
		return fmt.Errorf("webhook: send summary: %w", err)
	}
	return nil
}

// buildEmbed renders one summary embed. Red when any location failed or
// nothing was scraped at all.
func buildEmbed(summary models.BatchSummary) embed {
	color := colorGreen
	title := "Scrape batch completed"
	if len(summary.Errors) > 0 || summary.LocationsOK < summary.LocationsTotal {
		color = colorRed
		title = "Scrape batch completed with errors"
	}

	fields := []embedField{
		{Name: "Batch", Value: summary.BatchID, Inline: true},
		{Name: "Duration", Value: summary.Duration.Round(time.Second).String(), Inline: true},
		{Name: "Locations", Value: fmt.Sprintf("%d/%d ok", summary.LocationsOK, summary.LocationsTotal), Inline: true},
		{Name: "Products", Value: fmt.Sprintf("%d", summary.Products), Inline: true},
		{Name: "With quantity", Value: fmt.Sprintf("%d", summary.WithQuantity), Inline: true},
	}
	if len(summary.Errors) > 0 {
		fields = append(fields, embedField{Name: "Errors", Value: truncateErrors(summary.Errors)})
	}

	return embed{
		Title:     title,
		Color:     color,
		Fields:    fields,
		Footer:    &footer{Text: "menuwatch"},
		Timestamp: summary.StartedAt.UTC().Format(time.RFC3339),
	}
}

func truncateErrors(errs []string) string {
	shown := errs
	if len(shown) > maxErrorLines {
		shown = shown[:maxErrorLines]
	}
	lines := make([]string, 0, len(shown)+1)
	for _, e := range shown {
		if len(e) > 200 {
			e = e[:200]
		}
		lines = append(lines, "- "+e)
	}
	if extra := len(errs) - len(shown); extra > 0 {
		lines = append(lines, fmt.Sprintf("... and %d more", extra))
	}
	return strings.Join(lines, "\n")
}

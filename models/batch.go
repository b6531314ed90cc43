package models

import "time"

// Batch result statuses.
const (
	BatchStatusOK    = "ok"
	BatchStatusError = "error"
)

// BatchResult is one per-location entry in a batch. A location's
// failure never blocks the others; the entry records it instead.
type BatchResult struct {
	RetailerID string           `json:"retailerId"`
	Items      []ScrapedProduct `json:"items"`
	Status     string           `json:"status"`
	Error      string           `json:"error,omitempty"`
	Attempts   int              `json:"attempts"`
}

// BatchPayload is the wire shape posted to the ingestion collaborator.
type BatchPayload struct {
	BatchID string        `json:"batchId"`
	Results []BatchResult `json:"results"`
}

// BatchSummary is the operator-facing roll-up sent over the webhook and
// exposed by the ops API.
type BatchSummary struct {
	BatchID        string        `json:"batchId"`
	StartedAt      time.Time     `json:"startedAt"`
	Duration       time.Duration `json:"duration"`
	LocationsOK    int           `json:"locationsOk"`
	LocationsTotal int           `json:"locationsTotal"`
	Products       int           `json:"products"`
	WithQuantity   int           `json:"withQuantity"`
	Errors         []string      `json:"errors,omitempty"`
}

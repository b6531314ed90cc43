package models

// HealthResponse is the body for GET /api/v1/health.
type HealthResponse struct {
	Status    string        `json:"status"`
	Uptime    string        `json:"uptime"`
	Running   bool          `json:"running"`
	LastBatch *BatchSummary `json:"lastBatch,omitempty"`
	Version   string        `json:"version"`
}

// RunResponse is the body for POST /api/v1/runs. The batch id is not
// known at accept time; it appears in the next health snapshot.
type RunResponse struct {
	Status string `json:"status"`
}

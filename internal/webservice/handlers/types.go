package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/laav10/astro-ingester/internal/pipeline"
)

// Runner runs the ingestion of a frame.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) pipeline.Outcome
}

// OutcomeRecorder is told about every finished ingestion.
type OutcomeRecorder interface {
	Outcome(out pipeline.Outcome)
}

// stepResponse is the JSON rendering of a pipeline step.
type stepResponse struct {
	Step        string `json:"step"`
	Description string `json:"description"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}

// ingestResponse is the JSON answer to an ingestion request.
type ingestResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Details string         `json:"details,omitempty"`
	State   string         `json:"state,omitempty"`
	Steps   []stepResponse `json:"steps,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "err", err)
	}
}

package handlers

import (
	"net/http"
	"time"
)

// HealthHandler handles requests to the /api/health endpoint.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

package handlers

import (
	"net/http"

	"github.com/laav10/astro-ingester/internal/constants"
)

// VersionHandler handles requests to the /version endpoint.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": constants.Version})
}

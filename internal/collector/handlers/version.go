package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ubuntu/mail-reports-collector/internal/constants"
)

// VersionHandler handles requests to the /version endpoint.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(struct {
		Version string `json:"version"`
	}{constants.Version}); err != nil {
		slog.Warn("Failed to write version", "err", err)
	}
}

package api

import (
	"net/http"

	"github.com/ayushi512rai/Lack-of-Accessibility/internal/gesture"
)

type referenceResponse struct {
	References []gesture.Reference `json:"references"`
}

// ReferenceHandler serves the gesture reference images at GET /api/reference.
func ReferenceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, referenceResponse{References: gesture.References()})
}

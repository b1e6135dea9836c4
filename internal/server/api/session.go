package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ayushi512rai/Lack-of-Accessibility/internal/app"
)

// Controller is the part of app.App the session endpoints drive.
type Controller interface {
	Start(ctx context.Context) (string, error)
	Stop()
	Snapshot() app.Update
}

// SessionHandler starts and stops recognition.
//
//	POST   /api/session  start a session
//	DELETE /api/session  stop the running session
//	GET    /api/session  current state (also served at /api/state)
type SessionHandler struct {
	ctrl Controller
}

// NewSessionHandler creates a SessionHandler for ctrl.
func NewSessionHandler(ctrl Controller) *SessionHandler {
	return &SessionHandler{ctrl: ctrl}
}

type startSessionResponse struct {
	SessionID string     `json:"sessionId"`
	State     app.Update `json:"state"`
}

// ServeHTTP implements the http.Handler interface.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
	case http.MethodPost:
		h.start(w, r)
	case http.MethodDelete:
		h.ctrl.Stop()
		writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SessionHandler) start(w http.ResponseWriter, r *http.Request) {
	id, err := h.ctrl.Start(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, app.ErrAlreadyRunning):
			writeError(w, http.StatusConflict, "Session already running")
		case errors.Is(err, app.ErrCameraUnavailable):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Failed to start session")
		}
		return
	}
	writeJSON(w, http.StatusCreated, startSessionResponse{SessionID: id, State: h.ctrl.Snapshot()})
}

// StateHandler serves the latest update at GET /api/state.
func StateHandler(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, ctrl.Snapshot())
	}
}

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/pinchvol/internal/app"
	"github.com/ayusman/pinchvol/internal/control"
	"github.com/ayusman/pinchvol/internal/store"
)

// DefaultSessionLimit is the number of sessions listed when no limit is given.
const DefaultSessionLimit = 20

// SessionHandler handles /api/session and /api/sessions.
type SessionHandler struct {
	ctrl Controller
}

// NewSessionHandler creates a new SessionHandler driving ctrl.
func NewSessionHandler(ctrl Controller) *SessionHandler {
	return &SessionHandler{ctrl: ctrl}
}

type volumeResponse struct {
	Percentage int    `json:"percentage"`
	Mute       bool   `json:"mute"`
	Seq        uint64 `json:"seq"`
}

type sessionResponse struct {
	app.Status
	Volume *volumeResponse `json:"volume,omitempty"`
}

type sessionsResponse struct {
	Sessions []*store.Session `json:"sessions"`
}

// ServeHTTP routes session requests.
// Expected paths: /api/session, /api/session/start, /api/session/stop, /api/sessions
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/sessions" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	action := strings.TrimPrefix(r.URL.Path, "/api/session")
	action = strings.TrimPrefix(action, "/")

	switch action {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.status(w)
	case "start":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.start(w)
	case "stop":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ctrl.Stop()
		h.status(w)
	default:
		http.NotFound(w, r)
	}
}

// status writes the current status and volume.
func (h *SessionHandler) status(w http.ResponseWriter) {
	resp := sessionResponse{Status: h.ctrl.Status()}
	if vs, ok := h.ctrl.Volume(); ok {
		resp.Volume = &volumeResponse{
			Percentage: vs.Command.Percentage(),
			Mute:       vs.Command.Mute,
			Seq:        vs.Seq,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// start handles POST /api/session/start.
func (h *SessionHandler) start(w http.ResponseWriter) {
	if err := h.ctrl.Start(); err != nil {
		if errors.Is(err, control.ErrDeviceUnavailable) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}
	h.status(w)
}

// list handles GET /api/sessions?limit=N.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := DefaultSessionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := h.ctrl.Sessions(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: sessions})
}

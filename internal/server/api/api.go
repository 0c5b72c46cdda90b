// Package api provides the HTTP API handlers of the pinchvol dashboard.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/pinchvol/internal/app"
	"github.com/ayusman/pinchvol/internal/control"
	"github.com/ayusman/pinchvol/internal/gesture"
	"github.com/ayusman/pinchvol/internal/store"
)

// Controller is the part of the session controller the API exposes.
type Controller interface {
	Start() error
	Stop()
	Status() app.Status
	Volume() (control.VolumeState, bool)
	Sessions(limit int) ([]*store.Session, error)
	Calibration() gesture.Calibration
	SetCalibration(c gesture.Calibration) error
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes data as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

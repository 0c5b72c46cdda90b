package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/pinchvol/internal/gesture"
)

// CalibrationHandler handles GET and PUT /api/settings/calibration.
type CalibrationHandler struct {
	ctrl Controller
}

// NewCalibrationHandler creates a new CalibrationHandler.
func NewCalibrationHandler(ctrl Controller) *CalibrationHandler {
	return &CalibrationHandler{ctrl: ctrl}
}

func (h *CalibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.ctrl.Calibration())
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CalibrationHandler) update(w http.ResponseWriter, r *http.Request) {
	var c gesture.Calibration
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.ctrl.SetCalibration(c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save calibration")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

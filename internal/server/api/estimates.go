package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/gvf/internal/gesture"
)

// EstimatesHandler reports the per-gesture estimates of the last tick.
type EstimatesHandler struct {
	rec Recognizer
}

// NewEstimatesHandler creates a new EstimatesHandler.
func NewEstimatesHandler(r Recognizer) *EstimatesHandler {
	return &EstimatesHandler{rec: r}
}

type estimatesResponse struct {
	State        string                      `json:"state"`
	MostProbable *int                        `json:"most_probable,omitempty"`
	Estimates    map[string]gesture.Estimate `json:"estimates"`
}

// ServeHTTP handles GET /api/estimates.
func (h *EstimatesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	estimates := h.rec.Estimates()
	response := estimatesResponse{
		State:        h.rec.State().String(),
		MostProbable: mostProbable(h.rec),
		Estimates:    make(map[string]gesture.Estimate, len(estimates)),
	}
	for id, est := range estimates {
		response.Estimates[strconv.Itoa(id)] = est
	}

	writeJSON(w, http.StatusOK, response)
}

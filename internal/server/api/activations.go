package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/gvf/internal/store"
)

// ActivationsHandler lists recorded activations.
type ActivationsHandler struct {
	rec Recognizer
}

// NewActivationsHandler creates a new ActivationsHandler.
func NewActivationsHandler(r Recognizer) *ActivationsHandler {
	return &ActivationsHandler{rec: r}
}

type listActivationsResponse struct {
	Activations []*store.Activation `json:"activations"`
}

// ServeHTTP handles GET /api/activations?limit=N.
func (h *ActivationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	acts, err := h.rec.Activations(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list activations")
		return
	}
	if acts == nil {
		acts = []*store.Activation{}
	}

	writeJSON(w, http.StatusOK, listActivationsResponse{Activations: acts})
}

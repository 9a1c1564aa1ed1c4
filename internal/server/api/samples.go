package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/gvf/internal/geometry"
	"github.com/ayusman/gvf/internal/session"
)

// SamplesHandler feeds incoming points to the session.
type SamplesHandler struct {
	rec Recognizer
}

// NewSamplesHandler creates a new SamplesHandler.
func NewSamplesHandler(r Recognizer) *SamplesHandler {
	return &SamplesHandler{rec: r}
}

// Request types

// addSamplesRequest accepts either a single point {"x":..,"y":..,"z":..}
// or a batch {"points":[...]}.
type addSamplesRequest struct {
	geometry.Point3D
	Points []geometry.Point3D `json:"points"`
}

// Response types

type addSamplesResponse struct {
	Accepted     int                  `json:"accepted"`
	State        string               `json:"state"`
	MostProbable *int                 `json:"most_probable,omitempty"`
	Activations  []session.Activation `json:"activations,omitempty"`
}

// ServeHTTP implements the http.Handler interface.
// Expected path: /api/samples
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req addSamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	points := req.Points
	if points == nil {
		points = []geometry.Point3D{req.Point3D}
	}

	response := addSamplesResponse{}
	for _, p := range points {
		act, err := h.rec.AddSample(p)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		response.Accepted++
		if act != nil {
			response.Activations = append(response.Activations, *act)
		}
	}

	response.State = h.rec.State().String()
	response.MostProbable = mostProbable(h.rec)
	writeJSON(w, http.StatusOK, response)
}

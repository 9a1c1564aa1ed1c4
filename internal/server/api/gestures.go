package api

import (
	"net/http"
	"strings"

	"github.com/ayusman/gvf/internal/geometry"
	"github.com/ayusman/gvf/internal/gesture"
)

// GestureHandler handles HTTP requests for recorded gestures.
type GestureHandler struct {
	rec Recognizer
}

// NewGestureHandler creates a new GestureHandler.
func NewGestureHandler(r Recognizer) *GestureHandler {
	return &GestureHandler{rec: r}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *GestureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/gestures or /api/gestures/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/gestures")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodDelete:
			h.clear(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id, ok := parseID(path)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid gesture id")
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type gestureSummary struct {
	ID      int              `json:"id"`
	Name    string           `json:"name"`
	Samples int              `json:"samples"`
	Min     geometry.Point3D `json:"min"`
	Max     geometry.Point3D `json:"max"`
}

type listGesturesResponse struct {
	Gestures []gestureSummary `json:"gestures"`
}

func toSummary(r gesture.Record) gestureSummary {
	return gestureSummary{
		ID:      r.ID,
		Name:    r.Name,
		Samples: len(r.Samples),
		Min:     r.Min,
		Max:     r.Max,
	}
}

// list handles GET /api/gestures.
func (h *GestureHandler) list(w http.ResponseWriter, r *http.Request) {
	records := h.rec.Gestures()
	response := listGesturesResponse{
		Gestures: make([]gestureSummary, 0, len(records)),
	}
	for _, rec := range records {
		response.Gestures = append(response.Gestures, toSummary(rec))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/gestures/{id} and returns the full record.
func (h *GestureHandler) get(w http.ResponseWriter, r *http.Request, id int) {
	rec, ok := h.rec.Gesture(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Gesture not found")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// clear handles DELETE /api/gestures.
func (h *GestureHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.rec.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear gestures")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// delete handles DELETE /api/gestures/{id}.
func (h *GestureHandler) delete(w http.ResponseWriter, r *http.Request, id int) {
	if err := h.rec.RemoveGesture(id); err != nil {
		writeSessionError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Package api provides the HTTP handlers of the gvf recognition service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ayusman/gvf/internal/geometry"
	"github.com/ayusman/gvf/internal/gesture"
	"github.com/ayusman/gvf/internal/session"
	"github.com/ayusman/gvf/internal/store"
)

// Recognizer is the recognition runtime the handlers drive.
type Recognizer interface {
	State() session.State
	StartRecording(id int, name string) error
	StopRecording() (gesture.Record, error)
	StartListening(ids ...int) error
	StopListening() error
	AddSample(p geometry.Point3D) (*session.Activation, error)
	Clear() error
	RemoveGesture(id int) error
	Gestures() []gesture.Record
	Gesture(id int) (gesture.Record, bool)
	Estimates() map[int]gesture.Estimate
	MostProbable() (int, bool)
	Activations(limit int) ([]*store.Activation, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
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

// writeSessionError maps a rejected session command to a status code.
func writeSessionError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrInvalidState),
		errors.Is(err, session.ErrDuplicateID),
		errors.Is(err, session.ErrEmptyStore):
		status = http.StatusConflict
	case errors.Is(err, session.ErrUnknownID):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrEmptyTemplate):
		status = http.StatusUnprocessableEntity
	}
	writeError(w, status, err.Error())
}

// parseID parses a gesture id from a path segment.
func parseID(s string) (int, bool) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return id, true
}

// mostProbable is the JSON form of an optional gesture id.
func mostProbable(r Recognizer) *int {
	id, ok := r.MostProbable()
	if !ok {
		return nil
	}
	return &id
}

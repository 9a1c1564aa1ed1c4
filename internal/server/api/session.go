package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// SessionHandler drives the recording and listening commands.
type SessionHandler struct {
	rec Recognizer
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(r Recognizer) *SessionHandler {
	return &SessionHandler{rec: r}
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: /api/session, /api/session/record, /api/session/listen
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/session")
	path = strings.TrimPrefix(path, "/")

	switch path {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.status(w, r)
	case "record":
		switch r.Method {
		case http.MethodPost:
			h.startRecording(w, r)
		case http.MethodDelete:
			h.stopRecording(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "listen":
		switch r.Method {
		case http.MethodPost:
			h.startListening(w, r)
		case http.MethodDelete:
			h.stopListening(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type startRecordingRequest struct {
	ID   *int   `json:"id"`
	Name string `json:"name"`
}

type startListeningRequest struct {
	IDs []int `json:"ids"`
}

type sessionResponse struct {
	State        string `json:"state"`
	MostProbable *int   `json:"most_probable,omitempty"`
}

func (h *SessionHandler) respond(w http.ResponseWriter, status int) {
	writeJSON(w, status, sessionResponse{
		State:        h.rec.State().String(),
		MostProbable: mostProbable(h.rec),
	})
}

// status handles GET /api/session.
func (h *SessionHandler) status(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK)
}

// startRecording handles POST /api/session/record.
func (h *SessionHandler) startRecording(w http.ResponseWriter, r *http.Request) {
	var req startRecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ID == nil {
		writeError(w, http.StatusBadRequest, "Gesture id is required")
		return
	}

	if err := h.rec.StartRecording(*req.ID, req.Name); err != nil {
		writeSessionError(w, err)
		return
	}
	h.respond(w, http.StatusOK)
}

// stopRecording handles DELETE /api/session/record and returns the new gesture.
func (h *SessionHandler) stopRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := h.rec.StopRecording()
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSummary(rec))
}

// startListening handles POST /api/session/listen. An empty body listens
// on every gesture.
func (h *SessionHandler) startListening(w http.ResponseWriter, r *http.Request) {
	var req startListeningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.rec.StartListening(req.IDs...); err != nil {
		writeSessionError(w, err)
		return
	}
	h.respond(w, http.StatusOK)
}

// stopListening handles DELETE /api/session/listen.
func (h *SessionHandler) stopListening(w http.ResponseWriter, r *http.Request) {
	if err := h.rec.StopListening(); err != nil {
		writeSessionError(w, err)
		return
	}
	h.respond(w, http.StatusOK)
}

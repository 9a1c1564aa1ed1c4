// Package main provides a gvf plugin that forwards activations.
// The "post" action sends the activation to params.url as JSON; the
// "append" action writes it as one JSON line to params.file.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Request is the activation sent by the plugin dispatcher.
type Request struct {
	Action       string          `json:"action"`
	ActivationID string          `json:"activation_id,omitempty"`
	GestureID    int             `json:"gesture_id"`
	Gesture      string          `json:"gesture,omitempty"`
	Alignment    float64         `json:"alignment"`
	Probability  float64         `json:"probability"`
	Speed        float64         `json:"speed"`
	Params       json.RawMessage `json:"params,omitempty"`
}

// Response is written back to the dispatcher.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type params struct {
	URL     string `json:"url"`
	File    string `json:"file"`
	Timeout string `json:"timeout"`
}

// actionHandler handles one action for a decoded request.
type actionHandler func(req *Request, p params) error

var actionHandlers = map[string]actionHandler{
	"post":   post,
	"append": appendLine,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	var p params
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid params: %v", err))
			return
		}
	}

	if err := handler(&req, p); err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}
	writeSuccessResponse()
}

// activation is the forwarded payload, without the plugin plumbing.
func activation(req *Request) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"id":          req.ActivationID,
		"gesture_id":  req.GestureID,
		"gesture":     req.Gesture,
		"alignment":   req.Alignment,
		"probability": req.Probability,
		"speed":       req.Speed,
	})
}

func post(req *Request, p params) error {
	if p.URL == "" {
		return fmt.Errorf("params.url is required")
	}
	timeout := 3 * time.Second
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return fmt.Errorf("params.timeout: %w", err)
		}
		timeout = d
	}

	body, err := activation(req)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(p.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned %s", p.URL, resp.Status)
	}
	return nil
}

func appendLine(req *Request, p params) error {
	if p.File == "" {
		return fmt.Errorf("params.file is required")
	}

	line, err := activation(req)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(p.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}

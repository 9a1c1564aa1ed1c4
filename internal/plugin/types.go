// Package plugin runs external programs when a bound gesture is recognized.
// A plugin is a directory holding a plugin.json manifest and an executable
// that reads one JSON Request on stdin and writes one JSON Response on
// stdout.
package plugin

import "encoding/json"

// Manifest describes a plugin's metadata and the actions it accepts.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Actions     []string `json:"actions"`
}

// Request is sent to a plugin for one activation.
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

// Response is what a plugin reports back.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Supports reports whether the manifest lists action. A manifest without
// actions accepts any.
func (p *Plugin) Supports(action string) bool {
	if len(p.Manifest.Actions) == 0 {
		return true
	}
	for _, a := range p.Manifest.Actions {
		if a == action {
			return true
		}
	}
	return false
}

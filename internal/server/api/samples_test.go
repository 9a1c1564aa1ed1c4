package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/ayusman/gvf/internal/filter"
	"github.com/ayusman/gvf/internal/geometry"
)

func followParams() filter.Params {
	params := filter.DefaultParams()
	params.Tolerance = 0.02
	params.DynamicsVariance = 0.01
	params.ScalingsSpreading = filter.Spreading{Center: 1}
	params.ScalingsVariance = geometry.Point3D{}
	params.RotationsVariance = geometry.Point3D{}
	return params
}

func TestSamplesHandler_Idle(t *testing.T) {
	a, _ := newTestApp(t, filter.DefaultParams())
	handler := NewSamplesHandler(a)

	rec := do(t, handler, http.MethodPost, "/api/samples", geometry.Point3D{X: 1})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestSamplesHandler_BadRequests(t *testing.T) {
	a, _ := newTestApp(t, filter.DefaultParams())
	handler := NewSamplesHandler(a)

	rec := do(t, handler, http.MethodGet, "/api/samples", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}

	rec = do(t, handler, http.MethodPost, "/api/samples", json.RawMessage(`"x"`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d for a string body, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestSamplesHandler_SinglePoint(t *testing.T) {
	a, _ := newTestApp(t, filter.DefaultParams())
	handler := NewSamplesHandler(a)
	if err := a.StartRecording(1, ""); err != nil {
		t.Fatal(err)
	}

	rec := do(t, handler, http.MethodPost, "/api/samples", map[string]float64{"x": 0.5, "y": 0.25, "z": -1})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var response addSamplesResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Accepted != 1 || response.State != "recording" {
		t.Errorf("unexpected response %+v", response)
	}

	got, err := a.StopRecording()
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Samples) != 1 || got.Samples[0] != (geometry.Point3D{X: 0.5, Y: 0.25, Z: -1}) {
		t.Errorf("recorded samples = %+v", got.Samples)
	}
}

func TestSamplesHandler_Activation(t *testing.T) {
	a, _ := newTestApp(t, followParams())
	record(t, a, 1, 50)
	if err := a.StartListening(1); err != nil {
		t.Fatal(err)
	}
	handler := NewSamplesHandler(a)

	rec := do(t, handler, http.MethodPost, "/api/samples", map[string]interface{}{"points": line(50)})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var response addSamplesResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Accepted != 50 {
		t.Errorf("expected 50 accepted samples, got %d", response.Accepted)
	}
	if len(response.Activations) != 1 || response.Activations[0].GestureID != 1 {
		t.Fatalf("expected one activation of gesture 1, got %+v", response.Activations)
	}
	if response.Activations[0].Estimate.Probability <= 0.9 {
		t.Errorf("activation probability = %f", response.Activations[0].Estimate.Probability)
	}

	// the activation is in the log
	logged := do(t, NewActivationsHandler(a), http.MethodGet, "/api/activations?limit=5", nil)
	var acts listActivationsResponse
	if err := json.NewDecoder(logged.Body).Decode(&acts); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(acts.Activations) != 1 || acts.Activations[0].GestureID != 1 {
		t.Errorf("expected one logged activation, got %+v", acts.Activations)
	}
}

func TestEstimatesHandler(t *testing.T) {
	a, _ := newTestApp(t, filter.DefaultParams())
	record(t, a, 1, 5)
	record(t, a, 2, 5)
	if err := a.StartListening(); err != nil {
		t.Fatal(err)
	}
	if _, err := a.AddSample(geometry.Point3D{}); err != nil {
		t.Fatal(err)
	}
	handler := NewEstimatesHandler(a)

	rec := do(t, handler, http.MethodGet, "/api/estimates", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response estimatesResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Estimates) != 2 {
		t.Errorf("expected estimates for 2 gestures, got %d", len(response.Estimates))
	}
	if response.MostProbable == nil {
		t.Error("expected a most probable gesture after one tick")
	}
	if response.State != "listening" {
		t.Errorf("expected state listening, got %q", response.State)
	}
}

func TestActivationsHandler_BadLimit(t *testing.T) {
	a, _ := newTestApp(t, filter.DefaultParams())
	handler := NewActivationsHandler(a)

	rec := do(t, handler, http.MethodGet, "/api/activations?limit=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	rec = do(t, handler, http.MethodGet, "/api/activations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"activations":[]}` {
		t.Errorf("unexpected body %s", body)
	}
}

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayusman/gvf/internal/app"
	"github.com/ayusman/gvf/internal/filter"
	"github.com/ayusman/gvf/internal/geometry"
	"github.com/ayusman/gvf/internal/server"
	"github.com/ayusman/gvf/internal/store"
)

// followParams keeps scale and rotation fixed so a dense straight line is
// followed to completion.
func followParams() filter.Params {
	params := filter.DefaultParams()
	params.Tolerance = 0.02
	params.DynamicsVariance = 0.01
	params.ScalingsSpreading = filter.Spreading{Center: 1}
	params.ScalingsVariance = geometry.Point3D{}
	params.RotationsVariance = geometry.Point3D{}
	return params
}

func start(t *testing.T, s *store.Store, params filter.Params, seed uint64) (*httptest.Server, *app.App) {
	t.Helper()

	a := app.New(app.Config{Store: s, Params: params, Seed: seed})
	if err := a.LoadGestures(); err != nil {
		t.Fatalf("LoadGestures() error = %v", err)
	}
	srv := server.New(server.Config{App: a})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return ts, a
}

func call(t *testing.T, ts *httptest.Server, method, path, body string, want int, out interface{}) {
	t.Helper()

	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		t.Fatalf("%s %s status = %d, want %d: %s", method, path, resp.StatusCode, want, buf.String())
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s decode error = %v", method, path, err)
		}
	}
}

// points returns a batch body for n points from the origin to end.
func points(end geometry.Point3D, n, count int) string {
	parts := make([]string, count)
	for i := range parts {
		p := end.Scale(float64(i) / float64(n-1))
		parts[i] = fmt.Sprintf(`{"x":%g,"y":%g,"z":%g}`, p.X, p.Y, p.Z)
	}
	return `{"points":[` + strings.Join(parts, ",") + `]}`
}

func recordOverHTTP(t *testing.T, ts *httptest.Server, id int, name string, end geometry.Point3D, n int) {
	t.Helper()
	call(t, ts, http.MethodPost, "/api/session/record", fmt.Sprintf(`{"id":%d,"name":%q}`, id, name), http.StatusOK, nil)
	call(t, ts, http.MethodPost, "/api/samples", points(end, n, n), http.StatusOK, nil)
	call(t, ts, http.MethodDelete, "/api/session/record", "", http.StatusCreated, nil)
}

type samplesResponse struct {
	Accepted     int  `json:"accepted"`
	MostProbable *int `json:"most_probable"`
	Activations  []struct {
		GestureID int `json:"gesture_id"`
	} `json:"activations"`
}

func TestE2E_RecordRestartRecognize(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	t.Run("Record", func(t *testing.T) {
		ts, _ := start(t, s, followParams(), 3)
		recordOverHTTP(t, ts, 1, "swipe", geometry.Point3D{X: 1}, 50)
	})

	// a new process loads the gesture from the database
	ts, a := start(t, s, followParams(), 3)

	t.Run("Loaded", func(t *testing.T) {
		var listed struct {
			Gestures []struct {
				ID      int    `json:"id"`
				Name    string `json:"name"`
				Samples int    `json:"samples"`
			} `json:"gestures"`
		}
		call(t, ts, http.MethodGet, "/api/gestures", "", http.StatusOK, &listed)
		if len(listed.Gestures) != 1 || listed.Gestures[0].Name != "swipe" || listed.Gestures[0].Samples != 50 {
			t.Fatalf("gestures = %+v", listed.Gestures)
		}
	})

	t.Run("Recognize", func(t *testing.T) {
		call(t, ts, http.MethodPost, "/api/session/listen", `{"ids":[1]}`, http.StatusOK, nil)

		var resp samplesResponse
		call(t, ts, http.MethodPost, "/api/samples", points(geometry.Point3D{X: 1}, 50, 50), http.StatusOK, &resp)
		if resp.Accepted != 50 {
			t.Errorf("accepted = %d, want 50", resp.Accepted)
		}
		if len(resp.Activations) != 1 || resp.Activations[0].GestureID != 1 {
			t.Fatalf("activations = %+v, want one activation of gesture 1", resp.Activations)
		}
	})

	t.Run("ActivationLogged", func(t *testing.T) {
		var logged struct {
			Activations []struct {
				ID        string `json:"id"`
				GestureID int    `json:"gesture_id"`
			} `json:"activations"`
		}
		call(t, ts, http.MethodGet, "/api/activations", "", http.StatusOK, &logged)
		if len(logged.Activations) != 1 || logged.Activations[0].GestureID != 1 {
			t.Fatalf("activations = %+v", logged.Activations)
		}
	})

	t.Run("StopListening", func(t *testing.T) {
		call(t, ts, http.MethodDelete, "/api/session/listen", "", http.StatusOK, nil)
		if got := a.State().String(); got != "idle" {
			t.Errorf("state = %s, want idle", got)
		}
		call(t, ts, http.MethodPost, "/api/samples", `{"x":0}`, http.StatusConflict, nil)
	})
}

func TestE2E_DistinguishGestures(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	params := filter.DefaultParams()
	params.NumberOfParticles = 600
	ts, _ := start(t, s, params, 42)

	recordOverHTTP(t, ts, 1, "horizontal", geometry.Point3D{X: 1}, 30)
	recordOverHTTP(t, ts, 2, "vertical", geometry.Point3D{Y: 1}, 30)

	call(t, ts, http.MethodPost, "/api/session/listen", "", http.StatusOK, nil)

	var resp samplesResponse
	call(t, ts, http.MethodPost, "/api/samples", points(geometry.Point3D{Y: 1}, 30, 20), http.StatusOK, &resp)
	if resp.MostProbable == nil || *resp.MostProbable != 2 {
		t.Fatalf("most probable = %v, want 2", resp.MostProbable)
	}

	var estimates struct {
		Estimates map[string]struct {
			Probability float64 `json:"probability"`
		} `json:"estimates"`
	}
	call(t, ts, http.MethodGet, "/api/estimates", "", http.StatusOK, &estimates)
	if estimates.Estimates["2"].Probability <= estimates.Estimates["1"].Probability {
		t.Errorf("vertical probability %f should exceed horizontal %f",
			estimates.Estimates["2"].Probability, estimates.Estimates["1"].Probability)
	}
}

func TestE2E_Health(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	ts, _ := start(t, s, filter.DefaultParams(), 1)

	var health struct {
		Status   string `json:"status"`
		State    string `json:"state"`
		Gestures int    `json:"gestures"`
	}
	call(t, ts, http.MethodGet, "/api/health", "", http.StatusOK, &health)
	if health.Status != "ok" || health.State != "idle" || health.Gestures != 0 {
		t.Errorf("health = %+v", health)
	}
}

package queryapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akonshin-labs/rfgateway/internal/decode"
	"github.com/akonshin-labs/rfgateway/internal/sensors"
)

type staticNames struct{ names map[sensors.Identity]string }

func (s staticNames) Name(id sensors.Identity) (string, bool) {
	n, ok := s.names[id]
	return n, ok
}

func newTestAPI(t *testing.T) (*API, sensors.Identity) {
	t.Helper()
	reg := sensors.NewRegistry(8, 0)
	var d decode.DS18B20
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reading := d.NewReading(0xabcd, 23400)
	rec, _ := reg.Update(d, reading, now, 0)

	names := staticNames{names: map[sensors.Identity]string{rec.Identity: "outside"}}
	return New(reg, names, "1.0-test"), rec.Identity
}

func TestHandleAllReturnsKnownSensor(t *testing.T) {
	api, _ := newTestAPI(t)
	srv := httptest.NewServer(api.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0]["name"] != "outside" {
		t.Errorf("name = %v, want outside", out[0]["name"])
	}
}

func TestHandleTemperatureUnknownScaleIs400(t *testing.T) {
	api, _ := newTestAPI(t)
	srv := httptest.NewServer(api.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/temperature?scale=K")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleTemperatureUnknownParamIs400(t *testing.T) {
	api, _ := newTestAPI(t)
	srv := httptest.NewServer(api.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/temperature?bogus=1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleTemperatureHistoryUnknownSensorIs404(t *testing.T) {
	api, _ := newTestAPI(t)
	srv := httptest.NewServer(api.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/temperature/nonexistent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleTemperatureHistoryReturnsPoints(t *testing.T) {
	api, _ := newTestAPI(t)
	srv := httptest.NewServer(api.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/temperature/outside")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var points []historyPoint
	if err := json.NewDecoder(resp.Body).Decode(&points); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(points) != 1 || points[0].Y != 234 {
		t.Errorf("points = %v, want one point with Y=234", points)
	}
}

func TestHandleVersion(t *testing.T) {
	api, _ := newTestAPI(t)
	srv := httptest.NewServer(api.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/version")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	body := make([]byte, 64)
	n, _ := resp.Body.Read(body)
	if string(body[:n]) != "1.0-test" {
		t.Errorf("version body = %q, want %q", string(body[:n]), "1.0-test")
	}
}

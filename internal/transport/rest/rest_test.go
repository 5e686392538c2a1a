package rest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akonshin-labs/rfgateway/internal/decode"
	"github.com/akonshin-labs/rfgateway/internal/rlog"
	"github.com/akonshin-labs/rfgateway/internal/sensors"
)

func newTestRecord(t *testing.T) (*sensors.Registry, sensors.Identity) {
	t.Helper()
	reg := sensors.NewRegistry(8, 0)
	var d decode.DS18B20
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reading := d.NewReading(0xabcd, 23400)
	rec, _ := reg.Update(d, reading, now, 0)
	return reg, rec.Identity
}

func TestJSONPayloadMatchesFields(t *testing.T) {
	reg, id := newTestRecord(t)
	rec, _ := reg.Find(id)
	body := jsonPayload("outside", rec, false, true)
	for _, want := range []string{`"name":"outside"`, `"channel"`, `"rolling_code"`, `"battery_ok":true`} {
		if !strings.Contains(body, want) {
			t.Errorf("body %q missing %q", body, want)
		}
	}
}

func TestInfluxLineFormat(t *testing.T) {
	reg, id := newTestRecord(t)
	rec, _ := reg.Find(id)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	line := influxLine("rfsensors", "back yard", rec, now)
	if !strings.HasPrefix(line, "rfsensors,name=back\\ yard temperature=") {
		t.Errorf("line = %q, want rfsensors,name=back\\ yard temperature=... prefix", line)
	}
	if !strings.Contains(line, "battery_ok=t") {
		t.Errorf("line = %q, want battery_ok=t", line)
	}
}

func TestPublisherSendsConfiguredMethodAndBody(t *testing.T) {
	reg, id := newTestRecord(t)
	rec, _ := reg.Find(id)

	var gotMethod, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(Config{URL: srv.URL, Method: MethodPUT, Format: FormatJSON}, rlog.New(io.Discard, "rest"))
	if err := p.Publish("outside", rec, time.Now()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %s, want PUT", gotMethod)
	}
	if !strings.Contains(gotBody, `"name":"outside"`) {
		t.Errorf("body = %q, missing name field", gotBody)
	}
}

func TestPublisherPermanentOnClientError(t *testing.T) {
	reg, id := newTestRecord(t)
	rec, _ := reg.Find(id)

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := New(Config{URL: srv.URL, Method: MethodPOST, Format: FormatJSON}, rlog.New(io.Discard, "rest"))
	if err := p.Publish("outside", rec, time.Now()); err == nil {
		t.Fatal("Publish: want error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (client errors must not retry)", calls)
	}
}

func TestSinkPublishesCurrentState(t *testing.T) {
	reg, id := newTestRecord(t)

	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(Config{URL: srv.URL, Method: MethodPUT, Format: FormatJSON}, rlog.New(io.Discard, "rest"))
	sink := &Sink{
		Publisher: p,
		Registry:  reg,
		Names:     staticNames{id: "outside"},
		Identity:  id,
	}
	if err := sink.Dispatch("outside too hot: 72.5"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(gotBody, `"name":"outside"`) {
		t.Errorf("body = %q, missing name field", gotBody)
	}
}

func TestDiagnosticsMuxServesSensors(t *testing.T) {
	reg, id := newTestRecord(t)
	diag := &Diagnostics{Registry: reg, Names: staticNames{id: "outside"}}

	srv := httptest.NewServer(diag.Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/diagnostics/sensors")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), `"name":"outside"`) {
		t.Errorf("body = %q, missing outside", string(b))
	}
}

type staticNames map[sensors.Identity]string

func (s staticNames) Name(id sensors.Identity) (string, bool) {
	n, ok := s[id]
	return n, ok
}

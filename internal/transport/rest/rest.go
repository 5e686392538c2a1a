// Package rest implements the REST/InfluxDB publish sink spec.md §6
// describes (JSON PUT/POST to a generic REST server, or InfluxDB line
// protocol to a time-series server), plus a small local diagnostics
// mux serving the same sensor state for operators poking at the box
// directly. The publish client's retry policy is grounded on
// comm.RemoteDevice's backoff.Retry shape; the diagnostics mux is
// grounded on envsrv/cfg.go's BuildNetwork/goji.SubMux/pat.New
// recursive-submux idiom.
package rest

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"goji.io"
	"goji.io/pat"

	"github.com/cenkalti/backoff"

	"github.com/akonshin-labs/rfgateway/internal/rlog"
	"github.com/akonshin-labs/rfgateway/internal/rules"
	"github.com/akonshin-labs/rfgateway/internal/sensors"
)

// Format selects the emission format spec.md §6 defines for REST
// publish: bit-exact JSON for a generic REST server, or InfluxDB line
// protocol for a time-series server.
type Format int

const (
	FormatJSON Format = iota
	FormatInfluxLine
)

// Method is the HTTP verb used to publish, matching spec.md's "HTTP
// PUT/POST to a REST or time-series server" phrasing.
type Method string

const (
	MethodPUT  Method = http.MethodPut
	MethodPOST Method = http.MethodPost
)

// Config configures one REST/InfluxDB publish endpoint.
type Config struct {
	URL         string
	Method      Method
	Format      Format
	Measurement string // InfluxDB measurement name; ignored for FormatJSON
	Celsius     bool
	UTC         bool
}

// httpDoer is the narrow dependency Publisher needs, satisfied by
// *http.Client; tests substitute a fake instead of dialing a server.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Publisher PUTs or POSTs one sensor snapshot to a REST/InfluxDB
// endpoint per Publish call (Sink calls it whenever a rule fires),
// retrying transient failures with
// an exponential backoff the way comm.RemoteDevice retries a dial —
// spec.md §7.5 says the core itself does not retry, so this retry
// lives entirely inside the pluggable transport.
type Publisher struct {
	Config Config
	Client httpDoer
	log    *rlog.Logger
}

// New builds a Publisher using http.DefaultClient.
func New(cfg Config, log *rlog.Logger) *Publisher {
	return &Publisher{Config: cfg, Client: http.DefaultClient, log: log}
}

// body renders rec per the configured Format.
func (p *Publisher) body(name string, rec *sensors.Record, now time.Time) []byte {
	if p.Config.Format == FormatInfluxLine {
		return []byte(influxLine(p.Config.Measurement, name, rec, now))
	}
	return []byte(jsonPayload(name, rec, p.Config.Celsius, p.Config.UTC))
}

// Publish sends one sensor's current state, retrying the request
// itself (not the decode or registry state) on failure.
func (p *Publisher) Publish(name string, rec *sensors.Record, now time.Time) error {
	payload := p.body(name, rec, now)
	op := func() error {
		req, err := http.NewRequest(string(p.Config.Method), p.Config.URL, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		if p.Config.Format == FormatInfluxLine {
			req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		} else {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := p.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("rest publish: server error %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("rest publish: client error %d", resp.StatusCode))
		}
		return nil
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     100 * time.Millisecond,
		RandomizationFactor: 0.2,
		Multiplier:          2,
		MaxInterval:         2 * time.Second,
		MaxElapsedTime:      10 * time.Second,
		Clock:               backoff.SystemClock,
	})
	if err != nil {
		p.log.Error("failed to publish %s to %s: %v", name, p.Config.URL, err)
		return err
	}
	return nil
}

// jsonPayload renders the bit-exact object spec.md §6 defines.
func jsonPayload(name string, rec *sensors.Record, celsius, utc bool) string {
	d := rec.Decoder
	r := rec.Reading
	temp := d.TemperatureFx10(r)
	if celsius {
		temp = d.TemperatureCx10(r)
	}
	var humidity string
	if d.HasHumidity() {
		humidity = strconv.Itoa(d.Humidity(r))
	} else {
		humidity = "null"
	}
	return fmt.Sprintf(
		`{"time":"%s","type":"%s","channel":"%s","rolling_code":%d,"name":%s,"temperature":%d,"humidity":%s,"battery_ok":%t}`,
		formatTime(rec.LastUpdatedAt, utc), d.Name(), d.ChannelName(r), d.RollingCode(r),
		quote(name), temp, humidity, d.BatteryOK(r),
	)
}

// influxLine renders spec.md §6's literal line-protocol form:
// <measurement>,name=<escaped> temperature=<v>,humidity=<v>,battery_ok=<t|f> <unix_ns>
func influxLine(measurement, name string, rec *sensors.Record, now time.Time) string {
	d := rec.Decoder
	r := rec.Reading
	var humidity string
	if d.HasHumidity() {
		humidity = strconv.Itoa(d.Humidity(r))
	} else {
		humidity = "0"
	}
	battery := "f"
	if d.BatteryOK(r) {
		battery = "t"
	}
	return fmt.Sprintf("%s,name=%s temperature=%d,humidity=%s,battery_ok=%s %d",
		measurement, escapeInflux(name), d.TemperatureCx10(r), humidity, battery, now.UnixNano())
}

// escapeInflux escapes the characters line protocol reserves in a tag
// value: comma, space, and equals sign.
func escapeInflux(s string) string {
	r := strings.NewReplacer(",", `\,`, " ", `\ `, "=", `\=`)
	return r.Replace(s)
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func formatTime(t time.Time, utc bool) string {
	if utc {
		return t.UTC().Format("2006-01-02T15:04:05Z")
	}
	return t.Format("2006-01-02T15:04:05")
}

// Names resolves a sensor identity to its configured display name,
// mirroring queryapi.Names so both transports share one config-side
// implementation.
type Names interface {
	Name(identity sensors.Identity) (name string, ok bool)
}

// Sink is a rules.Sink that republishes a named sensor's full current
// state whenever a rule fires, so a REST/InfluxDB endpoint always
// reflects the reading that triggered the rule rather than just the
// rendered message text.
type Sink struct {
	Publisher *Publisher
	Registry  *sensors.Registry
	Names     Names
	Identity  sensors.Identity
}

var _ rules.Sink = (*Sink)(nil)

func (s *Sink) Dispatch(message string) error {
	rec, ok := s.Registry.Find(s.Identity)
	if !ok {
		return fmt.Errorf("rest sink: unknown sensor %d", s.Identity)
	}
	name, _ := s.Names.Name(s.Identity)
	return s.Publisher.Publish(name, rec, time.Now())
}

// Diagnostics is the local HTTP mux spec.md's "local HTTP query API"
// egress channel shares with queryapi, exposed here as a thin
// read-only snapshot endpoint for operators who only have REST/Influx
// configured and want a quick look at current state without wiring a
// full queryapi.API.
type Diagnostics struct {
	Registry *sensors.Registry
	Names    Names
}

// Mux builds a goji.Mux exposing GET /diagnostics/sensors, following
// BuildNetwork's pattern of a root mux with named submuxes rather than
// net/http's flat handler table.
func (d *Diagnostics) Mux() *goji.Mux {
	root := goji.NewMux()
	sub := goji.SubMux()
	sub.HandleFunc(pat.Get("/sensors"), d.handleSensors)
	root.Handle(pat.New("/diagnostics/*"), sub)
	return root
}

func (d *Diagnostics) handleSensors(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte("["))
	for i, id := range d.Registry.Snapshot() {
		rec, ok := d.Registry.Find(id)
		if !ok {
			continue
		}
		if i > 0 {
			w.Write([]byte(","))
		}
		name, _ := d.Names.Name(id)
		d := rec.Decoder
		fmt.Fprintf(w, `{"name":%s,"type":%s}`, quote(name), quote(d.Name()))
	}
	w.Write([]byte("]"))
}

// Package queryapi implements the embedded HTTP query server spec.md §6
// defines the contract for: full-state JSON, per-metric current values,
// and per-sensor history. Grounded on server/server.go's RouteTable
// idiom and generichttp/generichttp.go's encode-and-respond pattern,
// routed through github.com/go-chi/chi instead of net/http's own mux so
// path parameters (sensor name) are available without hand-parsing.
package queryapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"

	"github.com/akonshin-labs/rfgateway/internal/decode"
	"github.com/akonshin-labs/rfgateway/internal/history"
	"github.com/akonshin-labs/rfgateway/internal/sensors"
)

// Names resolves a sensor identity to its configured display name. A
// higher-level component (internal/config) implements this so queryapi
// never has to import it back.
type Names interface {
	Name(identity sensors.Identity) (name string, ok bool)
}

// API serves the routes spec.md §6 lists, backed by a sensor registry
// and a name table.
type API struct {
	Registry *sensors.Registry
	Names    Names
	Version  string
}

// New builds an API. version is returned verbatim by GET /version.
func New(registry *sensors.Registry, names Names, version string) *API {
	return &API{Registry: registry, Names: names, Version: version}
}

// Routes builds the chi.Router spec.md §6 describes.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", a.handleAll)
	r.Get("/sensors", a.handleSensors)
	r.Get("/version", a.handleVersion)
	r.Get("/temperature", a.handleMetricCurrent(decode.MetricTemperature))
	r.Get("/temperature/{name}", a.handleMetricHistory(decode.MetricTemperature))
	r.Get("/humidity", a.handleMetricCurrent(decode.MetricHumidity))
	r.Get("/humidity/{name}", a.handleMetricHistory(decode.MetricHumidity))
	return r
}

// sensorView is the bit-exact per-sensor JSON object spec.md §6 defines.
type sensorView struct {
	Time        string  `json:"time"`
	Type        string  `json:"type"`
	Channel     string  `json:"channel"`
	RollingCode uint16  `json:"rolling_code"`
	Name        string  `json:"name"`
	Temperature int     `json:"temperature"`
	Humidity    *int    `json:"humidity,omitempty"`
	BatteryOK   bool    `json:"battery_ok"`
	THistSize   *int    `json:"t_history_size,omitempty"`
	HHistSize   *int    `json:"h_history_size,omitempty"`
}

func (a *API) name(identity sensors.Identity) string {
	if a.Names == nil {
		return ""
	}
	name, _ := a.Names.Name(identity)
	return name
}

func (a *API) view(rec *sensors.Record, celsius, utc bool, brief bool) sensorView {
	d := rec.Decoder
	r := rec.Reading
	temp := d.TemperatureFx10(r)
	if celsius {
		temp = d.TemperatureCx10(r)
	}
	v := sensorView{
		Time:        formatTime(rec.LastUpdatedAt, utc),
		Type:        d.Name(),
		Channel:     d.ChannelName(r),
		RollingCode: d.RollingCode(r),
		Name:        a.name(rec.Identity),
		Temperature: temp,
		BatteryOK:   d.BatteryOK(r),
	}
	if d.HasHumidity() {
		h := d.Humidity(r)
		v.Humidity = &h
	}
	if brief {
		tn := len(rec.TemperatureHistory.Snapshot(time.Time{}, time.Time{}))
		hn := len(rec.HumidityHistory.Snapshot(time.Time{}, time.Time{}))
		v.THistSize = &tn
		v.HHistSize = &hn
	}
	return v
}

func formatTime(t time.Time, utc bool) string {
	if utc {
		return t.UTC().Format("2006-01-02T15:04:05Z")
	}
	return t.Format("2006-01-02T15:04:05")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	http.Error(w, message, status)
}

func (a *API) handleAll(w http.ResponseWriter, r *http.Request) {
	utc := r.URL.Query().Get("utc") == "1"
	out := make([]sensorView, 0)
	for _, id := range a.Registry.Snapshot() {
		rec, ok := a.Registry.Find(id)
		if !ok {
			continue
		}
		out = append(out, a.view(rec, false, utc, false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleSensors(w http.ResponseWriter, r *http.Request) {
	utc := r.URL.Query().Get("utc") == "1"
	out := make([]sensorView, 0)
	for _, id := range a.Registry.Snapshot() {
		rec, ok := a.Registry.Find(id)
		if !ok {
			continue
		}
		out = append(out, a.view(rec, false, utc, true))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(a.Version))
}

type scale struct {
	celsius bool
	tenths  bool
}

func parseScale(raw string) (scale, bool) {
	switch strings.ToUpper(raw) {
	case "", "F":
		return scale{celsius: false, tenths: false}, true
	case "C":
		return scale{celsius: true, tenths: false}, true
	case "F10":
		return scale{celsius: false, tenths: true}, true
	case "C10":
		return scale{celsius: true, tenths: true}, true
	default:
		return scale{}, false
	}
}

func scaleValue(d decode.Decoder, r *decode.SensorReading, s scale) int {
	v := d.TemperatureFx10(r)
	if s.celsius {
		v = d.TemperatureCx10(r)
	}
	if s.tenths {
		return v
	}
	return v / 10
}

func (a *API) handleMetricCurrent(metric decode.Metric) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		for key := range q {
			if key != "scale" && key != "utc" {
				writeError(w, http.StatusBadRequest, "unknown query parameter: "+key)
				return
			}
		}
		s, ok := parseScale(q.Get("scale"))
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown scale: "+q.Get("scale"))
			return
		}
		utc := q.Get("utc") == "1"

		out := make([]sensorView, 0)
		for _, id := range a.Registry.Snapshot() {
			rec, ok := a.Registry.Find(id)
			if !ok {
				continue
			}
			if metric == decode.MetricHumidity && !rec.Decoder.HasHumidity() {
				continue
			}
			v := a.view(rec, s.celsius, utc, false)
			if metric == decode.MetricTemperature {
				v.Temperature = scaleValue(rec.Decoder, rec.Reading, s)
			}
			out = append(out, v)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type historyPoint struct {
	T string `json:"t"`
	Y int32  `json:"y"`
}

func (a *API) handleMetricHistory(metric decode.Metric) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		q := r.URL.Query()
		for key := range q {
			if key != "scale" && key != "utc" {
				writeError(w, http.StatusBadRequest, "unknown query parameter: "+key)
				return
			}
		}
		utc := q.Get("utc") == "1"

		rec := a.findByName(name)
		if rec == nil {
			writeError(w, http.StatusNotFound, "unknown sensor: "+name)
			return
		}

		var h *history.History
		switch metric {
		case decode.MetricTemperature:
			h = rec.TemperatureHistory
		case decode.MetricHumidity:
			if !rec.Decoder.HasHumidity() {
				writeError(w, http.StatusNotFound, "sensor does not report humidity")
				return
			}
			h = rec.HumidityHistory
		default:
			writeError(w, http.StatusNotFound, "unsupported metric")
			return
		}

		samples := h.Snapshot(time.Time{}, time.Time{})
		out := make([]historyPoint, 0, len(samples))
		for _, s := range samples {
			out = append(out, historyPoint{T: formatTime(s.Time, utc), Y: s.Value})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (a *API) findByName(name string) *sensors.Record {
	for _, id := range a.Registry.Snapshot() {
		rec, ok := a.Registry.Find(id)
		if !ok {
			continue
		}
		if a.name(rec.Identity) == name {
			return rec
		}
	}
	return nil
}

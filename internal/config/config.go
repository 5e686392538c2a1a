// Package config loads the gateway's sensor/rule definitions and
// transport settings (spec.md's "configuration file parsing" external
// collaborator): the grammar on disk is YAML, loaded the way
// cmd/andorhttp2/main.go's setupconfig loads andor-http.yml — a
// structs.Provider default layer overridden by a file.Provider+yaml.Parser
// layer, tolerant of a missing file. The resulting Config still carries
// RuleLock references as plain id-strings; Build wires them through
// rules.Resolve once every SensorDef and Rule is built.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/pkg/errors"

	"github.com/akonshin-labs/rfgateway/internal/decode"
	"github.com/akonshin-labs/rfgateway/internal/rules"
	"github.com/akonshin-labs/rfgateway/internal/sensors"
)

// SensorDef is the user-declared (identity, display-name) binding
// spec.md §3 describes, plus the protocol/channel/rolling-code triplet
// needed to recompute the identity a Decoder would derive from a live
// reading.
type SensorDef struct {
	Name        string `yaml:"name"`
	Protocol    string `yaml:"protocol"`
	Channel     int    `yaml:"channel"`
	RollingCode int    `yaml:"rollingCode"`
}

// BoundDef is one {lo, hi} pair, either side of which may be omitted to
// mean "open" (spec.md's NO_BOUND).
type BoundDef struct {
	Lo *int `yaml:"lo"`
	Hi *int `yaml:"hi"`
}

func (b BoundDef) bounds() rules.Bounds {
	out := rules.Unbounded
	if b.Lo != nil {
		out.Lo = *b.Lo
	}
	if b.Hi != nil {
		out.Hi = *b.Hi
	}
	return out
}

// ScheduleEntryDef is one (time-of-day, bound) row of a cyclic schedule.
type ScheduleEntryDef struct {
	Time  string `yaml:"time"` // "HH:MM"
	Bound BoundDef `yaml:"bound"`
}

func (e ScheduleEntryDef) offsetMinutes() (int, error) {
	parts := strings.SplitN(e.Time, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("config: bad schedule time %q, want HH:MM", e.Time)
	}
	var h, m int
	if _, err := fmt.Sscanf(parts[0], "%d", &h); err != nil {
		return 0, fmt.Errorf("config: bad schedule time %q: %w", e.Time, err)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &m); err != nil {
		return 0, fmt.Errorf("config: bad schedule time %q: %w", e.Time, err)
	}
	return h*60 + m, nil
}

// LockDef is one RuleLock reference by rule id, still unresolved.
type LockDef struct {
	RuleID string `yaml:"ruleId"`
	Lock   bool   `yaml:"lock"`
}

// OutcomeDef groups what a rule does when it evaluates to one outcome:
// the message to render and the locks to apply.
type OutcomeDef struct {
	Message string    `yaml:"message"`
	Locks   []LockDef `yaml:"locks"`
}

// RuleDef is the YAML-tagged intermediate form of a rules.Rule: a
// sensor name instead of a live binding, and plain id-strings for
// cross-rule locks (spec.md §9's two-pass load).
type RuleDef struct {
	ID       string             `yaml:"id"`
	Sensor   string             `yaml:"sensor"`
	Metric   string             `yaml:"metric"` // temperature|humidity|battery
	Celsius  bool               `yaml:"celsius"`
	Bound    *BoundDef          `yaml:"bound"`
	Schedule []ScheduleEntryDef `yaml:"schedule"`
	Lower    OutcomeDef         `yaml:"lower"`
	Inside   OutcomeDef         `yaml:"inside"`
	Higher   OutcomeDef         `yaml:"higher"`
	Sink     SinkDef            `yaml:"sink"`
}

// SinkDef names which action a rule dispatches to; the sink
// implementations themselves (internal/transport/*) are wired by the
// caller, since they carry live connections config has no business
// owning.
type SinkDef struct {
	Kind  string `yaml:"kind"` // mqtt|exec|rest|stdout
	Topic string `yaml:"topic"`
}

// MQTTConfig configures the optional MQTT publish sink.
type MQTTConfig struct {
	Enabled   bool          `yaml:"enabled"`
	ClientID  string        `yaml:"clientId"`
	Host      string        `yaml:"host"`
	Port      uint16        `yaml:"port"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	Keepalive time.Duration `yaml:"keepalive"`
}

// RESTConfig configures the optional REST/InfluxDB publish sink.
type RESTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"`
	Method      string `yaml:"method"` // PUT|POST
	Format      string `yaml:"format"` // json|influx
	Measurement string `yaml:"measurement"`
	Celsius     bool   `yaml:"celsius"`
	UTC         bool   `yaml:"utc"`
}

// PollConfig configures the optional 1-wire DS18B20 poll source.
type PollConfig struct {
	Enabled     bool          `yaml:"enabled"`
	DevicesPath string        `yaml:"devicesPath"`
	Interval    time.Duration `yaml:"interval"`
}

// QueryAPIConfig configures the embedded HTTP query server.
type QueryAPIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// CaptureConfig selects and configures the edge source (component B).
type CaptureConfig struct {
	Kind       string `yaml:"kind"` // kernel|serial|replay
	Device     string `yaml:"device"`
	ReplayFile string `yaml:"replayFile"`
	BaudRate   int    `yaml:"baudRate"`
}

// Config is the top-level structure koanf unmarshals into: sensor
// definitions, rules, and transport settings, all config parsing being
// out of scope per spec.md but this parsed shape being the in-scope
// contract the core consumes.
type Config struct {
	GPIOPin         int             `yaml:"gpioPin"`
	ActiveProtocols []string        `yaml:"activeProtocols"`
	HistoryHours    int             `yaml:"historyHours"`
	Capture         CaptureConfig   `yaml:"capture"`
	Poll            PollConfig      `yaml:"poll"`
	MQTT            MQTTConfig      `yaml:"mqtt"`
	REST            RESTConfig      `yaml:"rest"`
	QueryAPI        QueryAPIConfig  `yaml:"queryApi"`
	Sensors         []SensorDef     `yaml:"sensors"`
	Rules           []RuleDef       `yaml:"rules"`
}

// Defaults returns the zero-config starting point, mirroring
// andorhttp2's setupconfig defaults.
func Defaults() Config {
	return Config{
		GPIOPin:      17,
		HistoryHours: 24,
		Poll: PollConfig{
			DevicesPath: "/sys/bus/w1/devices",
			Interval:    15 * time.Second,
		},
		Capture:  CaptureConfig{Kind: "kernel", Device: "/dev/gpiots0", BaudRate: 115200},
		QueryAPI: QueryAPIConfig{Addr: ":8080"},
		MQTT:     MQTTConfig{Port: 1883, Keepalive: 30 * time.Second},
		REST:     RESTConfig{Method: "PUT", Format: "json"},
	}
}

// Load reads path into a Config seeded with Defaults, the same
// structs.Provider-then-file.Provider layering andorhttp2 uses,
// tolerating a missing file rather than failing startup.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return Config{}, errors.Wrap(err, "config: loading defaults")
	}
	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		if !strings.Contains(err.Error(), "no such file") {
			return Config{}, errors.Wrapf(err, "config: loading %s", path)
		}
	}
	cfg := Config{}
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: unmarshaling")
	}
	return cfg, nil
}

// Names implements queryapi.Names and rest.Names over the loaded
// SensorDefs, resolved to identities once decoders are known.
type Names struct {
	byIdentity map[sensors.Identity]string
}

func (n Names) Name(identity sensors.Identity) (string, bool) {
	name, ok := n.byIdentity[identity]
	return name, ok
}

// Build resolves every SensorDef's (protocol, channel, rollingCode)
// triplet into a live identity via the matching Decoder, then compiles
// every RuleDef into a rules.Rule bound to that identity's sensor name,
// resolving cross-rule lock references in a second pass (spec.md §9).
// sinks supplies the live Sink for a SinkDef's kind; what stdout and an
// unrecognized kind dispatch to is decided by sinks, not by Build.
func Build(cfg Config, decoders []decode.Decoder, sinks func(SinkDef, sensors.Identity) rules.Sink) (Names, map[sensors.Identity]rules.Chain, error) {
	byProtocol := make(map[string]decode.Decoder, len(decoders))
	for _, d := range decoders {
		byProtocol[strings.ToUpper(d.Name())] = d
	}

	names := Names{byIdentity: make(map[sensors.Identity]string, len(cfg.Sensors))}
	identityByName := make(map[string]sensors.Identity, len(cfg.Sensors))
	for _, s := range cfg.Sensors {
		d, ok := byProtocol[strings.ToUpper(s.Protocol)]
		if !ok {
			return Names{}, nil, fmt.Errorf("config: sensor %q references unknown protocol %q", s.Name, s.Protocol)
		}
		identity := d.IdentityFromConfig(s.Channel, uint16(s.RollingCode))
		names.byIdentity[identity] = s.Name
		identityByName[s.Name] = identity
	}

	builtByID := make(map[string]*rules.Rule, len(cfg.Rules))
	chains := make(map[sensors.Identity]rules.Chain)
	var pending []rules.UnresolvedLock
	var built []*rules.Rule

	for _, rd := range cfg.Rules {
		identity, ok := identityByName[rd.Sensor]
		if !ok {
			return Names{}, nil, fmt.Errorf("config: rule %q references unknown sensor %q", rd.ID, rd.Sensor)
		}
		metric, err := parseMetric(rd.Metric)
		if err != nil {
			return Names{}, nil, fmt.Errorf("config: rule %q: %w", rd.ID, err)
		}
		schedule, err := buildSchedule(rd)
		if err != nil {
			return Names{}, nil, fmt.Errorf("config: rule %q: %w", rd.ID, err)
		}

		r := rules.NewRule(rd.ID, metric, rd.Celsius, schedule, sinks(rd.Sink, identity))
		for outcome, od := range map[rules.Outcome]OutcomeDef{
			rules.Lower:  rd.Lower,
			rules.Inside: rd.Inside,
			rules.Higher: rd.Higher,
		} {
			if od.Message != "" {
				tmpl, err := rules.CompileTemplate(od.Message)
				if err != nil {
					return Names{}, nil, fmt.Errorf("config: rule %q: %w", rd.ID, err)
				}
				r.SetMessage(outcome, tmpl)
			}
			for _, l := range od.Locks {
				pending = append(pending, rules.UnresolvedLock{Owner: r, Outcome: outcome, TargetID: l.RuleID, Lock: l.Lock})
			}
		}

		if _, dup := builtByID[rd.ID]; dup {
			return Names{}, nil, fmt.Errorf("config: duplicate rule id %q", rd.ID)
		}
		builtByID[rd.ID] = r
		built = append(built, r)
		chains[identity] = append(chains[identity], r)
	}

	if err := rules.Resolve(built, pending); err != nil {
		return Names{}, nil, err
	}
	return names, chains, nil
}

func parseMetric(s string) (decode.Metric, error) {
	switch strings.ToLower(s) {
	case "temperature":
		return decode.MetricTemperature, nil
	case "humidity":
		return decode.MetricHumidity, nil
	case "battery":
		return decode.MetricBatteryStatus, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

func buildSchedule(rd RuleDef) (rules.Schedule, error) {
	if len(rd.Schedule) == 0 {
		bound := rules.Unbounded
		if rd.Bound != nil {
			bound = rd.Bound.bounds()
		}
		return rules.Fixed{Bounds: bound}, nil
	}
	items := make([]rules.ScheduleItem, 0, len(rd.Schedule))
	for _, e := range rd.Schedule {
		offset, err := e.offsetMinutes()
		if err != nil {
			return nil, err
		}
		items = append(items, rules.ScheduleItem{OffsetMinutes: offset, Bounds: e.Bound.bounds()})
	}
	return rules.NewCyclic(items), nil
}

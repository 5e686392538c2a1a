// Package rules implements the rule engine (component H): threshold and
// time-scheduled bound checks against decoded readings, parameterized
// message formatting, and cross-rule lock/unlock semantics. Grounded on
// original_source/common/SensorsData.hpp's AbstractRuleWithSchedule and
// its lock/self-lock bookkeeping.
package rules

import (
	"time"

	"github.com/akonshin-labs/rfgateway/internal/decode"
)

// Sink delivers a formatted rule message to its configured action: an
// MQTT publish or a subprocess invocation (internal/transport).
type Sink interface {
	Dispatch(message string) error
}

// RuleLock references another rule to lock or unlock when the owning
// rule fires with a matching outcome (spec.md §3 RuleLock).
type RuleLock struct {
	Target *Rule
	Lock   bool
}

// Rule is one threshold/schedule check bound to a sensor's metric
// (spec.md §3's AbstractRuleWithSchedule, MqttRule/ActionRule collapsed
// into one struct with an injected Sink rather than a subclass per
// action kind).
type Rule struct {
	ID       string
	Metric   decode.Metric
	Celsius  bool // which temperature scale the bound/value are expressed in
	Schedule Schedule
	Sink     Sink

	// index by Outcome: Lower=0, Inside=1, Higher=2
	templates [3]*MessageTemplate
	locks     [3][]RuleLock

	isLocked  bool
	selfLocks uint8
}

// NewRule builds a Rule evaluated against metric, scaled per celsius.
func NewRule(id string, metric decode.Metric, celsius bool, schedule Schedule, sink Sink) *Rule {
	return &Rule{ID: id, Metric: metric, Celsius: celsius, Schedule: schedule, Sink: sink}
}

// SetMessage installs the template fired when this rule evaluates to
// outcome.
func (r *Rule) SetMessage(outcome Outcome, tmpl *MessageTemplate) {
	if idx := int(outcome); idx >= 0 && idx < 3 {
		r.templates[idx] = tmpl
	}
}

// AddLock appends lock to the set applied when this rule fires with
// outcome.
func (r *Rule) AddLock(outcome Outcome, lock RuleLock) {
	if idx := int(outcome); idx >= 0 && idx < 3 {
		r.locks[idx] = append(r.locks[idx], lock)
	}
}

// Locked reports whether the rule is currently locked by a prior firing
// of another rule (or of itself).
func (r *Rule) Locked() bool { return r.isLocked }

// SetLocked sets the lock flag directly, the same flag a firing rule's
// applyLocks sets on each of its lock targets.
func (r *Rule) SetLocked(locked bool) { r.isLocked = locked }

func (r *Rule) isSelfLocked(outcome Outcome) bool {
	idx := int(outcome)
	return idx >= 0 && idx < 3 && r.selfLocks&(1<<uint(idx)) != 0
}

func (r *Rule) applyLocks(outcome Outcome) {
	idx := int(outcome)
	if idx < 0 || idx >= 3 {
		return
	}
	r.selfLocks = 1 << uint(idx)
	for _, lock := range r.locks[idx] {
		lock.Target.isLocked = lock.Lock
	}
}

func (r *Rule) message(outcome Outcome) *MessageTemplate {
	if idx := int(outcome); idx >= 0 && idx < 3 {
		return r.templates[idx]
	}
	return nil
}

// Input is everything Evaluate needs about the reading that triggered
// this pass, gathered once per sensors.Registry.Update call and shared
// across every rule in the sensor's chain.
type Input struct {
	SensorName string
	Decoder    decode.Decoder
	Reading    *decode.SensorReading
	Changed    decode.ChangeSet
}

func (in Input) value(celsius bool) int {
	if celsius {
		return in.Decoder.TemperatureCx10(in.Reading)
	}
	return in.Decoder.TemperatureFx10(in.Reading)
}

func (in Input) renderContext(ruleID string) RenderContext {
	return RenderContext{
		SensorName:      in.SensorName,
		RuleID:          ruleID,
		TemperatureFx10: in.Decoder.TemperatureFx10(in.Reading),
		TemperatureCx10: in.Decoder.TemperatureCx10(in.Reading),
		Humidity:        in.Decoder.Humidity(in.Reading),
		BatteryOK:       in.Decoder.BatteryOK(in.Reading),
	}
}

// Evaluate runs the six-step check spec.md §4.H describes and, on a
// live outcome with a configured Sink, dispatches the rendered message.
// now is used only to derive the day-minute for a Cyclic schedule; a
// caller not using one may pass any value.
func (r *Rule) Evaluate(in Input, now time.Time) Outcome {
	if r.isLocked {
		return Locked
	}

	features := in.Decoder.Metrics(in.Reading)
	if features&r.Metric == 0 || !in.Changed.Has(r.Metric) {
		return NotApplicable
	}

	var value int
	switch r.Metric {
	case decode.MetricHumidity:
		value = in.Decoder.Humidity(in.Reading)
	case decode.MetricBatteryStatus:
		if in.Decoder.BatteryOK(in.Reading) {
			value = 1
		}
	default:
		value = in.value(r.Celsius)
	}

	dayMinute := now.Hour()*60 + now.Minute()
	outcome := r.Schedule.Check(value, dayMinute)

	if r.isSelfLocked(outcome) {
		return Locked
	}

	if tmpl := r.message(outcome); tmpl != nil && r.Sink != nil {
		r.Sink.Dispatch(tmpl.Render(in.renderContext(r.ID)))
	}

	r.applyLocks(outcome)
	return outcome
}

// Chain is an ordered list of rules bound to one sensor, fired in
// insertion order (spec.md §4.H's ordering guarantee: a lock applied by
// an earlier rule is visible to a later rule in the same pass, since
// they share the same *Rule pointers).
type Chain []*Rule

// EvaluateAll runs every rule in the chain against in and returns each
// rule's outcome in the same order.
func (c Chain) EvaluateAll(in Input, now time.Time) []Outcome {
	out := make([]Outcome, len(c))
	for i, r := range c {
		out[i] = r.Evaluate(in, now)
	}
	return out
}

// Package decode holds the protocol registry (component D) and the nine
// protocol decoders (component E) that turn a candidate pulse Sequence
// into a SensorReading.
package decode

import "time"

// Feature is a bitset describing what a protocol can report.
type Feature uint32

const (
	FeatureRF Feature = 1 << iota
	FeatureChannel
	FeatureRollingCode
	FeatureTemperature
	FeatureTemperatureCelsius
	FeatureHumidity
	FeatureBatteryStatus
	FeatureID32
)

// Metric identifies one reportable quantity for change-tracking and rule
// evaluation.
type Metric uint32

const (
	MetricTemperature Metric = 1 << iota
	MetricHumidity
	MetricBatteryStatus
)

// ChangeSet is returned by Decoder.Update; it is the union of the changed
// Metric bits, optionally combined with NewUID or TimeNotChanged.
type ChangeSet uint32

const (
	NewUID         ChangeSet = 8
	TimeNotChanged ChangeSet = 16
)

// Has reports whether m's bit is set in the change set.
func (c ChangeSet) Has(m Metric) bool { return c&ChangeSet(m) != 0 }

// DecodingStatus is the composite failure code from spec: a category
// nibble optionally combined with the decoded-bit position that failed.
type DecodingStatus uint16

const (
	StatusOK               DecodingStatus = 0
	StatusTooShort         DecodingStatus = 0x08
	StatusNoPreamble       DecodingStatus = 0x10
	StatusBitViolation     DecodingStatus = 0x20
	StatusMissingChecksum  DecodingStatus = 0x40
	StatusBadChecksum      DecodingStatus = 0x80
	StatusNonRecoverable   DecodingStatus = 0x3F
)

// WithPosition folds a sequence index into the high byte of a status, so
// the position of the earliest disagreement is preserved for diagnostics.
func (s DecodingStatus) WithPosition(index int) DecodingStatus {
	return s | DecodingStatus(index&0xff)<<8
}

// RawWord is the opaque per-protocol payload carried on a SensorReading,
// standing in for the source's single reinterpreted 64-bit union: Lo and
// Hi are addressed independently because some protocols (TX7U) merge one
// half while overwriting the other wholesale.
type RawWord struct {
	Lo uint32
	Hi uint32
}

// Full returns the 64-bit combination, Hi in the upper word.
func (w RawWord) Full() uint64 { return uint64(w.Hi)<<32 | uint64(w.Lo) }

// SensorReading is the output of a successful decode (spec §3).
type SensorReading struct {
	ProtocolIndex  int
	Raw            RawWord
	DecodedBits    uint16
	DecodingStatus DecodingStatus
	ObservedAt     time.Time
}

// Pulse is a single (level, duration) observation (component A/B/C).
type Pulse struct {
	High       bool
	DurationUs uint32
}

// Sequence is a candidate run of alternating pulses handed from the
// assembler to the registry for decoding. Durations[0] is always the
// duration of the pulse at the level StartHigh describes; levels
// alternate thereafter.
type Sequence struct {
	Durations        []int16
	StartHigh        bool
	StartMonotonicUs uint32
}

// Limits bounds what the assembler will accept into a sequence; folding
// every active decoder's AdjustLimits over the defaults widens them to
// the union of the per-protocol bounds.
type Limits struct {
	MinDurationUs     uint32
	MaxDurationUs     uint32
	MinSequenceLength int
}

// DefaultLimits are the assembler defaults used when no protocol
// narrows them (spec.md §4.C, literal values).
func DefaultLimits() Limits {
	return Limits{MinDurationUs: 50, MaxDurationUs: 10000, MinSequenceLength: 85}
}

// Decoder is the object-safe replacement for the source's polymorphic
// Protocol hierarchy (spec.md §9): one implementation per sensor family,
// stored in a fixed slice and selected by bitmask, never downcast.
type Decoder interface {
	Name() string
	ProtocolIndex() int
	ProtocolBit() uint32
	Features() Feature

	// AdjustLimits widens cur in place so that it also admits this
	// protocol's own pulse bounds: a lower minimum duration, a higher
	// maximum duration, a shorter minimum sequence length.
	AdjustLimits(cur *Limits)

	// Decode attempts to parse seq. On success it returns a populated
	// SensorReading and StatusOK. On failure it still returns as much of
	// the reading as was decoded (DecodedBits, DecodingStatus) so the
	// registry can retain the highest-confidence failure for diagnostics.
	Decode(seq *Sequence) (*SensorReading, bool)

	Identity(r *SensorReading) uint64
	IdentityFromConfig(channel int, rollingCode uint16) uint64

	Metrics(r *SensorReading) Metric
	ChannelNumber(r *SensorReading) int
	ChannelName(r *SensorReading) string
	RollingCode(r *SensorReading) uint16
	HasBatteryStatus() bool
	BatteryOK(r *SensorReading) bool
	HasHumidity() bool
	Humidity(r *SensorReading) int
	TemperatureCx10(r *SensorReading) int
	TemperatureFx10(r *SensorReading) int

	Equals(a, b *SensorReading) bool
	// Update merges new into stored in place (when changed) and returns
	// the change set, exactly mirroring the per-protocol update() methods
	// in the source so split-frame merges (TX7U) stay protocol-local.
	Update(newR, stored *SensorReading, now time.Time, maxUnchangedGap time.Duration) ChangeSet
}

func isGood(actual, expected, tolerance int) bool {
	delta := actual - expected
	if delta < 0 {
		delta = -delta
	}
	return delta <= tolerance
}

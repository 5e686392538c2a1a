package decode

import (
	"time"

	"github.com/akonshin-labs/rfgateway/internal/bits"
)

const (
	nexusProtocolBit   = 1 << 5
	nexusProtocolIndex = 5
	nexusDurationLo0   = 900
	nexusDurationLo1   = 1850
	nexusToleranceLo   = 150
	nexusDurationHi    = 525
	nexusToleranceHi   = 125
	nexusMinSequence   = 72
	nexusSyncDuration  = 4000
	nexusSyncTolerance = 150
)

// Nexus decodes Nexus / FreeTec NC-7345 / NX-3980 / Solight TE82S / TFA
// 30.3209 frames: repeated ~4ms-gap-delimited 36-bit PPM packages, a
// constant-nibble sanity check, and a majority vote requiring the same
// 36-bit value to appear at least three times. Grounded on
// original_source/protocols/Nexus.cpp.
type Nexus struct{}

var _ Decoder = Nexus{}

func (Nexus) Name() string        { return "NEXUS" }
func (Nexus) ProtocolIndex() int  { return nexusProtocolIndex }
func (Nexus) ProtocolBit() uint32 { return nexusProtocolBit }
func (Nexus) Features() Feature {
	return FeatureRF | FeatureChannel | FeatureRollingCode | FeatureTemperature | FeatureTemperatureCelsius | FeatureHumidity | FeatureBatteryStatus
}

func (Nexus) AdjustLimits(cur *Limits) {
	minHi := nexusDurationHi - nexusToleranceHi
	maxLo := nexusDurationLo1 + nexusToleranceLo
	if cur.MinDurationUs == 0 || cur.MinDurationUs > minHi {
		cur.MinDurationUs = minHi
	}
	if cur.MaxDurationUs == 0 || cur.MaxDurationUs < maxLo {
		cur.MaxDurationUs = maxLo
	}
	if cur.MinSequenceLength == 0 || cur.MinSequenceLength > nexusMinSequence {
		cur.MinSequenceLength = nexusMinSequence
	}
}

// findGap returns the first index at or after startIndex (and before
// endIndex) whose duration matches target within tolerance.
func findGap(seq *Sequence, startIndex, endIndex, target, tolerance int) int {
	dur := seq.Durations
	for i := startIndex; i < endIndex; i++ {
		if isGood(int(dur[i]), target, tolerance) {
			return i
		}
	}
	return endIndex - 1
}

func (Nexus) Decode(seq *Sequence) (*SensorReading, bool) {
	n := len(seq.Durations)
	reading := &SensorReading{ProtocolIndex: nexusProtocolIndex}
	if n < nexusMinSequence*3-1 {
		reading.DecodingStatus = StatusTooShort
		return reading, false
	}

	var packages []uint64
	v := bits.NewVector(150)
	startIndex := 0
	for startIndex+nexusMinSequence <= n {
		gapIndex := findGap(seq, startIndex, n, nexusSyncDuration, nexusSyncTolerance)
		if gapIndex >= startIndex+nexusMinSequence {
			v.Clear()
			if decodePPM(seq, startIndex, nexusMinSequence, nexusDurationHi, nexusToleranceHi,
				nexusDurationLo0, nexusDurationLo1, nexusToleranceLo, v) {
				word := v.Int(0, 36)
				if word&0x0f00 == 0x0f00 {
					channel := uint8(word>>24) & 7
					if channel <= 3 {
						packages = append(packages, word)
					}
				}
			}
		}
		startIndex = gapIndex + 1
	}

	if len(packages) < 3 {
		reading.DecodingStatus = StatusTooShort
		return reading, false
	}

	var data uint64
	counts := make(map[uint64]int, len(packages))
	for _, p := range packages {
		counts[p]++
		if counts[p] >= 3 {
			data = p
			break
		}
	}
	if data == 0 {
		reading.DecodingStatus = StatusBadChecksum
		return reading, false
	}

	reading.Raw.Lo = uint32(data)
	reading.Raw.Hi = uint32(data >> 32)
	reading.DecodedBits = 36
	reading.DecodingStatus = StatusOK
	return reading, true
}

func (Nexus) full(r *SensorReading) uint64 { return uint64(r.Raw.Hi)<<32 | uint64(r.Raw.Lo) }

func (d Nexus) Identity(r *SensorReading) uint64 {
	return uint64(nexusProtocolIndex)<<48 | (d.full(r) & 0x0ff7000000)
}

func (Nexus) IdentityFromConfig(channel int, rollingCode uint16) uint64 {
	return uint64(nexusProtocolIndex)<<48 | uint64(channel)<<24 | uint64(rollingCode)<<28
}

func (Nexus) Metrics(*SensorReading) Metric {
	return MetricTemperature | MetricHumidity | MetricBatteryStatus
}

func (Nexus) ChannelNumber(r *SensorReading) int { return int(r.Raw.Lo>>24) & 7 }
func (Nexus) ChannelName(r *SensorReading) string {
	return channelNumericName(int(r.Raw.Lo>>24) & 7)
}
func (d Nexus) RollingCode(r *SensorReading) uint16 { return uint16(d.full(r) >> 28) }
func (Nexus) HasBatteryStatus() bool                { return true }
func (Nexus) BatteryOK(r *SensorReading) bool       { return r.Raw.Lo&0x08000000 == 0x08000000 }
func (Nexus) HasHumidity() bool                     { return true }
func (Nexus) Humidity(r *SensorReading) int         { return int(r.Raw.Lo & 255) }

func (Nexus) TemperatureCx10(r *SensorReading) int {
	t := int32(r.Raw.Lo>>12) & 0x0fff
	if t&0x0800 != 0 {
		t |= ^int32(0xfff)
	}
	return int(t)
}

func (d Nexus) TemperatureFx10(r *SensorReading) int {
	t := int64(d.TemperatureCx10(r))
	return int((t*90 + 25) / 50 + 320)
}

func (d Nexus) Equals(a, b *SensorReading) bool {
	return a.ProtocolIndex == b.ProtocolIndex && (d.full(a)^d.full(b))&0x0ff7000000 == 0
}

func (Nexus) Update(newR, stored *SensorReading, now time.Time, maxUnchangedGap time.Duration) ChangeSet {
	gap := now.Sub(stored.ObservedAt)
	if gap < 2*time.Second {
		return TimeNotChanged
	}
	var result ChangeSet
	if maxUnchangedGap > 0 && gap > maxUnchangedGap {
		result = ChangeSet(MetricTemperature | MetricHumidity)
	} else {
		if stored.Raw.Lo == newR.Raw.Lo {
			return 0
		}
		if (stored.Raw.Lo^newR.Raw.Lo)&0x00fff000 != 0 {
			result |= ChangeSet(MetricTemperature)
		}
		if (stored.Raw.Lo^newR.Raw.Lo)&0x000000ff != 0 {
			result |= ChangeSet(MetricHumidity)
		}
	}
	if (stored.Raw.Lo^newR.Raw.Lo)&0x08000000 != 0 {
		result |= ChangeSet(MetricBatteryStatus)
	}
	if result != 0 {
		stored.Raw = newR.Raw
		stored.ObservedAt = now
	}
	return result
}

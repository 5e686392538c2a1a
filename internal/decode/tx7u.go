package decode

import (
	"time"

	"github.com/akonshin-labs/rfgateway/internal/bits"
)

const (
	tx7uProtocolBit   = 1 << 6
	tx7uProtocolIndex = 6
	tx7uMinDuration   = 400
	tx7uMaxDuration   = 1500

	tx7uLowMin = 800
	tx7uLowMax = 1200
	tx7u0Min   = 1100
	tx7u0Max   = 1500
	tx7u1Min   = 400
	tx7u1Max   = 650
)

// TX7U decodes LaCrosse TX3/TX6/TX7 frames: an 8-bit "00001010" sync
// pattern expressed as the same 0/1 PWM-ish encoding as the data bits
// that follow it, 44 bits total, a checksum nibble, a parity nibble
// checked against a forbidden-value bitmask, and a pair of duplicated
// mid-frame nibbles that must agree. Grounded on
// original_source/protocols/LaCrosseTX7.cpp.
//
// TX7U splits temperature and humidity across separate transmissions
// (distinguished by a 4-bit type nibble, 0 = temperature, 14 =
// humidity); Update merges whichever arrives into Raw.Hi's packed
// fields instead of overwriting the whole reading.
type TX7U struct{}

var _ Decoder = TX7U{}

func (TX7U) Name() string        { return "TX7U" }
func (TX7U) ProtocolIndex() int  { return tx7uProtocolIndex }
func (TX7U) ProtocolBit() uint32 { return tx7uProtocolBit }
func (TX7U) Features() Feature {
	return FeatureRF | FeatureRollingCode | FeatureTemperature | FeatureTemperatureCelsius | FeatureHumidity
}

func (TX7U) AdjustLimits(cur *Limits) {
	if cur.MinDurationUs == 0 || cur.MinDurationUs > tx7uMinDuration {
		cur.MinDurationUs = tx7uMinDuration
	}
	if cur.MaxDurationUs == 0 || cur.MaxDurationUs < tx7uMaxDuration {
		cur.MaxDurationUs = tx7uMaxDuration
	}
}

func tx7uCheckBit(expected bool, dur []int16, index int) (int, bool) {
	item := int(dur[index])
	if expected {
		if item <= tx7u1Min || item >= tx7u1Max {
			return index, false
		}
	} else {
		if item <= tx7u0Min || item >= tx7u0Max {
			return index, false
		}
	}
	index++
	item = int(dur[index])
	if item <= tx7uLowMin || item >= tx7uLowMax {
		return index, false
	}
	return index, true
}

func (TX7U) Decode(seq *Sequence) (*SensorReading, bool) {
	dur := seq.Durations
	n := len(dur)
	reading := &SensorReading{ProtocolIndex: tx7uProtocolIndex}
	if n < 87 || n > 240 {
		reading.DecodingStatus = StatusTooShort
		return reading, false
	}

	dataStart := -1
	pattern := []bool{false, false, false, false, true, false, true, false}
	for index := 0; index < n-86; index++ {
		fail := index
		ok := true
		for _, bit := range pattern {
			var good bool
			fail, good = tx7uCheckBit(bit, dur, fail)
			if !good {
				ok = false
				break
			}
			fail++
		}
		if ok {
			dataStart = index
			break
		}
	}
	if dataStart < 0 {
		reading.DecodingStatus = StatusNoPreamble
		return reading, false
	}

	v := bits.NewVector(44)
	for index := dataStart; index < dataStart+86; index += 2 {
		lo := int(dur[index+1])
		if lo <= tx7uLowMin || lo >= tx7uLowMax {
			reading.DecodingStatus = StatusBitViolation
			return reading, false
		}
		hi := int(dur[index])
		switch {
		case hi > tx7u0Min && hi < tx7u0Max:
			v.Add(false)
		case hi > tx7u1Min && hi < tx7u1Max:
			v.Add(true)
		default:
			reading.DecodingStatus = StatusBitViolation
			return reading, false
		}
	}
	last := int(dur[dataStart+86])
	switch {
	case last > tx7u0Min && last < tx7u0Max:
		v.Add(false)
	case last > tx7u1Min && last < tx7u1Max:
		v.Add(true)
	default:
		reading.DecodingStatus = StatusBitViolation
		return reading, false
	}

	full := v.Int(0, 44)
	reading.Raw.Lo = uint32(full)
	reading.Raw.Hi = uint32(full >> 32)
	reading.DecodedBits = uint16(v.Size())

	payload := uint32(v.Int(8, 32))
	if payload == 0 {
		reading.DecodingStatus = StatusBadChecksum
		return reading, false
	}
	if v.Int(20, 8)&255 != v.Int(32, 8)&255 {
		reading.DecodingStatus = StatusBadChecksum
		return reading, false
	}

	var k uint32
	nShift := payload >> 8
	for i := 0; i < 3; i++ {
		k ^= nShift & 15
		nShift >>= 4
	}
	if ((0b0110100110010110>>k)^nShift)&1 != 0 {
		reading.DecodingStatus = StatusBadChecksum
		return reading, false
	}

	var checksum uint64
	for i := 0; i < 40; i += 4 {
		checksum += v.Int(i, 4)
	}
	if (v.Int(40, 4)^checksum)&15 != 0 {
		reading.DecodingStatus = StatusBadChecksum
		return reading, false
	}

	reading.DecodingStatus = StatusOK
	return reading, true
}

func (TX7U) Identity(r *SensorReading) uint64 {
	rollingCode := uint64(r.Raw.Lo>>25) & 255
	return uint64(tx7uProtocolIndex)<<48 | rollingCode
}

func (TX7U) IdentityFromConfig(channel int, rollingCode uint16) uint64 {
	return uint64(tx7uProtocolIndex)<<48 | uint64(rollingCode)&255
}

func (TX7U) Metrics(r *SensorReading) Metric {
	switch r.Raw.Hi & 15 {
	case 0:
		return MetricTemperature
	case 14:
		return MetricHumidity
	}
	return 0
}

func (TX7U) ChannelNumber(*SensorReading) int    { return 0 }
func (TX7U) ChannelName(*SensorReading) string   { return "" }
func (TX7U) RollingCode(r *SensorReading) uint16 { return uint16(r.Raw.Lo >> 25) }
func (TX7U) HasBatteryStatus() bool              { return false }
func (TX7U) BatteryOK(*SensorReading) bool       { return true }

func (TX7U) hasTemperature(r *SensorReading) bool {
	return r.Raw.Hi&15 == 0 || r.Raw.Hi&0x00800000 != 0
}
func (TX7U) hasHumidity(r *SensorReading) bool {
	return r.Raw.Hi&15 == 14 || r.Raw.Hi&0x80000000 != 0
}
func (TX7U) HasHumidity() bool { return true }

func (TX7U) tx7Temperature(r *SensorReading) int {
	if r.Raw.Hi&0x00800000 != 0 {
		return int(r.Raw.Hi>>12) & 0x07ff
	}
	return int(r.Raw.Lo>>20&15)*100 + int(r.Raw.Lo>>16&15)*10 + int(r.Raw.Lo>>12&15)
}

func (TX7U) tx7Humidity(r *SensorReading) int {
	if r.Raw.Hi&0x80000000 != 0 {
		return int(r.Raw.Hi>>24) & 0x7f
	}
	return int(r.Raw.Lo>>20&15)*10 + int(r.Raw.Lo>>16&15)
}

func (d TX7U) Humidity(r *SensorReading) int {
	if !d.hasHumidity(r) {
		return 0
	}
	return d.tx7Humidity(r)
}

func (d TX7U) TemperatureCx10(r *SensorReading) int {
	if !d.hasTemperature(r) {
		return -2732
	}
	return d.tx7Temperature(r) - 500
}

func (d TX7U) TemperatureFx10(r *SensorReading) int {
	if !d.hasTemperature(r) {
		return -4597
	}
	return (d.tx7Temperature(r)-500)*9/5 + 320
}

func (TX7U) Equals(a, b *SensorReading) bool {
	return a.ProtocolIndex == b.ProtocolIndex && (a.Raw.Lo>>25)&0x7f == (b.Raw.Lo>>25)&0x7f
}

// Update merges the incoming split-frame reading's temperature or
// humidity nibble into stored, preserving whichever half stored already
// carried (mirrors copyFields/update's mask-and-merge over u32.hi).
func (TX7U) Update(newR, stored *SensorReading, now time.Time, maxUnchangedGap time.Duration) ChangeSet {
	typ := newR.Raw.Hi & 15
	var mask, newValue uint32
	var result ChangeSet
	switch typ {
	case 0:
		value := uint32(newR.Raw.Lo>>20&15)*100 + uint32(newR.Raw.Lo>>16&15)*10 + uint32(newR.Raw.Lo>>12&15)
		newValue = 0x00800000 | (value << 12)
		mask = 0x00fff000
		result = ChangeSet(MetricTemperature)
	case 14:
		value := (uint32(newR.Raw.Lo>>20&15)*10 + uint32(newR.Raw.Lo>>16&15)) & 0x7f
		newValue = 0x80000000 | (value << 24)
		mask = 0xff000000
		result = ChangeSet(MetricHumidity)
	default:
		return 0
	}

	if stored.Raw.Hi&mask == newValue {
		gap := now.Sub(stored.ObservedAt)
		if gap < 2*time.Second {
			return TimeNotChanged
		}
		if maxUnchangedGap == 0 || gap < maxUnchangedGap {
			return 0
		}
		stored.ObservedAt = now
		return result
	}
	stored.ObservedAt = now
	stored.Raw.Lo = newR.Raw.Lo
	stored.Raw.Hi = (stored.Raw.Hi &^ mask) | newValue
	return result
}

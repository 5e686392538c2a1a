package decode

import (
	"time"

	"github.com/akonshin-labs/rfgateway/internal/bits"
)

const (
	tfa303049ProtocolBit   = 1 << 2
	tfa303049ProtocolIndex = 2
	tfa303049DurationLo0   = 2000
	tfa303049DurationLo1   = 4000
	tfa303049ToleranceLo   = 200
	tfa303049DurationHi    = 500
	tfa303049ToleranceHi   = 125
	tfa303049MinSequence   = 73
)

var reverse2Bits = [4]uint64{0, 2, 1, 3}

// TFA303049 decodes TFA Twin Plus 30.3049 / Conrad KW9010 / Ea2 BL999
// frames: PPM bits, bit-reversed 36-bit payload, nibble-sum checksum plus a
// sign-bits-must-agree check. Grounded on
// original_source/protocols/TFATwinPlus.cpp.
type TFA303049 struct{}

var _ Decoder = TFA303049{}

func (TFA303049) Name() string        { return "TFA303049" }
func (TFA303049) ProtocolIndex() int  { return tfa303049ProtocolIndex }
func (TFA303049) ProtocolBit() uint32 { return tfa303049ProtocolBit }
func (TFA303049) Features() Feature {
	return FeatureRF | FeatureChannel | FeatureRollingCode | FeatureTemperature | FeatureTemperatureCelsius | FeatureHumidity | FeatureBatteryStatus
}

func (TFA303049) AdjustLimits(cur *Limits) {
	minHi := tfa303049DurationHi - tfa303049ToleranceHi
	maxLo := tfa303049DurationLo1 + tfa303049ToleranceLo
	if cur.MinDurationUs == 0 || cur.MinDurationUs > minHi {
		cur.MinDurationUs = minHi
	}
	if cur.MaxDurationUs == 0 || cur.MaxDurationUs < maxLo {
		cur.MaxDurationUs = maxLo
	}
	if cur.MinSequenceLength == 0 || cur.MinSequenceLength > tfa303049MinSequence {
		cur.MinSequenceLength = tfa303049MinSequence
	}
}

func (TFA303049) Decode(seq *Sequence) (*SensorReading, bool) {
	reading := &SensorReading{ProtocolIndex: tfa303049ProtocolIndex}
	if len(seq.Durations) < tfa303049MinSequence {
		reading.DecodingStatus = StatusTooShort
		return reading, false
	}

	v := bits.NewVector(40)
	if !decodePPM(seq, 0, tfa303049MinSequence, tfa303049DurationHi, tfa303049ToleranceHi,
		tfa303049DurationLo0, tfa303049DurationLo1, tfa303049ToleranceLo, v) {
		reading.DecodingStatus = StatusBitViolation
		return reading, false
	}
	reading.DecodedBits = uint16(v.Size())

	data := v.Reverse64(0, 36)
	n := uint32(data)
	var checksum uint8
	for i := 0; i < 8; i++ {
		checksum += uint8(n & 15)
		n >>= 4
	}
	checksum &= 15
	wantChecksum := uint8(data>>32) & 15
	if wantChecksum != checksum {
		reading.DecodingStatus = StatusBadChecksum
		return reading, false
	}

	n = uint32(data)
	if n&0x80000000 == 0 {
		reading.DecodingStatus = StatusBadChecksum
		return reading, false
	}
	sign := (n >> 21) & 7
	if sign != 0 && sign != 7 {
		reading.DecodingStatus = StatusBadChecksum
		return reading, false
	}

	reading.Raw.Lo = uint32(data)
	reading.Raw.Hi = uint32(data >> 32)
	reading.DecodingStatus = StatusOK
	return reading, true
}

func (TFA303049) Identity(r *SensorReading) uint64 {
	rollingCode := (uint64(r.Raw.Lo)&0x0f | (uint64(r.Raw.Lo)>>2)&0x30) & 0x3f
	channelBits := uint64(r.Raw.Lo>>4) & 3
	return uint64(tfa303049ProtocolIndex)<<48 | channelBits<<16 | rollingCode
}

func (TFA303049) IdentityFromConfig(channel int, rollingCode uint16) uint64 {
	channelBits := reverse2Bits[uint(channel)&3]
	return uint64(tfa303049ProtocolIndex)<<48 | channelBits<<16 | uint64(rollingCode)&63
}

func (TFA303049) Metrics(*SensorReading) Metric {
	return MetricTemperature | MetricHumidity | MetricBatteryStatus
}

func (TFA303049) ChannelNumber(r *SensorReading) int {
	return int(reverse2Bits[uint(r.Raw.Lo>>4)&3])
}
func (d TFA303049) ChannelName(r *SensorReading) string {
	return channelNumericName(d.ChannelNumber(r))
}
func (TFA303049) RollingCode(r *SensorReading) uint16 {
	return uint16(r.Raw.Lo&0x0f) | uint16(r.Raw.Lo>>2)&0x30
}
func (TFA303049) HasBatteryStatus() bool          { return true }
func (TFA303049) BatteryOK(r *SensorReading) bool { return r.Raw.Lo&0x00000100 == 0 }
func (TFA303049) HasHumidity() bool               { return true }
func (TFA303049) Humidity(r *SensorReading) int   { return int(r.Raw.Lo>>24&0x7f) - 28 }

func (TFA303049) TemperatureCx10(r *SensorReading) int {
	t := int32(r.Raw.Lo>>12) & 0x0fff
	if t&0x0800 != 0 {
		t |= ^int32(0xfff)
	}
	return int(t)
}

func (d TFA303049) TemperatureFx10(r *SensorReading) int {
	t := int64(d.TemperatureCx10(r))
	return int((t*90 + 25) / 50 + 320)
}

func (TFA303049) Equals(a, b *SensorReading) bool {
	return a.ProtocolIndex == b.ProtocolIndex && (a.Raw.Lo^b.Raw.Lo)&0x000000ff == 0
}

func (TFA303049) Update(newR, stored *SensorReading, now time.Time, maxUnchangedGap time.Duration) ChangeSet {
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
		if (stored.Raw.Lo^newR.Raw.Lo)&0x7f000000 != 0 {
			result |= ChangeSet(MetricHumidity)
		}
	}
	if (stored.Raw.Lo^newR.Raw.Lo)&0x00000100 != 0 {
		result |= ChangeSet(MetricBatteryStatus)
	}
	if result != 0 {
		stored.Raw = newR.Raw
		stored.ObservedAt = now
	}
	return result
}

package decode

import (
	"time"

	"github.com/akonshin-labs/rfgateway/internal/bits"
)

const (
	f007thProtocolBit   = 1 << 0
	f007thProtocolIndex = 0
	f007thMinDuration   = 340
	f007thMaxDuration   = 1150
	f007thMaxHalfDur    = 600
	f007thMinSeqLen     = 85

	// preamble + fixed ID (0x45), truncated to the 14 bits findBits reads.
	f007thPreamble   = 0x00003d45
	f007thPreambleTP = 0x00003d46
)

// F007TH decodes Ambient Weather F007TH/F007TP frames (Manchester, LFSR-like
// hash integrity check). Grounded on
// original_source/protocols/AmbientWeatherF007TH.cpp.
type F007TH struct{}

var _ Decoder = F007TH{}

func (F007TH) Name() string        { return "F007TH" }
func (F007TH) ProtocolIndex() int  { return f007thProtocolIndex }
func (F007TH) ProtocolBit() uint32 { return f007thProtocolBit }
func (F007TH) Features() Feature {
	return FeatureRF | FeatureChannel | FeatureRollingCode | FeatureTemperature | FeatureHumidity | FeatureBatteryStatus
}

func (F007TH) AdjustLimits(cur *Limits) {
	if cur.MinDurationUs == 0 || cur.MinDurationUs > f007thMinDuration {
		cur.MinDurationUs = f007thMinDuration
	}
	if cur.MaxDurationUs == 0 || cur.MaxDurationUs < f007thMaxDuration {
		cur.MaxDurationUs = f007thMaxDuration
	}
}

// findBits scans v for the first occurrence of pattern read as the low
// patternLen bits starting at each index, MSB-first, mirroring Bits::findBits.
func findBits(v *bits.Vector, pattern uint64, patternLen int) int {
	size := v.Size()
	for index := 0; index+patternLen <= size; index++ {
		if v.Int(index, patternLen) == pattern {
			return index
		}
	}
	return -1
}

func (d F007TH) Decode(seq *Sequence) (*SensorReading, bool) {
	v := bits.NewVector(len(seq.Durations) + 1)
	if !decodeManchester(seq, f007thMinDuration, f007thMaxHalfDur, v) {
		return &SensorReading{ProtocolIndex: f007thProtocolIndex, DecodingStatus: StatusNoPreamble}, false
	}
	size := v.Size()
	reading := &SensorReading{ProtocolIndex: f007thProtocolIndex, DecodedBits: uint16(size)}
	if size < 56 {
		reading.DecodingStatus = StatusTooShort
		return reading, false
	}

	const preambleMinLen = 14
	f007tp := false
	index := findBits(v, f007thPreamble, preambleMinLen)
	if index < 0 {
		index = findBits(v, f007thPreambleTP, preambleMinLen)
		if index < 0 {
			reading.DecodingStatus = StatusNoPreamble
			return reading, false
		}
		f007tp = true
	}
	index -= 16 - preambleMinLen

	var dataIndex int
	switch {
	case index+56 < size:
		dataIndex = index + 16
	case index > 49 && v.Int(index-9, 9) == 0x1f:
		// recovers data from a repeat transmission that landed before
		// this frame's preamble, rather than discarding the frame.
		dataIndex = index - 49
	case index+48 < size:
		dataIndex = index + 16
	default:
		reading.DecodingStatus = StatusBitViolation
		return reading, false
	}

	if dataIndex+40 > size {
		reading.DecodingStatus = StatusMissingChecksum
		return reading, false
	}

	good := false
	checkingData := dataIndex - 8
	for checkingData+48 < size || checkingData == dataIndex-8 {
		if checkingData < 0 || checkingData+48 > size {
			break
		}
		mask := 0x7C
		hash := 0x64
		for i := checkingData; i < checkingData+40; i++ {
			bit := mask & 1
			mask = ((mask >> 1) | (mask << 7)) & 0xff
			if bit != 0 {
				mask ^= 0x18
			}
			if v.Get(i) {
				hash ^= mask
			}
		}
		expected := int(v.Int(checkingData+40, 8))
		if (expected^hash)&255 == 0 {
			good = true
			dataIndex = checkingData + 8
			break
		}
		checkingData += 65
	}
	if !good {
		reading.DecodingStatus = StatusBadChecksum
		return reading, false
	}

	data := uint32(v.Int(dataIndex, 32))
	reading.Raw.Lo = data
	if f007tp {
		reading.Raw.Hi = 1
	}
	reading.DecodingStatus = StatusOK
	return reading, true
}

func (F007TH) Identity(r *SensorReading) uint64 {
	variant := uint64(0)
	if r.Raw.Hi == 1 {
		variant = 1
	}
	channelBits := uint64(r.Raw.Lo>>20) & 7
	rollingCode := uint64(r.Raw.Lo>>24) & 255
	return uint64(f007thProtocolIndex)<<48 | variant<<16 | channelBits<<8 | rollingCode
}

func (F007TH) IdentityFromConfig(channel int, rollingCode uint16) uint64 {
	channelBits := uint64(channel-1) & 7
	return uint64(f007thProtocolIndex)<<48 | channelBits<<8 | uint64(rollingCode)&255
}

func (F007TH) Metrics(r *SensorReading) Metric {
	if r.Raw.Hi&1 == 0 {
		return MetricTemperature | MetricHumidity | MetricBatteryStatus
	}
	return MetricTemperature | MetricBatteryStatus
}

func (F007TH) ChannelNumber(r *SensorReading) int { return int(r.Raw.Lo>>20&7) + 1 }
func (F007TH) ChannelName(r *SensorReading) string {
	return channelNumericName(int(r.Raw.Lo>>20&7) + 1)
}
func (F007TH) RollingCode(r *SensorReading) uint16 { return uint16(r.Raw.Lo>>24) & 255 }
func (F007TH) HasBatteryStatus() bool              { return true }
func (F007TH) BatteryOK(r *SensorReading) bool     { return r.Raw.Lo&0x00800000 == 0 }
func (F007TH) HasHumidity() bool                   { return true }
func (F007TH) Humidity(r *SensorReading) int {
	if r.Raw.Hi&1 != 0 {
		return 0
	}
	return int(r.Raw.Lo & 255)
}
func (F007TH) TemperatureCx10(r *SensorReading) int {
	return int((int32(r.Raw.Lo>>8&4095) - 720) * 5 / 9)
}
func (F007TH) TemperatureFx10(r *SensorReading) int {
	return int(r.Raw.Lo>>8&4095) - 400
}

func (F007TH) Equals(a, b *SensorReading) bool {
	return a.ProtocolIndex == b.ProtocolIndex &&
		(a.Raw.Lo^b.Raw.Lo)&0xff700000 == 0 &&
		a.Raw.Hi == b.Raw.Hi
}

func (d F007TH) Update(newR, stored *SensorReading, now time.Time, maxUnchangedGap time.Duration) ChangeSet {
	gap := now.Sub(stored.ObservedAt)
	if gap < 2*time.Second {
		return TimeNotChanged
	}
	var result ChangeSet
	const sensorDataMask = 0x000fffff | 0x00800000
	if maxUnchangedGap > 0 && gap > maxUnchangedGap {
		result = ChangeSet(MetricTemperature | MetricHumidity | MetricBatteryStatus)
	} else {
		changed := (stored.Raw.Lo ^ newR.Raw.Lo) & sensorDataMask
		if changed == 0 {
			return 0
		}
		if changed&0x000fff00 != 0 {
			result |= ChangeSet(MetricTemperature)
		}
		if newR.Raw.Hi&1 == 0 && changed&0x000000ff != 0 {
			result |= ChangeSet(MetricHumidity)
		}
		if changed&0x00800000 != 0 {
			result |= ChangeSet(MetricBatteryStatus)
		}
	}
	if result != 0 {
		stored.Raw = newR.Raw
		stored.ObservedAt = now
	}
	return result
}

var channelNames = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8"}

func channelNumericName(n int) string {
	if n >= 0 && n < len(channelNames) {
		return channelNames[n]
	}
	return ""
}

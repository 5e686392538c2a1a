package decode

import (
	"time"

	"github.com/akonshin-labs/rfgateway/internal/bits"
)

const (
	tx141ProtocolBit   = 1 << 7
	tx141ProtocolIndex = 7
	tx141MinSequence   = 88

	tx141PreambleMinLo = 720
	tx141PreambleMaxLo = 1000
	tx141PreambleMinHi = 720
	tx141PreambleMaxHi = 1000

	tx141MinPeriod = 650
	tx141MaxPeriod = 820

	tx141Bit0MinHi = 140
	tx141Bit0MaxHi = 360
	tx141Bit0MinLo = 340
	tx141Bit0MaxLo = 630

	tx141Bit1MinHi = 340
	tx141Bit1MaxHi = 560
	tx141Bit1MinLo = 160
	tx141Bit1MaxLo = 360

	tx141MinDuration = 140
	tx141MaxDuration = 1000
)

// TX141 decodes LaCrosse TX141-Bv2/TX141TH-Bv2/TX141-Bv3/TX145wsdth (and
// TFA 30.3221.02/30.3222.02/30.3251.10) frames: a 4-pulse ~833us
// preamble, 40 PWM data bits, and a table-driven CRC-8 (poly 0x31, init
// 0, with an extra no-input final round). Grounded on
// original_source/protocols/LaCrosseTX141.cpp.
type TX141 struct{}

var _ Decoder = TX141{}

func (TX141) Name() string        { return "TX141" }
func (TX141) ProtocolIndex() int  { return tx141ProtocolIndex }
func (TX141) ProtocolBit() uint32 { return tx141ProtocolBit }
func (TX141) Features() Feature {
	return FeatureRF | FeatureChannel | FeatureRollingCode | FeatureTemperature | FeatureTemperatureCelsius | FeatureHumidity | FeatureBatteryStatus
}

func (TX141) AdjustLimits(cur *Limits) {
	if cur.MinDurationUs == 0 || cur.MinDurationUs > tx141MinDuration {
		cur.MinDurationUs = tx141MinDuration
	}
	if cur.MaxDurationUs == 0 || cur.MaxDurationUs < tx141MaxDuration {
		cur.MaxDurationUs = tx141MaxDuration
	}
	if cur.MinSequenceLength == 0 || cur.MinSequenceLength > tx141MinSequence {
		cur.MinSequenceLength = tx141MinSequence
	}
}

func tx141FindPreamble(dur []int16, startIndex int) int {
	n := len(dur)
	for preambleIndex := startIndex; preambleIndex <= n-tx141MinSequence; preambleIndex += 2 {
		found := true
		for index := 0; index < 8; index += 2 {
			item := dur[preambleIndex+index]
			if item < tx141PreambleMinHi || item > tx141PreambleMaxHi {
				found = false
				break
			}
			item = dur[preambleIndex+index+1]
			if item < tx141PreambleMinLo || item > tx141PreambleMaxLo {
				found = false
				break
			}
		}
		if found {
			return preambleIndex
		}
	}
	return -1
}

func tx141TryDecode(dur []int16, dataStart int, v *bits.Vector) (DecodingStatus, bool) {
	v.Clear()
	for index := dataStart; index < dataStart+80; index += 2 {
		itemHi := dur[index]
		itemLo := dur[index+1]
		period := itemHi + itemLo
		if period < tx141MinPeriod || period > tx141MaxPeriod {
			return StatusBitViolation.WithPosition(index), false
		}
		switch {
		case itemHi <= tx141Bit0MaxHi && itemHi >= tx141Bit0MinHi && itemLo >= tx141Bit0MinLo && itemLo <= tx141Bit0MaxLo:
			v.Add(false)
		case itemHi >= tx141Bit1MinHi && itemHi <= tx141Bit1MaxHi && itemLo >= tx141Bit1MinLo && itemLo <= tx141Bit1MaxLo:
			v.Add(true)
		default:
			return (StatusBitViolation | 1).WithPosition(index), false
		}
	}
	if v.Size() != 40 {
		return 0x22, false
	}

	data := uint32(v.Int(0, 32))
	crc := uint8(v.Int(32, 8))
	calculated := crc8Table(0x31, 0, []byte{
		byte(data >> 24), byte(data >> 16), byte(data >> 8), byte(data), 0,
	})
	if calculated != crc {
		return StatusBadChecksum, false
	}
	return StatusOK, true
}

func (TX141) Decode(seq *Sequence) (*SensorReading, bool) {
	dur := seq.Durations
	n := len(dur)
	reading := &SensorReading{ProtocolIndex: tx141ProtocolIndex}
	if n < tx141MinSequence {
		reading.DecodingStatus = StatusTooShort
		return reading, false
	}

	v := bits.NewVector(40)
	startIndex := 0
	var bestStatus DecodingStatus
	var bestBits uint16
	for startIndex+tx141MinSequence <= n {
		preambleStart := tx141FindPreamble(dur, startIndex)
		if preambleStart < 0 {
			if bestStatus == 0 {
				bestStatus = StatusTooShort
			}
			break
		}
		dataStart := preambleStart + 8
		status, ok := tx141TryDecode(dur, dataStart, v)
		if ok {
			data := uint32(v.Int(0, 32))
			reading.Raw.Lo = data
			reading.DecodedBits = 40
			reading.DecodingStatus = StatusOK
			return reading, true
		}
		if status&0x80 != 0 {
			bestStatus = status
			bestBits = uint16(v.Size())
		} else if status&0x20 != 0 {
			bestStatus = status
			bestBits = 0
		}
		startIndex = preambleStart + 2
	}

	reading.DecodingStatus = bestStatus
	reading.DecodedBits = bestBits
	return reading, false
}

func (TX141) Identity(r *SensorReading) uint64 {
	channel := uint64(r.Raw.Lo>>20) & 3
	rollingCode := uint64(r.Raw.Lo>>24) & 255
	return uint64(tx141ProtocolIndex)<<48 | rollingCode | channel<<8
}

func (TX141) IdentityFromConfig(channel int, rollingCode uint16) uint64 {
	if channel > 0 {
		channel--
	}
	return uint64(tx141ProtocolIndex)<<48 | uint64(channel)<<8 | uint64(rollingCode)&255
}

func (TX141) Metrics(*SensorReading) Metric { return MetricTemperature | MetricHumidity }

func (TX141) ChannelNumber(r *SensorReading) int { return int(r.Raw.Lo>>20&3) + 1 }
func (TX141) ChannelName(r *SensorReading) string {
	return channelNumericName(int(r.Raw.Lo>>20&3) + 1)
}
func (TX141) RollingCode(r *SensorReading) uint16 { return uint16(r.Raw.Lo>>24) & 255 }
func (TX141) HasBatteryStatus() bool              { return true }
func (TX141) BatteryOK(r *SensorReading) bool     { return r.Raw.Lo&0x00800000 == 0 }
func (TX141) HasHumidity() bool                   { return true }
func (TX141) Humidity(r *SensorReading) int       { return int(r.Raw.Lo & 255) }

func (TX141) TemperatureCx10(r *SensorReading) int { return int(r.Raw.Lo>>8&4095) - 500 }
func (TX141) TemperatureFx10(r *SensorReading) int {
	t := int(r.Raw.Lo>>8&4095) - 500
	return (t*90 + 25) / 50 + 320
}

func (TX141) Equals(a, b *SensorReading) bool {
	return a.ProtocolIndex == b.ProtocolIndex && (a.Raw.Lo^b.Raw.Lo)&0xff300000 == 0
}

func (TX141) Update(newR, stored *SensorReading, now time.Time, maxUnchangedGap time.Duration) ChangeSet {
	gap := now.Sub(stored.ObservedAt)
	if gap < 2*time.Second {
		return TimeNotChanged
	}
	var result ChangeSet
	if maxUnchangedGap > 0 && gap > maxUnchangedGap {
		result = ChangeSet(MetricTemperature | MetricHumidity | MetricBatteryStatus)
	} else {
		if stored.Raw.Lo == newR.Raw.Lo {
			return 0
		}
		if (stored.Raw.Lo^newR.Raw.Lo)&0x000fff00 != 0 {
			result |= ChangeSet(MetricTemperature)
		}
		if (stored.Raw.Lo^newR.Raw.Lo)&0x000000ff != 0 {
			result |= ChangeSet(MetricHumidity)
		}
		if (stored.Raw.Lo^newR.Raw.Lo)&0x00800000 != 0 {
			result |= ChangeSet(MetricBatteryStatus)
		}
	}
	if result != 0 {
		stored.Raw = newR.Raw
		stored.ObservedAt = now
	}
	return result
}

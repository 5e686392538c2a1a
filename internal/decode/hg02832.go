package decode

import (
	"time"

	"github.com/akonshin-labs/rfgateway/internal/bits"
)

const (
	hg02832ProtocolBit   = 1 << 3
	hg02832ProtocolIndex = 3
	hg02832MinDuration   = 150
	hg02832MaxDuration   = 1000
	hg02832MinSequence   = 87
)

// HG02832 decodes Auriol HG02832 (IAN 283582) frames: an 8-pulse sync
// pattern, 40 PWM-ish bits split into a 32-bit payload and an 8-bit
// checksum, checked against a one-byte CRC-8 (poly 0x31, init 0x53) of
// the XOR of the payload's four bytes. Grounded on
// original_source/protocols/AuriolHG02832.cpp.
type HG02832 struct{}

var _ Decoder = HG02832{}

func (HG02832) Name() string        { return "HG02832" }
func (HG02832) ProtocolIndex() int  { return hg02832ProtocolIndex }
func (HG02832) ProtocolBit() uint32 { return hg02832ProtocolBit }
func (HG02832) Features() Feature {
	return FeatureRF | FeatureChannel | FeatureRollingCode | FeatureTemperature | FeatureTemperatureCelsius | FeatureHumidity | FeatureBatteryStatus
}

func (HG02832) AdjustLimits(cur *Limits) {
	if cur.MinDurationUs == 0 || cur.MinDurationUs > hg02832MinDuration {
		cur.MinDurationUs = hg02832MinDuration
	}
	if cur.MaxDurationUs == 0 || cur.MaxDurationUs < hg02832MaxDuration {
		cur.MaxDurationUs = hg02832MaxDuration
	}
	if cur.MinSequenceLength == 0 || cur.MinSequenceLength > hg02832MinSequence {
		cur.MinSequenceLength = hg02832MinSequence
	}
}

func (HG02832) Decode(seq *Sequence) (*SensorReading, bool) {
	dur := seq.Durations
	n := len(dur)
	reading := &SensorReading{ProtocolIndex: hg02832ProtocolIndex}
	if n < hg02832MinSequence {
		reading.DecodingStatus = StatusTooShort
		return reading, false
	}

	dataStart := -1
	for index := 0; index <= n-hg02832MinSequence; index++ {
		if !isBetween(dur[index], 300, 450) {
			continue
		}
		if !isBetween(dur[index+1], 700, 850) {
			continue
		}
		if !isBetween(dur[index+2], 850, hg02832MaxDuration) {
			continue
		}
		if !isBetween(dur[index+3], 700, 850) {
			continue
		}
		if !isBetween(dur[index+4], 850, hg02832MaxDuration) {
			continue
		}
		if !isBetween(dur[index+5], 700, 850) {
			continue
		}
		if !isBetween(dur[index+6], 850, hg02832MaxDuration) {
			continue
		}
		item := dur[index+7]
		if item > 700 && item < 850 {
			dataStart = index + 8
			break
		}
	}
	if dataStart < 0 {
		reading.DecodingStatus = StatusNoPreamble
		return reading, false
	}

	v := bits.NewVector(40)
	for index := dataStart; index < dataStart+79; index += 2 {
		item := int(dur[index])
		if item < hg02832MinDuration || item > 700 {
			reading.DecodingStatus = StatusBitViolation
			return reading, false
		}
		if index+1 < n {
			lo := int(dur[index+1])
			if lo < 150 || lo > 700 {
				reading.DecodingStatus = StatusBitViolation
				return reading, false
			}
			pair := item + lo
			if pair < 750 || pair > 950 {
				reading.DecodingStatus = StatusBitViolation
				return reading, false
			}
		}
		v.Add(item > 400)
	}

	data := v.Int(0, 32)
	checksum := uint8(v.Int(32, 8))
	reading.Raw.Lo = uint32(data)
	reading.Raw.Hi = uint32(checksum)
	reading.DecodedBits = uint16(v.Size())

	if data&0x00ff0fff == 0 {
		reading.DecodingStatus = StatusBadChecksum
		return reading, false
	}

	xorByte := uint8(data) ^ uint8(data>>8) ^ uint8(data>>16) ^ uint8(data>>24)
	calculated := crc8Table(0x31, 0x53, []byte{xorByte})
	if (checksum^calculated)&255 != 0 {
		reading.DecodingStatus = StatusBadChecksum
		return reading, false
	}

	reading.DecodingStatus = StatusOK
	return reading, true
}

func isBetween(v int16, lo, hi int) bool {
	return int(v) > lo && int(v) < hi
}

func (HG02832) Identity(r *SensorReading) uint64 {
	channelBits := uint64(r.Raw.Lo>>12) & 7
	rollingCode := uint64(r.Raw.Lo>>24) & 255
	return uint64(hg02832ProtocolIndex)<<48 | channelBits<<8 | rollingCode
}

func (HG02832) IdentityFromConfig(channel int, rollingCode uint16) uint64 {
	channelBits := uint64(channel-1) & 7
	return uint64(hg02832ProtocolIndex)<<48 | channelBits<<8 | uint64(rollingCode)&255
}

func (HG02832) Metrics(*SensorReading) Metric {
	return MetricTemperature | MetricHumidity | MetricBatteryStatus
}

func (HG02832) ChannelNumber(r *SensorReading) int { return int(r.Raw.Lo>>12&3) + 1 }
func (HG02832) ChannelName(r *SensorReading) string {
	return channelNumericName(int(r.Raw.Lo>>12&3) + 1)
}
func (HG02832) RollingCode(r *SensorReading) uint16 { return uint16(r.Raw.Lo >> 24) }
func (HG02832) HasBatteryStatus() bool              { return true }
func (HG02832) BatteryOK(r *SensorReading) bool      { return r.Raw.Lo&0x00008000 == 0 }
func (HG02832) HasHumidity() bool                    { return true }
func (HG02832) Humidity(r *SensorReading) int        { return int(r.Raw.Lo>>16) & 255 }

func (HG02832) TemperatureCx10(r *SensorReading) int {
	t := int32(r.Raw.Lo) & 0x0fff
	if t&0x0800 != 0 {
		t |= ^int32(0xfff)
	}
	return int(t)
}

func (d HG02832) TemperatureFx10(r *SensorReading) int {
	return d.TemperatureCx10(r)*9/5 + 320
}

func (HG02832) Equals(a, b *SensorReading) bool {
	return a.ProtocolIndex == b.ProtocolIndex && (a.Raw.Lo^b.Raw.Lo)&0xff003000 == 0
}

func (HG02832) Update(newR, stored *SensorReading, now time.Time, maxUnchangedGap time.Duration) ChangeSet {
	if stored.Raw.Lo == newR.Raw.Lo && (maxUnchangedGap <= 0 || now.Sub(stored.ObservedAt) <= maxUnchangedGap) {
		return 0
	}
	gap := now.Sub(stored.ObservedAt)
	if gap < 2*time.Second {
		return TimeNotChanged
	}
	var result ChangeSet
	if maxUnchangedGap > 0 && gap > maxUnchangedGap {
		result = ChangeSet(MetricTemperature | MetricHumidity | MetricBatteryStatus)
	} else {
		if (stored.Raw.Lo^newR.Raw.Lo)&0x00000fff != 0 {
			result |= ChangeSet(MetricTemperature)
		}
		if (stored.Raw.Lo^newR.Raw.Lo)&0x00ff0000 != 0 {
			result |= ChangeSet(MetricHumidity)
		}
		if (stored.Raw.Lo^newR.Raw.Lo)&0x00008000 != 0 {
			result |= ChangeSet(MetricBatteryStatus)
		}
	}
	if result != 0 {
		stored.Raw = newR.Raw
		stored.ObservedAt = now
	}
	return result
}

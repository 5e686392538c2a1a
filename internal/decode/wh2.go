package decode

import (
	"time"

	"github.com/akonshin-labs/rfgateway/internal/bits"
)

const (
	wh2ProtocolBit    = 1 << 4
	wh2ProtocolIndex  = 4
	wh2MinLoDuration  = 810
	wh2MaxLoDuration  = 1020
	wh2MinHiDuration  = 450
	wh2MaxHiDuration  = 1550
	wh2PWMMedian      = 1000
	wh2MinSequence    = 95
	wh2VariantWH2     = 0x40
	wh2VariantFT007TH = 0x41
)

// wh2FT007THFlag marks an FT007TH frame in Raw.Hi's bit 8, keeping the
// flag clear of the checksum byte in bits 0-7 (the source instead
// overlaid it on bit 31 of the checksum word; see DESIGN.md's resolution
// of that ambiguity). Grounded on original_source/protocols/WH2.cpp.
const wh2FT007THFlag = 0x100

// WH2 decodes Fine Offset Electronics WH2 / Telldus FT007TH frames: a
// PWM preamble distinguishing the two variants by an extra short sync
// pulse, 40 PWM bits, and a CRC-8 (poly 0x31, init 0) checksum.
type WH2 struct{}

var _ Decoder = WH2{}

func (WH2) Name() string        { return "WH2" }
func (WH2) ProtocolIndex() int  { return wh2ProtocolIndex }
func (WH2) ProtocolBit() uint32 { return wh2ProtocolBit }
func (WH2) Features() Feature {
	return FeatureRF | FeatureRollingCode | FeatureTemperature | FeatureTemperatureCelsius | FeatureHumidity
}

func (WH2) AdjustLimits(cur *Limits) {
	if cur.MinDurationUs == 0 || cur.MinDurationUs > 150 {
		cur.MinDurationUs = 150
	}
	if cur.MaxDurationUs == 0 || cur.MaxDurationUs < wh2MaxHiDuration {
		cur.MaxDurationUs = wh2MaxHiDuration
	}
	if cur.MinSequenceLength == 0 || cur.MinSequenceLength > wh2MinSequence {
		cur.MinSequenceLength = wh2MinSequence
	}
}

func (WH2) Decode(seq *Sequence) (*SensorReading, bool) {
	dur := seq.Durations
	n := len(dur)
	reading := &SensorReading{ProtocolIndex: wh2ProtocolIndex}
	if n < wh2MinSequence {
		reading.DecodingStatus = StatusTooShort
		return reading, false
	}

	ft007th := false
	dataStart := -1
	for preambleIndex := 0; preambleIndex <= n-wh2MinSequence; preambleIndex += 2 {
		ft007th = false
		preambleStart := preambleIndex
		for index := 0; index < 16; index += 2 {
			item := dur[preambleStart+index]
			if index == 0 && n-preambleIndex >= 97 && item >= 180 && item <= 220 {
				item2 := dur[preambleIndex+1]
				if item2 <= wh2MinLoDuration || item2 >= wh2MaxLoDuration {
					break
				}
				ft007th = true
				preambleStart += 2
				item = dur[preambleStart+index]
			}
			if item <= wh2MinHiDuration || item >= wh2MaxHiDuration {
				continue
			}
			lo := dur[preambleStart+index+1]
			if lo <= wh2MinLoDuration || lo >= wh2MaxLoDuration {
				continue
			}
			if index == 14 {
				dataStart = preambleStart + 16
			}
		}
		if dataStart != -1 {
			break
		}
	}
	if dataStart == -1 {
		reading.DecodingStatus = StatusNoPreamble
		return reading, false
	}

	v := bits.NewVector(40)
	if !decodePWM(seq, dataStart, n-dataStart, wh2MinLoDuration, wh2MaxLoDuration, wh2MinHiDuration, wh2MaxHiDuration, wh2PWMMedian, v) {
		reading.DecodingStatus = StatusBitViolation
		return reading, false
	}
	reading.DecodedBits = uint16(v.Size())
	if v.Size() < 40 {
		reading.DecodingStatus = StatusMissingChecksum
		return reading, false
	}

	data := v.Int(0, 32)
	checksum := uint8(v.Int(32, 8))
	calculated := crc8Bitwise(v, 0, 32, 0x31, 0)
	if checksum != calculated {
		reading.DecodingStatus = StatusBadChecksum
		return reading, false
	}

	typ := v.Int(0, 4)
	if typ != 4 {
		reading.DecodingStatus = StatusBadChecksum
		return reading, false
	}

	reading.Raw.Lo = uint32(data)
	hi := uint32(checksum)
	if ft007th {
		hi |= wh2FT007THFlag
	}
	reading.Raw.Hi = hi
	reading.DecodingStatus = StatusOK
	return reading, true
}

func (WH2) Identity(r *SensorReading) uint64 {
	variant := uint64(wh2VariantWH2)
	if r.Raw.Hi&wh2FT007THFlag != 0 {
		variant = wh2VariantFT007TH
	}
	rollingCode := uint64(r.Raw.Lo>>20) & 255
	return uint64(wh2ProtocolIndex)<<48 | variant<<16 | rollingCode
}

func (WH2) IdentityFromConfig(channel int, rollingCode uint16) uint64 {
	return uint64(wh2ProtocolIndex)<<48 | uint64(wh2VariantWH2)<<16 | uint64(rollingCode)&255
}

func (WH2) Metrics(*SensorReading) Metric       { return MetricTemperature | MetricHumidity }
func (WH2) ChannelNumber(*SensorReading) int    { return 0 }
func (WH2) ChannelName(*SensorReading) string   { return "" }
func (WH2) RollingCode(r *SensorReading) uint16 { return uint16(r.Raw.Lo>>20) & 255 }
func (WH2) HasBatteryStatus() bool              { return false }
func (WH2) BatteryOK(*SensorReading) bool       { return true }
func (WH2) HasHumidity() bool                   { return true }
func (WH2) Humidity(r *SensorReading) int       { return int(r.Raw.Lo & 127) }

func (WH2) TemperatureCx10(r *SensorReading) int {
	t := int32(r.Raw.Lo>>8) & 1023
	if t&0x0800 != 0 {
		t = -(t & 0x07ff)
	}
	return int(t)
}

func (WH2) TemperatureFx10(r *SensorReading) int {
	t := int32(r.Raw.Lo>>8) & 1023
	if t&0x0800 != 0 {
		t = -(t & 0x07ff)
	}
	return int((t*90 + 25) / 50 + 320)
}

func (WH2) Equals(a, b *SensorReading) bool {
	return a.ProtocolIndex == b.ProtocolIndex && (a.Raw.Lo^b.Raw.Lo)&0x0ff00000 == 0
}

func (WH2) Update(newR, stored *SensorReading, now time.Time, maxUnchangedGap time.Duration) ChangeSet {
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
		if (stored.Raw.Lo^newR.Raw.Lo)&0x0003ff00 != 0 {
			result |= ChangeSet(MetricTemperature)
		}
		if (stored.Raw.Lo^newR.Raw.Lo)&0x000000ff != 0 {
			result |= ChangeSet(MetricHumidity)
		}
	}
	if result != 0 {
		stored.Raw = newR.Raw
		stored.ObservedAt = now
	}
	return result
}

package decode

import (
	"time"

	"github.com/akonshin-labs/rfgateway/internal/bits"
)

const (
	acurite592ProtocolBit   = 1 << 1
	acurite592ProtocolIndex = 1
	acurite592MinDuration   = 140
	acurite592MaxDuration   = 660
)

// AcuRite00592TXR decodes AcuRite 00592TXR frames: 8-pulse ~600us sync,
// 56 PWM bits, byte-sum checksum plus a 4-bit parity nibble over a
// forbidden-value bitmask. Grounded on
// original_source/protocols/AcuRite00592TXR.cpp.
//
// The 56-bit payload is laid out, transmission order first:
// id_hi(8) id_lo(8) status(8) humidity(8) temp_hi(8) temp_lo(8) checksum(8),
// where id_hi's top two bits are the channel and its low nibble together
// with id_lo form the 12-bit rolling code.
// Stored in RawWord as Hi = id_hi<<16|id_lo<<8|status, Lo =
// humidity<<24|temp_hi<<16|temp_lo<<8|checksum, matching the source's
// reinterpretation of the 56-bit value as a 64-bit (hi,lo) union.
type AcuRite00592TXR struct{}

var _ Decoder = AcuRite00592TXR{}

func (AcuRite00592TXR) Name() string        { return "00592TXR" }
func (AcuRite00592TXR) ProtocolIndex() int  { return acurite592ProtocolIndex }
func (AcuRite00592TXR) ProtocolBit() uint32 { return acurite592ProtocolBit }
func (AcuRite00592TXR) Features() Feature {
	return FeatureRF | FeatureChannel | FeatureRollingCode | FeatureTemperature | FeatureTemperatureCelsius | FeatureHumidity | FeatureBatteryStatus
}

func (AcuRite00592TXR) AdjustLimits(cur *Limits) {
	if cur.MinDurationUs == 0 || cur.MinDurationUs > acurite592MinDuration {
		cur.MinDurationUs = acurite592MinDuration
	}
	if cur.MaxDurationUs == 0 || cur.MaxDurationUs < acurite592MaxDuration {
		cur.MaxDurationUs = acurite592MaxDuration
	}
}

func (d AcuRite00592TXR) Decode(seq *Sequence) (*SensorReading, bool) {
	dur := seq.Durations
	n := len(dur)
	reading := &SensorReading{ProtocolIndex: acurite592ProtocolIndex}
	if n < 121 {
		reading.DecodingStatus = StatusTooShort
		return reading, false
	}

	dataStart := -1
	for index := 0; index <= n-121; index += 2 {
		good := true
		for i := 0; i < 8; i += 2 {
			item1 := int(dur[index+i])
			item2 := int(dur[index+i+1])
			if item1 < 400 || item1 > 1000 || item2 < 400 || item2 > 1000 {
				good = false
				break
			}
			pair := item1 + item2
			if pair < 1000 || pair > 1450 {
				good = false
				break
			}
		}
		if !good {
			continue
		}
		item := int(dur[index+8])
		if item > 680 || item < 120 {
			continue
		}
		dataStart = index + 8
		break
	}
	if dataStart < 0 {
		reading.DecodingStatus = StatusNoPreamble
		return reading, false
	}

	v := bits.NewVector(56)
	decodedCount := 0
	for index := dataStart; index < n-1; index += 2 {
		item1 := int(dur[index])
		item2 := int(dur[index+1])
		if item1 < 120 || item1 > 680 || item2 < 120 || item2 > 680 {
			break
		}
		switch {
		case item1 < 290 && item2 > 310:
			v.Add(false)
		case item2 < 290 && item1 > 310:
			v.Add(true)
		default:
			reading.DecodingStatus = StatusBitViolation
			return reading, false
		}
		decodedCount++
		if decodedCount >= 56 {
			break
		}
	}
	reading.DecodedBits = uint16(decodedCount)
	if decodedCount < 56 {
		reading.DecodingStatus = StatusTooShort
		return reading, false
	}

	var checksum uint32
	var parity uint8
	for i := 0; i < 48; i += 8 {
		b := uint8(v.Int(i, 8))
		checksum += uint32(b)
		if i >= 16 {
			parity ^= b
		}
	}
	parity = (parity ^ (parity >> 4)) & 15
	if (uint32(1)<<parity)&0b0110100110010110 != 0 {
		reading.DecodingStatus = StatusBadChecksum
		return reading, false
	}
	if uint32(v.Int(48, 8))^(checksum&255) != 0 {
		reading.DecodingStatus = StatusBadChecksum
		return reading, false
	}

	full := v.Int(0, 56)
	reading.Raw.Hi = uint32(full >> 32)
	reading.Raw.Lo = uint32(full)
	reading.DecodingStatus = StatusOK
	return reading, true
}

func (AcuRite00592TXR) Identity(r *SensorReading) uint64 {
	channel := uint8(r.Raw.Hi >> 16)
	variant := uint64(uint8(r.Raw.Hi)) & 0x3f
	channelBits := uint64(channel>>6) & 3
	rollingCode := uint64(r.Raw.Hi>>8) & 0xfff
	return uint64(acurite592ProtocolIndex)<<48 | variant<<16 | channelBits<<14 | rollingCode
}

func (AcuRite00592TXR) IdentityFromConfig(channel int, rollingCode uint16) uint64 {
	var channelBits uint64
	switch channel {
	case 1:
		channelBits = 3
	case 2:
		channelBits = 2
	case 3:
		channelBits = 0
	}
	const variant = 0x04
	return uint64(acurite592ProtocolIndex)<<48 | uint64(variant)<<16 | channelBits<<14 | uint64(rollingCode)&0xfff
}

func (AcuRite00592TXR) Metrics(*SensorReading) Metric {
	return MetricTemperature | MetricHumidity | MetricBatteryStatus
}

func (AcuRite00592TXR) ChannelNumber(r *SensorReading) int {
	channel := uint8(r.Raw.Hi >> 16)
	switch (channel >> 6) & 3 {
	case 3:
		return 1
	case 2:
		return 2
	case 0:
		return 3
	}
	return -1
}

func (d AcuRite00592TXR) ChannelName(r *SensorReading) string {
	channel := uint8(r.Raw.Hi >> 16)
	switch (channel >> 6) & 3 {
	case 3:
		return "A"
	case 2:
		return "B"
	case 0:
		return "C"
	}
	return ""
}

func (AcuRite00592TXR) RollingCode(r *SensorReading) uint16 { return uint16(r.Raw.Hi>>8) & 0xfff }
func (AcuRite00592TXR) HasBatteryStatus() bool              { return true }
func (AcuRite00592TXR) BatteryOK(r *SensorReading) bool     { return r.Raw.Hi&0x40 != 0 }
func (AcuRite00592TXR) HasHumidity() bool                   { return true }
func (AcuRite00592TXR) Humidity(r *SensorReading) int       { return int(uint8(r.Raw.Lo>>24) & 127) }

func (AcuRite00592TXR) TemperatureCx10(r *SensorReading) int {
	tHi := uint8(r.Raw.Lo >> 16)
	tLow := uint8(r.Raw.Lo >> 8)
	return int((int32(tHi&127)<<7)|int32(tLow&127)) - 1000
}

func (d AcuRite00592TXR) TemperatureFx10(r *SensorReading) int {
	t := d.TemperatureCx10(r)
	return (t*90 + 25) / 50 + 320
}

func (AcuRite00592TXR) Equals(a, b *SensorReading) bool {
	if a.ProtocolIndex != b.ProtocolIndex {
		return false
	}
	rollingA, rollingB := uint8(a.Raw.Hi>>8), uint8(b.Raw.Hi>>8)
	channelA, channelB := uint8(a.Raw.Hi>>16), uint8(b.Raw.Hi>>16)
	return rollingA == rollingB && channelA == channelB
}

func (AcuRite00592TXR) Update(newR, stored *SensorReading, now time.Time, maxUnchangedGap time.Duration) ChangeSet {
	gap := now.Sub(stored.ObservedAt)
	if gap < 2*time.Second {
		return TimeNotChanged
	}
	var result ChangeSet
	if maxUnchangedGap > 0 && gap > maxUnchangedGap {
		result = ChangeSet(MetricTemperature | MetricHumidity | MetricBatteryStatus)
	} else {
		oldTHi, oldTLow := uint8(stored.Raw.Lo>>16), uint8(stored.Raw.Lo>>8)
		newTHi, newTLow := uint8(newR.Raw.Lo>>16), uint8(newR.Raw.Lo>>8)
		if oldTHi != newTHi || oldTLow != newTLow {
			result |= ChangeSet(MetricTemperature)
		}
		if uint8(stored.Raw.Lo>>24) != uint8(newR.Raw.Lo>>24) {
			result |= ChangeSet(MetricHumidity)
		}
		if uint8(stored.Raw.Hi) != uint8(newR.Raw.Hi) {
			result |= ChangeSet(MetricBatteryStatus)
		}
	}
	if result != 0 {
		stored.Raw = newR.Raw
		stored.ObservedAt = now
	}
	return result
}

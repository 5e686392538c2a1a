package decode

import "time"

const (
	ds18b20ProtocolBit   = 1 << 8
	ds18b20ProtocolIndex = 8
)

// DS18B20 is not RF-decoded: its SensorReading is built directly by the
// poll source (component I) from a /sys/bus/w1/devices 1-wire
// filesystem read, with Raw.Hi carrying the packed device id and
// Raw.Lo the signed milli-Celsius reading. Decode is a no-op retained
// so DS18B20 satisfies the same Decoder interface as the RF protocols;
// it is never registered against a pulse Sequence. Grounded on
// original_source/protocols/DS18B20.cpp.
type DS18B20 struct{}

var _ Decoder = DS18B20{}

func (DS18B20) Name() string        { return "DS18B20" }
func (DS18B20) ProtocolIndex() int  { return ds18b20ProtocolIndex }
func (DS18B20) ProtocolBit() uint32 { return ds18b20ProtocolBit }
func (DS18B20) Features() Feature   { return FeatureID32 | FeatureTemperature | FeatureTemperatureCelsius }

func (DS18B20) AdjustLimits(*Limits) {}

func (DS18B20) Decode(*Sequence) (*SensorReading, bool) {
	return &SensorReading{ProtocolIndex: ds18b20ProtocolIndex}, true
}

// NewReading builds the SensorReading the poll source hands to the
// sensor registry after parsing a w1_slave file: deviceID is the 32-bit
// id taken from the low 8 hex digits of the device's serial (the family
// code is not part of it), milliCelsius is the raw sysfs t= value.
func (DS18B20) NewReading(deviceID uint32, milliCelsius int32) *SensorReading {
	return &SensorReading{
		ProtocolIndex:  ds18b20ProtocolIndex,
		Raw:            RawWord{Hi: deviceID, Lo: uint32(milliCelsius)},
		DecodingStatus: StatusOK,
	}
}

func (DS18B20) Identity(r *SensorReading) uint64 {
	return uint64(ds18b20ProtocolIndex)<<48 | uint64(r.Raw.Hi)
}

func (DS18B20) IdentityFromConfig(channel int, rollingCode uint16) uint64 {
	return uint64(ds18b20ProtocolIndex)<<48 | uint64(channel)<<16 | uint64(rollingCode)
}

func (DS18B20) Metrics(*SensorReading) Metric { return MetricTemperature }

func (DS18B20) ChannelNumber(*SensorReading) int  { return 0 }
func (DS18B20) ChannelName(*SensorReading) string { return "" }
func (DS18B20) RollingCode(*SensorReading) uint16 { return 0 }
func (DS18B20) HasBatteryStatus() bool            { return false }
func (DS18B20) BatteryOK(*SensorReading) bool      { return true }
func (DS18B20) HasHumidity() bool                  { return false }
func (DS18B20) Humidity(*SensorReading) int        { return 0 }

func (DS18B20) TemperatureCx10(r *SensorReading) int {
	return int((int32(r.Raw.Lo) + 50) / 100)
}

func (DS18B20) TemperatureFx10(r *SensorReading) int {
	return int((int64(int32(r.Raw.Lo))*9+250)/500) + 320
}

func (DS18B20) Equals(a, b *SensorReading) bool {
	return a.ProtocolIndex == b.ProtocolIndex && a.Raw.Hi == b.Raw.Hi
}

func (DS18B20) Update(newR, stored *SensorReading, now time.Time, maxUnchangedGap time.Duration) ChangeSet {
	if stored.Raw.Lo == newR.Raw.Lo {
		gap := now.Sub(stored.ObservedAt)
		if gap < 2*time.Second {
			return TimeNotChanged
		}
		if maxUnchangedGap == 0 || gap < maxUnchangedGap {
			return 0
		}
		stored.ObservedAt = now
		return ChangeSet(MetricTemperature)
	}
	stored.ObservedAt = now
	stored.Raw.Lo = newR.Raw.Lo
	return ChangeSet(MetricTemperature)
}

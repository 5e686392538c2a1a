package decode

import "testing"

func TestTX7UTooShort(t *testing.T) {
	seq := &Sequence{Durations: make([]int16, 10)}
	var d TX7U
	reading, ok := d.Decode(seq)
	if ok {
		t.Fatalf("decode succeeded on too-short sequence")
	}
	if reading.DecodingStatus != StatusTooShort {
		t.Errorf("status = %#x, want StatusTooShort", reading.DecodingStatus)
	}
}

func TestTX7UNoPreamble(t *testing.T) {
	durs := make([]int16, 90)
	for i := range durs {
		durs[i] = 1000
	}
	seq := &Sequence{Durations: durs}
	var d TX7U
	reading, ok := d.Decode(seq)
	if ok {
		t.Fatalf("decode succeeded on flat sequence")
	}
	if reading.DecodingStatus != StatusNoPreamble {
		t.Errorf("status = %#x, want StatusNoPreamble", reading.DecodingStatus)
	}
}

func TestTX7UMetricsByType(t *testing.T) {
	var d TX7U
	temp := &SensorReading{Raw: RawWord{Hi: 0}}
	if d.Metrics(temp) != MetricTemperature {
		t.Errorf("type 0 metrics = %v, want MetricTemperature", d.Metrics(temp))
	}
	hum := &SensorReading{Raw: RawWord{Hi: 14}}
	if d.Metrics(hum) != MetricHumidity {
		t.Errorf("type 14 metrics = %v, want MetricHumidity", d.Metrics(hum))
	}
}

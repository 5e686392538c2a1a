package decode

import "testing"

func buildTX141Frame(data uint32, crc uint8) []int16 {
	durs := make([]int16, 0, tx141MinSequence)
	for i := 0; i < 4; i++ {
		durs = append(durs, 833, 833)
	}
	full := uint64(data)<<8 | uint64(crc)
	for i := 39; i >= 0; i-- {
		if full&(1<<uint(i)) != 0 {
			durs = append(durs, 450, 260)
		} else {
			durs = append(durs, 260, 450)
		}
	}
	for len(durs) < tx141MinSequence {
		durs = append(durs, 833)
	}
	return durs
}

func TestTX141RoundTrip(t *testing.T) {
	data := uint32(0x12340150)
	crc := crc8Table(0x31, 0, []byte{
		byte(data >> 24), byte(data >> 16), byte(data >> 8), byte(data), 0,
	})

	seq := &Sequence{Durations: buildTX141Frame(data, crc)}
	var d TX141
	reading, ok := d.Decode(seq)
	if !ok {
		t.Fatalf("decode failed, status=%#x", reading.DecodingStatus)
	}
	if reading.Raw.Lo != data {
		t.Errorf("data = %#x, want %#x", reading.Raw.Lo, data)
	}
}

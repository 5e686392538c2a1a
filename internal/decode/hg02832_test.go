package decode

import "testing"

func buildHG02832Frame(data uint32, checksum uint8) []int16 {
	durs := make([]int16, 0, hg02832MinSequence)
	durs = append(durs, 350, 750, 900, 750, 900, 750, 900, 750)
	full := uint64(data)<<8 | uint64(checksum)
	for i := 39; i >= 0; i-- {
		if full&(1<<uint(i)) != 0 {
			durs = append(durs, 500, 300)
		} else {
			durs = append(durs, 300, 500)
		}
	}
	for len(durs) < hg02832MinSequence {
		durs = append(durs, 300)
	}
	return durs
}

func TestHG02832RoundTrip(t *testing.T) {
	data := uint32(0x12345678)
	xorByte := uint8(data) ^ uint8(data>>8) ^ uint8(data>>16) ^ uint8(data>>24)
	checksum := crc8Table(0x31, 0x53, []byte{xorByte})

	seq := &Sequence{Durations: buildHG02832Frame(data, checksum)}
	var d HG02832
	reading, ok := d.Decode(seq)
	if !ok {
		t.Fatalf("decode failed, status=%#x", reading.DecodingStatus)
	}
	if reading.Raw.Lo != data {
		t.Errorf("data = %#x, want %#x", reading.Raw.Lo, data)
	}
}

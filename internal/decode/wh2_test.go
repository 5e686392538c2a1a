package decode

import (
	"testing"

	"github.com/akonshin-labs/rfgateway/internal/bits"
)

// wh2EncodeBit appends one PWM hi/lo duration pair for bit to durs: a short
// hi pulse (below wh2PWMMedian) encodes 1, a long hi pulse encodes 0, and
// the lo separator is the same either way, matching decodePWM's reading.
func wh2EncodeBit(durs []int16, bit bool) []int16 {
	if bit {
		return append(durs, 700, 900)
	}
	return append(durs, 1200, 900)
}

// wh2Checksum computes the CRC-8 a WH2 frame carrying data must have, via
// the same crc8Bitwise helper Decode uses, rather than a hand-picked value.
func wh2Checksum(data uint32) uint8 {
	tmp := bits.NewVector(32)
	for _, b := range bitsOfUint(data, 32) {
		tmp.Add(b)
	}
	return crc8Bitwise(tmp, 0, 32, 0x31, 0)
}

// buildWH2Frame lays out a 16-duration preamble (only the last hi/lo pair is
// load-bearing in WH2.Decode's preamble scan; the rest is filler kept clear
// of the FT007TH sync-pulse range) followed by the 40 PWM-encoded data and
// checksum bits.
func buildWH2Frame(data uint32, checksum uint8) []int16 {
	durs := make([]int16, 0, 16+80)
	durs = append(durs, 400, 400, 400, 400, 400, 400, 400, 400, 400, 400, 400, 400, 400, 400)
	durs = append(durs, 700, 900)

	for _, b := range bitsOfUint(data, 32) {
		durs = wh2EncodeBit(durs, b)
	}
	for _, b := range bitsOfUint(uint32(checksum), 8) {
		durs = wh2EncodeBit(durs, b)
	}
	return durs
}

func TestWH2RoundTrip(t *testing.T) {
	data := uint32(0x44123456)
	checksum := wh2Checksum(data)

	seq := &Sequence{Durations: buildWH2Frame(data, checksum)}
	var d WH2
	reading, ok := d.Decode(seq)
	if !ok {
		t.Fatalf("decode failed, status=%#x", reading.DecodingStatus)
	}
	if reading.Raw.Lo != data {
		t.Errorf("data = %#x, want %#x", reading.Raw.Lo, data)
	}
	if reading.Raw.Hi&wh2FT007THFlag != 0 {
		t.Errorf("unexpected FT007TH flag set")
	}
}

func TestWH2BadChecksumRejected(t *testing.T) {
	data := uint32(0x44123456)
	checksum := wh2Checksum(data)
	flipped := data ^ 0x00000010

	seq := &Sequence{Durations: buildWH2Frame(flipped, checksum)}
	var d WH2
	reading, ok := d.Decode(seq)
	if ok {
		t.Fatalf("decode succeeded on mismatched checksum, data=%#x", reading.Raw.Lo)
	}
	if reading.DecodingStatus != StatusBadChecksum {
		t.Errorf("status = %#x, want StatusBadChecksum", reading.DecodingStatus)
	}
}

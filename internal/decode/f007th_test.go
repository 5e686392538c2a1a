package decode

import "testing"

// bitsOfUint splits the low n bits of v into individual bools, MSB first,
// matching bits.Vector.Int's accumulation order.
func bitsOfUint(v uint32, n int) []bool {
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		out[i] = v&(1<<uint(n-1-i)) != 0
	}
	return out
}

// f007thHash mirrors the mask/hash loop in F007TH.Decode exactly, so a
// test can compute the checksum a frame must carry rather than guessing it.
func f007thHash(bits []bool) byte {
	mask := 0x7C
	hash := 0x64
	for _, b := range bits {
		bit := mask & 1
		mask = ((mask >> 1) | (mask << 7)) & 0xff
		if bit != 0 {
			mask ^= 0x18
		}
		if b {
			hash ^= mask
		}
	}
	return byte(hash)
}

// f007thManchesterEncode turns payload into a duration sequence decodeManchester
// will recover as exactly those bits. It mirrors decodeManchester's parity
// state machine: a duration >= the half-duration threshold consumes one slot
// and flips the intervalIndex parity; a pair of short durations consumes two
// slots and preserves it. The leading long duration primes adjustment=1,
// landing the main loop on an odd intervalIndex before the first payload bit.
func f007thManchesterEncode(payload []bool) []int16 {
	const long = 700
	const short = 300
	durs := []int16{long}
	parityOdd := true
	for _, bit := range payload {
		if parityOdd {
			if bit {
				durs = append(durs, short, short)
			} else {
				durs = append(durs, long)
				parityOdd = false
			}
		} else {
			if bit {
				durs = append(durs, long)
				parityOdd = true
			} else {
				durs = append(durs, short, short)
			}
		}
	}
	return durs
}

// buildF007THFrame lays out a payload bit-stream (everything decodeManchester
// emits after its two priming bits) for the given data word: 14 bits of
// preamble+ID (0x3D45) at offset 0, the 32-bit data word at offset 14, the
// hash at offset 46, and trailing padding so decodeManchester has room to
// finish its walk.
func buildF007THFrame(data uint32) []int16 {
	payload := make([]bool, 0, 64)
	payload = append(payload, bitsOfUint(0x3d45, 14)...)
	payload = append(payload, bitsOfUint(data, 32)...)

	hashed := append(bitsOfUint(0x45, 8), bitsOfUint(data, 32)...)
	checksum := f007thHash(hashed)
	payload = append(payload, bitsOfUint(uint32(checksum), 8)...)

	payload = append(payload, make([]bool, 8)...)
	return f007thManchesterEncode(payload)
}

func TestF007THRoundTrip(t *testing.T) {
	data := uint32(0x12345678)
	seq := &Sequence{Durations: buildF007THFrame(data)}

	var d F007TH
	reading, ok := d.Decode(seq)
	if !ok {
		t.Fatalf("decode failed, status=%#x", reading.DecodingStatus)
	}
	if reading.Raw.Lo != data {
		t.Errorf("data = %#x, want %#x", reading.Raw.Lo, data)
	}
	if reading.Raw.Hi != 0 {
		t.Errorf("Raw.Hi = %d, want 0 (F007TH variant)", reading.Raw.Hi)
	}
}

func TestF007THBadChecksumRejected(t *testing.T) {
	data := uint32(0x12345678)
	flipped := data ^ 0x00000001

	payload := append([]bool{}, bitsOfUint(0x3d45, 14)...)
	payload = append(payload, bitsOfUint(flipped, 32)...)

	hashed := append(bitsOfUint(0x45, 8), bitsOfUint(data, 32)...)
	checksum := f007thHash(hashed)
	payload = append(payload, bitsOfUint(uint32(checksum), 8)...)
	payload = append(payload, make([]bool, 8)...)

	seq := &Sequence{Durations: f007thManchesterEncode(payload)}
	var d F007TH
	reading, ok := d.Decode(seq)
	if ok {
		t.Fatalf("decode succeeded on mismatched checksum, data=%#x", reading.Raw.Lo)
	}
	if reading.DecodingStatus != StatusBadChecksum {
		t.Errorf("status = %#x, want StatusBadChecksum", reading.DecodingStatus)
	}
}

package decode

import "testing"

// buildTFA303049Frame builds PPM pulse durations for a 36-bit payload given
// in wire (pre-reverse) bit order, matching decodePPM's expectations.
func buildTFA303049Frame(bitsMSBFirst [36]bool) []int16 {
	durs := make([]int16, 0, tfa303049MinSequence)
	for _, b := range bitsMSBFirst {
		durs = append(durs, tfa303049DurationHi)
		if b {
			durs = append(durs, tfa303049DurationLo1)
		} else {
			durs = append(durs, tfa303049DurationLo0)
		}
	}
	for len(durs) < tfa303049MinSequence {
		durs = append(durs, tfa303049DurationHi)
	}
	return durs
}

func TestTFA303049RoundTrip(t *testing.T) {
	// data (after Reverse64) = 0x8_1E0_0_32_5 style payload; build wire bits
	// such that reversing the low 36 transmitted bits yields a known data
	// value with checksum and sign/top-bit constraints satisfied.
	var data uint64 = 0
	data |= 1 << 31               // bit31 set (required top bit of n)
	data |= 0 << 21                // sign bits zero
	data |= uint64(50) << 12       // temperature raw nibbles
	data |= uint64(0x3A) << 24     // rh+28 area (humidity bits 24-30 used)
	data |= uint64(0x05) << 4      // channel bits
	data |= uint64(0x09)           // rolling low nibble

	n := uint32(data)
	var checksum uint8
	m := n
	for i := 0; i < 8; i++ {
		checksum += uint8(m & 15)
		m >>= 4
	}
	checksum &= 15
	data |= uint64(checksum) << 32

	var wireBits [36]bool
	for i := 0; i < 36; i++ {
		if data&(1<<uint(i)) != 0 {
			wireBits[i] = true
		}
	}

	seq := &Sequence{Durations: buildTFA303049Frame(wireBits)}
	var d TFA303049
	reading, ok := d.Decode(seq)
	if !ok {
		t.Fatalf("decode failed, status=%#x", reading.DecodingStatus)
	}
	if d.TemperatureCx10(reading) != 50 {
		t.Errorf("temperature = %d, want 50", d.TemperatureCx10(reading))
	}
}

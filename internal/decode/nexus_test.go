package decode

import "testing"

func buildNexusPackage(word uint64) []int16 {
	durs := make([]int16, 0, nexusMinSequence)
	for i := 35; i >= 0; i-- {
		durs = append(durs, nexusDurationHi)
		if word&(1<<uint(i)) != 0 {
			durs = append(durs, nexusDurationLo1)
		} else {
			durs = append(durs, nexusDurationLo0)
		}
	}
	for len(durs) < nexusMinSequence {
		durs = append(durs, nexusDurationHi)
	}
	return durs
}

func TestNexusMajorityVote(t *testing.T) {
	word := uint64(0x0f2345678) & ((1 << 36) - 1)
	word |= 0x0f00 // constant nibble
	word &^= uint64(7) << 24
	word |= uint64(2) << 24 // channel = 2

	var durs []int16
	for i := 0; i < 3; i++ {
		durs = append(durs, buildNexusPackage(word)...)
		durs = append(durs, nexusSyncDuration)
	}

	seq := &Sequence{Durations: durs}
	var d Nexus
	reading, ok := d.Decode(seq)
	if !ok {
		t.Fatalf("decode failed, status=%#x", reading.DecodingStatus)
	}
	if d.full(reading) != word {
		t.Errorf("data = %#x, want %#x", d.full(reading), word)
	}
	if d.ChannelNumber(reading) != 2 {
		t.Errorf("channel = %d, want 2", d.ChannelNumber(reading))
	}
}

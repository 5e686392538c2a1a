package decode

import "testing"

// buildAcurite592Frame assembles a pulse-duration slice for a given 56-bit
// payload (channel<<48|rolling<<40|status<<32|rh<<24|thi<<16|tlow<<8|checksum
// already folded in), for round-trip testing of Decode.
func buildAcurite592Frame(payload uint64) []int16 {
	durs := make([]int16, 0, 8+112)
	for i := 0; i < 4; i++ {
		durs = append(durs, 600, 600)
	}
	for bit := 55; bit >= 0; bit-- {
		if payload&(1<<uint(bit)) != 0 {
			durs = append(durs, 400, 200)
		} else {
			durs = append(durs, 200, 400)
		}
	}
	durs = append(durs, 600)
	return durs
}

func acurite592Checksum(channel, rolling, status, rh, thi, tlow byte) (byte, error) {
	sum := uint32(channel) + uint32(rolling) + uint32(status) + uint32(rh) + uint32(thi) + uint32(tlow)
	return byte(sum & 255), nil
}

func TestAcuRite00592TXRRoundTrip(t *testing.T) {
	channel := byte(0xC0) // channel bits 3 -> "A"/1
	rolling := byte(0x55)
	status := byte(0x44) // battery ok bit set
	rh := byte(45)
	thi := byte(7)
	tlow := byte(0x23)
	checksum, _ := acurite592Checksum(channel, rolling, status, rh, thi, tlow)

	payload := uint64(channel)<<48 | uint64(rolling)<<40 | uint64(status)<<32 |
		uint64(rh)<<24 | uint64(thi)<<16 | uint64(tlow)<<8 | uint64(checksum)

	seq := &Sequence{Durations: buildAcurite592Frame(payload)}
	var d AcuRite00592TXR
	reading, ok := d.Decode(seq)
	if !ok {
		t.Fatalf("decode failed, status=%#x bits=%d", reading.DecodingStatus, reading.DecodedBits)
	}
	if d.ChannelNumber(reading) != 1 {
		t.Errorf("channel number = %d, want 1", d.ChannelNumber(reading))
	}
	if !d.BatteryOK(reading) {
		t.Errorf("battery status = false, want true")
	}
	if d.Humidity(reading) != int(rh&127) {
		t.Errorf("humidity = %d, want %d", d.Humidity(reading), rh&127)
	}
	if d.RollingCode(reading) != uint16(rolling)&0xfff {
		t.Errorf("rolling code = %d, want %d", d.RollingCode(reading), rolling)
	}
}

func TestAcuRite00592TXRBadChecksum(t *testing.T) {
	channel := byte(0x80)
	rolling := byte(0x12)
	status := byte(0x04)
	rh := byte(50)
	thi := byte(5)
	tlow := byte(0x10)
	payload := uint64(channel)<<48 | uint64(rolling)<<40 | uint64(status)<<32 |
		uint64(rh)<<24 | uint64(thi)<<16 | uint64(tlow)<<8 | uint64(0xff)

	seq := &Sequence{Durations: buildAcurite592Frame(payload)}
	var d AcuRite00592TXR
	reading, ok := d.Decode(seq)
	if ok {
		t.Fatalf("decode succeeded, want checksum failure")
	}
	if reading.DecodingStatus != StatusBadChecksum {
		t.Errorf("status = %#x, want StatusBadChecksum", reading.DecodingStatus)
	}
}

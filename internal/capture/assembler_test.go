package capture

import (
	"testing"

	"github.com/akonshin-labs/rfgateway/internal/decode"
)

func testLimits() decode.Limits {
	return decode.Limits{MinDurationUs: 50, MaxDurationUs: 10000, MinSequenceLength: 4}
}

func TestAssemblerFeedPulseRoundTrip(t *testing.T) {
	a := NewAssembler(testLimits())

	for _, d := range []uint32{600, 400, 600, 400, 600} {
		seq, ready := a.Feed(Event{Filtered: true, Level: true, DurationUs: d})
		if ready {
			t.Fatalf("sequence closed early")
		}
		_ = seq
	}
	seq, ready := a.Feed(Event{Break: true})
	if !ready {
		t.Fatalf("expected sequence on break, stats=%+v", a.Stats())
	}
	if len(seq.Durations) != 5 {
		t.Errorf("durations len = %d, want 5", len(seq.Durations))
	}
}

func TestAssemblerDropsShortSequence(t *testing.T) {
	a := NewAssembler(testLimits())
	a.Feed(Event{Filtered: true, Level: true, DurationUs: 600})
	_, ready := a.Feed(Event{Break: true})
	if ready {
		t.Fatalf("short sequence should have been dropped")
	}
	if a.Stats().Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", a.Stats().Dropped)
	}
}

func TestAssemblerClosesOnOutOfRangeDuration(t *testing.T) {
	a := NewAssembler(testLimits())
	for _, d := range []uint32{600, 400, 600, 400} {
		a.Feed(Event{Filtered: true, Level: true, DurationUs: d})
	}
	seq, ready := a.Feed(Event{Filtered: true, Level: true, DurationUs: 50000})
	if !ready {
		t.Fatalf("out-of-range duration should close the sequence")
	}
	if len(seq.Durations) != 4 {
		t.Errorf("durations len = %d, want 4", len(seq.Durations))
	}
}

func TestAssemblerEdgeNoiseFilterAbsorbsShortSpike(t *testing.T) {
	a := NewAssembler(testLimits())

	var tick uint32
	push := func(level bool, delta uint32) (*decode.Sequence, bool) {
		tick += delta
		return a.Feed(Event{Level: level, TickUs: tick})
	}

	push(true, 0)
	push(false, 600)
	push(true, 400)
	push(false, 600)

	// short spike: rises, then a sub-IGNORABLE_SKIP blip, then falls again
	push(true, 30)
	seq, ready := push(false, 30)
	if ready {
		t.Fatalf("absorbed spike should not close the sequence early, seq=%v", seq)
	}

	push(true, 600)
	push(false, 3000)

	seq, ready = a.Feed(Event{Break: true})
	if !ready {
		t.Fatalf("expected sequence on break, stats=%+v", a.Stats())
	}
	if len(seq.Durations) != 4 {
		t.Errorf("durations len = %d, want 4 (spike absorbed, not counted as a pulse)", len(seq.Durations))
	}
	if a.Stats().Corrected != 1 {
		t.Errorf("Corrected = %d, want 1", a.Stats().Corrected)
	}
}

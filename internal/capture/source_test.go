package capture

import (
	"context"
	"strings"
	"testing"
)

func TestReplaySourceParsesCommaSeparatedLine(t *testing.T) {
	src := NewReplaySource(strings.NewReader("600,400,600,400\n"))
	ctx := context.Background()

	var durs []uint32
	for i := 0; i < 4; i++ {
		ev, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if !ev.Filtered {
			t.Fatalf("event %d not filtered", i)
		}
		durs = append(durs, ev.DurationUs)
	}
	want := []uint32{600, 400, 600, 400}
	for i, d := range want {
		if durs[i] != d {
			t.Errorf("duration[%d] = %d, want %d", i, durs[i], d)
		}
	}

	if _, err := src.Next(ctx); err == nil {
		t.Fatalf("expected EOF after the single line")
	}
}

func TestReplaySourceSkipsSequenceSizePrefix(t *testing.T) {
	src := NewReplaySource(strings.NewReader("sequence size=3 start=0: 100,200,300\n"))
	ctx := context.Background()

	ev, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if ev.DurationUs != 100 {
		t.Errorf("first duration = %d, want 100", ev.DurationUs)
	}
}

func TestCallbackSourcePushAndDrain(t *testing.T) {
	src := NewCallbackSource(4)
	src.Push(true, 1000)
	src.Push(false, 1500)

	ctx := context.Background()
	ev, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if ev.Filtered {
		t.Errorf("callback events are raw edges, not filtered pulses")
	}
	if ev.TickUs != 1000 {
		t.Errorf("first event tick = %d, want 1000", ev.TickUs)
	}
}

func TestCallbackSourceOverflowCounts(t *testing.T) {
	src := NewCallbackSource(1)
	src.Push(true, 1)
	src.Push(false, 2) // queue depth 1, this one should overflow
	if src.Stats().DriverOverflow != 1 {
		t.Errorf("DriverOverflow = %d, want 1", src.Stats().DriverOverflow)
	}
}

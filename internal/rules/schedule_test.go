package rules

import "testing"

func TestFixedScheduleBounds(t *testing.T) {
	s := Fixed{Bounds: Bounds{Lo: 680, Hi: 750}}
	tests := []struct {
		value int
		want  Outcome
	}{
		{670, Lower},
		{700, Inside},
		{760, Higher},
	}
	for _, tt := range tests {
		if got := s.Check(tt.value, 0); got != tt.want {
			t.Errorf("Check(%d) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestCyclicScheduleWrapsAcrossMidnight(t *testing.T) {
	// Schedule 72..75[08:00] 68..72[22:00] from spec.md's scenario 5.
	s := NewCyclic([]ScheduleItem{
		{OffsetMinutes: 8 * 60, Bounds: Bounds{Lo: 720, Hi: 750}},
		{OffsetMinutes: 22 * 60, Bounds: Bounds{Lo: 680, Hi: 720}},
	})

	if got := s.Check(700, 9*60); got != Lower {
		t.Errorf("09:00 T=70F: Check = %v, want Lower", got)
	}
	if got := s.Check(700, 23*60); got != Inside {
		t.Errorf("23:00 T=70F: Check = %v, want Inside", got)
	}
	// Before the first item of the day, the schedule wraps to the last
	// (latest-offset) item from the previous day.
	if got := s.Check(700, 2*60); got != Inside {
		t.Errorf("02:00 T=70F: Check = %v, want Inside (wrapped from 22:00 item)", got)
	}
}

func TestUnboundedSideNeverTrips(t *testing.T) {
	s := Fixed{Bounds: Bounds{Lo: -noBound, Hi: 750}}
	if got := s.Check(-1000000, 0); got != Inside {
		t.Errorf("Check with open lower bound = %v, want Inside", got)
	}
}

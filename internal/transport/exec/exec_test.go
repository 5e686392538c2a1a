package exec

import (
	"reflect"
	"testing"
)

type recordingSpawner struct {
	calls [][]string
}

func (r *recordingSpawner) Spawn(argv []string) error {
	r.calls = append(r.calls, argv)
	return nil
}

func TestSinkSplitsAndSpawns(t *testing.T) {
	spawner := &recordingSpawner{}
	sink := &Sink{Spawner: spawner}

	if err := sink.Dispatch(`notify-send "Outside Temp" 72.5`); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(spawner.calls) != 1 {
		t.Fatalf("len(calls) = %d, want 1", len(spawner.calls))
	}
	want := []string{"notify-send", "Outside Temp", "72.5"}
	if !reflect.DeepEqual(spawner.calls[0], want) {
		t.Errorf("calls[0] = %v, want %v", spawner.calls[0], want)
	}
}

func TestSinkEmptyMessageDoesNotSpawn(t *testing.T) {
	spawner := &recordingSpawner{}
	sink := &Sink{Spawner: spawner}

	if err := sink.Dispatch("   "); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(spawner.calls) != 0 {
		t.Errorf("len(calls) = %d, want 0 for empty message", len(spawner.calls))
	}
}

package rules

import (
	"reflect"
	"testing"
)

func TestSplitArgvSimple(t *testing.T) {
	got, err := SplitArgv("mosquitto_pub -t sensors/outside -m 72.5")
	if err != nil {
		t.Fatalf("SplitArgv: %v", err)
	}
	want := []string{"mosquitto_pub", "-t", "sensors/outside", "-m", "72.5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitArgv = %v, want %v", got, want)
	}
}

func TestSplitArgvQuotedTokenWithSpaces(t *testing.T) {
	got, err := SplitArgv(`notify-send "Outside Temp" "72.5 F"`)
	if err != nil {
		t.Fatalf("SplitArgv: %v", err)
	}
	want := []string{"notify-send", "Outside Temp", "72.5 F"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitArgv = %v, want %v", got, want)
	}
}

func TestSplitArgvEscapes(t *testing.T) {
	got, err := SplitArgv(`echo "line1\nline2\x41"`)
	if err != nil {
		t.Fatalf("SplitArgv: %v", err)
	}
	want := []string{"echo", "line1\nline2A"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitArgv = %v, want %v", got, want)
	}
}

func TestSplitArgvCommentStripped(t *testing.T) {
	got, err := SplitArgv("echo hello # this is ignored")
	if err != nil {
		t.Fatalf("SplitArgv: %v", err)
	}
	want := []string{"echo", "hello"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitArgv = %v, want %v", got, want)
	}
}

func TestSplitArgvUnmatchedQuoteErrors(t *testing.T) {
	_, err := SplitArgv(`echo "unterminated`)
	if err == nil {
		t.Fatalf("SplitArgv: want error for unmatched quote")
	}
}

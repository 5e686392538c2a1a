// Package capture implements the edge source and sequence assembler
// (components B and C): it turns GPIO-level edges into candidate pulse
// sequences and hands them to the decoder dispatcher. Grounded on
// original_source/common/Receiver.hpp and Receiver.cpp.
package capture

import (
	"context"

	"github.com/akonshin-labs/rfgateway/internal/decode"
)

// Event is one step delivered by a Source. A pre-filtered source
// (KernelSource, ReplaySource, SerialSource) sets Filtered and carries a
// ready-to-use duration; the interrupt-callback source (CallbackSource)
// leaves Filtered false and carries a raw (level, tick) pair that the
// Assembler's noise filter must still resolve into a duration.
type Event struct {
	Break      bool   // true ends whatever sequence is currently open
	Filtered   bool   // true: DurationUs is a finished pulse; false: Level/TickUs are a raw edge
	Level      bool   // level after the edge (raw) or of the pulse just ended (filtered)
	DurationUs uint32 // valid when Filtered
	TickUs     uint32 // valid when !Filtered, a free-running microsecond counter
}

// Stats are the non-fatal counters spec.md §4.B/4.C ask every source and
// the assembler to report; they mirror Receiver::statistics.
type Stats struct {
	Interrupts           uint64
	Skipped              uint64
	Corrected            uint64
	Dropped              uint64
	SequencePoolOverflow uint64
	DriverOverflow       uint64
	Sequences            uint64
}

// Source is the capability interface spec.md §4.B asks for: a blocking
// read that yields either a pulse or a sequence-break token, interchangeable
// across kernel character-device, GPIO interrupt callback, serial-dongle,
// and file-replay backends.
type Source interface {
	Next(ctx context.Context) (Event, error)
	Stats() Stats
	Close() error
}

// Limits narrows the assembler's accept window; Registry.Limits() (internal/decode)
// produces one from the active protocol set.
type Limits = decode.Limits

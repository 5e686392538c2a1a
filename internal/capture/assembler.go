package capture

import (
	"context"

	"github.com/akonshin-labs/rfgateway/internal/decode"
)

const (
	maxSequenceLength = 400
	ignorableSkipUs   = 60
	maxIgnoredSkips   = 2
	maxPeriodUs       = 10000
)

// Assembler holds the sequence-in-progress state machine (spec.md §4.C):
// it consumes Events from a Source and emits completed Sequences on a
// bounded output channel, dropping the in-flight sequence rather than
// blocking capture when that channel is full. It replaces
// Receiver::handleInterrupt/readSequences' shared pool/directory ring
// buffers with Go's native bounded-channel backpressure; each Sequence
// owns its own duration slice instead of aliasing a shared ring, since Go
// does not need the ring's alloc-avoidance trick to stay allocation-light.
type Assembler struct {
	limits decode.Limits

	durations  []int16
	startUs    uint32
	open       bool
	lastLevel  bool
	haveLevel  bool
	lastTimeUs uint32

	noiseCounter   int
	lastGoodTimeUs uint32

	stats Stats
}

// NewAssembler builds an Assembler that only accepts pulses within limits.
func NewAssembler(limits decode.Limits) *Assembler {
	return &Assembler{limits: limits}
}

// Stats reports the assembler's own drop/overflow/correction counters.
func (a *Assembler) Stats() Stats { return a.stats }

// Run pulls Events from src until ctx is done or src.Next returns an
// error, feeding each into the state machine and publishing completed
// sequences on out. A full out channel is treated like a full sequence
// directory: the in-flight sequence is dropped and SequencePoolOverflow
// is counted, exactly as Receiver::handleInterrupt does on directory
// overflow.
func (a *Assembler) Run(ctx context.Context, src Source, out chan<- *decode.Sequence) error {
	for {
		ev, err := src.Next(ctx)
		if err != nil {
			return err
		}
		if seq, ready := a.Feed(ev); ready {
			select {
			case out <- seq:
			default:
				a.stats.SequencePoolOverflow++
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Feed advances the state machine by one Event and reports a completed
// Sequence when one closes with enough pulses to survive
// min_sequence_length.
func (a *Assembler) Feed(ev Event) (*decode.Sequence, bool) {
	if ev.Break {
		return a.close()
	}
	if ev.Filtered {
		a.stats.Interrupts++
		return a.acceptPulse(ev.Level, ev.DurationUs)
	}
	return a.acceptEdge(ev.Level, ev.TickUs)
}

// acceptPulse implements state-machine steps 1/2/4/5 for sources that
// already deliver filtered (level, duration) pulses: KernelSource,
// ReplaySource, SerialSource.
func (a *Assembler) acceptPulse(level bool, durationUs uint32) (*decode.Sequence, bool) {
	if !a.open {
		if !level || durationUs < a.limits.MinDurationUs {
			return nil, false
		}
		a.startSequence(level, durationUs, 0)
		return nil, false
	}
	if durationUs < a.limits.MinDurationUs || durationUs > a.limits.MaxDurationUs {
		return a.close()
	}
	a.durations = append(a.durations, int16(durationUs))
	if len(a.durations) >= maxSequenceLength {
		return a.close()
	}
	return nil, false
}

// acceptEdge implements Receiver::handleInterrupt's edge-to-duration
// translation plus the noise filter (state-machine step 3), used only by
// CallbackSource.
func (a *Assembler) acceptEdge(level bool, tickUs uint32) (*decode.Sequence, bool) {
	a.stats.Interrupts++
	duration := tickUs - a.lastTimeUs
	a.lastTimeUs = tickUs

	if !a.open {
		if a.haveLevel && level == a.lastLevel {
			return nil, false // still noise
		}
		a.lastLevel = level
		a.haveLevel = true
		if !level { // sequence must start on a rising (high) edge
			return nil, false
		}
		if duration < a.limits.MinDurationUs {
			return nil, false
		}
		a.startSequence(level, duration, tickUs)
		a.noiseCounter = 0
		a.lastGoodTimeUs = tickUs
		return nil, false
	}

	oldLevel := a.lastLevel
	a.lastLevel = level

	if a.noiseCounter > 0 {
		if a.noiseCounter&1 == 1 {
			if duration > ignorableSkipUs {
				return a.close()
			}
			if level == oldLevel {
				a.noiseCounter += 2
			} else {
				a.noiseCounter++
			}
			if a.noiseCounter > maxIgnoredSkips*2 {
				return a.close()
			}
			if tickUs-a.lastGoodTimeUs > maxPeriodUs {
				return a.close()
			}
			return nil, false
		}
		if duration < ignorableSkipUs || level == oldLevel {
			return a.close()
		}
		corrected := tickUs - a.lastGoodTimeUs
		if corrected > maxPeriodUs {
			return a.close()
		}
		if corrected < a.limits.MinDurationUs {
			a.noiseCounter++
			if a.noiseCounter > maxIgnoredSkips*2 {
				return a.close()
			}
			return nil, false
		}
		duration = corrected
		a.stats.Corrected++
	} else if duration < a.limits.MinDurationUs {
		if !level {
			return a.close() // short spike, discard
		}
		if duration > ignorableSkipUs {
			return a.close()
		}
		a.noiseCounter = 1
		return nil, false
	}

	a.noiseCounter = 0
	a.lastGoodTimeUs = tickUs

	if level == oldLevel {
		a.stats.Skipped++
		return a.close()
	}
	if duration > a.limits.MaxDurationUs {
		return a.close()
	}

	a.durations = append(a.durations, int16(duration))
	if len(a.durations) >= maxSequenceLength {
		return a.close()
	}
	return nil, false
}

func (a *Assembler) startSequence(level bool, durationUs, startTickUs uint32) {
	a.durations = append(a.durations[:0], int16(durationUs))
	a.startUs = startTickUs
	a.open = true
	a.lastLevel = level
	a.haveLevel = true
}

func (a *Assembler) close() (*decode.Sequence, bool) {
	a.open = false
	n := len(a.durations)
	if n < a.limits.MinSequenceLength {
		a.stats.Dropped++
		a.durations = a.durations[:0]
		return nil, false
	}
	seq := &decode.Sequence{
		Durations:        append([]int16(nil), a.durations...),
		StartHigh:        true,
		StartMonotonicUs: a.startUs,
	}
	a.durations = a.durations[:0]
	a.stats.Sequences++
	return seq, true
}

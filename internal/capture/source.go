package capture

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/tarm/serial"
)

// gpioTSRecordSize is the byte width of one kernel gpio-ts record: a
// little-endian uint32 whose top two bits are the status (0 = level 0,
// 1 = level 1, 2 = noise, 3 = lost data) and whose low 30 bits are the
// duration in microseconds.
const gpioTSRecordSize = 4

// gpioTSMaxDuration is the sentinel duration value (all 30 duration bits
// set) the kernel driver uses for a duration at or beyond its maximum.
const gpioTSMaxDuration = 1<<30 - 1

// KernelSource reads pre-filtered (status, duration) records from a
// character device exposed by a kernel GPIO timestamping driver.
// Grounded on Receiver::readSequences' USE_GPIO_TS branch, which reads a
// batch of records per syscall and processes each in turn.
type KernelSource struct {
	r       io.Reader
	stat    Stats
	buf     [gpioTSRecordSize * 512]byte
	pending []uint32
	mu      sync.Mutex
}

// NewKernelSource wraps an open character device (or any reader that
// yields gpio-ts records) as a Source.
func NewKernelSource(r io.Reader) *KernelSource { return &KernelSource{r: r} }

func (s *KernelSource) Next(ctx context.Context) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		n, err := s.r.Read(s.buf[:])
		if err != nil {
			return Event{}, err
		}
		nItems := n / gpioTSRecordSize
		if nItems == 0 {
			return Event{Break: true}, nil
		}
		s.pending = s.pending[:0]
		for i := 0; i < nItems; i++ {
			s.pending = append(s.pending, binary.LittleEndian.Uint32(s.buf[i*gpioTSRecordSize:]))
		}
	}

	item := s.pending[0]
	s.pending = s.pending[1:]

	status := item >> 30
	duration := item & gpioTSMaxDuration
	if status == 3 || duration == gpioTSMaxDuration {
		s.stat.DriverOverflow++
	}
	if status > 1 || duration == gpioTSMaxDuration {
		return Event{Break: true}, nil
	}
	return Event{Filtered: true, Level: status == 1, DurationUs: duration}, nil
}

func (s *KernelSource) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stat
}

func (s *KernelSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// CallbackSource is fed by a GPIO interrupt callback registered with the
// platform's edge-detection API (e.g. pigpio); each callback invocation
// pushes one raw (level, tick) pair that the Assembler's noise filter
// must still resolve. Grounded on Receiver::interruptCallback/handleInterrupt.
type CallbackSource struct {
	events chan Event
	stat   struct {
		sync.Mutex
		Stats
	}
}

// NewCallbackSource builds a CallbackSource with a bounded internal
// queue; when the queue is full, Push drops the new event and increments
// DriverOverflow instead of blocking the interrupt handler.
func NewCallbackSource(queueDepth int) *CallbackSource {
	return &CallbackSource{events: make(chan Event, queueDepth)}
}

// Push is the interrupt callback entry point: call it from the GPIO
// library's edge callback with the reported level and monotonic tick.
func (s *CallbackSource) Push(level bool, tickUs uint32) {
	ev := Event{Level: level, TickUs: tickUs}
	select {
	case s.events <- ev:
	default:
		s.stat.Lock()
		s.stat.DriverOverflow++
		s.stat.Unlock()
	}
}

func (s *CallbackSource) Next(ctx context.Context) (Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (s *CallbackSource) Stats() Stats {
	s.stat.Lock()
	defer s.stat.Unlock()
	return s.stat.Stats
}

func (s *CallbackSource) Close() error {
	return nil
}

// ReplaySource reconstructs sequences from a text log, one sequence per
// line as a comma-separated list of pulse durations (optionally prefixed
// by a "sequence size=N " marker, which is skipped). Grounded on
// Receiver::readSequences' TEST_DECODING branch.
type ReplaySource struct {
	sc   *bufio.Scanner
	rc   io.Closer
	stat Stats

	pending []int16
}

// NewReplaySource wraps a log reader (typically an *os.File) as a Source.
func NewReplaySource(r io.Reader) *ReplaySource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	rs := &ReplaySource{sc: sc}
	if c, ok := r.(io.Closer); ok {
		rs.rc = c
	}
	return rs
}

func (s *ReplaySource) Next(ctx context.Context) (Event, error) {
	if len(s.pending) > 0 {
		d := s.pending[0]
		s.pending = s.pending[1:]
		level := true
		return Event{Filtered: true, Level: level, DurationUs: uint32(d)}, nil
	}
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return Event{}, err
		}
		return Event{}, io.EOF
	}
	line := s.sc.Text()
	if idx := strings.Index(line, "sequence size="); idx >= 0 {
		if sp := strings.IndexByte(line[idx:], ' '); sp >= 0 {
			if tail := strings.SplitN(line[idx+sp+1:], ":", 2); len(tail) == 2 {
				line = tail[1]
			}
		}
	}
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' })
	durs := make([]int16, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseInt(strings.TrimSpace(f), 10, 32)
		if err != nil {
			continue
		}
		durs = append(durs, int16(v))
	}
	if len(durs) == 0 {
		return Event{Break: true}, nil
	}
	s.pending = durs
	return s.Next(ctx)
}

func (s *ReplaySource) Stats() Stats { return s.stat }

func (s *ReplaySource) Close() error {
	if s.rc != nil {
		return s.rc.Close()
	}
	return nil
}

// SerialSource reads pulse records from a USB 433 MHz receiver dongle
// that timestamps its own edges and reports them as newline-terminated
// "level,duration_us" pairs. Styled on newport.ESP301's serial.Config use
// (not present in the distillation source; supplements it with a
// transport the rest of the pack exercises via github.com/tarm/serial).
type SerialSource struct {
	port *serial.Port
	sc   *bufio.Scanner
	stat Stats
}

// SerialConf builds the serial.Config for a dongle at addr.
func SerialConf(addr string, baud int) *serial.Config {
	return &serial.Config{Name: addr, Baud: baud}
}

// NewSerialSource opens addr at baud and wraps it as a Source.
func NewSerialSource(addr string, baud int) (*SerialSource, error) {
	port, err := serial.OpenPort(SerialConf(addr, baud))
	if err != nil {
		return nil, fmt.Errorf("capture: opening serial dongle %s: %w", addr, err)
	}
	return &SerialSource{port: port, sc: bufio.NewScanner(port)}, nil
}

func (s *SerialSource) Next(ctx context.Context) (Event, error) {
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return Event{}, err
		}
		return Event{}, io.EOF
	}
	parts := strings.SplitN(s.sc.Text(), ",", 2)
	if len(parts) != 2 {
		s.stat.DriverOverflow++
		return Event{Break: true}, nil
	}
	level := parts[0] == "1"
	dur, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 32)
	if err != nil {
		s.stat.DriverOverflow++
		return Event{Break: true}, nil
	}
	return Event{Filtered: true, Level: level, DurationUs: uint32(dur)}, nil
}

func (s *SerialSource) Stats() Stats { return s.stat }

func (s *SerialSource) Close() error { return s.port.Close() }

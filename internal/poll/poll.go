// Package poll implements the DS18B20 poll source (component I):
// periodic enumeration of 1-wire device nodes, parsing of the kernel's
// w1_slave text format, and synthesis of readings fed into the same
// decoded-message path the RF decoders use. Grounded on
// original_source/common/Receiver.cpp's pollW1/pollster.
package poll

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/akonshin-labs/rfgateway/internal/decode"
)

// DefaultDevicesPath is W1_DEVICES_PATH from the source.
const DefaultDevicesPath = "/sys/bus/w1/devices"

// DefaultInterval is the pollster's hardcoded 15s wait time.
const DefaultInterval = 15 * time.Second

// Sink receives each synthesized DS18B20 reading, the same interface a
// decoder-thread consumer would implement for RF readings.
type Sink interface {
	Poll(d decode.DS18B20, r *decode.SensorReading)
}

// Poller periodically scans DevicesPath for 28-XXXXXXXXXXXX entries and
// hands each successfully parsed temperature to Sink.
type Poller struct {
	DevicesPath string
	Interval    time.Duration
	Sink        Sink

	limiter *rate.Limiter
}

// New builds a Poller throttled to at most one scan per interval (a
// rate.Limiter stands in for the source's pthread_cond_timedwait loop,
// since Go has no condvar-based sleep-until-signalled primitive as
// idiomatic as a ticker bounded by a limiter for this one-poller case).
func New(devicesPath string, interval time.Duration, sink Sink) *Poller {
	if devicesPath == "" {
		devicesPath = DefaultDevicesPath
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		DevicesPath: devicesPath,
		Interval:    interval,
		Sink:        sink,
		limiter:     rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Run scans repeatedly until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}
		p.scanOnce()
	}
}

func (p *Poller) scanOnce() {
	entries, err := os.ReadDir(p.DevicesPath)
	if err != nil {
		return
	}
	var d decode.DS18B20
	for _, ent := range entries {
		id, ok := parseW1DeviceName(ent.Name())
		if !ok {
			continue
		}
		milliCelsius, ok := readW1Slave(filepath.Join(p.DevicesPath, ent.Name(), "w1_slave"))
		if !ok {
			continue
		}
		reading := d.NewReading(id, milliCelsius)
		if p.Sink != nil {
			p.Sink.Poll(d, reading)
		}
	}
}

// parseW1DeviceName accepts names of the exact form "28-0000XXXXXXXX"
// (15 characters, 12 hex digits of which the first four are zero) and
// returns the packed 32-bit id get_W1_id builds from the low 8 hex
// digits; an id of zero is rejected.
func parseW1DeviceName(name string) (uint32, bool) {
	if len(name) != 15 || !strings.HasPrefix(name, "28-0000") {
		return 0, false
	}
	id, err := strconv.ParseUint(name[7:], 16, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint32(id), true
}

// readW1Slave parses the kernel's two-line w1_slave response:
//
//	3e 01 4b 46 7f ff 02 10 6c : crc=6c YES
//	3e 01 4b 46 7f ff 02 10 6c t=19875
//
// Acceptance requires the first line's CRC check to read YES and the
// second line to carry a t=<n> field, n in millidegrees Celsius.
func readW1Slave(path string) (int32, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, false
	}
	if !strings.HasSuffix(strings.TrimRight(scanner.Text(), "\r\n"), "YES") {
		return 0, false
	}
	if !scanner.Scan() {
		return 0, false
	}
	line := scanner.Text()
	idx := strings.Index(line, "t=")
	if idx < 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(line[idx+2:]), 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(n), true
}

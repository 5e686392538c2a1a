package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/theckman/yacspin"

	"github.com/akonshin-labs/rfgateway/internal/capture"
	"github.com/akonshin-labs/rfgateway/internal/config"
	"github.com/akonshin-labs/rfgateway/internal/decode"
	"github.com/akonshin-labs/rfgateway/internal/diag"
	"github.com/akonshin-labs/rfgateway/internal/poll"
	"github.com/akonshin-labs/rfgateway/internal/queryapi"
	"github.com/akonshin-labs/rfgateway/internal/rlog"
	"github.com/akonshin-labs/rfgateway/internal/rules"
	"github.com/akonshin-labs/rfgateway/internal/sensors"
	execsink "github.com/akonshin-labs/rfgateway/internal/transport/exec"
	mqttsink "github.com/akonshin-labs/rfgateway/internal/transport/mqtt"
	restsink "github.com/akonshin-labs/rfgateway/internal/transport/rest"
)

// Version is the version number. Typically injected via ldflags with git build.
var Version = "0"

// ConfigFileName is the default configuration path, overridable with -c.
var ConfigFileName = "rfgatewayd.yml"

func allDecoders() []decode.Decoder {
	return []decode.Decoder{
		decode.F007TH{},
		decode.AcuRite00592TXR{},
		decode.TFA303049{},
		decode.HG02832{},
		decode.WH2{},
		decode.Nexus{},
		decode.TX7U{},
		decode.TX141{},
		decode.DS18B20{},
	}
}

func openSource(cfg config.CaptureConfig) (capture.Source, error) {
	switch cfg.Kind {
	case "replay":
		f, err := os.Open(cfg.ReplayFile)
		if err != nil {
			return nil, fmt.Errorf("opening replay file: %w", err)
		}
		return capture.NewReplaySource(f), nil
	case "serial":
		return capture.NewSerialSource(cfg.Device, cfg.BaudRate)
	default:
		f, err := os.Open(cfg.Device)
		if err != nil {
			return nil, fmt.Errorf("opening capture device: %w", err)
		}
		return capture.NewKernelSource(f), nil
	}
}

// namesBox lets the sink factory hand every REST sink a live lookup
// before config.Build has finished producing the real config.Names —
// Dispatch is only ever called after Build returns, so the box only
// needs to be filled before the gateway starts reading sequences.
type namesBox struct{ inner config.Names }

func (n *namesBox) Name(identity sensors.Identity) (string, bool) { return n.inner.Name(identity) }

func main() {
	configPath := flag.String("c", ConfigFileName, "path to the gateway's yaml configuration")
	printVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()
	if *printVersion {
		fmt.Printf("rfgatewayd version %s\n", Version)
		return
	}

	log := rlog.New(os.Stderr, "gateway")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("loading config: %v", err)
	}

	spinner, _ := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " starting rfgatewayd",
		SuffixAutoColon: true,
		Message:         "connecting to sensors",
	})
	if spinner != nil {
		spinner.Start()
	}

	decoders := allDecoders()
	var rfDecoders []decode.Decoder
	for _, d := range decoders {
		if d.Features()&decode.FeatureRF != 0 {
			rfDecoders = append(rfDecoders, d)
		}
	}
	decodeRegistry := decode.NewRegistry(rfDecoders...)

	historyDepth := time.Duration(cfg.HistoryHours) * time.Hour
	sensorRegistry := sensors.NewRegistry(256, historyDepth)

	var mqttPublisher *mqttsink.Publisher
	if cfg.MQTT.Enabled {
		mqttPublisher = mqttsink.New(mqttsink.Config{
			ClientID:  cfg.MQTT.ClientID,
			Host:      cfg.MQTT.Host,
			Port:      cfg.MQTT.Port,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			Keepalive: cfg.MQTT.Keepalive,
		}, log.With("mqtt"))
		if err := mqttPublisher.Connect(); err != nil {
			log.Fatal("connecting to mqtt broker: %v", err)
		}
		defer mqttPublisher.Disconnect()
	}

	var restPublisher *restsink.Publisher
	if cfg.REST.Enabled {
		format := restsink.FormatJSON
		if cfg.REST.Format == "influx" {
			format = restsink.FormatInfluxLine
		}
		method := restsink.MethodPUT
		if cfg.REST.Method == "POST" {
			method = restsink.MethodPOST
		}
		restPublisher = restsink.New(restsink.Config{
			URL:         cfg.REST.URL,
			Method:      method,
			Format:      format,
			Measurement: cfg.REST.Measurement,
			Celsius:     cfg.REST.Celsius,
			UTC:         cfg.REST.UTC,
		}, log.With("rest"))
	}

	names := &namesBox{}
	sinkFor := func(sd config.SinkDef, identity sensors.Identity) rules.Sink {
		switch sd.Kind {
		case "mqtt":
			if mqttPublisher == nil {
				return nil
			}
			return &mqttsink.Sink{Publisher: mqttPublisher, Topic: sd.Topic}
		case "exec":
			return execsink.NewSink()
		case "rest":
			if restPublisher == nil {
				return nil
			}
			return &restsink.Sink{
				Publisher: restPublisher,
				Registry:  sensorRegistry,
				Names:     names,
				Identity:  identity,
			}
		default:
			return stdoutSink{log: log.With("rule")}
		}
	}

	resolvedNames, chains, err := config.Build(cfg, decoders, sinkFor)
	if err != nil {
		log.Fatal("building rule chains: %v", err)
	}
	names.inner = resolvedNames

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, err := openSource(cfg.Capture)
	if err != nil {
		log.Fatal("opening capture source: %v", err)
	}
	defer src.Close()

	asm := capture.NewAssembler(decodeRegistry.Limits())
	sequences := make(chan *decode.Sequence, 64)

	go func() {
		if err := asm.Run(ctx, src, sequences); err != nil && ctx.Err() == nil {
			log.Error("capture source ended: %v", err)
			cancel()
		}
	}()

	if cfg.Poll.Enabled {
		poller := poll.New(cfg.Poll.DevicesPath, cfg.Poll.Interval, registrySink{
			sensorRegistry: sensorRegistry,
			chains:         chains,
			names:          names,
		})
		go func() {
			if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("poll source ended: %v", err)
			}
		}()
	}

	if cfg.QueryAPI.Enabled {
		api := queryapi.New(sensorRegistry, names, Version)
		go func() {
			log.Info("query API listening on %s", cfg.QueryAPI.Addr)
			if err := http.ListenAndServe(cfg.QueryAPI.Addr, api.Routes()); err != nil {
				log.Error("query API stopped: %v", err)
			}
		}()
	}

	if spinner != nil {
		spinner.Stop()
	}
	log.Info("rfgatewayd running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	for {
		select {
		case s := <-sig:
			if s == syscall.SIGUSR1 {
				diag.Dump(log, src, asm, decodeRegistry)
				continue
			}
			log.Info("received %v, shutting down", s)
			cancel()
			return
		case seq := <-sequences:
			handleSequence(seq, decodeRegistry, sensorRegistry, chains, names, log)
		case <-ctx.Done():
			return
		}
	}
}

// stdoutSink prints a rendered rule message, matching the source's
// default (no transport configured) action.
type stdoutSink struct{ log *rlog.Logger }

func (s stdoutSink) Dispatch(message string) error {
	s.log.Info("%s", message)
	return nil
}

var _ rules.Sink = stdoutSink{}

// registrySink adapts the poll source's Sink contract to the same
// merge-then-evaluate path a decoded RF reading takes.
type registrySink struct {
	sensorRegistry *sensors.Registry
	chains         map[sensors.Identity]rules.Chain
	names          *namesBox
}

func (s registrySink) Poll(d decode.DS18B20, r *decode.SensorReading) {
	now := time.Now()
	rec, changed := s.sensorRegistry.Update(d, r, now, 0)
	if changed == 0 || changed == decode.TimeNotChanged {
		return
	}
	evaluate(rec, d, changed, s.chains, s.names, now)
}

func handleSequence(seq *decode.Sequence, decodeRegistry *decode.Registry, sensorRegistry *sensors.Registry, chains map[sensors.Identity]rules.Chain, names *namesBox, log *rlog.Logger) {
	reading, d, ok := decodeRegistry.Decode(seq)
	if !ok {
		log.Warning("undecoded sequence: %d pulses, best match %d bits", len(seq.Durations), bitsOf(reading))
		return
	}
	now := time.Now()
	rec, changed := sensorRegistry.Update(d, reading, now, 0)
	if changed == 0 || changed == decode.TimeNotChanged {
		return
	}
	evaluate(rec, d, changed, chains, names, now)
}

func bitsOf(r *decode.SensorReading) int {
	if r == nil {
		return 0
	}
	return int(r.DecodedBits)
}

func evaluate(rec *sensors.Record, d decode.Decoder, changed decode.ChangeSet, chains map[sensors.Identity]rules.Chain, names *namesBox, now time.Time) {
	chain, ok := chains[rec.Identity]
	if !ok {
		return
	}
	name, _ := names.Name(rec.Identity)
	in := rules.Input{SensorName: name, Decoder: d, Reading: rec.Reading, Changed: changed}
	chain.EvaluateAll(in, now)
}

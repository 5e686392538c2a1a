// Package mqtt implements the MQTT publish sink backing spec.md's
// MqttRule: connect/publish/reconnect against a broker. Grounded on
// original_source/utils/MQTT.hpp's MqttPublisher (start/stop,
// connect-failure logging) with the mosquittopp client replaced by
// github.com/eclipse/paho.mqtt.golang's idiomatic client-option
// pattern, and comm.RemoteDevice's backoff.Retry shape for reconnects.
package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/cenkalti/backoff"

	"github.com/akonshin-labs/rfgateway/internal/rlog"
	"github.com/akonshin-labs/rfgateway/internal/rules"
)

// Config mirrors the source's mqtt_* command-line group (spec.md's
// out-of-scope config parsing; this struct is what the loaded
// configuration hands the transport).
type Config struct {
	ClientID string
	Host     string
	Port     uint16
	Username string
	Password string
	Keepalive time.Duration
}

// Publisher wraps a paho client with the connect/reconnect/publish
// shape of MqttPublisher::start/stop/publish_message.
type Publisher struct {
	client paho.Client
	log    *rlog.Logger
}

// New builds a Publisher. Connect must be called before Publish.
func New(cfg Config, log *rlog.Logger) *Publisher {
	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetKeepAlive(cfg.Keepalive).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	return &Publisher{client: paho.NewClient(opts), log: log}
}

// Connect dials the broker, retrying with an exponential backoff the
// way comm.RemoteDevice.Open retries a serial connection. Every failed
// attempt, a refused connection included, is retried until 30s have
// elapsed.
func (p *Publisher) Connect() error {
	p.log.Info("connecting to MQTT broker...")
	op := func() error {
		token := p.client.Connect()
		token.Wait()
		return token.Error()
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     100 * time.Millisecond,
		RandomizationFactor: 0.2,
		Multiplier:          2,
		MaxInterval:         5 * time.Second,
		MaxElapsedTime:      30 * time.Second,
		Clock:               backoff.SystemClock,
	})
	if err != nil {
		p.log.Error("failed to connect to MQTT broker: %v", err)
		return err
	}
	p.log.Info("connected to MQTT broker")
	return nil
}

// Disconnect mirrors MqttPublisher::stop(true).
func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
}

// Publish sends message to topic at QoS 1, matching publish_message's
// fixed QoS/retain choice.
func (p *Publisher) Publish(topic, message string) error {
	token := p.client.Publish(topic, 1, false, message)
	token.Wait()
	if err := token.Error(); err != nil {
		p.log.Error("failed to publish to %s: %v", topic, err)
		return err
	}
	return nil
}

// publisher is the narrow interface Sink depends on, satisfied by
// *Publisher; tests substitute a fake instead of dialing a real broker.
type publisher interface {
	Publish(topic, message string) error
}

// Sink is a rules.Sink bound to one fixed topic, matching MqttRule's
// per-rule topic.
type Sink struct {
	Publisher publisher
	Topic     string
}

var _ rules.Sink = (*Sink)(nil)

func (s *Sink) Dispatch(message string) error {
	return s.Publisher.Publish(s.Topic, message)
}

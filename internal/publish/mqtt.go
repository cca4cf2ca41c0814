package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Publisher delivers a computed payload to the outbound sink.
type Publisher interface {
	Publish(ctx context.Context, payload Payload) error
}

// Options parameterise the MQTT publisher.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	ClientID string
	Topic    string
	Retain   bool
	Timeout  time.Duration
}

// MQTT publishes payloads to an MQTT broker. A fresh connection is made
// per publish; the tool runs once per cycle and holds no session state.
type MQTT struct {
	opts   Options
	logger zerolog.Logger
}

// NewMQTT constructs an MQTT publisher.
func NewMQTT(opts Options, logger zerolog.Logger) *MQTT {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.Port <= 0 {
		opts.Port = 1883
	}
	return &MQTT{
		opts:   opts,
		logger: logger.With().Str("component", "mqtt_publisher").Logger(),
	}
}

// Publish serializes the payload and delivers it to the configured topic.
func (m *MQTT) Publish(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", m.opts.Host, m.opts.Port)).
		SetConnectTimeout(m.opts.Timeout).
		SetWriteTimeout(m.opts.Timeout)
	if m.opts.ClientID != "" {
		clientOpts.SetClientID(m.opts.ClientID)
	}
	if m.opts.Username != "" {
		clientOpts.SetUsername(m.opts.Username)
	}
	if m.opts.Password != "" {
		clientOpts.SetPassword(m.opts.Password)
	}

	client := mqtt.NewClient(clientOpts)
	if err := waitToken(ctx, client.Connect(), m.opts.Timeout); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer client.Disconnect(250)

	token := client.Publish(m.opts.Topic, 0, m.opts.Retain, body)
	if err := waitToken(ctx, token, m.opts.Timeout); err != nil {
		return fmt.Errorf("publish to %s: %w", m.opts.Topic, err)
	}

	m.logger.Info().Str("topic", m.opts.Topic).Int("bytes", len(body)).
		Bool("retain", m.opts.Retain).Msg("payload published")
	return nil
}

func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	completed := make(chan bool, 1)
	go func() { completed <- token.WaitTimeout(timeout) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case ok := <-completed:
		if !ok {
			return fmt.Errorf("timed out after %s", timeout)
		}
		return token.Error()
	}
}

var _ Publisher = (*MQTT)(nil)

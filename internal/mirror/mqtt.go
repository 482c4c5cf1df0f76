// internal/mirror/mqtt.go
package mirror

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// Config is the mirror broker config.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
}

// Publisher mirrors delivered telemetry lines to an MQTT broker,
// QoS 0, fire and forget. The backend POST path stays authoritative;
// the mirror is a convenience feed for local subscribers.
type Publisher struct {
	cli    mqtt.Client
	prefix string
}

// Connect dials the broker. Auto-reconnect is on; a broker outage
// only costs mirrored messages, never relay progress.
func Connect(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mirror: broker required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "sensor-relay"
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "relay"
	}

	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("mirror connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mirror connection lost")
	})

	cli := mqtt.NewClient(opts)
	tok := cli.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mirror: connect to %s timed out", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mirror: connect to %s: %w", cfg.Broker, err)
	}

	return &Publisher{cli: cli, prefix: cfg.TopicPrefix}, nil
}

// Publish mirrors one telemetry line under <prefix>/<device>.
// Never blocks the caller.
func (p *Publisher) Publish(device, line string) {
	tok := p.cli.Publish(p.prefix+"/"+device, 0, false, line)
	go func() {
		if tok.Wait() && tok.Error() != nil {
			log.Warn().Err(tok.Error()).Str("device", device).Msg("mirror publish failed")
		}
	}()
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.cli.Disconnect(250)
}

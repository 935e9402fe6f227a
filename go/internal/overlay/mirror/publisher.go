// Package mirror republishes overlay broadcasts on a NATS subject tree so
// other tools (chat bots, recorders, a second overlay) can follow along.
package mirror

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/jaymepena/debatelords/go/internal/overlay/events"
)

// DefaultSubjectPrefix is the subject tree events are published under.
const DefaultSubjectPrefix = "overlay.events"

type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: DefaultSubjectPrefix,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Publisher mirrors events to core NATS. Publishing is fire-and-forget: the
// overlay never waits on the bus.
type Publisher struct {
	nc     *nats.Conn
	config Config
}

func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultSubjectPrefix
	}

	opts := []nats.Option{
		nats.Name("debatelords-overlay"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("subject_prefix", cfg.SubjectPrefix).
		Msg("event mirror connected")

	return &Publisher{nc: nc, config: cfg}, nil
}

// Publish sends event to <prefix>.<type>. Failures are logged.
func (p *Publisher) Publish(event *events.Event) {
	if p == nil || p.nc == nil {
		return
	}

	msg, err := buildMsg(p.config.SubjectPrefix, event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to build mirror message")
		return
	}

	if err := p.nc.PublishMsg(msg); err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("failed to mirror event")
		return
	}

	log.Debug().Str("subject", msg.Subject).Msg("event mirrored")
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

// Subject returns the subject an event type is published on.
func Subject(prefix string, t events.Type) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + "." + string(t)
}

func buildMsg(prefix string, event *events.Event) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return &nats.Msg{
		Subject: Subject(prefix, event.Type),
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(event.Type)},
			"Event-ID":   []string{uuid.New().String()},
			"Sent-At":    []string{time.Now().UTC().Format(time.RFC3339Nano)},
		},
	}, nil
}

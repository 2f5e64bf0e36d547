package relay

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/scythe504/hotseat-backend/internal"
)

// Config configures the NATS event mirror.
type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "hotseat.sessions",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Envelope is the NATS payload wrapping a session channel event.
type Envelope struct {
	EventID     uuid.UUID       `json:"eventId"`
	EventType   string          `json:"eventType"`
	SessionCode string          `json:"sessionCode"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// Publisher mirrors session channel events to NATS subjects of the form
// <prefix>.<code>.<event>, with the event's colons turned into dots
// (hotseat.sessions.K3Q9ZD.round.ended).
type Publisher struct {
	nc      *nats.Conn
	prefix  string
	publish func(subject string, data []byte) error
}

func NewPublisher(cfg Config) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("hotseat-backend"),
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

	log.Info().Str("url", nc.ConnectedUrl()).Str("prefix", cfg.SubjectPrefix).Msg("NATS event relay connected")
	return &Publisher{nc: nc, prefix: cfg.SubjectPrefix, publish: nc.Publish}, nil
}

// Subject returns the subject an event of kind for session code is sent on.
func (p *Publisher) Subject(code, kind string) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, code, strings.ReplaceAll(kind, ":", "."))
}

// Broadcast publishes msg without waiting for the server. Failures are
// logged; the websocket channel stays authoritative.
func (p *Publisher) Broadcast(code string, msg internal.Message[any]) {
	payload, err := json.Marshal(msg.Data)
	if err != nil {
		log.Error().Err(err).Str("event", msg.Type).Msg("[relay] failed to marshal payload")
		return
	}

	data, err := json.Marshal(Envelope{
		EventID:     uuid.New(),
		EventType:   msg.Type,
		SessionCode: code,
		Timestamp:   time.Now().UTC(),
		Payload:     payload,
	})
	if err != nil {
		log.Error().Err(err).Str("event", msg.Type).Msg("[relay] failed to marshal envelope")
		return
	}

	subject := p.Subject(code, msg.Type)
	if err := p.publish(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("[relay] publish failed")
	}
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		log.Warn().Err(err).Msg("NATS drain failed")
		p.nc.Close()
	}
}

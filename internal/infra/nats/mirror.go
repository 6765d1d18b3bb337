package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"wedding-quiz/internal/domain"
)

// Config describes the NATS connection used to mirror room events.
type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "quiz.rooms",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

type conn interface {
	Publish(subj string, data []byte) error
}

// Mirror republishes every room event on <prefix>.<CODE>.<event> so displays
// running outside this process can follow a room.
type Mirror struct {
	conn   conn
	nc     *nats.Conn
	prefix string
}

// Connect dials NATS with reconnect handlers and returns a ready Mirror.
func Connect(cfg Config) (*Mirror, error) {
	opts := []nats.Option{
		nats.Name("wedding-quiz"),
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
	m := newMirror(nc, cfg.SubjectPrefix)
	m.nc = nc
	return m, nil
}

func newMirror(c conn, prefix string) *Mirror {
	if prefix == "" {
		prefix = DefaultConfig().SubjectPrefix
	}
	return &Mirror{conn: c, prefix: prefix}
}

// Publish is called under the room lock, so it only hands the message to the client's buffer.
func (m *Mirror) Publish(ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("code", ev.Room).Str("event", ev.Type).Msg("marshal mirrored event")
		return
	}
	if err := m.conn.Publish(Subject(m.prefix, ev.Room, ev.Type), data); err != nil {
		log.Warn().Err(err).Str("code", ev.Room).Str("event", ev.Type).Msg("mirror publish failed")
	}
}

// Close drains pending messages and closes the connection.
func (m *Mirror) Close() {
	if m.nc == nil {
		return
	}
	if err := m.nc.Drain(); err != nil {
		m.nc.Close()
	}
}

// Subject builds the subject a room event is mirrored on.
func Subject(prefix, code, eventType string) string {
	return prefix + "." + code + "." + eventType
}

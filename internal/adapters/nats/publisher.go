package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
)

// Subjects. Surface events go over core NATS for live relays; run reports go
// through JetStream so late subscribers can catch up.
const (
	SurfaceSubjectPrefix = "geoplotter.surface."
	RunSubjectPrefix     = "geoplotter.runs."
	RunStream            = "GEOPLOTTER_RUNS"
)

// SurfaceSubject is the subject carrying a view's surface events.
func SurfaceSubject(viewID string) string {
	return SurfaceSubjectPrefix + viewID
}

// RunSubject is the subject carrying a view's run reports. viewID may be "*".
func RunSubject(viewID string) string {
	return RunSubjectPrefix + viewID
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      RunStream,
			Subjects:  []string{RunSubjectPrefix + ">"},
			Retention: nats.LimitsPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.MemoryStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				conn.Close()
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishSurfaceEvent(ctx context.Context, event domain.SurfaceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(SurfaceSubject(event.ViewID), data)
}

func (p *Publisher) PublishRunReport(ctx context.Context, viewID string, report domain.RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(RunSubject(viewID), data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for relays.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("geoplotter"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

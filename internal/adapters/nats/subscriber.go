package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeRunReports delivers run reports published from now on. An empty
// viewID follows every view. A report the handler rejects is redelivered up to
// three times.
func (s *Subscriber) SubscribeRunReports(ctx context.Context, viewID string, handler func(ctx context.Context, viewID string, report *domain.RunReport) error) error {
	subject := RunSubject("*")
	if viewID != "" {
		subject = RunSubject(viewID)
	}

	sub, err := s.js.Subscribe(subject, func(msg *nats.Msg) {
		var report domain.RunReport
		if err := json.Unmarshal(msg.Data, &report); err != nil {
			_ = msg.Term()
			return
		}
		id := strings.TrimPrefix(msg.Subject, RunSubjectPrefix)
		if err := handler(ctx, id, &report); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains the connection.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}

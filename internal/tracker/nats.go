package tracker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSPublisher publishes run events to a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewNATSPublisher connects to NATS and publishes under subject.
func NewNATSPublisher(url, subject string, logger *zap.Logger) (*NATSPublisher, error) {
	if url == "" {
		return nil, fmt.Errorf("NATS URL is required for event publisher")
	}
	if subject == "" {
		return nil, fmt.Errorf("subject is required for event publisher")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for event publisher")
	}

	conn, err := nats.Connect(url, nats.Name("orchd"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn, subject: subject, logger: logger.Named("events")}, nil
}

// Publish sends the event as JSON on "<subject>.<type>".
func (p *NATSPublisher) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode run event: %w", err)
	}
	if err := p.conn.Publish(fmt.Sprintf("%s.%s", p.subject, ev.Type), data); err != nil {
		return fmt.Errorf("failed to publish run event: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("failed to drain NATS connection", zap.Error(err))
	}
	p.conn.Close()
	return nil
}

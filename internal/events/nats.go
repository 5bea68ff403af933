package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

type natsPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect creates a NATS-backed publisher. The connection reconnects
// indefinitely; events published while disconnected are buffered by the
// client up to its pending limits.
func Connect(cfg *Config, logger *slog.Logger) (Publisher, error) {
	conn, err := nats.Connect(
		cfg.URL,
		nats.Name(cfg.ClientName),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	logger.Info("event publisher connected", "url", cfg.URL)

	return &natsPublisher{
		conn:   conn,
		logger: logger.With("system", "events"),
	}, nil
}

func (p *natsPublisher) TaskTransitioned(ctx context.Context, evt TaskEvent) {
	p.publish(SubjectTaskTransitioned, evt)
}

func (p *natsPublisher) TaskOverdue(ctx context.Context, evt OverdueEvent) {
	p.publish(SubjectTaskOverdue, evt)
}

func (p *natsPublisher) BatchComplete(ctx context.Context, evt BatchEvent) {
	p.publish(SubjectBatchComplete, evt)
}

func (p *natsPublisher) Close() {
	p.conn.Drain()
}

func (p *natsPublisher) publish(subject string, evt any) {
	data, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error("event marshal failed", "subject", subject, "error", err)
		return
	}

	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("event publish failed", "subject", subject, "error", err)
	}
}

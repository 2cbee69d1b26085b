package watch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/slice/havoc/internal/config"
	"github.com/slice/havoc/internal/discord"
)

// EventPublisher mirrors detected deploys onto a NATS subject per branch.
// Connection failures are non-fatal; the client reconnects on its own.
type EventPublisher struct {
	conn   *nats.Conn
	prefix string
}

// deployEvent is the wire shape published for each recorded deploy.
type deployEvent struct {
	Branch     discord.Branch `json:"branch"`
	Number     uint32         `json:"number"`
	Hash       string         `json:"hash"`
	DetectedAt time.Time      `json:"detected_at"`
}

// NewEventPublisher connects to the configured NATS server. The connection
// retries in the background if the server is down at startup.
func NewEventPublisher(cfg *config.NATSConfig) (*EventPublisher, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("havoc"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "havoc.deploys"
	}
	return &EventPublisher{conn: conn, prefix: prefix}, nil
}

// PublishDeploy publishes the deploy to <prefix>.<branch>.
func (p *EventPublisher) PublishDeploy(build discord.Build, branch discord.Branch) error {
	payload, err := json.Marshal(deployEvent{
		Branch:     branch,
		Number:     build.Number,
		Hash:       build.Manifest.Hash,
		DetectedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("serialize deploy event: %w", err)
	}

	subject := p.prefix + "." + string(branch)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish deploy event: %w", err)
	}
	return nil
}

// Close drains the connection.
func (p *EventPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/garyjia/workflow-approval/internal/application/port"
	"github.com/garyjia/workflow-approval/internal/domain/entity"
	"github.com/garyjia/workflow-approval/internal/domain/event"
)

// Config holds NATS connection configuration
type Config struct {
	URL           string
	SubjectPrefix string
	ClientName    string
}

// conn is the part of *nats.Conn the publisher uses
type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// Publisher publishes domain events and notifications to NATS subjects:
//
//	<prefix>.<event type>          e.g. approvals.request.approved
//	<prefix>.notification.<user>   one subject per recipient
type Publisher struct {
	conn   conn
	prefix string
	logger *zap.Logger
}

// NewPublisher connects to NATS and returns a publisher
func NewPublisher(cfg Config, logger *zap.Logger) (*Publisher, error) {
	name := cfg.ClientName
	if name == "" {
		name = "workflow-approval"
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("Connected to NATS", zap.String("url", nc.ConnectedUrl()))
	return newPublisher(nc, cfg.SubjectPrefix, logger), nil
}

func newPublisher(c conn, prefix string, logger *zap.Logger) *Publisher {
	if prefix == "" {
		prefix = "approvals"
	}
	return &Publisher{
		conn:   c,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logger,
	}
}

// Publish sends the event as JSON on <prefix>.<event type>
func (p *Publisher) Publish(ctx context.Context, evt *event.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.prefix + "." + string(evt.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("subject", subject),
			zap.String("event_id", evt.ID),
			zap.Error(err))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published", zap.String("subject", subject), zap.String("event_id", evt.ID))
	return nil
}

// Name identifies the channel in logs
func (p *Publisher) Name() string {
	return "nats"
}

// Deliver publishes the notification on the recipient's subject
func (p *Publisher) Deliver(ctx context.Context, n *entity.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	subject := p.prefix + ".notification." + subjectToken(n.UserID)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection
func (p *Publisher) Close() error {
	return p.conn.Drain()
}

// subjectToken makes a user ID safe to use as a single subject token
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

var (
	_ port.EventPublisher      = (*Publisher)(nil)
	_ port.NotificationChannel = (*Publisher)(nil)
)

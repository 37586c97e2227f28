// Package events connects the service to NATS for run coordination:
// other services request analysis runs and hear back when they finish.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectRunRequested asks the service to start an analysis run.
	SubjectRunRequested = "assistant.effort.run.requested"
	// SubjectRunCompleted announces the outcome of a finished run.
	SubjectRunCompleted = "assistant.effort.run.completed"
)

// RunRequested is the payload of SubjectRunRequested.
type RunRequested struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
	SkillID     string `json:"skill_id,omitempty"`
	AssistantID string `json:"assistant_id,omitempty"`
	Count       int    `json:"count"`
	Overwrite   bool   `json:"overwrite,omitempty"`
}

// RunCompleted is the payload of SubjectRunCompleted.
type RunCompleted struct {
	RunID             string  `json:"run_id"`
	Status            string  `json:"status"`
	Events            int     `json:"events"`
	MeanEffort        float64 `json:"mean_effort"`
	MeanPreviewEffort float64 `json:"mean_preview_effort"`
	Error             string  `json:"error,omitempty"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}

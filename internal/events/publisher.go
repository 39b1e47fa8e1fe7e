// Package events publishes generation lifecycle events to NATS. Publishing
// is optional and best-effort: a missing broker never affects generation.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const defaultSubject = "readmegen.generations"

// Event is one lifecycle notification.
type Event struct {
	Type       string    `json:"type"` // generation.started | generation.completed | generation.failed
	RunID      string    `json:"runId"`
	Repository string    `json:"repository"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher sends lifecycle events to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher connects to NATS. The connection reconnects automatically;
// events published while disconnected are dropped.
func NewPublisher(url, subject string) (*Publisher, error) {
	if subject == "" {
		subject = defaultSubject
	}

	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	slog.Info("event publisher connected", "url", url, "subject", subject)
	return &Publisher{conn: conn, subject: subject}, nil
}

// Started publishes a generation.started event.
func (p *Publisher) Started(runID, repository string) {
	p.publish(Event{Type: "generation.started", RunID: runID, Repository: repository})
}

// Completed publishes a generation.completed event.
func (p *Publisher) Completed(runID, repository string) {
	p.publish(Event{Type: "generation.completed", RunID: runID, Repository: repository})
}

// Failed publishes a generation.failed event.
func (p *Publisher) Failed(runID, repository, errMsg string) {
	p.publish(Event{Type: "generation.failed", RunID: runID, Repository: repository, Error: errMsg})
}

func (p *Publisher) publish(event Event) {
	if p == nil || p.conn == nil {
		return
	}
	event.Timestamp = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		slog.Debug("event publish failed", "type", event.Type, "error", err)
	}
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Drain()
}

// Package events publishes settlement lifecycle events. Consumers are the
// websocket push hub and any external tooling subscribed to the NATS
// subjects; operators rely on the dispatched/settled pair carrying the same
// transport message id to trace a deposit end to end.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	SubjectDepositDispatched   = "settlement.events.deposit.dispatched"
	SubjectDepositSettled      = "settlement.events.deposit.settled"
	SubjectWithdrawalRequested = "settlement.events.withdrawal.requested"
	SubjectWithdrawalReleased  = "settlement.events.withdrawal.released"
	SubjectMappingUpdated      = "settlement.events.mapping.updated"
	SubjectConfigUpdated       = "settlement.events.config.updated"
)

// Event is the envelope every subject carries.
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Publisher emits settlement events. Publishing is best-effort: a failed
// emit never fails the settlement operation that produced it.
type Publisher interface {
	Publish(subject string, data map[string]interface{})
}

// NATSPublisher publishes events over a NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS for events: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(subject string, data map[string]interface{}) {
	event := Event{Type: subject, Timestamp: time.Now(), Data: data}
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).WithField("subject", subject).Error("failed to marshal event")
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		logrus.WithError(err).WithField("subject", subject).Warn("failed to publish event")
	}
}

func (p *NATSPublisher) Close() {
	p.conn.Close()
}

// NoopPublisher drops events; tests and minimal deployments use it.
type NoopPublisher struct{}

func (NoopPublisher) Publish(string, map[string]interface{}) {}

// ChanPublisher buffers events on a channel; the websocket hub consumes it.
type ChanPublisher struct {
	C chan Event
}

func NewChanPublisher(buffer int) *ChanPublisher {
	return &ChanPublisher{C: make(chan Event, buffer)}
}

func (p *ChanPublisher) Publish(subject string, data map[string]interface{}) {
	select {
	case p.C <- Event{Type: subject, Timestamp: time.Now(), Data: data}:
	default:
		// Slow consumer; dropping is preferable to blocking settlement.
	}
}

// MultiPublisher fans one event out to several publishers.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(subject string, data map[string]interface{}) {
	for _, p := range m {
		p.Publish(subject, data)
	}
}

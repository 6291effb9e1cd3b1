package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	streamName    = "SETTLEMENT_MESSAGES"
	subjectPrefix = "settlement.messages"
)

// NATSMailbox relays messages between domains over NATS JetStream. Delivery
// is at-least-once and unordered, which is the transport contract the
// settlement layer is designed against: duplicates are absorbed by the
// processed-message guard and a handler error naks the message so the
// stream redelivers it later (the unmapped-token recovery path).
type NATSMailbox struct {
	conn     *nats.Conn
	js       nats.JetStreamContext
	domain   uint32
	address  string
	security SecurityModule

	mu         sync.Mutex
	nonce      uint32
	recipients map[common.Address]Recipient
	sub        *nats.Subscription
}

// NewNATSMailbox connects to NATS and ensures the settlement stream exists.
func NewNATSMailbox(url string, domain uint32, mailboxAddr string, security SecurityModule) (*NATSMailbox, error) {
	conn, err := nats.Connect(url,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logrus.WithError(err).Warn("NATS mailbox disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logrus.WithField("url", nc.ConnectedUrl()).Info("NATS mailbox reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(streamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      streamName,
			Subjects:  []string{subjectPrefix + ".>"},
			Retention: nats.WorkQueuePolicy,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}
	}

	return &NATSMailbox{
		conn:       conn,
		js:         js,
		domain:     domain,
		address:    mailboxAddr,
		security:   security,
		recipients: make(map[common.Address]Recipient),
	}, nil
}

func (m *NATSMailbox) LocalDomain() uint32 { return m.domain }
func (m *NATSMailbox) Address() string     { return m.address }

func (m *NATSMailbox) Register(recipient string, handler Recipient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recipients[common.HexToAddress(recipient)] = handler
}

// Dispatch publishes the encoded message to the destination domain's
// subject and returns its id.
func (m *NATSMailbox) Dispatch(ctx context.Context, sender string, destinationDomain uint32, recipient string, body []byte) (string, error) {
	m.mu.Lock()
	m.nonce++
	nonce := m.nonce
	m.mu.Unlock()

	msg := &Message{
		Version:     MessageVersion,
		Nonce:       nonce,
		Origin:      m.domain,
		Sender:      common.HexToAddress(sender),
		Destination: destinationDomain,
		Recipient:   common.HexToAddress(recipient),
		Body:        body,
	}
	id := msg.ID()

	subject := fmt.Sprintf("%s.%d", subjectPrefix, destinationDomain)
	if _, err := m.js.Publish(subject, msg.Encode(), nats.Context(ctx)); err != nil {
		return "", fmt.Errorf("failed to publish message to %s: %w", subject, err)
	}

	logrus.WithFields(logrus.Fields{
		"message_id":  id,
		"origin":      m.domain,
		"destination": destinationDomain,
		"recipient":   recipient,
	}).Info("dispatched settlement message")
	return id, nil
}

// Start subscribes to this domain's subject and pumps verified messages
// into their registered recipients.
func (m *NATSMailbox) Start() error {
	subject := fmt.Sprintf("%s.%d", subjectPrefix, m.domain)
	durable := fmt.Sprintf("settlement-domain-%d", m.domain)

	sub, err := m.js.QueueSubscribe(subject, durable, m.onMessage,
		nats.Durable(durable),
		nats.ManualAck(),
		nats.AckWait(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{"subject": subject, "domain": m.domain}).Info("NATS mailbox listening")
	return nil
}

func (m *NATSMailbox) onMessage(natsMsg *nats.Msg) {
	msg, err := DecodeMessage(natsMsg.Data)
	if err != nil {
		// Undecodable payloads can never become processable; drop them.
		logrus.WithError(err).Error("NATS mailbox: dropping undecodable message")
		_ = natsMsg.Ack()
		return
	}
	id := msg.ID()
	log := logrus.WithFields(logrus.Fields{
		"message_id": id,
		"origin":     msg.Origin,
		"sender":     msg.Sender.Hex(),
	})

	if err := m.security.Verify(msg); err != nil {
		// Authenticity failures are terminal; acking prevents a poison loop.
		log.WithError(err).Error("NATS mailbox: message failed verification")
		_ = natsMsg.Ack()
		return
	}

	m.mu.Lock()
	handler, ok := m.recipients[msg.Recipient]
	m.mu.Unlock()
	if !ok {
		// No recipient yet (service still starting, or misconfigured
		// recipient address). Nak so the stream redelivers.
		log.WithField("recipient", msg.Recipient.Hex()).Warn("NATS mailbox: no recipient registered, requeueing")
		_ = natsMsg.Nak()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()
	if err := handler.HandleMessage(ctx, id, msg.Origin, msg.Sender.Hex(), msg.Body); err != nil {
		// Pending-retry state: mapping gaps and transient DB errors both
		// resolve through redelivery.
		log.WithError(err).Warn("NATS mailbox: handler failed, requeueing")
		_ = natsMsg.Nak()
		return
	}
	_ = natsMsg.Ack()
}

// Close drains the subscription and closes the connection.
func (m *NATSMailbox) Close() {
	m.mu.Lock()
	sub := m.sub
	m.mu.Unlock()
	if sub != nil {
		_ = sub.Drain()
	}
	m.conn.Close()
}

package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// LocalNetwork joins in-process mailboxes for every configured domain. It is
// the transport for single-node deployments and for tests: delivery can be
// held, performed out of dispatch order, and repeated, which is exactly the
// behavior an external relay is allowed to exhibit.
type LocalNetwork struct {
	mu        sync.Mutex
	domains   map[uint32]*localDomain
	hold      bool
	pending   map[string]*Message
	order     []string // dispatch order of pending ids, for DeliverAll
	delivered map[string]*Message
}

type localDomain struct {
	mailbox  *LocalMailbox
	security SecurityModule
}

// LocalMailbox is one domain's endpoint on a LocalNetwork.
type LocalMailbox struct {
	network    *LocalNetwork
	domain     uint32
	address    string
	nonce      uint32
	recipients map[common.Address]Recipient
}

func NewLocalNetwork() *LocalNetwork {
	return &LocalNetwork{
		domains:   make(map[uint32]*localDomain),
		pending:   make(map[string]*Message),
		delivered: make(map[string]*Message),
	}
}

// AddDomain creates the mailbox serving domain. security guards every
// delivery into the domain.
func (n *LocalNetwork) AddDomain(domain uint32, mailboxAddr string, security SecurityModule) *LocalMailbox {
	n.mu.Lock()
	defer n.mu.Unlock()
	mb := &LocalMailbox{
		network:    n,
		domain:     domain,
		address:    mailboxAddr,
		recipients: make(map[common.Address]Recipient),
	}
	n.domains[domain] = &localDomain{mailbox: mb, security: security}
	return mb
}

// Hold stops automatic delivery; dispatched messages queue until Deliver or
// DeliverAll is called.
func (n *LocalNetwork) Hold() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hold = true
}

// Pending returns the ids of dispatched, not yet delivered messages in
// dispatch order.
func (n *LocalNetwork) Pending() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]string, len(n.order))
	copy(ids, n.order)
	return ids
}

// Deliver attempts delivery of one pending message, in any order the caller
// chooses. A handler error leaves the message pending so it can be retried
// after the cause (an unmapped token, say) is fixed.
func (n *LocalNetwork) Deliver(ctx context.Context, messageID string) error {
	n.mu.Lock()
	msg, ok := n.pending[messageID]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending message %s", messageID)
	}
	if err := n.deliver(ctx, msg); err != nil {
		return err
	}
	n.mu.Lock()
	delete(n.pending, messageID)
	for i, id := range n.order {
		if id == messageID {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
	n.delivered[messageID] = msg
	n.mu.Unlock()
	return nil
}

// DeliverAll drains the pending queue in dispatch order, stopping at the
// first failure.
func (n *LocalNetwork) DeliverAll(ctx context.Context) error {
	for {
		n.mu.Lock()
		if len(n.order) == 0 {
			n.mu.Unlock()
			return nil
		}
		id := n.order[0]
		n.mu.Unlock()
		if err := n.Deliver(ctx, id); err != nil {
			return err
		}
	}
}

// Redeliver repeats delivery of an already-delivered message. Relays do
// this; the destination's idempotency guard must absorb it.
func (n *LocalNetwork) Redeliver(ctx context.Context, messageID string) error {
	n.mu.Lock()
	msg, ok := n.delivered[messageID]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("message %s was never delivered", messageID)
	}
	return n.deliver(ctx, msg)
}

func (n *LocalNetwork) deliver(ctx context.Context, msg *Message) error {
	n.mu.Lock()
	dest, ok := n.domains[msg.Destination]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDestination, msg.Destination)
	}
	if err := dest.security.Verify(msg); err != nil {
		logrus.WithFields(logrus.Fields{
			"message_id": msg.ID(),
			"origin":     msg.Origin,
			"sender":     msg.Sender.Hex(),
		}).Warn("local transport: message failed verification")
		return err
	}
	handler, ok := dest.mailbox.recipients[msg.Recipient]
	if !ok {
		return fmt.Errorf("%w: %s on domain %d", ErrNoRecipient, msg.Recipient.Hex(), msg.Destination)
	}
	return handler.HandleMessage(ctx, msg.ID(), msg.Origin, msg.Sender.Hex(), msg.Body)
}

func (m *LocalMailbox) LocalDomain() uint32 { return m.domain }
func (m *LocalMailbox) Address() string     { return m.address }

func (m *LocalMailbox) Register(recipient string, handler Recipient) {
	m.network.mu.Lock()
	defer m.network.mu.Unlock()
	m.recipients[common.HexToAddress(recipient)] = handler
}

// Dispatch builds the envelope, assigns the mailbox nonce and either queues
// or immediately delivers depending on the network's hold state.
func (m *LocalMailbox) Dispatch(ctx context.Context, sender string, destinationDomain uint32, recipient string, body []byte) (string, error) {
	m.network.mu.Lock()
	m.nonce++
	msg := &Message{
		Version:     MessageVersion,
		Nonce:       m.nonce,
		Origin:      m.domain,
		Sender:      common.HexToAddress(sender),
		Destination: destinationDomain,
		Recipient:   common.HexToAddress(recipient),
		Body:        body,
	}
	id := msg.ID()
	if _, ok := m.network.domains[destinationDomain]; !ok {
		m.network.mu.Unlock()
		return "", fmt.Errorf("%w: %d", ErrUnknownDestination, destinationDomain)
	}
	hold := m.network.hold
	m.network.pending[id] = msg
	m.network.order = append(m.network.order, id)
	m.network.mu.Unlock()

	// Dispatch only accepts and queues; delivery happens outside the
	// caller's transaction, the way a real relay would. A failed delivery
	// leaves the message pending for retry.
	if !hold {
		go func() {
			if err := m.network.Deliver(context.Background(), id); err != nil {
				logrus.WithError(err).WithField("message_id", id).Warn("local transport: delivery failed, message stays pending")
			}
		}()
	}
	return id, nil
}

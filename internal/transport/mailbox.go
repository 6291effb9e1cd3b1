package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnknownDestination = errors.New("unknown destination domain")
	ErrNoRecipient        = errors.New("no recipient registered at address")
	ErrVerificationFailed = errors.New("security module rejected message")
)

// Recipient is the verified-delivery entry point of a settlement component.
// HandleMessage is invoked only after the destination's security module
// accepted the message; the message id, origin and sender come from the
// transport envelope, not from the payload, and the id is the recipient's
// idempotency key.
type Recipient interface {
	HandleMessage(ctx context.Context, messageID string, origin uint32, sender string, body []byte) error
}

// Mailbox is the per-domain dispatch surface. One mailbox serves exactly one
// domain; its LocalDomain and Address are the values operators audit against
// chain configuration.
type Mailbox interface {
	LocalDomain() uint32
	Address() string
	// Dispatch sends body from sender to recipient on the destination
	// domain and returns the transport message id. The sender address ends
	// up in the envelope, which is what remote security modules and trust
	// tables check.
	Dispatch(ctx context.Context, sender string, destinationDomain uint32, recipient string, body []byte) (string, error)
	// Register binds a recipient address to its handler on this domain.
	Register(recipient string, handler Recipient)
}

// SecurityModule verifies an inbound message before delivery. The transport
// itself never decides authenticity policy.
type SecurityModule interface {
	Verify(msg *Message) error
}

// NoopSecurityModule accepts everything. Test and single-process use only.
type NoopSecurityModule struct{}

func (NoopSecurityModule) Verify(*Message) error { return nil }

// AllowlistSecurityModule accepts messages only from senders explicitly
// allowed for their origin domain.
type AllowlistSecurityModule struct {
	mu      sync.RWMutex
	allowed map[uint32]map[common.Address]bool
}

func NewAllowlistSecurityModule() *AllowlistSecurityModule {
	return &AllowlistSecurityModule{allowed: make(map[uint32]map[common.Address]bool)}
}

// Allow marks sender as trusted for messages originating from domain.
func (s *AllowlistSecurityModule) Allow(origin uint32, sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allowed[origin] == nil {
		s.allowed[origin] = make(map[common.Address]bool)
	}
	s.allowed[origin][common.HexToAddress(sender)] = true
}

func (s *AllowlistSecurityModule) Verify(msg *Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.allowed[msg.Origin][msg.Sender] {
		return nil
	}
	return ErrVerificationFailed
}

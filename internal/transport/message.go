// Package transport carries settlement messages between domains. The wire
// format is a fixed-width header plus a typed body; the keccak hash of the
// full encoding is the transport message id, which downstream processing
// uses as its idempotency key.
package transport

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MessageVersion is the current wire format version. Decoders reject
// anything else.
const MessageVersion uint8 = 1

// header layout: version(1) nonce(4) origin(4) sender(32) destination(4) recipient(32)
const headerLen = 1 + 4 + 4 + 32 + 4 + 32

// Message is one in-flight cross-domain message.
type Message struct {
	Version     uint8
	Nonce       uint32 // mailbox dispatch counter, per origin domain
	Origin      uint32
	Sender      common.Address
	Destination uint32
	Recipient   common.Address
	Body        []byte
}

// Encode serializes the message. Addresses are left-padded to 32 bytes so
// the format stays stable if a chain with wider addresses is ever added.
func (m *Message) Encode() []byte {
	buf := make([]byte, 0, headerLen+len(m.Body))
	buf = append(buf, m.Version)
	buf = binary.BigEndian.AppendUint32(buf, m.Nonce)
	buf = binary.BigEndian.AppendUint32(buf, m.Origin)
	buf = append(buf, common.LeftPadBytes(m.Sender.Bytes(), 32)...)
	buf = binary.BigEndian.AppendUint32(buf, m.Destination)
	buf = append(buf, common.LeftPadBytes(m.Recipient.Bytes(), 32)...)
	buf = append(buf, m.Body...)
	return buf
}

// ID returns the transport message id: keccak256 of the encoding.
func (m *Message) ID() string {
	return crypto.Keccak256Hash(m.Encode()).Hex()
}

// DecodeMessage parses an encoded message.
func DecodeMessage(data []byte) (*Message, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("message too short: %d bytes", len(data))
	}
	if data[0] != MessageVersion {
		return nil, fmt.Errorf("unsupported message version: %d", data[0])
	}
	m := &Message{Version: data[0]}
	m.Nonce = binary.BigEndian.Uint32(data[1:5])
	m.Origin = binary.BigEndian.Uint32(data[5:9])
	m.Sender = common.BytesToAddress(data[9:41])
	m.Destination = binary.BigEndian.Uint32(data[41:45])
	m.Recipient = common.BytesToAddress(data[45:77])
	m.Body = append([]byte(nil), data[77:]...)
	return m, nil
}

// Body type tags.
const (
	bodyTypeDeposit uint8 = 1
	bodyTypeRelease uint8 = 2
)

// DepositBody is the payload a locker dispatches for every accepted deposit.
type DepositBody struct {
	SourceToken common.Address
	Amount      *big.Int
	Recipient   common.Address
	UserNonce   uint64
}

// Encode lays out tag(1) token(32) amount(32) recipient(32) nonce(8).
func (b *DepositBody) Encode() []byte {
	buf := make([]byte, 0, 1+32+32+32+8)
	buf = append(buf, bodyTypeDeposit)
	buf = append(buf, common.LeftPadBytes(b.SourceToken.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(b.Amount.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(b.Recipient.Bytes(), 32)...)
	buf = binary.BigEndian.AppendUint64(buf, b.UserNonce)
	return buf
}

// DecodeDepositBody parses a deposit payload.
func DecodeDepositBody(data []byte) (*DepositBody, error) {
	if len(data) != 1+32+32+32+8 {
		return nil, fmt.Errorf("invalid deposit body length: %d", len(data))
	}
	if data[0] != bodyTypeDeposit {
		return nil, fmt.Errorf("not a deposit body: tag %d", data[0])
	}
	return &DepositBody{
		SourceToken: common.BytesToAddress(data[1:33]),
		Amount:      new(big.Int).SetBytes(data[33:65]),
		Recipient:   common.BytesToAddress(data[65:97]),
		UserNonce:   binary.BigEndian.Uint64(data[97:105]),
	}, nil
}

// ReleaseBody is the payload a settlement manager dispatches back to the
// origin locker when a withdrawal burns synthetic supply.
type ReleaseBody struct {
	Token     common.Address
	Amount    *big.Int
	Recipient common.Address
}

// Encode lays out tag(1) token(32) amount(32) recipient(32).
func (b *ReleaseBody) Encode() []byte {
	buf := make([]byte, 0, 1+32+32+32)
	buf = append(buf, bodyTypeRelease)
	buf = append(buf, common.LeftPadBytes(b.Token.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(b.Amount.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(b.Recipient.Bytes(), 32)...)
	return buf
}

// DecodeReleaseBody parses a release payload.
func DecodeReleaseBody(data []byte) (*ReleaseBody, error) {
	if len(data) != 1+32+32+32 {
		return nil, fmt.Errorf("invalid release body length: %d", len(data))
	}
	if data[0] != bodyTypeRelease {
		return nil, fmt.Errorf("not a release body: tag %d", data[0])
	}
	return &ReleaseBody{
		Token:     common.BytesToAddress(data[1:33]),
		Amount:    new(big.Int).SetBytes(data[33:65]),
		Recipient: common.BytesToAddress(data[65:97]),
	}, nil
}

// BodyType returns the tag of an encoded body, for routing and logging.
func BodyType(data []byte) (uint8, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty body")
	}
	switch data[0] {
	case bodyTypeDeposit, bodyTypeRelease:
		return data[0], nil
	default:
		return 0, fmt.Errorf("unknown body type: %d", data[0])
	}
}

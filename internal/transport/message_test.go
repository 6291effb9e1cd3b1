package transport

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	testSender    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testRecipient = common.HexToAddress("0x2000000000000000000000000000000000000002")
	testToken     = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
)

func testMessage() *Message {
	return &Message{
		Version:     MessageVersion,
		Nonce:       7,
		Origin:      1,
		Sender:      testSender,
		Destination: 42161,
		Recipient:   testRecipient,
		Body:        []byte{1, 2, 3},
	}
}

func TestMessageEncodeDecode(t *testing.T) {
	msg := testMessage()
	decoded, err := DecodeMessage(msg.Encode())
	require.NoError(t, err)
	require.Equal(t, msg, decoded)
}

func TestMessageIDDeterministic(t *testing.T) {
	require.Equal(t, testMessage().ID(), testMessage().ID())
}

func TestMessageIDChangesWithNonce(t *testing.T) {
	// Two deposits with identical payloads must produce distinct ids; the
	// mailbox nonce is what separates them.
	a := testMessage()
	b := testMessage()
	b.Nonce = a.Nonce + 1
	require.NotEqual(t, a.ID(), b.ID())
}

func TestDecodeMessageRejectsBadInput(t *testing.T) {
	_, err := DecodeMessage([]byte{1, 2, 3})
	require.Error(t, err)

	encoded := testMessage().Encode()
	encoded[0] = 99 // unsupported version
	_, err = DecodeMessage(encoded)
	require.Error(t, err)
}

func TestDepositBodyRoundTrip(t *testing.T) {
	body := &DepositBody{
		SourceToken: testToken,
		Amount:      big.NewInt(100_000_000),
		Recipient:   testRecipient,
		UserNonce:   42,
	}
	encoded := body.Encode()
	require.Len(t, encoded, 105)

	decoded, err := DecodeDepositBody(encoded)
	require.NoError(t, err)
	require.Equal(t, body.SourceToken, decoded.SourceToken)
	require.Equal(t, 0, body.Amount.Cmp(decoded.Amount))
	require.Equal(t, body.Recipient, decoded.Recipient)
	require.Equal(t, body.UserNonce, decoded.UserNonce)
}

func TestReleaseBodyRoundTrip(t *testing.T) {
	body := &ReleaseBody{
		Token:     testToken,
		Amount:    big.NewInt(99_999_999),
		Recipient: testRecipient,
	}
	encoded := body.Encode()
	require.Len(t, encoded, 97)

	decoded, err := DecodeReleaseBody(encoded)
	require.NoError(t, err)
	require.Equal(t, body.Token, decoded.Token)
	require.Equal(t, 0, body.Amount.Cmp(decoded.Amount))
	require.Equal(t, body.Recipient, decoded.Recipient)
}

func TestBodyDecodersRejectWrongTag(t *testing.T) {
	deposit := (&DepositBody{SourceToken: testToken, Amount: big.NewInt(1), Recipient: testRecipient}).Encode()
	release := (&ReleaseBody{Token: testToken, Amount: big.NewInt(1), Recipient: testRecipient}).Encode()

	_, err := DecodeDepositBody(release)
	require.Error(t, err)
	_, err = DecodeReleaseBody(deposit)
	require.Error(t, err)

	_, err = DecodeDepositBody(deposit[:50])
	require.Error(t, err)
}

func TestBodyType(t *testing.T) {
	deposit := (&DepositBody{SourceToken: testToken, Amount: big.NewInt(1), Recipient: testRecipient}).Encode()
	release := (&ReleaseBody{Token: testToken, Amount: big.NewInt(1), Recipient: testRecipient}).Encode()

	tag, err := BodyType(deposit)
	require.NoError(t, err)
	require.Equal(t, bodyTypeDeposit, tag)

	tag, err = BodyType(release)
	require.NoError(t, err)
	require.Equal(t, bodyTypeRelease, tag)

	_, err = BodyType(nil)
	require.Error(t, err)
	_, err = BodyType([]byte{55})
	require.Error(t, err)
}

package services

import (
	"math/big"
	"testing"

	"settlement-backend/internal/transport"

	"github.com/ethereum/go-ethereum/common"
)

func depositBody(t *testing.T, token string, amount *big.Int, recipient string, nonce uint64) []byte {
	t.Helper()
	return (&transport.DepositBody{
		SourceToken: common.HexToAddress(token),
		Amount:      amount,
		Recipient:   common.HexToAddress(recipient),
		UserNonce:   nonce,
	}).Encode()
}

func releaseBody(t *testing.T, token string, amount *big.Int, recipient string) []byte {
	t.Helper()
	return (&transport.ReleaseBody{
		Token:     common.HexToAddress(token),
		Amount:    amount,
		Recipient: common.HexToAddress(recipient),
	}).Encode()
}

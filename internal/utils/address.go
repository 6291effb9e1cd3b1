package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var hexAddrPattern = regexp.MustCompile("^(0x)?[0-9a-fA-F]{40}$")

// IsEvmAddress reports whether address looks like a 20-byte hex address,
// with or without the 0x prefix.
func IsEvmAddress(address string) bool {
	return address != "" && hexAddrPattern.MatchString(address)
}

// NormalizeAddress canonicalizes an address to its EIP-55 checksummed form.
// All persisted and compared addresses go through this so that equality
// checks (registered locker vs message sender, mapping keys) never fail on
// case differences.
func NormalizeAddress(address string) (string, error) {
	if !IsEvmAddress(address) {
		return "", fmt.Errorf("invalid address: %q", address)
	}
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		address = "0x" + address
	}
	return common.HexToAddress(address).Hex(), nil
}

// MustNormalizeAddress is NormalizeAddress for static configuration values
// that are validated at load time.
func MustNormalizeAddress(address string) string {
	normalized, err := NormalizeAddress(address)
	if err != nil {
		panic(err)
	}
	return normalized
}

// SameAddress compares two addresses ignoring checksum casing.
func SameAddress(a, b string) bool {
	if !IsEvmAddress(a) || !IsEvmAddress(b) {
		return false
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}

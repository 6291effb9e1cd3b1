package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const usdtLower = "0xdac17f958d2ee523a2206206994597c13d831ec7"
const usdtChecksum = "0xdAC17F958D2ee523a2206206994597C13D831ec7"

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress(usdtLower)
	require.NoError(t, err)
	require.Equal(t, usdtChecksum, got)

	// Missing prefix is tolerated.
	got, err = NormalizeAddress("dac17f958d2ee523a2206206994597c13d831ec7")
	require.NoError(t, err)
	require.Equal(t, usdtChecksum, got)

	for _, bad := range []string{"", "0x123", "not-an-address", "0xZZc17f958d2ee523a2206206994597c13d831ec7"} {
		_, err := NormalizeAddress(bad)
		require.Error(t, err, "expected rejection of %q", bad)
	}
}

func TestSameAddress(t *testing.T) {
	require.True(t, SameAddress(usdtLower, usdtChecksum))
	require.True(t, SameAddress(usdtChecksum, usdtChecksum))
	require.False(t, SameAddress(usdtLower, "0x0000000000000000000000000000000000000001"))
	require.False(t, SameAddress("garbage", usdtChecksum))
}

func TestMustNormalizeAddressPanics(t *testing.T) {
	require.Panics(t, func() { MustNormalizeAddress("nope") })
	require.Equal(t, usdtChecksum, MustNormalizeAddress(usdtLower))
}

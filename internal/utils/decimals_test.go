package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvertDecimals(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		from   uint8
		to     uint8
		want   string
	}{
		{"same decimals", "100000000", 6, 6, "100000000"},
		{"upscale 6 to 18", "100000000", 6, 18, "100000000000000000000"},
		{"downscale 18 to 6 exact", "100000000000000000000", 18, 6, "100000000"},
		{"downscale truncates", "1999999999999", 18, 6, "1"},
		{"downscale below one unit", "999999999999", 18, 6, "0"},
		{"zero", "0", 6, 18, "0"},
		{"upscale 8 to 18", "12345678", 8, 18, "123456780000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, ok := new(big.Int).SetString(tt.amount, 10)
			require.True(t, ok)
			got := ConvertDecimals(amount, tt.from, tt.to)
			require.Equal(t, tt.want, got.String())
		})
	}
}

func TestConvertDecimalsDoesNotMutateInput(t *testing.T) {
	amount := big.NewInt(1234567)
	ConvertDecimals(amount, 18, 6)
	require.Equal(t, "1234567", amount.String())
}

func TestConvertDecimalsNil(t *testing.T) {
	require.Equal(t, "0", ConvertDecimals(nil, 6, 18).String())
}

func TestConvertDecimalsRoundTripBound(t *testing.T) {
	// Down then up loses at most MaxRoundingLoss, and the result is never
	// larger than the input.
	inputs := []string{"0", "1", "999999", "1000000", "123456789012345678", "999999999999999999"}
	for _, s := range inputs {
		amount, ok := new(big.Int).SetString(s, 10)
		require.True(t, ok)

		down := ConvertDecimals(amount, 18, 6)
		back := ConvertDecimals(down, 6, 18)

		require.LessOrEqual(t, back.Cmp(amount), 0, "round trip must not create value for %s", s)
		loss := new(big.Int).Sub(amount, back)
		require.LessOrEqual(t, loss.Cmp(MaxRoundingLoss(18, 6)), 0, "loss exceeds bound for %s", s)
	}
}

func TestMaxRoundingLoss(t *testing.T) {
	require.Equal(t, "0", MaxRoundingLoss(6, 6).String())
	require.Equal(t, "0", MaxRoundingLoss(6, 18).String())
	require.Equal(t, "999999999999", MaxRoundingLoss(18, 6).String())
	require.Equal(t, "9", MaxRoundingLoss(7, 6).String())
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount("100000000")
	require.NoError(t, err)
	require.Equal(t, "100000000", amount.String())

	_, err = ParseAmount("")
	require.Error(t, err)

	_, err = ParseAmount("-5")
	require.Error(t, err)

	_, err = ParseAmount("1.5")
	require.Error(t, err)

	_, err = ParseAmount("0xff")
	require.Error(t, err)

	// Values beyond uint64 must parse; balances are 256-bit on chain.
	amount, err = ParseAmount("100000000000000000000000000000000")
	require.NoError(t, err)
	require.Equal(t, "100000000000000000000000000000000", amount.String())
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "0", FormatAmount(nil))
	require.Equal(t, "42", FormatAmount(big.NewInt(42)))
}

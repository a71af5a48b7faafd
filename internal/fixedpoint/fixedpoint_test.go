package fixedpoint

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wei(s string) sdkmath.Int {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		panic("bad test amount: " + s)
	}
	return v
}

func TestSanitizeDecimalInput(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"plain integer", "123", 2, "123"},
		{"strips letters", "12a3.4x5", 2, "123.45"},
		{"keeps first dot only", "1.2.3", 2, "1.23"},
		{"caps fractional digits", "1.23456", 2, "1.23"},
		{"leading dot gets zero", ".5", 2, "0.5"},
		{"trailing dot dropped", "7.", 2, "7"},
		{"whitespace trimmed", "  42.1 ", 2, "42.1"},
		{"garbage only", "abc-!", 2, ""},
		{"lone dot", ".", 2, ""},
		{"empty", "", 2, ""},
		{"zero max swallows fraction", "3.99", 0, "3"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeDecimalInput(tc.input, tc.max))
		})
	}
}

func TestParseDecimal(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		decimals uint8
		expected sdkmath.Int
	}{
		{"whole units", "5", 18, wei("5000000000000000000")},
		{"two decimals", "1.25", 18, wei("1250000000000000000")},
		{"single decimal", "0.5", 18, wei("500000000000000000")},
		{"leading dot", ".75", 18, wei("750000000000000000")},
		{"empty is zero", "", 18, sdkmath.ZeroInt()},
		{"garbage is zero", "not a number", 18, sdkmath.ZeroInt()},
		{"six decimal token", "10.50", 6, sdkmath.NewInt(10_500000)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDecimal(tc.input, tc.decimals)
			require.NoError(t, err)
			assert.True(t, tc.expected.Equal(got), "expected %s, got %s", tc.expected, got)
		})
	}
}

// Parsing a floor-formatted value and re-formatting it must reproduce the
// same string, and the parsed value must never exceed the original.
func TestFormatFloorParseRoundTrip(t *testing.T) {
	amounts := []sdkmath.Int{
		wei("1234567890123456789"),
		wei("999999999999999999"),
		wei("1000000000000000000"),
		wei("50000000000000000"),
		sdkmath.NewInt(1),
		sdkmath.ZeroInt(),
	}

	for _, amount := range amounts {
		formatted := FormatFloor(amount, 18)
		parsed, err := ParseDecimal(formatted, 18)
		require.NoError(t, err)

		assert.True(t, parsed.LTE(amount), "parsed %s exceeds original %s", parsed, amount)
		assert.Equal(t, formatted, FormatFloor(parsed, 18))
	}
}

func TestFormatFloor(t *testing.T) {
	assert.Equal(t, "1.23", FormatFloor(wei("1239999999999999999"), 18))
	assert.Equal(t, "0.69", FormatFloor(wei("699999999999999999"), 18))
	assert.Equal(t, "0.00", FormatFloor(sdkmath.NewInt(1), 18))
	assert.Equal(t, "0.00", FormatFloor(sdkmath.ZeroInt(), 18))
	assert.Equal(t, "10.50", FormatFloor(sdkmath.NewInt(10_509999), 6))
	// A nil Int must render as zero, never panic.
	assert.Equal(t, "0.00", FormatFloor(sdkmath.Int{}, 18))
}

func TestFormatRounded(t *testing.T) {
	assert.Equal(t, "1.24", FormatRounded(wei("1239999999999999999"), 18))
	assert.Equal(t, "1.24", FormatRounded(wei("1235000000000000000"), 18))
	assert.Equal(t, "1.23", FormatRounded(wei("1234999999999999999"), 18))
	assert.Equal(t, "0.00", FormatRounded(sdkmath.ZeroInt(), 18))
}

func TestFormatRoundedSnap(t *testing.T) {
	// Within 1e12 wei below a whole unit snaps up.
	assert.Equal(t, "1.00", FormatRoundedSnap(wei("999999999999900000")))
	// Within 1e12 wei above a whole unit snaps down.
	assert.Equal(t, "2.00", FormatRoundedSnap(wei("2000000000000100000")))
	// Outside the epsilon, ordinary half-up rendering applies.
	assert.Equal(t, "1.50", FormatRoundedSnap(wei("1500000000000000000")))
	assert.Equal(t, "0.00", FormatRoundedSnap(sdkmath.ZeroInt()))
}

func TestFormatBorrowable(t *testing.T) {
	// Dust below the epsilon reads as a bare zero.
	assert.Equal(t, "0", FormatBorrowable(wei("999999999999")))
	assert.Equal(t, "0", FormatBorrowable(sdkmath.ZeroInt()))
	// At and above the epsilon the ordinary floor formatter takes over.
	assert.Equal(t, "0.00", FormatBorrowable(wei("1000000000000")))
	assert.Equal(t, "0.69", FormatBorrowable(wei("699999999999999999")))
}

func TestFloorToCent(t *testing.T) {
	assert.True(t, wei("1230000000000000000").Equal(FloorToCent(wei("1239999999999999999"), 18)))
	assert.True(t, sdkmath.ZeroInt().Equal(FloorToCent(sdkmath.NewInt(5), 18)))
}

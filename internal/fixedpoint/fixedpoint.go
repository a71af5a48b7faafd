/*
This file converts between integer smallest-unit amounts and the 2-decimal-place
strings users read and type. All arithmetic stays on arbitrary-precision
integers; the only rounding is the explicit floor/half-up policy of each
formatter.
*/

package fixedpoint

import (
	"errors"
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidAmount = errors.New("amount is invalid")
)

const (
	// displayDecimals is the fixed number of fractional digits rendered and
	// accepted from user input.
	displayDecimals = 2

	// dustEpsilonExp is the exponent of the wei dust epsilon (1e12) used by
	// the snap formatters for 18-decimal tokens.
	dustEpsilonExp = 12
)

// centUnit returns 10^(decimals-2), the smallest-unit value of one display
// cent. The exponent is clamped at zero so tokens with fewer than two
// decimals never underflow it.
func centUnit(decimals uint8) sdkmath.Int {
	exp := int(decimals) - displayDecimals
	if exp < 0 {
		exp = 0
	}
	return sdkmath.NewIntWithDecimal(1, exp)
}

// SanitizeDecimalInput strips everything except digits and the first decimal
// point from user input and caps the fractional digits at maxDecimals.
func SanitizeDecimalInput(value string, maxDecimals int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	seenDot := false
	fracDigits := 0
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			if seenDot {
				if fracDigits >= maxDecimals {
					continue
				}
				fracDigits++
			}
			b.WriteRune(r)
		case r == '.' && !seenDot:
			if maxDecimals <= 0 {
				seenDot = true // swallow the dot and everything after it
				continue
			}
			seenDot = true
			b.WriteRune('.')
		}
	}

	out := b.String()
	out = strings.TrimSuffix(out, ".")
	if out == "" || out == "." {
		return ""
	}
	if strings.HasPrefix(out, ".") {
		out = "0" + out
	}
	return out
}

// ParseDecimal converts a decimal string into smallest units for a token with
// the given decimal precision. Extra fractional digits beyond the token's
// precision are truncated, never rounded. Empty or non-numeric input parses
// as zero; ErrInvalidAmount is returned only when the conversion would yield
// a negative value, which the sanitizer never produces.
func ParseDecimal(text string, decimals uint8) (sdkmath.Int, error) {
	sanitized := SanitizeDecimalInput(text, int(decimals))
	if sanitized == "" {
		return sdkmath.ZeroInt(), nil
	}

	intPart := sanitized
	fracPart := ""
	if idx := strings.IndexByte(sanitized, '.'); idx >= 0 {
		intPart = sanitized[:idx]
		fracPart = sanitized[idx+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > int(decimals) {
		fracPart = fracPart[:decimals]
	}

	whole, ok := sdkmath.NewIntFromString(intPart)
	if !ok {
		return sdkmath.ZeroInt(), nil
	}
	result := whole.Mul(sdkmath.NewIntWithDecimal(1, int(decimals)))

	if fracPart != "" {
		frac, ok := sdkmath.NewIntFromString(fracPart)
		if !ok {
			return sdkmath.ZeroInt(), nil
		}
		result = result.Add(frac.Mul(sdkmath.NewIntWithDecimal(1, int(decimals)-len(fracPart))))
	}

	if result.IsNegative() {
		return sdkmath.ZeroInt(), ErrInvalidAmount
	}
	return result, nil
}

// FormatFloor renders an amount with 2 fractional digits, flooring at the
// cent unit. Used for any value that may seed an input (Max buttons): the
// suggestion must never exceed the true on-chain quantity.
func FormatFloor(amount sdkmath.Int, decimals uint8) string {
	return renderCents(floorCents(amount, decimals))
}

// FormatRounded renders an amount with 2 fractional digits, rounding half-up
// at the cent unit. Display only; never feed the result back into an input.
func FormatRounded(amount sdkmath.Int, decimals uint8) string {
	cent := centUnit(decimals)
	v := orZero(amount)
	cents := v.Add(cent.QuoRaw(2)).Quo(cent)
	return renderCents(cents)
}

// FormatRoundedSnap is FormatRounded for 18-decimal tokens with whole-unit
// dust suppression: values within 1e12 wei of a whole unit render as "X.00".
func FormatRoundedSnap(amount sdkmath.Int) string {
	const decimals = 18
	v := orZero(amount)
	unit := sdkmath.NewIntWithDecimal(1, decimals)
	epsilon := sdkmath.NewIntWithDecimal(1, dustEpsilonExp)

	whole := v.Quo(unit)
	remainder := v.Mod(unit)
	if remainder.LTE(epsilon) {
		return whole.String() + ".00"
	}
	if unit.Sub(remainder).LTE(epsilon) {
		return whole.AddRaw(1).String() + ".00"
	}
	return FormatRounded(v, decimals)
}

// FormatBorrowable renders a borrowable headroom for display next to the Max
// button: amounts below the dust epsilon show as plain "0" so the suggestion
// never advertises un-borrowable dust, everything else floors.
func FormatBorrowable(amount sdkmath.Int) string {
	v := orZero(amount)
	if v.LT(sdkmath.NewIntWithDecimal(1, dustEpsilonExp)) {
		return "0"
	}
	return FormatFloor(v, 18)
}

// FloorToCent floors an amount to the cent-unit granularity without
// formatting it. The borrow guard caps submissions at this granularity so a
// Max click always passes the amount check.
func FloorToCent(amount sdkmath.Int, decimals uint8) sdkmath.Int {
	cent := centUnit(decimals)
	return orZero(amount).Quo(cent).Mul(cent)
}

func floorCents(amount sdkmath.Int, decimals uint8) sdkmath.Int {
	return orZero(amount).Quo(centUnit(decimals))
}

func renderCents(cents sdkmath.Int) string {
	integer := cents.QuoRaw(100)
	decimal := cents.ModRaw(100).Int64()
	out := integer.String() + "."
	if decimal < 10 {
		out += "0"
	}
	return out + strconv.FormatInt(decimal, 10)
}

func orZero(amount sdkmath.Int) sdkmath.Int {
	if amount.IsNil() {
		return sdkmath.ZeroInt()
	}
	return amount
}

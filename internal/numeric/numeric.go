// Package numeric implements the decimal codec described in spec §4.A:
// truncating size formatting, significant-figure price rounding, and the
// integer scalings the signer needs for USD and hashing contexts.
//
// Every operation here uses github.com/shopspring/decimal so rounding is
// exact base-10 arithmetic, never binary-float approximation — the same
// order submitted twice must format to the same byte-exact string.
package numeric

import (
	"strings"

	"github.com/shopspring/decimal"

	"hlgo/pkg/hlerr"
)

// FormatSize truncates qty toward zero to szDecimals places and returns the
// canonical plain-decimal string. Inputs with a leading minus are treated
// as their absolute value — sizes are never negative on the wire.
func FormatSize(qty string, szDecimals int) (string, error) {
	d, err := parseDecimal(qty)
	if err != nil {
		return "", err
	}
	d = d.Abs().Truncate(int32(szDecimals))
	return trimDecimalString(d), nil
}

// FormatPrice rounds px half-up to 5 significant digits, then half-up again
// to N decimal places where N = (8 if spot else 6) − szDecimals, clamped to
// N ≥ 0. The 5-sig-fig step fixes
// a decimal-place floor (the precision actually needed to show 5 significant
// digits); the N-place step never prints zeros beyond that floor, so
// "3150.0" stays "3150.0" while "12346.0" collapses to "12346".
func FormatPrice(px string, szDecimals int, isSpot bool) (string, error) {
	d, err := parseDecimal(px)
	if err != nil {
		return "", err
	}

	sigRounded, sigPlaces := roundToSigFigs(d, 5)

	maxDecimals := 6
	if isSpot {
		maxDecimals = 8
	}
	n := maxDecimals - szDecimals
	if n < 0 {
		n = 0
	}

	final := sigRounded.Round(int32(n))
	floor := sigPlaces
	if int32(n) < floor {
		floor = int32(n)
	}
	return formatWithFloor(final, int32(n), floor), nil
}

// FloatToUsdInt scales x by 1e6 and truncates, for USD-denominated wire
// amounts.
func FloatToUsdInt(x string) (int64, error) {
	return scaleAndTruncate(x, 6)
}

// FloatToIntForHashing scales x by 1e9 and truncates, for the integer
// representations embedded in signing digests.
func FloatToIntForHashing(x string) (int64, error) {
	return scaleAndTruncate(x, 9)
}

func scaleAndTruncate(x string, power int32) (int64, error) {
	d, err := parseDecimal(x)
	if err != nil {
		return 0, err
	}
	scaled := d.Shift(power).Truncate(0)
	return scaled.IntPart(), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, hlerr.Wrap(hlerr.BadNumber, "not a valid decimal: "+s, err)
	}
	return d, nil
}

// roundToSigFigs rounds d half-up to the given number of significant digits
// and also returns the decimal-place count that rounding actually needed
// (clamped to ≥0) — the floor that later truncation must not print zeros
// past. Zero is returned unchanged (it has no meaningful magnitude).
func roundToSigFigs(d decimal.Decimal, sig int32) (decimal.Decimal, int32) {
	if d.IsZero() {
		return d, 0
	}
	abs := d.Abs()
	magnitude := orderOfMagnitude(abs)
	// number of fractional digits to round to so that exactly `sig`
	// significant digits remain.
	decimalPlaces := sig - 1 - magnitude
	if decimalPlaces < 0 {
		decimalPlaces = 0
	}
	rounded := d.Round(sig - 1 - magnitude)
	return rounded, decimalPlaces
}

// formatWithFloor renders d fixed to n decimal places, then strips trailing
// fractional zeros down to (but not past) floor decimal places.
func formatWithFloor(d decimal.Decimal, n, floor int32) string {
	s := d.StringFixed(n)
	if n == 0 {
		return s
	}
	dot := strings.IndexByte(s, '.')
	for int32(len(s)-dot-1) > floor && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if floor == 0 && strings.HasSuffix(s, ".") {
		s = s[:len(s)-1]
	}
	return s
}

// orderOfMagnitude returns floor(log10(d)) for a positive, non-zero decimal
// using exact decimal arithmetic (no float conversion).
func orderOfMagnitude(d decimal.Decimal) int32 {
	coeff := d.Coefficient()
	digits := int32(len(coeff.String()))
	return digits - 1 + d.Exponent()
}

// trimDecimalString renders d as a plain (non-exponential) string with
// trailing fractional zeros stripped, keeping the decimal point only when a
// fractional remainder survives.
func trimDecimalString(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

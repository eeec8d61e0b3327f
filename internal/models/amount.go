package models

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Indonesian shorthand multipliers applied by ParseAmount. Order matters:
// longer suffixes are stripped before their abbreviations.
var shorthandMultipliers = []struct {
	suffix     string
	multiplier decimal.Decimal
}{
	{"juta", decimal.New(1, 6)},
	{"jt", decimal.New(1, 6)},
	{"ribu", decimal.New(1, 3)},
	{"rb", decimal.New(1, 3)},
	{"k", decimal.New(1, 3)},
}

var amountDigits = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// ParseAmount converts a user- or model-supplied amount string into a
// decimal value. It tolerates the "Rp" prefix, thousand separators in both
// dot and comma styles, and Indonesian shorthand ("25rb" → 25000,
// "1,5jt" → 1500000).
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	s = strings.TrimPrefix(s, "rp")
	s = strings.TrimPrefix(s, "idr")
	s = strings.ReplaceAll(s, " ", "")

	multiplier := decimal.New(1, 0)
	for _, m := range shorthandMultipliers {
		if strings.HasSuffix(s, m.suffix) {
			s = strings.TrimSuffix(s, m.suffix)
			multiplier = m.multiplier
			break
		}
	}

	s = normalizeSeparators(s)
	if !amountDigits.MatchString(s) {
		return decimal.Zero, fmt.Errorf("unparseable amount %q", raw)
	}

	dec, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return dec.Mul(multiplier), nil
}

// normalizeSeparators resolves dot/comma usage. Groups of exactly three
// digits after a separator are treated as thousand grouping ("25.000"),
// anything else as a decimal fraction ("1,5").
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndexAny(s, ".,")
	if lastDot == -1 {
		return s
	}

	frac := s[lastDot+1:]
	whole := s[:lastDot]
	stripped := strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}, s)

	// A trailing group of exactly three digits is thousand grouping
	// ("25.000", "25,000"); any other length is a decimal fraction ("1,5").
	// A zero whole part is never grouped ("0.125").
	if len(frac) == 3 && whole != "0" && whole != "-0" {
		return stripped
	}
	return stripped[:len(stripped)-len(frac)] + "." + frac
}

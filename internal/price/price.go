// Package price implements the display-price format used by the catalog:
// comma-grouped digits with an optional " TZS" currency suffix.
package price

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Currency is the optional suffix of a display price.
const Currency = "TZS"

var (
	groupedPattern = regexp.MustCompile(`^\d{1,3}(,\d{3})*(?:\s+TZS)?$`)
	plainPattern   = regexp.MustCompile(`^\d+$`)
	integerPattern = regexp.MustCompile(`^[+-]?\d+$`)
)

// ErrInvalidFormat is returned by Normalize for strings that are neither
// comma-grouped nor plain digits.
var ErrInvalidFormat = errors.New("Price must be a number or in format: '720,000' or '720,000 TZS'")

// ValidFormat reports whether s is "720,000", "720,000 TZS" or "720000".
func ValidFormat(s string) bool {
	s = strings.TrimSpace(s)
	return groupedPattern.MatchString(s) || plainPattern.MatchString(s)
}

// FormatWithCommas strips commas, spaces and the currency code from s,
// parses the rest as an integer and renders it with thousands separators.
// Non-numeric input is returned unchanged.
func FormatWithCommas(s string) string {
	digits := strip(s)
	if !integerPattern.MatchString(digits) {
		return s
	}
	// Any length of digits is accepted, not only what fits an int64.
	n, err := decimal.NewFromString(digits)
	if err != nil {
		return s
	}
	return group(n.String())
}

// FormatInt renders n with a comma every three digits from the right.
func FormatInt(n int64) string {
	return group(strconv.FormatInt(n, 10))
}

// FormatDecimal renders d with a grouped integer part and its exact
// decimal fraction, so 720000 becomes "720,000" and 720000.5 "720,000.5".
func FormatDecimal(d decimal.Decimal) string {
	intPart, frac, ok := strings.Cut(d.String(), ".")
	if !ok {
		return group(intPart)
	}
	return group(intPart) + "." + frac
}

// ExtractNumeric returns the numeric value of a display price for sorting.
// Unparseable input yields 0.
func ExtractNumeric(s string) float64 {
	s = strings.ReplaceAll(s, Currency, "")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// Amount is ExtractNumeric as an exact decimal.
func Amount(s string) decimal.Decimal {
	s = strings.ReplaceAll(s, Currency, "")
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Normalize validates a price string and returns its canonical display
// form: plain digits get separators, a "TZS" price keeps its suffix.
func Normalize(s string) (string, error) {
	if !ValidFormat(s) {
		return "", ErrInvalidFormat
	}
	s = strings.TrimSpace(s)
	if plainPattern.MatchString(s) {
		return FormatWithCommas(s), nil
	}
	if strings.Contains(strings.ToUpper(s), Currency) {
		number := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, Currency, ""), ",", ""))
		if plainPattern.MatchString(number) {
			return FormatWithCommas(number) + " " + Currency, nil
		}
	}
	return s, nil
}

func strip(s string) string {
	r := strings.NewReplacer(",", "", " ", "", Currency, "")
	return strings.TrimSpace(r.Replace(s))
}

func group(digits string) string {
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= 3 {
		return sign + digits
	}

	var b strings.Builder
	b.Grow(len(digits) + len(digits)/3 + 1)
	b.WriteString(sign)
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > len(sign) {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Package scalar implements the wire codec for the two arbitrary-precision
// numeric scalars of the catalog API: BigDecimal (canonical base-10 strings
// such as "6371.0") and BigInt (lower-case scientific notation such as
// "5.972e24", so astronomically large masses stay human-auditable).
package scalar

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	sharederrors "planets-service/internal/shared/errors"

	"github.com/cockroachdb/apd/v3"
)

// ErrInvalidNumericLiteral reports a malformed decimal literal on the
// inbound path. It is a client fault.
var ErrInvalidNumericLiteral = errors.New("invalid numeric literal")

// ErrUnsupportedOperation reports a codec operation this system never
// performs. Hitting it is a caller defect, not a runtime condition.
var ErrUnsupportedOperation = errors.New("unsupported operation")

// decimalLiteral matches a plain base-10 decimal: optional sign, integer
// part, optional fractional part. No exponent marker.
var decimalLiteral = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

// ParseBigDecimal decodes a canonical decimal wire string. Scale is
// preserved, so "6371.0" keeps its trailing zero through a round trip.
func ParseBigDecimal(s string) (*apd.Decimal, error) {
	if !decimalLiteral.MatchString(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumericLiteral, s)
	}

	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidNumericLiteral, s, err)
	}
	return d, nil
}

// FormatBigDecimal renders the canonical decimal form, never scientific
// notation.
func FormatBigDecimal(d *apd.Decimal) string {
	return d.Text('f')
}

// FormatBigInt renders v in lower-case scientific notation with the
// mantissa normalized to one leading digit, matching e.g. "5.972e24".
// Zero renders as "0e0".
func FormatBigInt(v *big.Int) string {
	digits := v.Text(10)

	var sign string
	if strings.HasPrefix(digits, "-") {
		sign = "-"
		digits = digits[1:]
	}

	exponent := len(digits) - 1
	fraction := strings.TrimRight(digits[1:], "0")

	var b strings.Builder
	b.WriteString(sign)
	b.WriteString(digits[:1])
	if fraction != "" {
		b.WriteString(".")
		b.WriteString(fraction)
	}
	fmt.Fprintf(&b, "e%d", exponent)
	return b.String()
}

// ParseBigInt always fails. Integers never arrive as raw wire literals in
// this system; they are materialized from mantissa/exponent pairs, so a
// call here means the inbound path is wired wrong.
func ParseBigInt(s string) (*big.Int, error) {
	return nil, sharederrors.WrapUnsupported(
		"BigInt values are write-only on the wire",
		fmt.Errorf("%w: got %q", ErrUnsupportedOperation, s),
	)
}

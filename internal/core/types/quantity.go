package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strings"

	"github.com/shopspring/decimal"
)

// Quantity is an ingredient amount in its unit (g, ml, pcs) with four
// fractional digits, held as the integer q*1e4. Stock columns are BIGINT
// in this representation. JSON is a plain number with four digits.
type Quantity int64

const (
	QuantityScale int64 = 10_000
	quantityExp   int32 = -4
)

// MinRecipeQuantity is the smallest amount a recipe line may use per unit (0.001).
const MinRecipeQuantity Quantity = 10

var (
	errEmptyQuantity = errors.New("empty quantity")
	maxQuantity      = decimal.NewFromInt(math.MaxInt64)
)

func NewQuantityFromInt(v int64) Quantity { return Quantity(v * QuantityScale) }

// NewQuantityFromInt64Scaled wraps a value already multiplied by 1e4, as
// read from a BIGINT column or a SUM over one.
func NewQuantityFromInt64Scaled(v int64) Quantity { return Quantity(v) }

// MustQuantity parses a literal and panics on error. For constants and tests.
func MustQuantity(s string) Quantity {
	q, err := ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

// ParseQuantity accepts any decimal literal decimal.NewFromString does,
// exponents included. Digits past the fourth fractional place are cut off
// towards zero.
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	if s == "" {
		return 0, errEmptyQuantity
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	scaled := d.Shift(-quantityExp).Truncate(0)
	if scaled.Abs().GreaterThan(maxQuantity) {
		return 0, fmt.Errorf("parse quantity %q: out of range", s)
	}
	return Quantity(scaled.IntPart()), nil
}

// Decimal is q as an exact decimal, for percentage math.
func (q Quantity) Decimal() decimal.Decimal {
	return decimal.New(int64(q), quantityExp)
}

func (q Quantity) IsZero() bool     { return q == 0 }
func (q Quantity) IsPositive() bool { return q > 0 }
func (q Quantity) IsNegative() bool { return q < 0 }

func (q Quantity) Abs() Quantity {
	if q < 0 {
		return -q
	}
	return q
}

// MulInt scales a per-unit amount by a unit count. ok is false when the
// product does not fit in a Quantity.
func (q Quantity) MulInt(n int) (Quantity, bool) {
	if q == 0 || n == 0 {
		return 0, true
	}
	hi, lo := bits.Mul64(absUint(int64(q)), absUint(int64(n)))
	neg := (q < 0) != (n < 0)
	switch {
	case hi != 0:
		return 0, false
	case neg && lo <= 1<<63:
		return Quantity(-int64(lo - 1) - 1), true
	case !neg && lo <= math.MaxInt64:
		return Quantity(lo), true
	}
	return 0, false
}

// Add sums two quantities; ok is false on overflow.
func (q Quantity) Add(o Quantity) (Quantity, bool) {
	sum := q + o
	if (o > 0 && sum < q) || (o < 0 && sum > q) {
		return 0, false
	}
	return sum, true
}

func absUint(v int64) uint64 {
	if v < 0 {
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}

// Units is how many whole portions of per q covers: floor(q/per), or 0
// when either side is not positive.
func (q Quantity) Units(per Quantity) int64 {
	if per <= 0 || q <= 0 {
		return 0
	}
	return int64(q / per)
}

func (q Quantity) String() string {
	return q.Decimal().StringFixed(-quantityExp)
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalJSON takes a number or a quoted decimal; null is zero.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	parsed, err := ParseQuantity(raw)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

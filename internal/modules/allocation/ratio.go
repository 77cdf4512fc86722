// Package allocation provides the integer stake allocation solvers.
//
// Every solver works on a Problem: a budget, per-candidate win probabilities and
// per-candidate payout tables built from exact multipliers. Multipliers are kept as
// reduced big-integer fractions so payouts never drift through float rounding; only
// probabilities and the aggregated objective values are floating point.
package allocation

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// maxExponent bounds the positive base-10 exponent accepted by ParseRatio.
// Anything larger overflows every realistic budget.
const maxExponent = 40

// minExponent bounds the negative exponent. It only grows the denominator.
const minExponent = -4096

// literalPattern is a plain decimal with an optional exponent: no sign prefix other than
// '-', and digits on both sides of the point.
var literalPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// ParseError is returned when a multiplier cannot be represented as a positive ratio.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid multiplier %q: %s", e.Input, e.Reason)
}

// Ratio is an exact positive rational number num/den in lowest terms.
type Ratio struct {
	num *big.Int
	den *big.Int
}

// ParseRatio parses a decimal or scientific literal ("1.8", "20", "2.5e1") into a Ratio.
// Zero, negative and malformed inputs fail with *ParseError.
func ParseRatio(text string) (Ratio, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Ratio{}, &ParseError{Input: text, Reason: "empty"}
	}
	if !literalPattern.MatchString(trimmed) {
		return Ratio{}, &ParseError{Input: text, Reason: "not a decimal literal"}
	}

	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Ratio{}, &ParseError{Input: text, Reason: "not a decimal literal"}
	}
	if d.Sign() <= 0 {
		return Ratio{}, &ParseError{Input: text, Reason: "must be greater than zero"}
	}

	num := d.Coefficient()
	exp := int64(d.Exponent())
	ten := big.NewInt(10)
	for exp < 0 {
		q, m := new(big.Int).QuoRem(num, ten, new(big.Int))
		if m.Sign() != 0 {
			break
		}
		num = q
		exp++
	}
	if exp > maxExponent || exp < minExponent {
		return Ratio{}, &ParseError{Input: text, Reason: "exponent out of range"}
	}

	den := big.NewInt(1)
	if exp >= 0 {
		num.Mul(num, new(big.Int).Exp(ten, big.NewInt(exp), nil))
	} else {
		den.Exp(ten, big.NewInt(-exp), nil)
	}

	return reduce(num, den), nil
}

// ParseRatioFloat converts a float into a Ratio through its shortest decimal representation.
func ParseRatioFloat(f float64) (Ratio, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Ratio{}, &ParseError{Input: fmt.Sprint(f), Reason: "not finite"}
	}
	return ParseRatio(strconv.FormatFloat(f, 'g', -1, 64))
}

func reduce(num, den *big.Int) Ratio {
	g := new(big.Int).GCD(nil, nil, new(big.Int).Abs(num), new(big.Int).Abs(den))
	if g.Sign() > 0 && g.Cmp(big.NewInt(1)) != 0 {
		num = new(big.Int).Quo(num, g)
		den = new(big.Int).Quo(den, g)
	}
	return Ratio{num: num, den: den}
}

// Num returns a copy of the numerator.
func (r Ratio) Num() *big.Int {
	if r.num == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(r.num)
}

// Den returns a copy of the denominator.
func (r Ratio) Den() *big.Int {
	if r.den == nil {
		return big.NewInt(1)
	}
	return new(big.Int).Set(r.den)
}

// IsZero reports whether r is the zero value (never produced by the constructors).
func (r Ratio) IsZero() bool {
	return r.num == nil || r.num.Sign() == 0
}

// Cmp compares r and o exactly by cross-multiplication: -1, 0 or +1.
func (r Ratio) Cmp(o Ratio) int {
	left := new(big.Int).Mul(r.Num(), o.Den())
	right := new(big.Int).Mul(o.Num(), r.Den())
	return left.Cmp(right)
}

// Float64 returns the nearest float64. Only for display and logging.
func (r Ratio) Float64() float64 {
	f, _ := new(big.Rat).SetFrac(r.Num(), r.Den()).Float64()
	return f
}

// String renders the ratio as "num/den".
func (r Ratio) String() string {
	return r.Num().String() + "/" + r.Den().String()
}

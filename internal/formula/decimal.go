package formula

import (
	"github.com/cockroachdb/apd/v3"
)

// Decimal is an exact decimal used for metric arithmetic.
type Decimal struct {
	value apd.Decimal
}

func newContext() *apd.Context {
	ctx := apd.BaseContext.WithPrecision(34)
	ctx.Rounding = apd.RoundHalfUp
	return ctx
}

// FromFloat converts f using its shortest decimal representation, so 0.1
// becomes exactly 0.1 rather than its binary approximation.
func FromFloat(f float64) Decimal {
	var d apd.Decimal
	if _, err := d.SetFloat64(f); err != nil {
		return Decimal{}
	}
	return Decimal{value: d}
}

// FromInt64 converts i exactly.
func FromInt64(i int64) Decimal {
	var d apd.Decimal
	d.SetInt64(i)
	return Decimal{value: d}
}

func (d Decimal) IsZero() bool {
	return d.value.IsZero()
}

// Add returns the sum of d and other.
func (d Decimal) Add(other Decimal) Decimal {
	var result apd.Decimal
	newContext().Add(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// Sub returns d minus other.
func (d Decimal) Sub(other Decimal) Decimal {
	var result apd.Decimal
	newContext().Sub(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// Mul returns the product of d and other.
func (d Decimal) Mul(other Decimal) Decimal {
	var result apd.Decimal
	newContext().Mul(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// Div returns the quotient of d divided by other. Callers check other for zero.
func (d Decimal) Div(other Decimal) Decimal {
	var result apd.Decimal
	newContext().Quo(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// Round rounds half away from zero to places decimal digits.
func (d Decimal) Round(places int32) Decimal {
	var result apd.Decimal
	if _, err := newContext().Quantize(&result, &d.value, -places); err != nil {
		return d
	}
	return Decimal{value: result}
}

// Float64 converts d to the nearest float64.
func (d Decimal) Float64() float64 {
	f, err := d.value.Float64()
	if err != nil {
		return 0
	}
	return f
}

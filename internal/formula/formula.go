// Package formula holds the pure metric formulas. All arithmetic runs on
// exact decimals and converts to float64 only at the end.
package formula

import (
	"iter"

	"cloudboost-metrics/internal/domain"
)

var hundred = FromInt64(100)

// Total returns the decimal sum of field across records.
// Records lacking the field contribute nothing.
func Total(records iter.Seq[*domain.Record], field string) Decimal {
	sum := FromInt64(0)
	for r := range records {
		if v, ok := r.Payload[field]; ok {
			sum = sum.Add(FromFloat(v))
		}
	}
	return sum
}

// Sum returns a Formula totaling field. Empty input yields 0.
func Sum(field string) domain.Formula {
	return func(records iter.Seq[*domain.Record]) domain.Value {
		return domain.Number(Total(records, field).Float64())
	}
}

// Ratio returns a Formula computing total(numerator) / total(denominator),
// scaled by 100 when percent is set. A zero denominator total yields
// undefined.
func Ratio(numerator, denominator string, percent bool) domain.Formula {
	return func(records iter.Seq[*domain.Record]) domain.Value {
		num, den := FromInt64(0), FromInt64(0)
		for r := range records {
			if v, ok := r.Payload[numerator]; ok {
				num = num.Add(FromFloat(v))
			}
			if v, ok := r.Payload[denominator]; ok {
				den = den.Add(FromFloat(v))
			}
		}
		if den.IsZero() {
			return domain.Undefined
		}
		q := num.Div(den)
		if percent {
			q = q.Mul(hundred)
		}
		return domain.Number(q.Float64())
	}
}

// Growth returns (current - previous) / previous * 100.
// It is undefined when either side is undefined or previous is 0.
func Growth(current, previous domain.Value) domain.Value {
	if !current.Defined || !previous.Defined {
		return domain.Undefined
	}
	prev := FromFloat(previous.Number)
	if prev.IsZero() {
		return domain.Undefined
	}
	g := FromFloat(current.Number).Sub(prev).Div(prev).Mul(hundred)
	return domain.Number(g.Float64())
}

// Clamp limits a defined value to [lo, hi].
func Clamp(v domain.Value, lo, hi float64) domain.Value {
	if !v.Defined {
		return v
	}
	switch {
	case v.Number < lo:
		return domain.Number(lo)
	case v.Number > hi:
		return domain.Number(hi)
	}
	return v
}

// Round rounds a defined value half-up to places decimal digits.
func Round(v domain.Value, places int32) domain.Value {
	if !v.Defined {
		return v
	}
	return domain.Number(FromFloat(v.Number).Round(places).Float64())
}

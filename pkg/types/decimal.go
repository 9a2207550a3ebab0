// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"math/big"

	"github.com/egraph-db/secondary/pkg/common/engineerr"
)

// decimal128Bits is the width of the on-disk Decimal block encoding
// (spec.md §3.1 "Decimal (128-bit, scale)").
const decimal128Bits = 128

var decimal128Min, decimal128Max = func() (*big.Int, *big.Int) {
	max := new(big.Int).Lsh(big.NewInt(1), decimal128Bits-1)
	max.Sub(max, big.NewInt(1))
	min := new(big.Int).Neg(new(big.Int).Add(max, big.NewInt(1)))
	return min, max
}()

// Decimal128 is a scaled 128-bit signed integer: value == Unscaled * 10^-Scale.
// No decimal library exists in the example corpus (see DESIGN.md), so the
// unscaled magnitude is tracked with math/big.Int and range-checked against
// the 128-bit envelope on every operation.
type Decimal128 struct {
	Unscaled *big.Int
	Scale    int32
}

func NewDecimal128(unscaled int64, scale int32) Decimal128 {
	return Decimal128{Unscaled: big.NewInt(unscaled), Scale: scale}
}

func (d Decimal128) checkRange() error {
	if d.Unscaled.Cmp(decimal128Min) < 0 || d.Unscaled.Cmp(decimal128Max) > 0 {
		return engineerr.NewConvert("decimal overflow: %s exceeds 128-bit range", d.Unscaled.String())
	}
	return nil
}

func rescale(u *big.Int, fromScale, toScale int32) *big.Int {
	out := new(big.Int).Set(u)
	if toScale > fromScale {
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(toScale-fromScale)), nil)
		out.Mul(out, factor)
	} else if toScale < fromScale {
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(fromScale-toScale)), nil)
		out.Quo(out, factor)
	}
	return out
}

// AddDecimal implements standard SQL max-scale addition: the result scale is
// the larger of the two operand scales (spec.md §9 open question decision).
func AddDecimal(a, b Decimal128) (Decimal128, error) {
	scale := a.Scale
	if b.Scale > scale {
		scale = b.Scale
	}
	sum := new(big.Int).Add(rescale(a.Unscaled, a.Scale, scale), rescale(b.Unscaled, b.Scale, scale))
	out := Decimal128{Unscaled: sum, Scale: scale}
	return out, out.checkRange()
}

func SubDecimal(a, b Decimal128) (Decimal128, error) {
	scale := a.Scale
	if b.Scale > scale {
		scale = b.Scale
	}
	diff := new(big.Int).Sub(rescale(a.Unscaled, a.Scale, scale), rescale(b.Unscaled, b.Scale, scale))
	out := Decimal128{Unscaled: diff, Scale: scale}
	return out, out.checkRange()
}

// MulDecimal implements summed-scale multiplication.
func MulDecimal(a, b Decimal128) (Decimal128, error) {
	prod := new(big.Int).Mul(a.Unscaled, b.Unscaled)
	out := Decimal128{Unscaled: prod, Scale: a.Scale + b.Scale}
	return out, out.checkRange()
}

// DivDecimal divides at the larger of the two scales, truncating, and fails
// typed on division by zero per spec.md §3.1.
func DivDecimal(a, b Decimal128) (Decimal128, error) {
	if b.Unscaled.Sign() == 0 {
		return Decimal128{}, engineerr.NewExecute("division by zero")
	}
	scale := a.Scale
	if b.Scale > scale {
		scale = b.Scale
	}
	// widen the numerator by the scale so the quotient keeps `scale` digits
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil)
	num := new(big.Int).Mul(rescale(a.Unscaled, a.Scale, scale), factor)
	den := rescale(b.Unscaled, b.Scale, scale)
	q := new(big.Int).Quo(num, den)
	out := Decimal128{Unscaled: q, Scale: scale}
	return out, out.checkRange()
}

func (d Decimal128) Cmp(o Decimal128) int {
	scale := d.Scale
	if o.Scale > scale {
		scale = o.Scale
	}
	return rescale(d.Unscaled, d.Scale, scale).Cmp(rescale(o.Unscaled, o.Scale, scale))
}

func (d Decimal128) String() string {
	if d.Scale <= 0 {
		return new(big.Int).Mul(d.Unscaled, pow10(int(-d.Scale))).String()
	}
	s := new(big.Int).Abs(d.Unscaled).String()
	for len(s) <= int(d.Scale) {
		s = "0" + s
	}
	intPart := s[:len(s)-int(d.Scale)]
	fracPart := s[len(s)-int(d.Scale):]
	sign := ""
	if d.Unscaled.Sign() < 0 {
		sign = "-"
	}
	return sign + intPart + "." + fracPart
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

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

package containers

import (
	"github.com/egraph-db/secondary/pkg/types"
)

// lane is the batching granularity of spec.md §4.1: "process rows in groups
// of 64 lanes to enable compiler auto-vectorization".
const lane = 64

// ErrorSidecar carries the first row-wise arithmetic error encountered by a
// kernel, per spec.md §4.1/§9 ("kernel returns both a result array and an
// optional error sidecar"). The executor surfaces this at batch boundary,
// never via panics.
type ErrorSidecar struct {
	Row int
	Err error
}

// BinaryOp evaluates f over corresponding lanes of a and b into an array of
// type outType. Per spec.md §4.1: output validity is A.validity & B.validity;
// f is only required to be called where both are valid. The all-valid
// subcase (both arrays have no validity bitmap) skips the per-row IsValid
// check entirely within a 64-lane group, matching the "hot loops must not
// contain branches on validity for the all-valid ... subcase" requirement.
func BinaryOp(a, b Array, outType types.DataType, f func(x, y types.Value) (types.Value, error)) (Array, *ErrorSidecar) {
	n := a.Len()
	out := NewEmptyArray(outType)
	var sidecar *ErrorSidecar
	allValid := a.Validity() == nil && b.Validity() == nil
	for base := 0; base < n; base += lane {
		end := base + lane
		if end > n {
			end = n
		}
		if allValid {
			for i := base; i < end; i++ {
				v, err := f(a.Get(i), b.Get(i))
				recordAndAppend(out, v, err, i, &sidecar)
			}
			continue
		}
		for i := base; i < end; i++ {
			if !(a.IsValid(i) && b.IsValid(i)) {
				out.AppendValue(types.NullValue(outType))
				continue
			}
			v, err := f(a.Get(i), b.Get(i))
			recordAndAppend(out, v, err, i, &sidecar)
		}
	}
	return out, sidecar
}

// UnaryOp evaluates f over a; output validity equals input validity.
func UnaryOp(a Array, outType types.DataType, f func(x types.Value) (types.Value, error)) (Array, *ErrorSidecar) {
	n := a.Len()
	out := NewEmptyArray(outType)
	var sidecar *ErrorSidecar
	allValid := a.Validity() == nil
	for base := 0; base < n; base += lane {
		end := base + lane
		if end > n {
			end = n
		}
		for i := base; i < end; i++ {
			if !allValid && !a.IsValid(i) {
				out.AppendValue(types.NullValue(outType))
				continue
			}
			v, err := f(a.Get(i))
			recordAndAppend(out, v, err, i, &sidecar)
		}
	}
	return out, sidecar
}

func recordAndAppend(out Array, v types.Value, err error, row int, sidecar **ErrorSidecar) {
	if err != nil {
		if *sidecar == nil {
			*sidecar = &ErrorSidecar{Row: row, Err: err}
		}
		out.AppendValue(types.NullValue(out.Type()))
		return
	}
	out.AppendValue(v)
}

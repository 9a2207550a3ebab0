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

import "fmt"

// Interval is months + days, per spec.md §3.1. Grounded on
// original_source/src/types/interval.rs's month/day split (no time-of-day
// component at this layer).
type Interval struct {
	Months int32
	Days   int32
}

func (iv Interval) Add(o Interval) Interval {
	return Interval{Months: iv.Months + o.Months, Days: iv.Days + o.Days}
}

func (iv Interval) Neg() Interval {
	return Interval{Months: -iv.Months, Days: -iv.Days}
}

func (iv Interval) String() string {
	return fmt.Sprintf("%d mons %d days", iv.Months, iv.Days)
}

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

import "time"

// epoch2000 is the "year 2000" reference point used by Timestamp, per
// spec.md §3.1 ("microseconds since year 2000").
var epoch2000 = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Date is days since the Unix epoch.
type Date int32

func (d Date) ToTime() time.Time {
	return time.Unix(0, 0).UTC().AddDate(0, 0, int(d))
}

func DateFromTime(t time.Time) Date {
	days := t.UTC().Sub(time.Unix(0, 0).UTC()).Hours() / 24
	return Date(int32(days))
}

// Timestamp is microseconds since 2000-01-01T00:00:00Z.
type Timestamp int64

func (ts Timestamp) ToTime() time.Time {
	return epoch2000.Add(time.Duration(ts) * time.Microsecond)
}

func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp(t.UTC().Sub(epoch2000).Microseconds())
}

// TimestampTz is a Timestamp paired with the process-wide fixed offset
// configured at tz.offset_seconds (spec.md §3.1, §6.5): "Timestamp plus a
// process-wide fixed offset".
type TimestampTz struct {
	Timestamp Timestamp
}

func (ts TimestampTz) ToTime(offsetSeconds int) time.Time {
	return ts.Timestamp.ToTime().Add(time.Duration(offsetSeconds) * time.Second)
}

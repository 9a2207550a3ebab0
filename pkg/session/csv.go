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

package session

import (
	"encoding/csv"
	"io"
)

// CSVSource adapts an encoding/csv.Reader to executor.RowSource, the
// concrete CSV-parsing half of spec.md's external COPY collaborator.
type CSVSource struct {
	r *csv.Reader
}

// NewCSVSource wraps r, configuring it the way COPY FROM expects: a
// variable field count per record is allowed (short rows are padded with
// NULLs by fieldToValue downstream), FieldsPerRecord disabled.
func NewCSVSource(r io.Reader) *CSVSource {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return &CSVSource{r: cr}
}

func (s *CSVSource) NextRow() ([]string, error) {
	row, err := s.r.Read()
	if err == io.EOF {
		return nil, nil
	}
	return row, err
}

// CSVSink adapts an encoding/csv.Writer to executor.RowSink.
type CSVSink struct {
	w *csv.Writer
}

func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w)}
}

func (s *CSVSink) WriteRow(fields []string) error {
	return s.w.Write(fields)
}

// Flush flushes any buffered records to the underlying writer; callers must
// call it after the CopyTo that writes through this sink completes.
func (s *CSVSink) Flush() error {
	s.w.Flush()
	return s.w.Error()
}

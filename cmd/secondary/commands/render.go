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

package commands

import (
	"fmt"
	"io"

	"github.com/egraph-db/secondary/pkg/containers"
)

// renderBatches prints every batch's rows as tab-separated text, NULL
// rendered as \N per common COPY convention.
func renderBatches(w io.Writer, batches []*containers.Batch) {
	for _, b := range batches {
		for row := 0; row < b.Cardinality(); row++ {
			for col := 0; col < b.NumColumns(); col++ {
				if col > 0 {
					fmt.Fprint(w, "\t")
				}
				v := b.Column(col).Get(row)
				if v.Null {
					fmt.Fprint(w, "\\N")
				} else {
					fmt.Fprint(w, v.String())
				}
			}
			fmt.Fprintln(w)
		}
	}
}

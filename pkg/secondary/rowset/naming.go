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

// Package rowset is the immutable on-disk unit of spec.md §3.3: one
// directory per rowset holding a column manifest and, per column, a data
// file and an index file. Grounded on original_source/src/storage/secondary/
// rowset/mod.rs for directory/file naming and on the teacher's
// pkg/vm/engine/tae/tables/base.go for the builder/iterator split.
package rowset

import "fmt"

// DirName is the directory name of rowset rowsetID belonging to tableID,
// per spec.md §6.3.
func DirName(tableID, rowsetID uint64) string {
	return fmt.Sprintf("%d_%d", tableID, rowsetID)
}

// DataFileName is the data file name for column storageColID within a
// rowset directory.
func DataFileName(storageColID uint64) string {
	return fmt.Sprintf("%d.col", storageColID)
}

// IndexFileName is the index file name for column storageColID within a
// rowset directory.
func IndexFileName(storageColID uint64) string {
	return fmt.Sprintf("%d.idx", storageColID)
}

// ManifestFileName is the per-rowset column manifest, distinct from the
// top-level table manifest.
const ManifestFileName = "MANIFEST"

// DeleteVectorFileName is the delete vector file name under the table's
// `dv/` directory, per spec.md §3.4.
func DeleteVectorFileName(tableID, rowsetID, dvID uint64) string {
	return fmt.Sprintf("%d_%d_%d.dv", tableID, rowsetID, dvID)
}

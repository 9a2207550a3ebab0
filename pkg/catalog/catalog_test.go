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

package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/egraph-db/secondary/pkg/types"
)

func TestResolveTableCaseInsensitive(t *testing.T) {
	c := New()
	db, err := c.CreateDatabase(1, "Shop")
	require.NoError(t, err)
	sch, err := db.CreateSchema(1, "Public")
	require.NoError(t, err)
	_, err = sch.CreateTable(1, "Orders", []*Column{
		{ID: 0, Name: "id", Type: types.NewType(types.KindInt64, false)},
		{ID: 1, Name: "total", Type: types.NewType(types.KindInt64, false)},
	}, []uint64{0})
	require.NoError(t, err)

	tbl, err := c.ResolveTable("shop", "PUBLIC", "orders")
	require.NoError(t, err)
	require.Equal(t, uint64(1), tbl.ID)
	require.Equal(t, []uint64{0}, tbl.PrimaryKey)

	col, ok := tbl.ColumnByName("ID")
	require.True(t, ok)
	require.Equal(t, uint64(0), col.ID)
}

func TestSystemSchemaIsReadOnly(t *testing.T) {
	c := New()
	db, err := c.CreateDatabase(1, "db")
	require.NoError(t, err)
	sys, ok := db.SchemaByID(SystemSchemaID)
	require.True(t, ok)
	require.True(t, sys.ReadOnly())

	_, err = sys.CreateTable(1, "t", nil, nil)
	require.Error(t, err)
}

func TestCreateTableRejectsDuplicateNameAndUnknownPrimaryKey(t *testing.T) {
	c := New()
	db, _ := c.CreateDatabase(1, "db")
	sch, _ := db.CreateSchema(1, "s")

	_, err := sch.CreateTable(1, "t", []*Column{{ID: 0, Name: "a", Type: types.NewType(types.KindInt32, false)}}, []uint64{0})
	require.NoError(t, err)

	_, err = sch.CreateTable(2, "t", nil, nil)
	require.Error(t, err)

	_, err = sch.CreateTable(3, "u", []*Column{{ID: 0, Name: "a", Type: types.NewType(types.KindInt32, false)}}, []uint64{9})
	require.Error(t, err)
}

func TestResolveTableMissingReturnsBindError(t *testing.T) {
	c := New()
	_, err := c.ResolveTable("nope", "public", "t")
	require.Error(t, err)
}

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
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/egraph-db/secondary/pkg/common/config"
	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/secondary"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store := secondary.DiskStore{Root: t.TempDir()}
	e, err := NewEngine(config.Default(), store)
	require.NoError(t, err)
	return e
}

func runOK(t *testing.T, e *Engine, sql string) []*containers.Batch {
	t.Helper()
	out, err := e.Run(context.Background(), sql)
	require.NoError(t, err, "sql: %s", sql)
	return out
}

func totalRows(batches []*containers.Batch) int {
	n := 0
	for _, b := range batches {
		n += b.Cardinality()
	}
	return n
}

func TestCreateTableInsertSelect(t *testing.T) {
	e := newTestEngine(t)

	runOK(t, e, `CREATE TABLE accounts (id INT PRIMARY KEY, name VARCHAR(32), balance BIGINT)`)
	runOK(t, e, `INSERT INTO accounts VALUES (1, 'alice', 100), (2, 'bob', 50)`)

	out := runOK(t, e, `SELECT id, name, balance FROM accounts WHERE balance >= 100`)
	require.Equal(t, 1, totalRows(out))
	require.Equal(t, int64(1), out[0].Column(0).Get(0).Int64())
	require.Equal(t, "alice", out[0].Column(1).Get(0).String_())
	require.Equal(t, int64(100), out[0].Column(2).Get(0).Int64())
}

func TestInsertExplicitColumnOrder(t *testing.T) {
	e := newTestEngine(t)
	runOK(t, e, `CREATE TABLE t (a INT, b INT, c INT)`)
	runOK(t, e, `INSERT INTO t (c, a, b) VALUES (3, 1, 2)`)

	out := runOK(t, e, `SELECT a, b, c FROM t`)
	require.Equal(t, 1, totalRows(out))
	require.Equal(t, int64(1), out[0].Column(0).Get(0).Int64())
	require.Equal(t, int64(2), out[0].Column(1).Get(0).Int64())
	require.Equal(t, int64(3), out[0].Column(2).Get(0).Int64())
}

func TestDeleteRemovesMatchingRows(t *testing.T) {
	e := newTestEngine(t)
	runOK(t, e, `CREATE TABLE t (id INT PRIMARY KEY, v INT)`)
	runOK(t, e, `INSERT INTO t VALUES (1, 10), (2, 20), (3, 30)`)
	runOK(t, e, `DELETE FROM t WHERE v >= 20`)

	out := runOK(t, e, `SELECT id FROM t`)
	require.Equal(t, 1, totalRows(out))
	require.Equal(t, int64(1), out[0].Column(0).Get(0).Int64())
}

func TestDropTableRemovesIt(t *testing.T) {
	e := newTestEngine(t)
	runOK(t, e, `CREATE TABLE t (id INT)`)
	runOK(t, e, `DROP TABLE t`)

	_, err := e.Run(context.Background(), `SELECT id FROM t`)
	require.Error(t, err)
}

func TestCreateTableDuplicateNameFails(t *testing.T) {
	e := newTestEngine(t)
	runOK(t, e, `CREATE TABLE t (id INT)`)
	_, err := e.Run(context.Background(), `CREATE TABLE t (id INT)`)
	require.Error(t, err)
}

func TestGroupByAggregate(t *testing.T) {
	e := newTestEngine(t)
	runOK(t, e, `CREATE TABLE sales (region VARCHAR(16), amount BIGINT)`)
	runOK(t, e, `INSERT INTO sales VALUES ('east', 10), ('east', 15), ('west', 7)`)

	out := runOK(t, e, `SELECT region, SUM(amount) FROM sales GROUP BY region ORDER BY region`)
	require.Equal(t, 2, totalRows(out))
	require.Equal(t, "east", out[0].Column(0).Get(0).String_())
	require.Equal(t, int64(25), out[0].Column(1).Get(0).Int64())
	require.Equal(t, "west", out[0].Column(0).Get(1).String_())
	require.Equal(t, int64(7), out[0].Column(1).Get(1).Int64())
}

func TestOrderByLimitOffset(t *testing.T) {
	e := newTestEngine(t)
	runOK(t, e, `CREATE TABLE t (v INT)`)
	runOK(t, e, `INSERT INTO t VALUES (3), (1), (2), (4)`)

	out := runOK(t, e, `SELECT v FROM t ORDER BY v DESC LIMIT 2 OFFSET 1`)
	require.Equal(t, 2, totalRows(out))
	require.Equal(t, int64(3), out[0].Column(0).Get(0).Int64())
	require.Equal(t, int64(2), out[0].Column(0).Get(1).Int64())
}

func TestExplainSelect(t *testing.T) {
	e := newTestEngine(t)
	runOK(t, e, `CREATE TABLE t (v INT)`)
	out := runOK(t, e, `EXPLAIN SELECT v FROM t WHERE v > 1`)
	require.Equal(t, 1, totalRows(out))
}

func TestExplainConstantFalseFilterDropsScan(t *testing.T) {
	e := newTestEngine(t)
	runOK(t, e, `CREATE TABLE t (v INT)`)
	out := runOK(t, e, `EXPLAIN SELECT (1+2)*0 FROM t WHERE false`)
	require.Equal(t, 1, totalRows(out))
	require.Contains(t, out[0].Column(0).Get(0).String_(), "Values")
}

func TestCreateTableWithVectorColumn(t *testing.T) {
	e := newTestEngine(t)
	runOK(t, e, `CREATE TABLE t (id INT, v VECTOR(3))`)
	out := runOK(t, e, `SELECT id, v FROM t`)
	require.Equal(t, 0, totalRows(out))
}

func TestCopyFromThenCopyToRoundTrips(t *testing.T) {
	e := newTestEngine(t)
	runOK(t, e, `CREATE TABLE t (id INT, name VARCHAR(16))`)

	n, err := e.CopyFrom(context.Background(), "t", NewCSVSource(strings.NewReader("1,alice\n2,bob\n")))
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	var buf bytes.Buffer
	sink := NewCSVSink(&buf)
	require.NoError(t, e.CopyTo(context.Background(), "t", sink))
	require.NoError(t, sink.Flush())
	require.Equal(t, "1,alice\n2,bob\n", buf.String())
}

func TestSelectStarExpandsColumns(t *testing.T) {
	e := newTestEngine(t)
	runOK(t, e, `CREATE TABLE t (a INT, b INT)`)
	runOK(t, e, `INSERT INTO t VALUES (1, 2)`)
	out := runOK(t, e, `SELECT * FROM t`)
	require.Equal(t, 1, totalRows(out))
	require.Equal(t, 2, out[0].NumColumns())
}

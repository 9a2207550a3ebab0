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

// Package catalog implements the collaborator contract of spec.md §6.2: a
// hierarchical database -> schema -> table -> column namespace, addressable
// by id and by case-insensitive name. Grounded on the shape implied by the
// teacher's store.getOrSetDB / catalog.GetDatabaseByID calls throughout
// pkg/vm/engine/tae/txn/txnimpl/store.go (id-keyed maps with a parallel name
// index at every level), scaled down since the catalog itself sits outside
// core scope and the planner/executor only need lookup, not DDL journaling.
package catalog

import (
	"strings"
	"sync"

	"github.com/egraph-db/secondary/pkg/common/engineerr"
	"github.com/egraph-db/secondary/pkg/types"
)

// SystemSchemaID is the reserved, read-only schema every database starts
// with, per spec.md §6.2.
const SystemSchemaID uint64 = 0

// Column is one table column's catalog entry.
type Column struct {
	ID   uint64
	Name string
	Type types.DataType
}

// Table is one table's catalog entry: its columns in declaration order plus
// the ordered primary-key column id list spec.md §6.2 requires.
type Table struct {
	ID         uint64
	Name       string
	Columns    []*Column
	PrimaryKey []uint64 // column ids, in key order

	byID   map[uint64]*Column
	byName map[string]*Column
}

func newTable(id uint64, name string) *Table {
	return &Table{ID: id, Name: name, byID: map[uint64]*Column{}, byName: map[string]*Column{}}
}

// ColumnByID looks up a column by its storage id.
func (t *Table) ColumnByID(id uint64) (*Column, bool) {
	c, ok := t.byID[id]
	return c, ok
}

// ColumnByName looks up a column case-insensitively.
func (t *Table) ColumnByName(name string) (*Column, bool) {
	c, ok := t.byName[strings.ToLower(name)]
	return c, ok
}

// Schema is a named group of tables; schema id SystemSchemaID is read-only.
type Schema struct {
	ID   uint64
	Name string

	mu     sync.RWMutex
	byID   map[uint64]*Table
	byName map[string]*Table
}

func newSchema(id uint64, name string) *Schema {
	return &Schema{ID: id, Name: name, byID: map[uint64]*Table{}, byName: map[string]*Table{}}
}

// ReadOnly reports whether DDL against this schema must be rejected.
func (s *Schema) ReadOnly() bool { return s.ID == SystemSchemaID }

// TableByID looks up a table by id.
func (s *Schema) TableByID(id uint64) (*Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	return t, ok
}

// TableByName looks up a table case-insensitively.
func (s *Schema) TableByName(name string) (*Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byName[strings.ToLower(name)]
	return t, ok
}

// Tables returns every table in the schema, in no particular order.
func (s *Schema) Tables() []*Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Table, 0, len(s.byID))
	for _, t := range s.byID {
		out = append(out, t)
	}
	return out
}

// CreateTable registers a new table with the given columns and primary key
// column ids. Rejected if the schema is read-only, the id or name already
// exists, or primaryKey references an id not in columns.
func (s *Schema) CreateTable(id uint64, name string, columns []*Column, primaryKey []uint64) (*Table, error) {
	if s.ReadOnly() {
		return nil, engineerr.NewCatalog("schema %q is read-only", s.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; ok {
		return nil, engineerr.NewCatalog("table id %d already exists in schema %q", id, s.Name)
	}
	key := strings.ToLower(name)
	if _, ok := s.byName[key]; ok {
		return nil, engineerr.NewCatalog("table %q already exists in schema %q", name, s.Name)
	}
	t := newTable(id, name)
	for _, c := range columns {
		if _, dup := t.byID[c.ID]; dup {
			return nil, engineerr.NewCatalog("duplicate column id %d in table %q", c.ID, name)
		}
		t.Columns = append(t.Columns, c)
		t.byID[c.ID] = c
		t.byName[strings.ToLower(c.Name)] = c
	}
	for _, pk := range primaryKey {
		if _, ok := t.byID[pk]; !ok {
			return nil, engineerr.NewCatalog("primary key column id %d not found in table %q", pk, name)
		}
	}
	t.PrimaryKey = append([]uint64(nil), primaryKey...)
	s.byID[id] = t
	s.byName[key] = t
	return t, nil
}

// DropTable removes a table by id. Rejected if the schema is read-only.
func (s *Schema) DropTable(id uint64) error {
	if s.ReadOnly() {
		return engineerr.NewCatalog("schema %q is read-only", s.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return engineerr.NewCatalog("table id %d not found in schema %q", id, s.Name)
	}
	delete(s.byID, id)
	delete(s.byName, strings.ToLower(t.Name))
	return nil
}

// Database is a named group of schemas, always seeded with the system schema.
type Database struct {
	ID   uint64
	Name string

	mu     sync.RWMutex
	byID   map[uint64]*Schema
	byName map[string]*Schema
}

func newDatabase(id uint64, name string) *Database {
	d := &Database{ID: id, Name: name, byID: map[uint64]*Schema{}, byName: map[string]*Schema{}}
	sys := newSchema(SystemSchemaID, "system")
	d.byID[SystemSchemaID] = sys
	d.byName["system"] = sys
	return d
}

// SchemaByID looks up a schema by id.
func (d *Database) SchemaByID(id uint64) (*Schema, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.byID[id]
	return s, ok
}

// SchemaByName looks up a schema case-insensitively.
func (d *Database) SchemaByName(name string) (*Schema, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.byName[strings.ToLower(name)]
	return s, ok
}

// CreateSchema registers a new, initially empty schema.
func (d *Database) CreateSchema(id uint64, name string) (*Schema, error) {
	if id == SystemSchemaID {
		return nil, engineerr.NewCatalog("schema id %d is reserved for the system schema", SystemSchemaID)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byID[id]; ok {
		return nil, engineerr.NewCatalog("schema id %d already exists in database %q", id, d.Name)
	}
	key := strings.ToLower(name)
	if _, ok := d.byName[key]; ok {
		return nil, engineerr.NewCatalog("schema %q already exists in database %q", name, d.Name)
	}
	s := newSchema(id, name)
	d.byID[id] = s
	d.byName[key] = s
	return s, nil
}

// Catalog is the top-level hierarchical namespace, per spec.md §6.2.
type Catalog struct {
	mu     sync.RWMutex
	byID   map[uint64]*Database
	byName map[string]*Database
}

// New constructs an empty catalog.
func New() *Catalog {
	return &Catalog{byID: map[uint64]*Database{}, byName: map[string]*Database{}}
}

// CreateDatabase registers a new database, seeded with its read-only system
// schema.
func (c *Catalog) CreateDatabase(id uint64, name string) (*Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[id]; ok {
		return nil, engineerr.NewCatalog("database id %d already exists", id)
	}
	key := strings.ToLower(name)
	if _, ok := c.byName[key]; ok {
		return nil, engineerr.NewCatalog("database %q already exists", name)
	}
	d := newDatabase(id, name)
	c.byID[id] = d
	c.byName[key] = d
	return d, nil
}

// DatabaseByID looks up a database by id.
func (c *Catalog) DatabaseByID(id uint64) (*Database, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byID[id]
	return d, ok
}

// DatabaseByName looks up a database case-insensitively.
func (c *Catalog) DatabaseByName(name string) (*Database, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byName[strings.ToLower(name)]
	return d, ok
}

// ResolveTable walks database -> schema -> table by case-insensitive name,
// the lookup the binder collaborator uses to bind an unqualified or
// qualified table reference.
func (c *Catalog) ResolveTable(database, schema, table string) (*Table, error) {
	db, ok := c.DatabaseByName(database)
	if !ok {
		return nil, engineerr.NewBind(engineerr.InvalidSchema, "", nil, "database %q not found", database)
	}
	sch, ok := db.SchemaByName(schema)
	if !ok {
		return nil, engineerr.NewBind(engineerr.InvalidSchema, "", nil, "schema %q not found in database %q", schema, database)
	}
	t, ok := sch.TableByName(table)
	if !ok {
		return nil, engineerr.NewBind(engineerr.InvalidTable, "", nil, "table %q not found in schema %q", table, schema)
	}
	return t, nil
}

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

// Package engineerr centralizes the engine's tagged-sum error taxonomy so
// that every other package constructs errors through one place, the way the
// teacher centralizes errors in a single moerr-style package imported
// everywhere else.
package engineerr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind is one of the top-level error categories of the error taxonomy.
type Kind int

const (
	KindParse Kind = iota
	KindBind
	KindCatalog
	KindConvert
	KindStorage
	KindExecute
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindBind:
		return "bind"
	case KindCatalog:
		return "catalog"
	case KindConvert:
		return "convert"
	case KindStorage:
		return "storage"
	case KindExecute:
		return "execute"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// BindErrorKind enumerates the bind-error subkinds of spec.md §6.1.
type BindErrorKind int

const (
	InvalidSchema BindErrorKind = iota
	InvalidTable
	InvalidIndex
	InvalidColumn
	TableExists
	ColumnExists
	DuplicatedAlias
	DuplicatedCteName
	ColumnCountMismatch
	InvalidExpression
	NotNullableColumn
	AmbiguousColumn
	InvalidTableName
	NotSupported
	InvalidSQL
	CastError
	AggregateInWhere
	AggregateInGroupBy
	WindowInWhere
	WindowInHaving
	NestedAgg
	NestedWindow
	ColumnNotInAgg
	OrderKeyNotInDistinct
	CopyTo
	ViewAliasesMismatch
)

// Error is the single error type surfaced across the engine boundary as
// (kind, message, optional span, optional sql), per spec.md §7.
type Error struct {
	Kind    Kind
	Bind    BindErrorKind // only meaningful when Kind == KindBind
	Message string
	Span    *Span
	SQL     string
	cause   error
}

// Span locates a parse/bind error within the original SQL text.
type Span struct {
	Start, End int
}

func (e *Error) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("%s: %s (at %d:%d)", e.Kind, e.Message, e.Span.Start, e.Span.End)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

func New(kind Kind, format string, args ...any) *Error {
	return newf(kind, nil, format, args...)
}

func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return newf(kind, errors.Wrap(cause, fmt.Sprintf(format, args...)), format, args...)
}

func NewBind(bk BindErrorKind, sql string, span *Span, format string, args ...any) *Error {
	e := newf(KindBind, nil, format, args...)
	e.Bind = bk
	e.SQL = sql
	e.Span = span
	return e
}

func NewStorage(format string, args ...any) *Error  { return New(KindStorage, format, args...) }
func NewExecute(format string, args ...any) *Error  { return New(KindExecute, format, args...) }
func NewCatalog(format string, args ...any) *Error  { return New(KindCatalog, format, args...) }
func NewConvert(format string, args ...any) *Error  { return New(KindConvert, format, args...) }
func NewParse(format string, args ...any) *Error    { return New(KindParse, format, args...) }
func NewCancelled() *Error                          { return New(KindCancelled, "operation cancelled") }

// Execute error sub-kinds named in spec.md §7.
func ErrLengthMismatch(a, b int) *Error {
	return NewExecute("length mismatch: %d != %d", a, b)
}

func ErrNotNullable(col string) *Error {
	return NewExecute("column %q is not nullable", col)
}

func ErrExceedLengthLimit(col string, declared, actual int) *Error {
	return NewExecute("value for column %q exceeds declared length %d (actual %d)", col, declared, actual)
}

func ErrAborted(reason string) *Error {
	return NewExecute("transaction aborted: %s", reason)
}

// ErrChecksumMismatch is the block-codec-layer storage error of spec.md §7,
// tagged with the coordinates of the offending block.
func ErrChecksumMismatch(rowsetID, columnID, blockID uint64) *Error {
	e := NewStorage("checksum mismatch in rowset=%d column=%d block=%d", rowsetID, columnID, blockID)
	return e
}

// IsCancelled reports whether err is (or wraps) a Cancelled error. Cancelled
// errors are never logged as errors upstream, per spec.md §7.
func IsCancelled(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindCancelled
	}
	return false
}

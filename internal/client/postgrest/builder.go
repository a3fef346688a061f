// Package postgrest builds table requests in the PostgREST query dialect:
// filters as column=operator.value pairs, comma-separated order lists, Range
// headers for pagination, and Prefer headers for write behavior.
//
// Builders are copy-on-write: every modifier returns a derived builder and
// leaves the receiver untouched, so a partially built query can be shared
// across call sites safely.
package postgrest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// ErrMultipleRows is returned by Single when the filter matched more than
// one row.
var ErrMultipleRows = errors.New("query matched more than one row")

// Request is the transport-neutral description handed to the Executor.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    []byte
}

// Executor performs a table request and returns the raw response body.
// The façade supplies one wired into its engine, retry, and queue layers.
type Executor func(ctx context.Context, req Request) ([]byte, error)

type filterClause struct {
	column string
	value  string
}

// Builder assembles one table query.
type Builder struct {
	exec       Executor
	table      string
	selectCols string
	filters    []filterClause
	orders     []string
	limit      *int
	offset     *int
	rangeFrom  *int
	rangeTo    *int
}

// NewBuilder starts a query against table, executed through exec.
func NewBuilder(exec Executor, table string) *Builder {
	return &Builder{exec: exec, table: table}
}

func (b *Builder) clone() *Builder {
	c := *b
	c.filters = append([]filterClause(nil), b.filters...)
	c.orders = append([]string(nil), b.orders...)
	return &c
}

func (b *Builder) filter(column, operator string, value any) *Builder {
	c := b.clone()
	c.filters = append(c.filters, filterClause{column: column, value: operator + "." + formatValue(value)})
	return c
}

// Select sets the column projection, including embedded relations, e.g.
// "id,name,envelopes(id,balance)".
func (b *Builder) Select(columns string) *Builder {
	c := b.clone()
	c.selectCols = columns
	return c
}

// Eq adds column=eq.value.
func (b *Builder) Eq(column string, value any) *Builder { return b.filter(column, "eq", value) }

// Neq adds column=neq.value.
func (b *Builder) Neq(column string, value any) *Builder { return b.filter(column, "neq", value) }

// Gt adds column=gt.value.
func (b *Builder) Gt(column string, value any) *Builder { return b.filter(column, "gt", value) }

// Gte adds column=gte.value.
func (b *Builder) Gte(column string, value any) *Builder { return b.filter(column, "gte", value) }

// Lt adds column=lt.value.
func (b *Builder) Lt(column string, value any) *Builder { return b.filter(column, "lt", value) }

// Lte adds column=lte.value.
func (b *Builder) Lte(column string, value any) *Builder { return b.filter(column, "lte", value) }

// Like adds a case-sensitive pattern match; % is the wildcard.
func (b *Builder) Like(column, pattern string) *Builder { return b.filter(column, "like", pattern) }

// ILike adds a case-insensitive pattern match.
func (b *Builder) ILike(column, pattern string) *Builder { return b.filter(column, "ilike", pattern) }

// In adds set membership: column=in.(v1,v2,...).
func (b *Builder) In(column string, values ...any) *Builder {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = quoteListValue(formatValue(v))
	}
	c := b.clone()
	c.filters = append(c.filters, filterClause{column: column, value: "in.(" + strings.Join(parts, ",") + ")"})
	return c
}

// Is adds an identity check; nil maps to null, e.g. IsNull via Is(col, nil).
func (b *Builder) Is(column string, value any) *Builder {
	if value == nil {
		return b.filter(column, "is", "null")
	}
	return b.filter(column, "is", value)
}

// Not negates a single operator: column=not.operator.value.
func (b *Builder) Not(column, operator string, value any) *Builder {
	return b.filter(column, "not."+operator, value)
}

// Or adds a disjunction group in raw dialect form, e.g.
// Or("spent.gt.1000,name.eq.Rent").
func (b *Builder) Or(conditions string) *Builder {
	c := b.clone()
	c.filters = append(c.filters, filterClause{column: "or", value: "(" + conditions + ")"})
	return c
}

// And adds an explicit conjunction group, useful nested inside Or.
func (b *Builder) And(conditions string) *Builder {
	c := b.clone()
	c.filters = append(c.filters, filterClause{column: "and", value: "(" + conditions + ")"})
	return c
}

// Order appends a sort column. Multiple calls build a multi-column order.
func (b *Builder) Order(column string, ascending bool) *Builder {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	c := b.clone()
	c.orders = append(c.orders, column+"."+dir)
	return c
}

// OrderNulls is Order with explicit null placement.
func (b *Builder) OrderNulls(column string, ascending, nullsFirst bool) *Builder {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	nulls := "nullslast"
	if nullsFirst {
		nulls = "nullsfirst"
	}
	c := b.clone()
	c.orders = append(c.orders, column+"."+dir+"."+nulls)
	return c
}

// Limit caps the number of returned rows.
func (b *Builder) Limit(n int) *Builder {
	c := b.clone()
	c.limit = &n
	return c
}

// Offset skips the first n rows.
func (b *Builder) Offset(n int) *Builder {
	c := b.clone()
	c.offset = &n
	return c
}

// Range requests rows from..to inclusive via the Range header.
func (b *Builder) Range(from, to int) *Builder {
	c := b.clone()
	c.rangeFrom = &from
	c.rangeTo = &to
	return c
}

func (b *Builder) query() url.Values {
	q := url.Values{}
	if b.selectCols != "" {
		q.Set("select", b.selectCols)
	}
	for _, f := range b.filters {
		q.Add(f.column, f.value)
	}
	if len(b.orders) > 0 {
		q.Set("order", strings.Join(b.orders, ","))
	}
	if b.limit != nil {
		q.Set("limit", strconv.Itoa(*b.limit))
	}
	if b.offset != nil {
		q.Set("offset", strconv.Itoa(*b.offset))
	}
	return q
}

func (b *Builder) headers(extra map[string]string) map[string]string {
	h := map[string]string{}
	if b.rangeFrom != nil && b.rangeTo != nil {
		h["Range"] = fmt.Sprintf("%d-%d", *b.rangeFrom, *b.rangeTo)
		h["Range-Unit"] = "items"
	}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

// Get executes the query and unmarshals the row list into dest. Pass nil to
// discard the body.
func (b *Builder) Get(ctx context.Context, dest any) error {
	body, err := b.exec(ctx, Request{
		Method:  http.MethodGet,
		Path:    "/" + b.table,
		Query:   b.query(),
		Headers: b.headers(nil),
	})
	if err != nil {
		return err
	}
	return decodeInto(body, dest)
}

// Single executes the query expecting at most one row. Exactly one row is
// unmarshaled into dest and found is true; zero rows leave dest untouched
// with found false; more than one row is ErrMultipleRows.
func (b *Builder) Single(ctx context.Context, dest any) (found bool, err error) {
	// Fetch two rows so "more than one" is detectable without another call.
	probe := b.Limit(2)
	body, err := probe.exec(ctx, Request{
		Method:  http.MethodGet,
		Path:    "/" + probe.table,
		Query:   probe.query(),
		Headers: probe.headers(nil),
	})
	if err != nil {
		return false, err
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return false, fmt.Errorf("decode rows: %w", err)
	}
	switch len(rows) {
	case 0:
		return false, nil
	case 1:
		return true, decodeInto(rows[0], dest)
	default:
		return false, ErrMultipleRows
	}
}

// Insert POSTs data. With a non-nil dest the written rows are requested back
// (Prefer: return=representation) and unmarshaled into it; dest should be a
// pointer to a slice, since PostgREST returns a row list.
func (b *Builder) Insert(ctx context.Context, data any, dest any) error {
	return b.write(ctx, http.MethodPost, data, dest)
}

// Update PATCHes the rows matched by the accumulated filters.
func (b *Builder) Update(ctx context.Context, data any, dest any) error {
	return b.write(ctx, http.MethodPatch, data, dest)
}

func (b *Builder) write(ctx context.Context, method string, data any, dest any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	prefer := "return=minimal"
	if dest != nil {
		prefer = "return=representation"
	}

	respBody, err := b.exec(ctx, Request{
		Method:  method,
		Path:    "/" + b.table,
		Query:   b.query(),
		Headers: b.headers(map[string]string{"Prefer": prefer}),
		Body:    body,
	})
	if err != nil {
		return err
	}
	return decodeInto(respBody, dest)
}

// Delete removes the rows matched by the accumulated filters.
func (b *Builder) Delete(ctx context.Context) error {
	_, err := b.exec(ctx, Request{
		Method:  http.MethodDelete,
		Path:    "/" + b.table,
		Query:   b.query(),
		Headers: b.headers(nil),
	})
	return err
}

func decodeInto(body []byte, dest any) error {
	if dest == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// quoteListValue protects in-list members containing dialect metacharacters.
func quoteListValue(s string) string {
	if strings.ContainsAny(s, ",() ") {
		return `"` + s + `"`
	}
	return s
}

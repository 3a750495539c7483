package secop

import (
	"fmt"
	"strings"
)

// QueryBuilder builds SoQL statements for the $query parameter.
type QueryBuilder struct {
	selectExpr string
	where      []string
	orderBy    string
	limit      int
	offset     int
}

// NewQueryBuilder creates a new query builder.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{where: make([]string, 0)}
}

// Select sets the projection; the default is every column.
func (qb *QueryBuilder) Select(expr string) *QueryBuilder {
	qb.selectExpr = expr
	return qb
}

// WhereLike adds a LIKE condition; an empty pattern is ignored.
func (qb *QueryBuilder) WhereLike(field, pattern string) *QueryBuilder {
	if field != "" && pattern != "" {
		qb.where = append(qb.where, fmt.Sprintf("%s LIKE %s", field, quote(pattern)))
	}
	return qb
}

// WhereEquals adds an equality condition; an empty value is ignored.
func (qb *QueryBuilder) WhereEquals(field, value string) *QueryBuilder {
	if field != "" && value != "" {
		qb.where = append(qb.where, fmt.Sprintf("%s = %s", field, quote(value)))
	}
	return qb
}

// OrderBy sets the ordering expression.
func (qb *QueryBuilder) OrderBy(expr string) *QueryBuilder {
	qb.orderBy = expr
	return qb
}

// Page limits the result to the window [offset, offset+limit).
func (qb *QueryBuilder) Page(offset, limit int) *QueryBuilder {
	qb.offset = offset
	qb.limit = limit
	return qb
}

// Build constructs the final statement.
func (qb *QueryBuilder) Build() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if qb.selectExpr == "" {
		b.WriteString("*")
	} else {
		b.WriteString(qb.selectExpr)
	}
	if len(qb.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(qb.where, " AND "))
	}
	if qb.orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(qb.orderBy)
	}
	if qb.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", qb.limit, qb.offset)
	}
	return b.String()
}

// quote renders a SoQL string literal.
func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func filtered(ep Endpoint, categoryCode string) *QueryBuilder {
	return NewQueryBuilder().
		WhereLike(ep.CategoryField, categoryCode).
		WhereEquals("fase", ep.Phase)
}

// CountQuery counts the rows of ep matching categoryCode.
func CountQuery(ep Endpoint, categoryCode string) string {
	return filtered(ep, categoryCode).Select("count(*)").Build()
}

// PageQuery selects one ordered window of ep.
func PageQuery(ep Endpoint, categoryCode string, offset, limit int) string {
	return filtered(ep, categoryCode).
		OrderBy(ep.OrderBy).
		Page(offset, limit).
		Build()
}

// window is one page request.
type window struct {
	Offset int
	Limit  int
}

// pageWindows splits total rows into consecutive windows of size pageSize.
func pageWindows(total, pageSize int) []window {
	if total <= 0 || pageSize <= 0 {
		return nil
	}
	windows := make([]window, 0, (total+pageSize-1)/pageSize)
	for offset := 0; offset < total; offset += pageSize {
		windows = append(windows, window{Offset: offset, Limit: pageSize})
	}
	return windows
}

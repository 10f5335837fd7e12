package repository

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrInvalidQuery = errors.New("invalid query")
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Tipos de columna para convertir los valores de los filtros
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindNumber
	KindTime
	KindBool
)

type Column struct {
	Name string
	Kind ColumnKind
}

// Resource describe qué campos de una tabla se pueden ordenar y filtrar.
type Resource struct {
	Columns     map[string]Column // campo camelCase -> columna
	TextFields  []string          // campos que busca "q"
	DefaultSort SortParam
	MaxLimit    int
}

type SortParam struct {
	Field string
	Desc  bool
}

type Filter struct {
	Field string
	Op    string
	Value string
}

// ListQuery son los parámetros de paginación, orden y filtro de un listado.
type ListQuery struct {
	Offset   int
	Limit    int
	Sort     []SortParam
	Filters  []Filter
	OrGroups [][]Filter
	Q        string
}

var filterOps = map[string]bool{
	"eq": true, "neq": true, "gt": true, "gte": true, "lt": true, "lte": true,
	"like": true, "notLike": true, "ilike": true, "notILike": true, "in": true,
}

// Parámetros que no son filtros
var reservedParams = map[string]bool{
	"offset": true, "limit": true, "sort": true, "q": true, "start": true, "end": true,
}

var (
	fieldOpRegex = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[([A-Za-z]+)\]$`)
	orRegex      = regexp.MustCompile(`^or\[(\d+)\]\[([A-Za-z_][A-Za-z0-9_]*)\](?:\[([A-Za-z]+)\])?$`)
)

// ParseListQuery interpreta la query string:
//
//	?offset=0&limit=10&sort=createdAt,desc&name[ilike]=isa&status[in]=a,b&or[0][name][like]=x&q=term
func ParseListQuery(values url.Values) (ListQuery, error) {
	q := ListQuery{Limit: defaultLimit}

	if v := values.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, fmt.Errorf("%w: offset must be a non-negative integer", ErrInvalidQuery)
		}
		q.Offset = n
	}
	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return q, fmt.Errorf("%w: limit must be a positive integer", ErrInvalidQuery)
		}
		q.Limit = n
	}
	for _, s := range values["sort"] {
		field, dir, _ := strings.Cut(s, ",")
		dir = strings.ToLower(dir)
		if dir == "" {
			dir = "asc"
		}
		if field == "" || (dir != "asc" && dir != "desc") {
			return q, fmt.Errorf("%w: invalid sort parameter %q, expected field,asc or field,desc", ErrInvalidQuery, s)
		}
		q.Sort = append(q.Sort, SortParam{Field: field, Desc: dir == "desc"})
	}
	q.Q = strings.TrimSpace(values.Get("q"))

	orGroups := map[int][]Filter{}
	// orden estable para que los args salgan siempre igual
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if reservedParams[key] {
			continue
		}
		value := values.Get(key)
		if m := orRegex.FindStringSubmatch(key); m != nil {
			idx, _ := strconv.Atoi(m[1])
			op := m[3]
			if op == "" {
				op = "eq"
			}
			if !filterOps[op] {
				return q, fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, op)
			}
			orGroups[idx] = append(orGroups[idx], Filter{Field: m[2], Op: op, Value: value})
			continue
		}
		if m := fieldOpRegex.FindStringSubmatch(key); m != nil {
			if !filterOps[m[2]] {
				return q, fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, m[2])
			}
			q.Filters = append(q.Filters, Filter{Field: m[1], Op: m[2], Value: value})
			continue
		}
		q.Filters = append(q.Filters, Filter{Field: key, Op: "eq", Value: value})
	}

	idxs := make([]int, 0, len(orGroups))
	for i := range orGroups {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	for _, i := range idxs {
		q.OrGroups = append(q.OrGroups, orGroups[i])
	}

	return q, nil
}

// Build devuelve las condiciones (para unir con AND), sus args y el sufijo ORDER BY/LIMIT/OFFSET.
func (r Resource) Build(q ListQuery) ([]string, []any, string, error) {
	var conds []string
	var args []any

	for _, f := range q.Filters {
		cond, fargs, err := r.condition(f)
		if err != nil {
			return nil, nil, "", err
		}
		conds = append(conds, cond)
		args = append(args, fargs...)
	}

	for _, group := range q.OrGroups {
		var parts []string
		for _, f := range group {
			cond, fargs, err := r.condition(f)
			if err != nil {
				return nil, nil, "", err
			}
			parts = append(parts, cond)
			args = append(args, fargs...)
		}
		if len(parts) > 0 {
			conds = append(conds, "("+strings.Join(parts, " OR ")+")")
		}
	}

	if q.Q != "" && len(r.TextFields) > 0 {
		var parts []string
		for _, field := range r.TextFields {
			parts = append(parts, "LOWER("+r.Columns[field].Name+") LIKE ?")
			args = append(args, "%"+strings.ToLower(q.Q)+"%")
		}
		conds = append(conds, "("+strings.Join(parts, " OR ")+")")
	}

	sorts := q.Sort
	if len(sorts) == 0 {
		sorts = []SortParam{r.DefaultSort}
	}
	var order []string
	for _, s := range sorts {
		col, ok := r.Columns[s.Field]
		if !ok {
			return nil, nil, "", fmt.Errorf("%w: cannot sort by %q", ErrInvalidQuery, s.Field)
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		order = append(order, col.Name+" "+dir)
	}

	limit := q.Limit
	max := r.MaxLimit
	if max == 0 {
		max = maxLimit
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > max {
		limit = max
	}

	suffix := fmt.Sprintf(" ORDER BY %s LIMIT %d OFFSET %d", strings.Join(order, ", "), limit, q.Offset)
	return conds, args, suffix, nil
}

func (r Resource) condition(f Filter) (string, []any, error) {
	col, ok := r.Columns[f.Field]
	if !ok {
		return "", nil, fmt.Errorf("%w: cannot filter by %q", ErrInvalidQuery, f.Field)
	}

	if f.Op == "in" {
		items := strings.Split(f.Value, ",")
		placeholders := make([]string, 0, len(items))
		args := make([]any, 0, len(items))
		for _, item := range items {
			v, err := convertValue(col.Kind, strings.TrimSpace(item))
			if err != nil {
				return "", nil, err
			}
			placeholders = append(placeholders, "?")
			args = append(args, v)
		}
		return col.Name + " IN (" + strings.Join(placeholders, ", ") + ")", args, nil
	}

	switch f.Op {
	case "like":
		return col.Name + " LIKE ?", []any{"%" + f.Value + "%"}, nil
	case "notLike":
		return col.Name + " NOT LIKE ?", []any{"%" + f.Value + "%"}, nil
	case "ilike":
		return "LOWER(" + col.Name + ") LIKE ?", []any{"%" + strings.ToLower(f.Value) + "%"}, nil
	case "notILike":
		return "LOWER(" + col.Name + ") NOT LIKE ?", []any{"%" + strings.ToLower(f.Value) + "%"}, nil
	}

	v, err := convertValue(col.Kind, f.Value)
	if err != nil {
		return "", nil, err
	}

	// eq/neq ignoran mayúsculas en columnas de texto
	if col.Kind == KindText && (f.Op == "eq" || f.Op == "neq") {
		op := "="
		if f.Op == "neq" {
			op = "<>"
		}
		return "LOWER(" + col.Name + ") " + op + " ?", []any{strings.ToLower(f.Value)}, nil
	}

	ops := map[string]string{"eq": "=", "neq": "<>", "gt": ">", "gte": ">=", "lt": "<", "lte": "<="}
	return col.Name + " " + ops[f.Op] + " ?", []any{v}, nil
}

func convertValue(kind ColumnKind, raw string) (any, error) {
	switch kind {
	case KindNumber:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidQuery, raw)
		}
		return d, nil
	case KindTime:
		t, err := ParseTime(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a date", ErrInvalidQuery, raw)
		}
		return t, nil
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean", ErrInvalidQuery, raw)
		}
		return b, nil
	}
	return raw, nil
}

// ParseTime acepta RFC3339 o una fecha YYYY-MM-DD (medianoche UTC).
func ParseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// where arma la cláusula WHERE a partir de condiciones fijas más las del listado.
func where(base []string, extra []string) string {
	all := append(append([]string{}, base...), extra...)
	if len(all) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(all, " AND ")
}

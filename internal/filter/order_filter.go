// Package filter turns loosely typed request parameters into an order query
// that the repository can render and page through.
package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidFilter = errors.New("invalid filter")

const dateLayout = "2006-01-02"

// SearchableOrderFields are the field paths matched by the "search" parameter.
var SearchableOrderFields = []string{"order_number", "user.name", "user.email"}

// sortable whitelists the fields "sort" may name. All are NOT NULL so they can
// serve as a keyset cursor together with the id.
var sortable = map[string]bool{
	"id":           true,
	"order_number": true,
	"created_at":   true,
	"total_amount": true,
}

// Query is the rendered form of an order filter.
type Query struct {
	Search       string
	SearchFields []string
	SortField    string
	SortDesc     bool
	From         *time.Time // inclusive
	To           *time.Time // exclusive
}

// OrderFilter reads search, sort and date_range from request params.
type OrderFilter struct {
	params map[string]string
	loc    *time.Location
}

func NewOrderFilter(params map[string]string, loc *time.Location) *OrderFilter {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderFilter{params: params, loc: loc}
}

func (f *OrderFilter) Param(key string) string {
	return strings.TrimSpace(f.params[key])
}

// Query applies the date range and returns a query ordered latest first.
func (f *OrderFilter) Query() (*Query, error) {
	q := (&Query{}).Latest()
	if raw := f.Param("date_range"); raw != "" {
		from, to, err := ParseDateRange(raw, f.loc)
		if err != nil {
			return nil, err
		}
		q.From, q.To = &from, &to
	}
	return q, nil
}

// Build is the full chain used by the orders export: search over the
// searchable fields, then either the requested sort or latest first.
func (f *OrderFilter) Build() (*Query, error) {
	q, err := f.Query()
	if err != nil {
		return nil, err
	}
	q = q.ApplySearch(f.Param("search"), SearchableOrderFields)
	if s := f.Param("sort"); s != "" {
		return q.Sortable(s)
	}
	return q.Latest(), nil
}

// ApplySearch sets a LIKE search over the given field paths; empty terms are ignored.
func (q *Query) ApplySearch(term string, fields []string) *Query {
	term = strings.TrimSpace(term)
	if term == "" || len(fields) == 0 {
		return q
	}
	q.Search = term
	q.SearchFields = append([]string(nil), fields...)
	return q
}

// Sortable applies "field" (ascending) or "-field" (descending).
func (q *Query) Sortable(sort string) (*Query, error) {
	sort = strings.TrimSpace(sort)
	desc := strings.HasPrefix(sort, "-")
	field := strings.TrimPrefix(sort, "-")
	if !sortable[field] {
		return nil, fmt.Errorf("%w: cannot sort by %q", ErrInvalidFilter, field)
	}
	q.SortField, q.SortDesc = field, desc
	return q, nil
}

// Latest orders by creation time, newest first.
func (q *Query) Latest() *Query {
	q.SortField, q.SortDesc = "created_at", true
	return q
}

// ParseDateRange accepts "2024-01-01" or "2024-01-01 to 2024-01-31". The
// returned upper bound is exclusive (the day after the last date).
func ParseDateRange(raw string, loc *time.Location) (time.Time, time.Time, error) {
	parts := strings.Split(raw, " to ")
	if len(parts) > 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date_range %q", ErrInvalidFilter, raw)
	}

	from, err := time.ParseInLocation(dateLayout, strings.TrimSpace(parts[0]), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date_range %q", ErrInvalidFilter, raw)
	}
	to := from
	if len(parts) == 2 {
		to, err = time.ParseInLocation(dateLayout, strings.TrimSpace(parts[1]), loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: date_range %q", ErrInvalidFilter, raw)
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date_range %q ends before it starts", ErrInvalidFilter, raw)
	}

	return from, to.AddDate(0, 0, 1), nil
}

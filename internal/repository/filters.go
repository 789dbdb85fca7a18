package repository

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// Filter keys understood by KPI listings.
const (
	FilterCompany    = "company_id"
	FilterEmployee   = "employee_id"
	FilterManager    = "manager_id"
	FilterStatus     = "status"
	FilterPeriodType = "period_type"
	FilterQuarter    = "quarter"
	FilterYear       = "year"
	FilterDepartment = "department_id"
)

// kpiPredicates maps each filter key to its structural SQL fragment.
// Values are always passed as bound parameters.
var kpiPredicates = map[string]string{
	FilterCompany:    "kpis.company_id = ?",
	FilterEmployee:   "kpis.employee_id = ?",
	FilterManager:    "kpis.manager_id = ?",
	FilterStatus:     "kpis.status IN ?",
	FilterPeriodType: "kpis.period_type = ?",
	FilterQuarter:    "kpis.quarter = ?",
	FilterYear:       "kpis.year = ?",
	FilterDepartment: "kpis.employee_id IN (SELECT id FROM users WHERE department_id = ?)",
}

type predicate struct {
	key   string
	value any
}

// Filters is a typed set of KPI listing predicates.
type Filters struct {
	preds []predicate
	err   error
}

// NewFilters returns an empty filter set.
func NewFilters() *Filters {
	return &Filters{}
}

// With adds a predicate for key. Setting the same key again replaces the earlier value.
// Unknown keys are recorded and reported by Apply.
func (f *Filters) With(key string, value any) *Filters {
	if _, ok := kpiPredicates[key]; !ok {
		if f.err == nil {
			f.err = fmt.Errorf("unknown filter key %q", key)
		}
		return f
	}
	for i := range f.preds {
		if f.preds[i].key == key {
			f.preds[i].value = value
			return f
		}
	}
	f.preds = append(f.preds, predicate{key: key, value: value})
	return f
}

// WithStatuses restricts the listing to the given KPI statuses.
func (f *Filters) WithStatuses(statuses ...string) *Filters {
	return f.With(FilterStatus, statuses)
}

// Has reports whether key is set.
func (f *Filters) Has(key string) bool {
	for _, p := range f.preds {
		if p.key == key {
			return true
		}
	}
	return false
}

// Keys returns the set keys in sorted order.
func (f *Filters) Keys() []string {
	keys := make([]string, 0, len(f.preds))
	for _, p := range f.preds {
		keys = append(keys, p.key)
	}
	sort.Strings(keys)
	return keys
}

// Clause joins the predicates into one WHERE fragment with its bound args.
func (f *Filters) Clause() (string, []any, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	if len(f.preds) == 0 {
		return "", nil, nil
	}

	ordered := make([]predicate, len(f.preds))
	copy(ordered, f.preds)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].key < ordered[j].key })

	parts := make([]string, 0, len(ordered))
	args := make([]any, 0, len(ordered))
	for _, p := range ordered {
		parts = append(parts, kpiPredicates[p.key])
		args = append(args, p.value)
	}
	return strings.Join(parts, " AND "), args, nil
}

// Apply adds the filters to a query.
func (f *Filters) Apply(query *gorm.DB) (*gorm.DB, error) {
	where, args, err := f.Clause()
	if err != nil {
		return nil, err
	}
	if where == "" {
		return query, nil
	}
	return query.Where(where, args...), nil
}

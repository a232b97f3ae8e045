package listquery

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Query computes the page of records matching state.
//
// Non-positive Page and PageSize values are clamped to 1. A page past the
// end yields no items but still reports the totals.
func Query(records []Record, specs []FieldSpec, state QueryState) (QueryResult, error) {
	matched, err := Match(records, specs, state)
	if err != nil {
		return QueryResult{}, err
	}

	page, size := clampPaging(state.Page, state.PageSize)
	result := QueryResult{
		Items:        []Record{},
		TotalMatched: len(matched),
		TotalPages:   totalPages(len(matched), size),
	}

	if page > result.TotalPages {
		return result, nil
	}

	// Pages past the first only exist when size < len(matched), so the
	// offset below cannot overflow.
	size = min(size, len(matched))
	start := (page - 1) * size
	end := min(start+size, len(matched))
	result.Items = matched[start:end]

	return result, nil
}

// Match returns every record matching the search term and filters of
// state, in input order. Pagination fields are ignored.
func Match(records []Record, specs []FieldSpec, state QueryState) ([]Record, error) {
	if err := ValidateSpecs(specs); err != nil {
		return nil, err
	}

	m := newMatcher(specs, state)
	matched := make([]Record, 0, len(records))
	for _, rec := range records {
		if m.matches(rec) {
			matched = append(matched, rec)
		}
	}

	return matched, nil
}

// ValidateSpecs checks that every spec has a unique, non-empty key and a
// known kind. An empty kind is read as KindText.
func ValidateSpecs(specs []FieldSpec) error {
	seen := make(map[string]bool, len(specs))
	for i, spec := range specs {
		if spec.Key == "" {
			return fmt.Errorf("%w: empty key at index %d", ErrInvalidFieldSpec, i)
		}
		if seen[spec.Key] {
			return fmt.Errorf("%w: duplicate key %q", ErrInvalidFieldSpec, spec.Key)
		}
		if !spec.Kind.valid() {
			return fmt.Errorf("%w: key %q has unknown kind %q", ErrInvalidFieldSpec, spec.Key, spec.Kind)
		}
		seen[spec.Key] = true
	}
	return nil
}

type fieldFilter struct {
	spec  FieldSpec
	value string
}

// matcher holds the per-call derived state of a query. A cases.Caser is
// not safe for concurrent use, so each call gets its own.
type matcher struct {
	fold       cases.Caser
	term       string
	searchable []FieldSpec
	filters    []fieldFilter
}

func newMatcher(specs []FieldSpec, state QueryState) *matcher {
	m := &matcher{fold: cases.Fold()}
	m.term = m.fold.String(state.SearchTerm)

	for _, spec := range specs {
		if spec.Searchable {
			m.searchable = append(m.searchable, spec)
		}

		value, ok := state.Filters[spec.Key]
		if !ok || value == "" || value == AllValues {
			continue
		}
		if spec.Kind == KindDate {
			value = normalizeDate(value)
		}
		m.filters = append(m.filters, fieldFilter{spec: spec, value: value})
	}

	return m
}

func (m *matcher) matches(rec Record) bool {
	return m.matchesTerm(rec) && m.matchesFilters(rec)
}

func (m *matcher) matchesTerm(rec Record) bool {
	if m.term == "" {
		return true
	}
	for _, spec := range m.searchable {
		value, ok := fieldString(rec, spec)
		if !ok {
			continue
		}
		if strings.Contains(m.fold.String(value), m.term) {
			return true
		}
	}
	return false
}

func (m *matcher) matchesFilters(rec Record) bool {
	for _, f := range m.filters {
		value, ok := fieldString(rec, f.spec)
		if !ok || value != f.value {
			return false
		}
	}
	return true
}

func clampPaging(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}
	return page, size
}

func totalPages(matched, size int) int {
	if matched == 0 {
		return 0
	}
	return (matched-1)/size + 1
}

// DistinctValues returns the distinct non-empty values of key in the order
// they first appear. Views use it to populate filter choices.
func DistinctValues(records []Record, key string) []string {
	seen := make(map[string]bool)
	values := []string{}
	for _, rec := range records {
		v, ok := Lookup(rec, key)
		if !ok {
			continue
		}
		s, ok := scalarString(v)
		if !ok || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		values = append(values, s)
	}
	return values
}

// CountBy counts records per value of key. Records without a scalar value
// for key are not counted.
func CountBy(records []Record, key string) map[string]int {
	counts := make(map[string]int)
	for _, rec := range records {
		v, ok := Lookup(rec, key)
		if !ok {
			continue
		}
		s, ok := scalarString(v)
		if !ok || s == "" {
			continue
		}
		counts[s]++
	}
	return counts
}

// Package listquery implements the in-memory list engine shared by every
// dashboard listing: free-text search, per-field equality filters,
// pagination and CSV export projection over a fully fetched result set.
//
// The engine is stateless. Callers own the records and the QueryState and
// pass both in on every call; nothing is cached between calls.
package listquery

import (
	"errors"
)

// Kind describes how a field participates in search and filtering.
type Kind string

const (
	KindText Kind = "text"
	KindEnum Kind = "enum"
	KindDate Kind = "date"
)

// AllValues is the filter sentinel meaning "no constraint on this field".
const AllValues = "all"

// DefaultPageSize is the page size used by DefaultState.
const DefaultPageSize = 10

var (
	// ErrInvalidFieldSpec is returned when a field spec has an empty or
	// duplicated key, or an unknown kind.
	ErrInvalidFieldSpec = errors.New("listquery: invalid field spec")
	// ErrUnknownColumnKey is returned when an export column names a field
	// that the sample record does not carry.
	ErrUnknownColumnKey = errors.New("listquery: unknown column key")
)

// Record is one business entity (coupon, notification, payment period...)
// as decoded from the data source. The engine never modifies a Record.
type Record map[string]any

// FieldSpec describes how a field participates in querying.
type FieldSpec struct {
	Key        string `json:"key"`
	Kind       Kind   `json:"kind"`
	Searchable bool   `json:"searchable"`
}

// QueryState is the search/filter/pagination input owned by the caller.
type QueryState struct {
	SearchTerm string            `json:"search_term"`
	Filters    map[string]string `json:"filters"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
}

// DefaultState returns the state a view starts with.
func DefaultState() QueryState {
	return QueryState{
		Filters:  map[string]string{},
		Page:     1,
		PageSize: DefaultPageSize,
	}
}

// Paging returns the page and page size Query actually uses.
func (s QueryState) Paging() (page, size int) {
	return clampPaging(s.Page, s.PageSize)
}

// QueryResult is the visible page plus pagination metadata.
type QueryResult struct {
	Items        []Record `json:"items"`
	TotalMatched int      `json:"total_matched"`
	TotalPages   int      `json:"total_pages"`
}

func (k Kind) valid() bool {
	switch k {
	case "", KindText, KindEnum, KindDate:
		return true
	}
	return false
}

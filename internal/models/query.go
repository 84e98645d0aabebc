package models

import (
	"fmt"
	"strings"
	"time"
)

// Page sizes applied to client listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// CalculationFilter narrows a calculation listing. Zero values match everything.
type CalculationFilter struct {
	CreatedBy     *int
	Statuses      []CalculationState
	CreatedBefore time.Time
}

// Pagination bounds a listing. Limit 0 means no limit.
type Pagination struct {
	Offset      int
	Limit       int
	NewestFirst bool
}

// ParseStatuses parses state names; each value may hold a comma separated list.
func ParseStatuses(values []string) ([]CalculationState, error) {
	var out []CalculationState
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			state, ok := ParseState(part)
			if !ok {
				return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, part)
			}
			out = append(out, state)
		}
	}
	return out, nil
}

// ClientPage builds the newest-first page a client asked for. A zero limit selects
// DefaultPageSize and larger limits are capped at MaxPageSize.
func ClientPage(limit, offset int) (Pagination, error) {
	switch {
	case limit < 0:
		return Pagination{}, fmt.Errorf("%w: limit must not be negative", ErrInvalidArgument)
	case offset < 0:
		return Pagination{}, fmt.Errorf("%w: offset must not be negative", ErrInvalidArgument)
	case limit == 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	return Pagination{Limit: limit, Offset: offset, NewestFirst: true}, nil
}

// Package filter provides the filter chain for catalog admission.
package filter

import "context"

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// NewCatalogChain creates a chain with the filters every catalog load applies.
func NewCatalogChain() *Chain {
	c := NewChain()
	c.Add(NewMissingTrackFilter())
	c.Add(NewLocalFileFilter())
	c.Add(NewMissingURIFilter())
	return c
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the entry.
func (c *Chain) Execute(ctx context.Context, e Entry) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, e)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}

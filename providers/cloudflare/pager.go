package cloudflare

import "context"

// defaultPerPage is the page size requested from list endpoints.
const defaultPerPage = 10

// fetchPage requests one page of a listing. It returns the page's items
// and the total number of pages the provider reports for the listing.
type fetchPage[T any] func(ctx context.Context, page, perPage int) ([]T, int, error)

// pager lazily walks a paginated listing starting at page 1. Iteration
// ends after the page whose number reaches the reported total. A failed
// page stops the walk immediately; none of its items are yielded.
type pager[T any] struct {
	ctx     context.Context
	fetch   fetchPage[T]
	perPage int

	page    int
	items   []T
	index   int
	current T
	done    bool
	err     error
}

func newPager[T any](ctx context.Context, perPage int, fetch fetchPage[T]) *pager[T] {
	if perPage < 1 {
		perPage = defaultPerPage
	}
	return &pager[T]{ctx: ctx, fetch: fetch, perPage: perPage}
}

// Next advances the pager, fetching the next page when the current one is
// exhausted. It returns false once all pages are consumed or a page fails.
func (p *pager[T]) Next() bool {
	for p.err == nil {
		if p.index < len(p.items) {
			p.current = p.items[p.index]
			p.index++
			return true
		}
		if p.done {
			return false
		}
		p.page++
		items, totalPages, err := p.fetch(p.ctx, p.page, p.perPage)
		if err != nil {
			p.err = err
			return false
		}
		p.items = items
		p.index = 0
		if p.page >= totalPages {
			p.done = true
		}
	}
	return false
}

// Current returns the item produced by the last successful Next call.
func (p *pager[T]) Current() T {
	return p.current
}

// Err returns the error that terminated iteration, if any.
func (p *pager[T]) Err() error {
	return p.err
}

package crawler

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// SharedFetcher collapses concurrent fetches of the same URL into one
// request. The shared fetch is detached from the callers' cancellation and
// bounded by the backend's own timeout; each caller stops waiting when its
// own context is done.
type SharedFetcher struct {
	backend Fetcher
	group   singleflight.Group
}

func NewSharedFetcher(backend Fetcher) *SharedFetcher {
	return &SharedFetcher{backend: backend}
}

func (s *SharedFetcher) Fetch(ctx context.Context, pageURL string) (*PageFetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &NetworkError{URL: pageURL, Err: err}
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(pageURL, func() (interface{}, error) {
		return s.backend.Fetch(fetchCtx, pageURL)
	})

	select {
	case <-ctx.Done():
		return nil, &NetworkError{URL: pageURL, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// each caller gets its own copy
		result := *res.Val.(*PageFetchResult)
		return &result, nil
	}
}

// Backend returns the wrapped fetcher.
func (s *SharedFetcher) Backend() Fetcher {
	return s.backend
}

package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectivity means page 1 of the catalog could not be fetched.
	// Nothing has been written when it is returned.
	ErrConnectivity = errors.New("catalog root unreachable")

	// ErrMissingID marks a listing item whose detail URL carries no title id.
	ErrMissingID = errors.New("no title id in detail url")

	// ErrCrawlInProgress is returned by Runner when another crawl holds it.
	ErrCrawlInProgress = errors.New("a crawl is already running")
)

// PageFetchError is one listing page that could not be fetched or parsed.
// The page is skipped.
type PageFetchError struct {
	Page int
	URL  string
	Err  error
}

func (e *PageFetchError) Error() string {
	return fmt.Sprintf("listing page %d (%s): %v", e.Page, e.URL, e.Err)
}

func (e *PageFetchError) Unwrap() error { return e.Err }

// ItemError is one listing item that was skipped.
type ItemError struct {
	Title string
	URL   string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %q: %v", e.Title, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// PersistenceError is a checkpoint that failed after its retry. The
// in-memory catalog is intact and ahead of the store.
type PersistenceError struct {
	Page     int
	Attempts int
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("checkpoint after page %d failed after %d attempts: %v", e.Page, e.Attempts, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

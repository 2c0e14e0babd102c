package archive

import "fmt"

// CatalogFetchError reports that a catalog page could not be fetched or parsed.
type CatalogFetchError struct {
	Page int
	Err  error
}

func (e *CatalogFetchError) Error() string {
	return fmt.Sprintf("fetch catalog page %d: %v", e.Page, e.Err)
}

func (e *CatalogFetchError) Unwrap() error { return e.Err }

// MediaResolveError reports that an item's metadata could not be fetched or parsed.
type MediaResolveError struct {
	Identifier string
	Err        error
}

func (e *MediaResolveError) Error() string {
	return fmt.Sprintf("resolve media for %s: %v", e.Identifier, e.Err)
}

func (e *MediaResolveError) Unwrap() error { return e.Err }

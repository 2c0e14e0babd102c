package ingest

// SkipReason explains why a catalog entry produced no record.
type SkipReason string

const (
	SkipDuplicate    SkipReason = "duplicate"
	SkipNoMedia      SkipReason = "no_media"
	SkipResolveError SkipReason = "resolve_error"
	SkipLookupError  SkipReason = "lookup_error"
)

// StopReason explains why a run ended.
type StopReason string

const (
	StopEmptyPage        StopReason = "empty_page"
	StopFetchError       StopReason = "fetch_error"
	StopNoNewRecords     StopReason = "no_new_records"
	StopPageBudget       StopReason = "page_budget"
	StopPersistenceError StopReason = "persistence_error"
	StopCanceled         StopReason = "canceled"
)

// Result summarises one run.
type Result struct {
	RunID string
	// Pages is the number of catalog pages requested, including a failed or empty one.
	Pages int
	// PageSaved holds the saved count of every page whose entries were processed.
	PageSaved []int
	Saved     int
	Skipped   map[SkipReason]int
	Stop      StopReason
}

// SkippedTotal sums the skip counters.
func (r Result) SkippedTotal() int {
	n := 0
	for _, c := range r.Skipped {
		n += c
	}
	return n
}

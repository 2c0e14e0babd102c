package domain

// CatalogEntry is one row of the public archive search index.
//
// Scalar fields are nil when the source row does not carry them.
type CatalogEntry struct {
	Identifier  string   `json:"identifier"`
	Title       *string  `json:"title,omitempty"`
	Creator     *string  `json:"creator,omitempty"`
	Description *string  `json:"description,omitempty"`
	MediaType   *string  `json:"mediatype,omitempty"`
	Collection  []string `json:"collection,omitempty"`
	Date        *string  `json:"date,omitempty"`
}

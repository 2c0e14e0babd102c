package archive

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"cartoon-ingest/pkg/domain"
	"cartoon-ingest/pkg/httpclient"
)

// DefaultRows is the number of rows requested per catalog page.
const DefaultRows = 50

// catalogFields is the projection requested from the search index.
var catalogFields = []string{"identifier", "title", "creator", "description", "mediatype", "collection", "date"}

// CatalogQuery is the fixed search predicate of a crawl.
type CatalogQuery struct {
	Collection string
	MediaType  string
	Rows       int
}

// String renders the predicate in the search index's query syntax.
func (q CatalogQuery) String() string {
	var terms []string
	if q.Collection != "" {
		terms = append(terms, "collection:"+q.Collection)
	}
	if q.MediaType != "" {
		terms = append(terms, "mediatype:"+q.MediaType)
	}
	return strings.Join(terms, " AND ")
}

// CatalogClient pages through the archive's advanced search endpoint.
type CatalogClient struct {
	http    *httpclient.HTTPClient
	baseURL string
	query   CatalogQuery
}

// NewCatalogClient creates a catalog client for the given search predicate.
func NewCatalogClient(client *httpclient.HTTPClient, baseURL string, query CatalogQuery) *CatalogClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if query.Rows <= 0 {
		query.Rows = DefaultRows
	}
	return &CatalogClient{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
		query:   query,
	}
}

type searchEnvelope struct {
	Response struct {
		NumFound int         `json:"numFound"`
		Docs     []searchDoc `json:"docs"`
	} `json:"response"`
}

type searchDoc struct {
	Identifier  string      `json:"identifier"`
	Title       flexStrings `json:"title"`
	Creator     flexStrings `json:"creator"`
	Description flexStrings `json:"description"`
	MediaType   flexStrings `json:"mediatype"`
	Collection  flexStrings `json:"collection"`
	Date        flexStrings `json:"date"`
}

func (d searchDoc) entry() domain.CatalogEntry {
	var collection []string
	if tags := d.Collection.nonBlank(); len(tags) > 0 {
		collection = tags
	}
	return domain.CatalogEntry{
		Identifier:  d.Identifier,
		Title:       d.Title.joined(", "),
		Creator:     d.Creator.joined(", "),
		Description: d.Description.joined("\n"),
		MediaType:   d.MediaType.joined(", "),
		Collection:  collection,
		Date:        d.Date.joined(", "),
	}
}

// PageURL returns the search URL for a 1-based page number.
func (c *CatalogClient) PageURL(page int) string {
	params := url.Values{}
	params.Set("q", c.query.String())
	for _, f := range catalogFields {
		params.Add("fl[]", f)
	}
	params.Set("rows", strconv.Itoa(c.query.Rows))
	params.Set("page", strconv.Itoa(page))
	params.Set("output", "json")
	return c.baseURL + "/advancedsearch.php?" + params.Encode()
}

// FetchPage returns the entries of one catalog page. An exhausted catalog yields an
// empty slice and no error. Rows without an identifier are dropped.
func (c *CatalogClient) FetchPage(ctx context.Context, page int) ([]domain.CatalogEntry, error) {
	if page < 1 {
		return nil, &CatalogFetchError{Page: page, Err: fmt.Errorf("page numbers start at 1")}
	}

	var env searchEnvelope
	if err := c.http.GetJSON(ctx, c.PageURL(page), &env); err != nil {
		return nil, &CatalogFetchError{Page: page, Err: err}
	}

	entries := make([]domain.CatalogEntry, 0, len(env.Response.Docs))
	for _, doc := range env.Response.Docs {
		if strings.TrimSpace(doc.Identifier) == "" {
			continue
		}
		entries = append(entries, doc.entry())
	}
	return entries, nil
}

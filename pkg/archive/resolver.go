package archive

import (
	"context"
	"net/url"
	"strings"

	"cartoon-ingest/pkg/httpclient"
)

// DefaultVideoExtensions are the file suffixes accepted as playable media.
var DefaultVideoExtensions = []string{".mp4"}

// MediaResolver finds a directly playable file for an archive item.
type MediaResolver struct {
	http       *httpclient.HTTPClient
	baseURL    string
	urls       URLBuilder
	extensions []string
}

// NewMediaResolver creates a resolver. A nil extensions slice uses DefaultVideoExtensions.
func NewMediaResolver(client *httpclient.HTTPClient, baseURL string, urls URLBuilder, extensions []string) *MediaResolver {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if len(extensions) == 0 {
		extensions = DefaultVideoExtensions
	}
	return &MediaResolver{
		http:       client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		urls:       urls,
		extensions: extensions,
	}
}

type itemMetadata struct {
	Files []struct {
		Name string `json:"name"`
	} `json:"files"`
}

// ResolveMediaURL returns the download URL of the first video file listed in the
// item's metadata. ok is false, with a nil error, when the item has no such file.
// Transport and decode failures are returned as *MediaResolveError.
func (r *MediaResolver) ResolveMediaURL(ctx context.Context, identifier string) (string, bool, error) {
	var meta itemMetadata
	if err := r.http.GetJSON(ctx, r.metadataURL(identifier), &meta); err != nil {
		return "", false, &MediaResolveError{Identifier: identifier, Err: err}
	}

	for _, f := range meta.Files {
		if f.Name != "" && r.isVideo(f.Name) {
			return r.urls.Download(identifier, f.Name), true, nil
		}
	}
	return "", false, nil
}

func (r *MediaResolver) metadataURL(identifier string) string {
	return r.baseURL + "/metadata/" + url.PathEscape(identifier)
}

// isVideo matches suffixes exactly: "reel.MP4" is not an ".mp4" file.
func (r *MediaResolver) isVideo(name string) bool {
	for _, ext := range r.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

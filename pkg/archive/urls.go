package archive

import (
	"net/url"
	"strings"
)

const (
	DefaultBaseURL         = "https://archive.org"
	DefaultDownloadBaseURL = "https://archive.org/download"
	DefaultImageBaseURL    = "https://archive.org/services/img"
)

// URLBuilder derives the download and thumbnail URLs stored on records.
type URLBuilder struct {
	DownloadBase string
	ImageBase    string
}

// DefaultURLs points at the public archive hosts.
func DefaultURLs() URLBuilder {
	return URLBuilder{DownloadBase: DefaultDownloadBaseURL, ImageBase: DefaultImageBaseURL}
}

// Thumbnail returns <image-base>/<identifier>.
func (b URLBuilder) Thumbnail(identifier string) string {
	return strings.TrimRight(b.ImageBase, "/") + "/" + url.PathEscape(identifier)
}

// Download returns <download-base>/<identifier>/<file>. Each segment of file is
// escaped separately so files in sub-directories keep their slashes.
func (b URLBuilder) Download(identifier, file string) string {
	segments := strings.Split(file, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(b.DownloadBase, "/") + "/" + url.PathEscape(identifier) + "/" + strings.Join(segments, "/")
}

// ThumbnailURL is Thumbnail on the public image host.
func ThumbnailURL(identifier string) string {
	return DefaultURLs().Thumbnail(identifier)
}

// DownloadURL is Download on the public download host.
func DownloadURL(identifier, file string) string {
	return DefaultURLs().Download(identifier, file)
}

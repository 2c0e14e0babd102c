package archive

import (
	"cartoon-ingest/pkg/config"
	"cartoon-ingest/pkg/httpclient"
)

// Clients builds the catalog client, the media resolver and the URL builder
// described by cfg. Both clients share one HTTP client.
func Clients(cfg config.ArchiveConfig) (*CatalogClient, *MediaResolver, URLBuilder) {
	client := httpclient.NewClient(httpclient.Options{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
	})

	urls := DefaultURLs()
	if cfg.DownloadBaseURL != "" {
		urls.DownloadBase = cfg.DownloadBaseURL
	}
	if cfg.ImageBaseURL != "" {
		urls.ImageBase = cfg.ImageBaseURL
	}

	catalog := NewCatalogClient(client, cfg.BaseURL, CatalogQuery{
		Collection: cfg.Collection,
		MediaType:  cfg.MediaType,
	})
	resolver := NewMediaResolver(client, cfg.BaseURL, urls, cfg.VideoExtensions)
	return catalog, resolver, urls
}

package archive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cartoon-ingest/pkg/httpclient"
)

func newResolver(t *testing.T, handler http.HandlerFunc) *MediaResolver {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewMediaResolver(httpclient.NewClient(httpclient.Options{}), srv.URL, DefaultURLs(), nil)
}

func TestResolveMediaURLPicksFirstMP4(t *testing.T) {
	r := newResolver(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/metadata/popeye_taxi", req.URL.Path)
		_, _ = w.Write([]byte(`{"files":[
			{"name":"popeye_taxi.ogv","format":"Ogg Video"},
			{"format":"Metadata"},
			{"name":"Popeye Taxi.mp4","format":"h.264"},
			{"name":"popeye_taxi_512kb.mp4","format":"512Kb MPEG4"}
		]}`))
	})

	got, ok, err := r.ResolveMediaURL(context.Background(), "popeye_taxi")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://archive.org/download/popeye_taxi/Popeye%20Taxi.mp4", got)
}

func TestResolveMediaURLNoVideoFile(t *testing.T) {
	r := newResolver(t, func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"files":[{"name":"cover.jpg"},{"name":"item_meta.xml"}]}`))
	})

	got, ok, err := r.ResolveMediaURL(context.Background(), "stills_only")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestResolveMediaURLUnknownItem(t *testing.T) {
	// the metadata endpoint answers unknown identifiers with an empty object
	r := newResolver(t, func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, ok, err := r.ResolveMediaURL(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveMediaURLFailure(t *testing.T) {
	r := newResolver(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, ok, err := r.ResolveMediaURL(context.Background(), "broken")
	assert.False(t, ok)

	var resolveErr *MediaResolveError
	require.True(t, errors.As(err, &resolveErr))
	assert.Equal(t, "broken", resolveErr.Identifier)

	var statusErr *httpclient.StatusError
	assert.True(t, errors.As(err, &statusErr))
}

func TestResolveMediaURLCustomExtensions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"files":[{"name":"reel.MP4"},{"name":"reel.mkv"}]}`))
	}))
	defer srv.Close()

	r := NewMediaResolver(httpclient.NewClient(httpclient.Options{}), srv.URL,
		URLBuilder{DownloadBase: "https://mirror.example/dl", ImageBase: DefaultImageBaseURL},
		[]string{".mkv"})

	got, ok, err := r.ResolveMediaURL(context.Background(), "reel")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://mirror.example/dl/reel/reel.mkv", got)
}

func TestResolveMediaURLExtensionIsCaseSensitive(t *testing.T) {
	r := newResolver(t, func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"files":[{"name":"FOO.MP4"},{"name":"foo.Mp4"}]}`))
	})

	got, ok, err := r.ResolveMediaURL(context.Background(), "foo")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, got)
}

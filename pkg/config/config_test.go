package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "https://archive.org", cfg.Archive.BaseURL)
	assert.Equal(t, "animation_unsorted", cfg.Archive.Collection)
	assert.Equal(t, "movies", cfg.Archive.MediaType)
	assert.Equal(t, []string{".mp4"}, cfg.Archive.VideoExtensions)
	assert.Equal(t, 50, cfg.Crawl.MaxPages)
	assert.Equal(t, time.Second, cfg.Crawl.PageDelay)
	assert.Equal(t, 1, cfg.Crawl.MaxStalePages)
	assert.Equal(t, "videos", cfg.Mongo.Collection)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "crawl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
archive:
  collection: classic_cartoons
crawl:
  max_pages: 5
  page_delay: 250ms
`), 0o600))
	t.Setenv("CARTOON_CRAWL_MAX_PAGES", "7")
	t.Setenv("CARTOON_MONGO_DATABASE", "staging")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "classic_cartoons", cfg.Archive.Collection)
	assert.Equal(t, 7, cfg.Crawl.MaxPages, "env overrides file")
	assert.Equal(t, 250*time.Millisecond, cfg.Crawl.PageDelay)
	assert.Equal(t, "staging", cfg.Mongo.Database)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(viper.New(), "does-not-exist.yaml")
	require.Error(t, err)
}

func TestBindFlags(t *testing.T) {
	t.Chdir(t.TempDir())

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("max-pages", 0, "")
	require.NoError(t, fs.Parse([]string{"--max-pages=3"}))

	v := viper.New()
	require.NoError(t, BindFlags(v, fs, map[string]string{"max-pages": "crawl.max_pages"}))

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Crawl.MaxPages)

	err = BindFlags(v, fs, map[string]string{"nope": "crawl.max_pages"})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	cfg.Crawl.MaxPages = 0
	cfg.Archive.VideoExtensions = nil
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crawl.max_pages")
	assert.Contains(t, err.Error(), "archive.video_extensions")
}

func TestValidatePageCeiling(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CARTOON_CRAWL_MAX_PAGES", "80")

	_, err := Load(viper.New(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crawl.max_pages must be between 1 and 50")

	t.Setenv("CARTOON_CRAWL_MAX_PAGES", "50")
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, MaxCrawlPages, cfg.Crawl.MaxPages)
}

package pixiv

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pixelfall/tagrelay/internal/relay"
)

func TestFetcherDownloadWritesFile(t *testing.T) {
	t.Parallel()

	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0} // JPEG magic
	var gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	fetcher := NewFetcher(FetcherConfig{UserAgent: "tagrelay-test"}, zap.NewNop())
	path := filepath.Join(t.TempDir(), "image.jpg")

	require.NoError(t, fetcher.Download(context.Background(), srv.URL+"/img.jpg", path))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, written)
	assert.Equal(t, defaultReferer, gotReferer)
}

func TestFetcherDownloadNotFoundIsPermanent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	fetcher := NewFetcher(FetcherConfig{}, zap.NewNop())
	path := filepath.Join(t.TempDir(), "image.jpg")

	err := fetcher.Download(context.Background(), srv.URL+"/gone.jpg", path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, relay.ErrPermanentDownload))
}

func TestFetcherDownloadForbiddenIsPermanent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	fetcher := NewFetcher(FetcherConfig{}, zap.NewNop())
	err := fetcher.Download(context.Background(), srv.URL+"/blocked.jpg", filepath.Join(t.TempDir(), "x"))
	assert.True(t, errors.Is(err, relay.ErrPermanentDownload))
}

func TestFetcherDownloadServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "try later", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	fetcher := NewFetcher(FetcherConfig{}, zap.NewNop())
	err := fetcher.Download(context.Background(), srv.URL+"/flaky.jpg", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, relay.ErrPermanentDownload))
}

func TestFetcherDownloadUnreachableHost(t *testing.T) {
	t.Parallel()

	fetcher := NewFetcher(FetcherConfig{}, zap.NewNop())
	err := fetcher.Download(context.Background(), "http://127.0.0.1:1/img.jpg", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, relay.ErrPermanentDownload))
}

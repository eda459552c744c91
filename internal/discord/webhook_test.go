package discord

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPostSendsJSONContent(t *testing.T) {
	t.Parallel()

	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := NewWebhook(WebhookConfig{UserAgent: "tagrelay-test"}, zap.NewNop())
	require.NoError(t, hook.Post(context.Background(), srv.URL, "No image today."))
	assert.Equal(t, "No image today.", got["content"])
}

func TestPostFileSendsMultipartForm(t *testing.T) {
	t.Parallel()

	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	var (
		gotContent  string
		gotFilename string
		gotData     []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		gotContent = r.FormValue("content")

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close() //nolint:errcheck
		gotFilename = header.Filename
		gotData, err = io.ReadAll(file)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hook := NewWebhook(WebhookConfig{}, zap.NewNop())
	require.NoError(t, hook.PostFile(context.Background(), srv.URL, "Found one!", "image.jpg", payload))

	assert.Equal(t, "Found one!", gotContent)
	assert.Equal(t, "image.jpg", gotFilename)
	assert.Equal(t, payload, gotData)
}

func TestPostFileOmitsEmptyContentField(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		_, hasContent := r.MultipartForm.Value["content"]
		assert.False(t, hasContent)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hook := NewWebhook(WebhookConfig{}, zap.NewNop())
	require.NoError(t, hook.PostFile(context.Background(), srv.URL, "", "image.jpg", []byte("x")))
}

func TestPostNonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	hook := NewWebhook(WebhookConfig{}, zap.NewNop())
	err := hook.Post(context.Background(), srv.URL, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"twitline/internal/config"
	"twitline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUploader(t *testing.T, handler http.HandlerFunc) *Uploader {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &config.Config{
		MediaHost:         srv.URL,
		MediaCloudName:    "demo",
		MediaUploadPreset: "unsigned-preset",
	}
	return NewUploader(cfg)
}

func TestUploadSendsPresetFields(t *testing.T) {
	var gotPath string
	uploader := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "unsigned-preset", r.FormValue("upload_preset"))
		assert.Equal(t, "demo", r.FormValue("cloud_name"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "cat.png", header.Filename)

		w.Write([]byte(`{"secure_url": "https://cdn.example.com/cat.png"}`))
	})

	url, err := uploader.Upload(context.Background(), "cat.png", []byte("fake-bytes"), KindImage)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/cat.png", url)
	assert.Equal(t, "/v1_1/demo/image/upload", gotPath)
}

func TestUploadVideoEndpoint(t *testing.T) {
	var gotPath string
	uploader := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"secure_url": "https://cdn.example.com/clip.mp4"}`))
	})

	_, err := uploader.Upload(context.Background(), "clip.mp4", []byte("v"), KindVideo)
	require.NoError(t, err)
	assert.Equal(t, "/v1_1/demo/video/upload", gotPath)
}

func TestUploadPrefersSecureURL(t *testing.T) {
	uploader := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"url": "http://cdn.example.com/a.png", "secure_url": "https://cdn.example.com/a.png"}`))
	})

	url, err := uploader.Upload(context.Background(), "a.png", []byte("x"), KindImage)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.png", url)
}

func TestUploadFallsBackToPlainURL(t *testing.T) {
	uploader := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"url": "http://cdn.example.com/a.png"}`))
	})

	url, err := uploader.Upload(context.Background(), "a.png", []byte("x"), KindImage)
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.example.com/a.png", url)
}

func TestUploadMissingURLIsUploadError(t *testing.T) {
	uploader := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"public_id": "abc123"}`))
	})

	_, err := uploader.Upload(context.Background(), "a.png", []byte("x"), KindImage)
	require.Error(t, err)
	assert.Equal(t, models.CodeUpload, models.CodeOf(err))
}

func TestUploadHostErrorMessageSurfaced(t *testing.T) {
	uploader := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "Upload preset not found"}}`))
	})

	_, err := uploader.Upload(context.Background(), "a.png", []byte("x"), KindImage)
	require.Error(t, err)
	assert.Equal(t, models.CodeUpload, models.CodeOf(err))
	assert.Equal(t, "Upload preset not found", models.UserMessage(err, "upload the file"))
}

func TestUploadWithoutCredentials(t *testing.T) {
	uploader := NewUploader(&config.Config{MediaHost: "https://api.example.com"})
	_, err := uploader.Upload(context.Background(), "a.png", []byte("x"), KindImage)
	require.Error(t, err)
	assert.Equal(t, models.CodeUpload, models.CodeOf(err))
}

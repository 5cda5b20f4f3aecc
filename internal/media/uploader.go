// Package media uploads attachments to the external asset host before a
// post is submitted. The host speaks the unsigned-preset upload protocol:
// a multipart form carrying the file and the preset credentials, posted to
// a per-media-kind endpoint, answered with a JSON document holding the
// durable file URL.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"twitline/internal/config"
	"twitline/internal/models"
	"twitline/internal/observability"
)

// Kind selects the asset host endpoint for an upload.
type Kind string

const (
	// KindImage uploads to the image endpoint.
	KindImage Kind = "image"
	// KindVideo uploads to the video endpoint.
	KindVideo Kind = "video"
)

// Uploader posts files to the asset host and returns durable URLs.
type Uploader struct {
	host      string
	cloudName string
	preset    string
	http      *http.Client
	logger    observability.HTTPLogger
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(u *Uploader) { u.http = h }
}

// WithLogger replaces the diagnostic hook.
func WithLogger(l observability.HTTPLogger) Option {
	return func(u *Uploader) { u.logger = l }
}

// NewUploader creates an uploader for the configured host and credentials.
func NewUploader(cfg *config.Config, opts ...Option) *Uploader {
	u := &Uploader{
		host:      strings.TrimRight(cfg.MediaHost, "/"),
		cloudName: cfg.MediaCloudName,
		preset:    cfg.MediaUploadPreset,
		http:      &http.Client{Timeout: 2 * time.Minute},
		logger:    observability.NewSlogHTTPLogger(nil),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload posts a single file to the host's endpoint for the given kind and
// returns the durable URL. The host's field naming varies by deployment;
// the secure (TLS) URL is preferred, the plain one accepted as fallback.
func (u *Uploader) Upload(ctx context.Context, filename string, content []byte, kind Kind) (string, error) {
	if u.cloudName == "" || u.preset == "" {
		return "", models.NewUploadError("Media uploads are not configured.", nil)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", models.NewUploadError("", err)
	}
	if _, err := fw.Write(content); err != nil {
		return "", models.NewUploadError("", err)
	}
	_ = w.WriteField("upload_preset", u.preset)
	_ = w.WriteField("cloud_name", u.cloudName)
	if err := w.Close(); err != nil {
		return "", models.NewUploadError("", err)
	}

	url := fmt.Sprintf("%s/v1_1/%s/%s/upload", u.host, u.cloudName, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", models.NewUploadError("", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	u.logger.LogRequest(ctx, http.MethodPost, url, w.FormDataContentType())
	resp, err := u.http.Do(req)
	if err != nil {
		u.logger.LogResponse(ctx, http.MethodPost, url, 0, err)
		return "", models.NewUploadError("", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		u.logger.LogResponse(ctx, http.MethodPost, url, resp.StatusCode, err)
		return "", models.NewUploadError("", err)
	}
	u.logger.LogResponse(ctx, http.MethodPost, url, resp.StatusCode, nil)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", models.NewUploadError(hostErrorMessage(body),
			fmt.Errorf("media host returned status %d", resp.StatusCode))
	}

	var result struct {
		SecureURL string `json:"secure_url"`
		URL       string `json:"url"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", models.NewUploadError("", fmt.Errorf("malformed media host response: %w", err))
	}
	if result.SecureURL != "" {
		return result.SecureURL, nil
	}
	if result.URL != "" {
		return result.URL, nil
	}
	return "", models.NewUploadError("Media host response did not include a file URL.", nil)
}

// hostErrorMessage surfaces the host's error message when present.
func hostErrorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return ""
}

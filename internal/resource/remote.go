package resource

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/aleister1102/filestatus/internal/common"
	"github.com/rs/zerolog"
)

// RemoteFile is a resource served over HTTP. HasChanged issues a conditional
// HEAD request with the validators (ETag, Last-Modified) from the previous probe.
type RemoteFile struct {
	url    string
	client *http.Client
	logger zerolog.Logger

	mu           sync.Mutex
	probed       bool
	etag         string
	lastModified string
	resumeFrom   time.Time
}

// NewRemoteFile creates a RemoteFile probed with client
func NewRemoteFile(rawURL string, client *http.Client, logger zerolog.Logger) (*RemoteFile, error) {
	if client == nil {
		return nil, common.NewValidationError("client", nil, "http client cannot be nil for remote resources")
	}
	return &RemoteFile{
		url:    rawURL,
		client: client,
		logger: logger.With().Str("component", "RemoteFile").Str("url", rawURL).Logger(),
	}, nil
}

// URI returns the URL
func (r *RemoteFile) URI() string { return r.url }

// IsLocal is always false
func (r *RemoteFile) IsLocal() bool { return false }

// ResumeFrom makes the first probe conditional on lastChecked, so content
// modified since then reports changed.
func (r *RemoteFile) ResumeFrom(lastChecked time.Time) {
	r.mu.Lock()
	r.resumeFrom = lastChecked
	r.mu.Unlock()
}

// HasChanged reports whether the validators changed since the previous probe.
// 304 Not Modified is unchanged. The first probe only records validators
// unless ResumeFrom was called.
func (r *RemoteFile) HasChanged(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.url, nil)
	if err != nil {
		return false, common.WrapErrorf(err, "creating request for %s", r.url)
	}

	r.mu.Lock()
	prevETag, prevLastModified, probed, resumeFrom := r.etag, r.lastModified, r.probed, r.resumeFrom
	r.mu.Unlock()

	if !probed && prevLastModified == "" && !resumeFrom.IsZero() {
		prevLastModified = resumeFrom.UTC().Format(http.TimeFormat)
	}

	if prevETag != "" {
		req.Header.Set("If-None-Match", prevETag)
	}
	if prevLastModified != "" {
		req.Header.Set("If-Modified-Since", prevLastModified)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return false, common.WrapErrorf(err, "HEAD %s", r.url)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotModified {
		r.logger.Debug().Msg("Content not modified (304)")
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, common.NewHTTPErrorWithURL(resp.StatusCode, http.StatusText(resp.StatusCode), r.url)
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	etag := resp.Header.Get("ETag")
	lastModified := resp.Header.Get("Last-Modified")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.etag = etag
	r.lastModified = lastModified
	r.probed = true

	if !probed {
		return !resumeFrom.IsZero() && modifiedAfter(lastModified, resumeFrom), nil
	}
	return etag != prevETag || lastModified != prevLastModified, nil
}

func modifiedAfter(header string, since time.Time) bool {
	if header == "" {
		return false
	}
	t, err := http.ParseTime(header)
	if err != nil {
		return false
	}
	return t.After(since.Truncate(time.Second))
}

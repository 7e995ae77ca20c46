package resource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aleister1102/filestatus/internal/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")

	tests := []struct {
		name      string
		target    string
		wantLocal bool
		wantErr   bool
	}{
		{name: "plain path", target: path, wantLocal: true},
		{name: "file uri", target: FileURI(path), wantLocal: true},
		{name: "http url", target: "http://example.com/a.txt", wantLocal: false},
		{name: "https url", target: "HTTPS://example.com/a.txt", wantLocal: false},
		{name: "empty", target: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.target, http.DefaultClient, zerolog.Nop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLocal, r.IsLocal())
		})
	}
}

func TestFileURIRoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix paths")
	}
	uri := FileURI("/tmp/some dir/a.txt")
	assert.Equal(t, "file:///tmp/some%20dir/a.txt", uri)

	path, err := PathFromURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/some dir/a.txt", path)

	_, err = PathFromURI("https://example.com/a")
	var validationErr *common.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestLocalFile_HasChanged(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0644))

	f, err := NewLocalFile(path)
	require.NoError(t, err)
	assert.True(t, f.IsLocal())
	assert.Equal(t, FileURI(path), f.URI())

	changed, err := f.HasChanged(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "first probe records a baseline")

	changed, err = f.HasChanged(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	changed, err = f.HasChanged(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.HasChanged(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, os.Remove(path))
	changed, err = f.HasChanged(ctx)
	require.NoError(t, err)
	assert.True(t, changed, "vanished file reports changed")

	changed, err = f.HasChanged(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "vanished file reports changed only once")
}

func TestLocalFile_CancelledContext(t *testing.T) {
	f, err := NewLocalFile(filepath.Join(t.TempDir(), "a.txt"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.HasChanged(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoteFile_HasChanged(t *testing.T) {
	var etag atomic.Value
	etag.Store(`"v1"`)
	var conditional atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		current := etag.Load().(string)
		if r.Header.Get("If-None-Match") != "" {
			conditional.Add(1)
		}
		if r.Header.Get("If-None-Match") == current {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", current)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r, err := NewRemoteFile(server.URL+"/a.txt", server.Client(), zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, r.IsLocal())

	ctx := context.Background()
	changed, err := r.HasChanged(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "first probe records validators")

	changed, err = r.HasChanged(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "304 is unchanged")

	etag.Store(`"v2"`)
	changed, err = r.HasChanged(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.HasChanged(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, int32(3), conditional.Load())
}

func TestLocalFile_ResumeFrom(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	lastChecked := time.Now().Add(-time.Hour)

	edited := filepath.Join(dir, "edited.txt")
	require.NoError(t, os.WriteFile(edited, []byte("one"), 0644))
	untouched := filepath.Join(dir, "untouched.txt")
	require.NoError(t, os.WriteFile(untouched, []byte("one"), 0644))
	before := lastChecked.Add(-time.Minute)
	require.NoError(t, os.Chtimes(untouched, before, before))

	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"modified after last check", edited, true},
		{"modified before last check", untouched, false},
		{"missing", filepath.Join(dir, "missing.txt"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewLocalFile(tt.path)
			require.NoError(t, err)
			f.ResumeFrom(lastChecked)

			changed, err := f.HasChanged(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, changed)

			changed, err = f.HasChanged(ctx)
			require.NoError(t, err)
			assert.False(t, changed, "later probes compare with the baseline")
		})
	}
}

func TestRemoteFile_ResumeFrom(t *testing.T) {
	lastChecked := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var modified atomic.Value
	modified.Store(lastChecked.Add(-time.Hour))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := modified.Load().(time.Time)
		if since, err := http.ParseTime(r.Header.Get("If-Modified-Since")); err == nil && !current.After(since) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Last-Modified", current.Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx := context.Background()
	r, err := NewRemoteFile(server.URL+"/a.txt", server.Client(), zerolog.Nop())
	require.NoError(t, err)
	r.ResumeFrom(lastChecked)

	changed, err := r.HasChanged(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "not modified since the last check")

	modified.Store(lastChecked.Add(time.Hour))
	changed, err = r.HasChanged(ctx)
	require.NoError(t, err)
	assert.True(t, changed, "modified after the last check")

	changed, err = r.HasChanged(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRemoteFile_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r, err := NewRemoteFile(server.URL, server.Client(), zerolog.Nop())
	require.NoError(t, err)

	_, err = r.HasChanged(context.Background())
	var httpErr *common.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
}

func TestNewRemoteFile_NilClient(t *testing.T) {
	_, err := NewRemoteFile("https://example.com", nil, zerolog.Nop())
	assert.Error(t, err)
}

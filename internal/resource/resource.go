package resource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/aleister1102/filestatus/internal/common"
	"github.com/rs/zerolog"
)

// Resource is a file-like entity whose status checkers probe.
type Resource interface {
	URI() string
	IsLocal() bool
	// HasChanged reports whether the resource changed since the previous probe.
	HasChanged(ctx context.Context) (bool, error)
}

// Resumable is a Resource that can continue change detection from the last
// check made by an earlier process, whose in-memory baseline is gone.
type Resumable interface {
	ResumeFrom(lastChecked time.Time)
}

// New builds a Resource for target. http and https URLs become RemoteFile;
// file URIs and plain paths become LocalFile.
func New(target string, client *http.Client, logger zerolog.Logger) (Resource, error) {
	if target == "" {
		return nil, common.NewValidationError("target", target, "target cannot be empty")
	}

	lower := strings.ToLower(target)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return NewRemoteFile(target, client, logger)
	case strings.HasPrefix(lower, "file://"):
		path, err := PathFromURI(target)
		if err != nil {
			return nil, err
		}
		return NewLocalFile(path)
	default:
		return NewLocalFile(target)
	}
}

// FileURI returns the file:// URI of an absolute path
func FileURI(absPath string) string {
	p := filepath.ToSlash(absPath)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}

// PathFromURI returns the local path named by a file:// URI
func PathFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", common.WrapErrorf(err, "invalid resource URI '%s'", uri)
	}
	if u.Scheme != "file" {
		return "", common.NewValidationError("uri", uri, fmt.Sprintf("unsupported scheme '%s'", u.Scheme))
	}

	p := u.Path
	// file:///C:/dir on windows
	if runtime.GOOS == "windows" && len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p), nil
}

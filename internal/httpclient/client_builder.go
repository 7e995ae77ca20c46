package httpclient

import (
	"net/http"
	"time"

	"github.com/aleister1102/filestatus/internal/config"
	"github.com/rs/zerolog"
)

// Builder assembles the client remote resources are probed with.
type Builder struct {
	config HTTPClientConfig
	logger zerolog.Logger
}

func NewBuilder(logger zerolog.Logger) *Builder {
	return &Builder{
		config: DefaultHTTPClientConfig(),
		logger: logger.With().Str("component", "HTTPClient").Logger(),
	}
}

// WithRemoteConfig copies the remote_config section over the defaults.
// Zero values in cfg keep the default.
func (b *Builder) WithRemoteConfig(cfg config.RemoteConfig) *Builder {
	if cfg.HTTPTimeoutSeconds > 0 {
		b.config.Timeout = cfg.HTTPTimeout()
	}
	if cfg.UserAgent != "" {
		b.config.UserAgent = cfg.UserAgent
	}
	b.config.InsecureSkipVerify = cfg.InsecureSkipVerify
	b.config.EnableHTTP2 = cfg.EnableHTTP2
	return b
}

func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

func (b *Builder) WithUserAgent(userAgent string) *Builder {
	b.config.UserAgent = userAgent
	return b
}

func (b *Builder) WithHTTP2(enabled bool) *Builder {
	b.config.EnableHTTP2 = enabled
	return b
}

// WithMaxRedirects caps followed redirects. Zero stops at the first
// redirect response, which is then returned as-is.
func (b *Builder) WithMaxRedirects(n int) *Builder {
	b.config.MaxRedirects = n
	return b
}

func (b *Builder) Config() HTTPClientConfig {
	return b.config
}

func (b *Builder) Build() (*http.Client, error) {
	return NewHTTPClient(b.config, b.logger)
}

package config

import "time"

// RemoteConfig defines the HTTP client used to probe remote resources
type RemoteConfig struct {
	HTTPTimeoutSeconds int    `json:"http_timeout_seconds,omitempty" yaml:"http_timeout_seconds,omitempty" validate:"min=1"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	EnableHTTP2        bool   `json:"enable_http2" yaml:"enable_http2"`
	UserAgent          string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
}

// NewDefaultRemoteConfig creates default remote configuration
func NewDefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		HTTPTimeoutSeconds: DefaultRemoteHTTPTimeoutSeconds,
		InsecureSkipVerify: false,
		EnableHTTP2:        true,
		UserAgent:          DefaultRemoteUserAgent,
	}
}

// HTTPTimeout returns the request timeout as a duration
func (c RemoteConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

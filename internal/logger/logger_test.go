package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/aleister1102/filestatus/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	log, err := New(config.NewDefaultLogConfig())
	require.NoError(t, err)
	defer log.Close()

	opts := log.Options()
	assert.Equal(t, zerolog.InfoLevel, opts.Level)
	assert.Equal(t, FormatConsole, opts.Format)
	assert.True(t, opts.Console)
	assert.Empty(t, opts.File)
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	cfg := config.NewDefaultLogConfig()
	cfg.Level = "loud"
	_, err := New(cfg)
	assert.ErrorContains(t, err, `invalid log level "loud"`)
}

func TestOptionsFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		want    Options
		wantErr bool
	}{
		{
			name: "upper case level and json",
			cfg:  config.LogConfig{Level: "WARN", Format: "JSON", MaxSizeMB: 10, MaxBackups: 2, MaxAgeDays: 7, Compress: true},
			want: Options{
				Level:    zerolog.WarnLevel,
				Format:   FormatJSON,
				Console:  true,
				Rotation: Rotation{MaxSizeMB: 10, MaxBackups: 2, MaxAgeDays: 7, Compress: true},
			},
		},
		{
			name: "quiet with file keeps default size",
			cfg:  config.LogConfig{Format: "text", File: "logs/app.log", Quiet: true},
			want: Options{
				Level:    zerolog.InfoLevel,
				Format:   FormatText,
				File:     "logs/app.log",
				Rotation: Rotation{MaxSizeMB: config.DefaultLogMaxSizeMB},
			},
		},
		{
			name:    "unknown format",
			cfg:     config.LogConfig{Format: "xml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OptionsFromConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuilder_FileLoggingJSON(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "test.log")

	log, err := NewBuilder().
		WithLevel(zerolog.DebugLevel).
		WithFormat(FormatJSON).
		WithFile(logFile, Rotation{MaxSizeMB: 1}).
		WithConsole(false).
		Build()
	require.NoError(t, err)

	zl := log.Zerolog()
	zl.Debug().Str("component", "Test").Msg("this is a test")
	require.NoError(t, log.Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"level":"debug"`)
	assert.Contains(t, string(content), `"message":"this is a test"`)
	assert.Contains(t, string(content), `"component":"Test"`)
}

func TestBuilder_TextConsoleHasNoColour(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewBuilder().WithFormat(FormatText).WithConsoleOutput(&buf).Build()
	require.NoError(t, err)

	zl := log.Zerolog()
	zl.Info().Msg("plain line")

	assert.Contains(t, buf.String(), "plain line")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestBuilder_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewBuilder().WithLevel(zerolog.WarnLevel).WithFormat(FormatJSON).WithConsoleOutput(&buf).Build()
	require.NoError(t, err)

	zl := log.Zerolog()
	zl.Info().Msg("hidden")
	zl.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestBuilder_Errors(t *testing.T) {
	_, err := NewBuilder().WithConsole(false).Build()
	assert.ErrorContains(t, err, "no log output enabled")

	_, err = NewBuilder().WithFile(filepath.Join(t.TempDir(), "a.log"), Rotation{}).Build()
	assert.ErrorContains(t, err, "max_size_mb")
}

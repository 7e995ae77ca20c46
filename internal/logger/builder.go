package logger

import (
	"io"
	stdlog "log"
	"os"

	"github.com/aleister1102/filestatus/internal/common"
	"github.com/rs/zerolog"
)

// Builder assembles a Logger step by step.
type Builder struct {
	opts    Options
	console io.Writer
}

func NewBuilder() *Builder {
	return &Builder{opts: defaultOptions(), console: os.Stderr}
}

func (b *Builder) WithOptions(opts Options) *Builder {
	b.opts = opts
	return b
}

func (b *Builder) WithLevel(level zerolog.Level) *Builder {
	b.opts.Level = level
	return b
}

func (b *Builder) WithFormat(format Format) *Builder {
	b.opts.Format = format
	return b
}

// WithFile enables a rotating log file at path.
func (b *Builder) WithFile(path string, rotation Rotation) *Builder {
	b.opts.File = path
	b.opts.Rotation = rotation
	return b
}

func (b *Builder) WithConsole(enabled bool) *Builder {
	b.opts.Console = enabled
	return b
}

// WithConsoleOutput redirects console output, stderr by default.
func (b *Builder) WithConsoleOutput(w io.Writer) *Builder {
	b.console = w
	return b
}

// Build creates the logger and routes the standard library log package through it.
func (b *Builder) Build() (*Logger, error) {
	var (
		writers []io.Writer
		closers []io.Closer
	)

	if b.opts.Console {
		writers = append(writers, formatWriter(b.console, b.opts.Format, true))
	}

	if b.opts.File != "" {
		if b.opts.Rotation.MaxSizeMB <= 0 {
			return nil, common.NewValidationError("max_size_mb", b.opts.Rotation.MaxSizeMB, "must be positive when a log file is set")
		}
		file, err := rotatingFile(b.opts.File, b.opts.Rotation)
		if err != nil {
			return nil, common.WrapErrorf(err, "failed to prepare log file %s", b.opts.File)
		}
		writers = append(writers, formatWriter(file, b.opts.Format, false))
		closers = append(closers, file)
	}

	if len(writers) == 0 {
		return nil, common.NewError("no log output enabled: console is quiet and no file is set")
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(b.opts.Level).
		With().
		Timestamp().
		Logger()

	stdlog.SetOutput(zl)
	stdlog.SetFlags(0)

	return &Logger{zerolog: zl, opts: b.opts, closers: closers}, nil
}

package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/aleister1102/filestatus/internal/common"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// FileStoreOptions holds options for creating a FileStore
type FileStoreOptions struct {
	Logger      zerolog.Logger
	HotReload   bool
	ReloadDelay time.Duration
}

// DefaultFileStoreOptions returns default options for FileStore
func DefaultFileStoreOptions() FileStoreOptions {
	return FileStoreOptions{
		Logger:      zerolog.Nop(),
		HotReload:   true,
		ReloadDelay: 500 * time.Millisecond,
	}
}

// FileStore is a MemoryStore populated from a YAML, TOML or JSON file.
// Nested tables are flattened into dotted keys. With hot reload enabled the
// file is watched and observers are notified for every key that changed.
type FileStore struct {
	*MemoryStore

	path        string
	logger      zerolog.Logger
	watcher     *fsnotify.Watcher
	reloadDelay time.Duration
	stopChan    chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

// NewFileStore loads path and, if requested, prepares the hot-reload watcher.
// Call Start to begin watching.
func NewFileStore(path string, opts FileStoreOptions) (*FileStore, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, common.WrapError(err, "failed to resolve prefs path")
	}

	fs := &FileStore{
		MemoryStore: NewMemoryStore(opts.Logger),
		path:        absPath,
		logger:      opts.Logger.With().Str("component", "PrefsFileStore").Str("path", absPath).Logger(),
		reloadDelay: opts.ReloadDelay,
		stopChan:    make(chan struct{}),
	}

	if err := fs.Reload(); err != nil {
		return nil, err
	}

	if opts.HotReload {
		if err := fs.setupFileWatcher(); err != nil {
			fs.logger.Warn().Err(err).Msg("Failed to setup prefs watcher, hot-reload disabled")
		}
	}

	return fs, nil
}

// Path returns the absolute path of the backing file
func (fs *FileStore) Path() string {
	return fs.path
}

// Reload re-reads the file and notifies observers of changed keys
func (fs *FileStore) Reload() error {
	values, err := LoadPrefsFile(fs.path)
	if err != nil {
		return err
	}

	changed, err := fs.Replace(values)
	if err != nil {
		return err
	}
	if len(changed) > 0 {
		fs.logger.Info().Strs("changed_keys", changed).Msg("Preferences reloaded")
	}
	return nil
}

// Start runs the hot-reload loop in the background until ctx is done or Close is called
func (fs *FileStore) Start(ctx context.Context) {
	if fs.watcher == nil {
		return
	}

	fs.wg.Add(1)
	go fs.hotReloadLoop(ctx)
}

// Close stops the watcher and makes the store unavailable
func (fs *FileStore) Close() error {
	var err error
	fs.closeOnce.Do(func() {
		close(fs.stopChan)
		if fs.watcher != nil {
			err = fs.watcher.Close()
		}
		fs.wg.Wait()
		_ = fs.MemoryStore.Close()
	})
	return err
}

// setupFileWatcher watches the directory holding the prefs file so that
// editors replacing the file by rename are still seen
func (fs *FileStore) setupFileWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(fs.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch prefs directory '%s': %w", dir, err)
	}

	fs.watcher = watcher
	fs.logger.Debug().Str("directory", dir).Msg("Prefs watcher setup for hot-reload")
	return nil
}

func (fs *FileStore) hotReloadLoop(ctx context.Context) {
	defer fs.wg.Done()

	reloadTimer := time.NewTimer(0)
	if !reloadTimer.Stop() {
		<-reloadTimer.C
	}
	defer reloadTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			fs.logger.Debug().Msg("Prefs hot-reload stopped due to context cancellation")
			return

		case <-fs.stopChan:
			fs.logger.Debug().Msg("Prefs hot-reload stopped")
			return

		case event, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fs.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				fs.logger.Debug().Str("op", event.Op.String()).Msg("Prefs file change detected")
				reloadTimer.Reset(fs.reloadDelay)
			}

		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			fs.logger.Error().Err(err).Msg("Prefs watcher error")

		case <-reloadTimer.C:
			if err := fs.Reload(); err != nil {
				fs.logger.Error().Err(err).Msg("Failed to reload preferences, keeping previous values")
			}
		}
	}
}

// LoadPrefsFile reads a prefs file and returns its values flattened into dotted keys.
// The format is chosen by extension: .yaml/.yml, .toml, otherwise JSON.
func LoadPrefsFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.WrapErrorf(err, "failed to read prefs file '%s'", path)
	}

	raw := make(map[string]any)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		_, err = toml.Decode(string(data), &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, common.NewError("failed to parse prefs file '%s': %w", path, err)
	}

	flat := make(map[string]any)
	flatten("", raw, flat)
	return flat, nil
}

// flatten turns nested tables into dotted keys; arrays and scalars are kept as values
func flatten(prefix string, in map[string]any, out map[string]any) {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		if nested, ok := in[k].(map[string]any); ok {
			flatten(full, nested, out)
			continue
		}
		out[full] = in[k]
	}
}

package prefs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrefsFile_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "prefs.yaml",
			content: `
diskStatusEnabled: true
diskBackgroundMinutes: 5
git:
  executable: /usr/bin/git
`,
		},
		{
			name: "toml",
			file: "prefs.toml",
			content: `
diskStatusEnabled = true
diskBackgroundMinutes = 5

[git]
executable = "/usr/bin/git"
`,
		},
		{
			name:    "json",
			file:    "prefs.json",
			content: `{"diskStatusEnabled": true, "diskBackgroundMinutes": 5, "git": {"executable": "/usr/bin/git"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			values, err := LoadPrefsFile(path)
			require.NoError(t, err)

			assert.Equal(t, true, values["diskStatusEnabled"])
			assert.Equal(t, "/usr/bin/git", values["git.executable"])
			assert.Len(t, values, 3)

			s := NewMemoryStore(zerolog.Nop())
			_, err = s.Replace(values)
			require.NoError(t, err)
			minutes, err := s.GetLong("diskBackgroundMinutes")
			require.NoError(t, err)
			assert.Equal(t, int64(5), minutes)
		})
	}
}

func TestLoadPrefsFile_Errors(t *testing.T) {
	_, err := LoadPrefsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err = LoadPrefsFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse prefs file")
}

func TestFileStore_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("diskStatusEnabled: true\n"), 0644))

	store, err := NewFileStore(path, FileStoreOptions{Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer store.Close()

	o := &recordingObserver{}
	require.NoError(t, store.AddObserver("diskStatusEnabled", o))

	require.NoError(t, os.WriteFile(path, []byte("diskStatusEnabled: false\n"), 0644))
	require.NoError(t, store.Reload())

	enabled, err := store.GetBool("diskStatusEnabled")
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.Equal(t, []string{"diskStatusEnabled"}, o.Keys())
}

func TestFileStore_HotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	require.NoError(t, os.WriteFile(path, []byte("diskBackgroundMinutes = 15\n"), 0644))

	store, err := NewFileStore(path, FileStoreOptions{
		Logger:      zerolog.Nop(),
		HotReload:   true,
		ReloadDelay: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.Start(ctx)

	o := &recordingObserver{}
	require.NoError(t, store.AddObserver("diskBackgroundMinutes", o))

	require.NoError(t, os.WriteFile(path, []byte("diskBackgroundMinutes = 5\n"), 0644))

	require.Eventually(t, func() bool {
		minutes, err := store.GetLong("diskBackgroundMinutes")
		return err == nil && minutes == 5
	}, 5*time.Second, 20*time.Millisecond)
	assert.NotEmpty(t, o.Keys())

	require.NoError(t, store.Close())
	_, err = store.GetLong("diskBackgroundMinutes")
	assert.Error(t, err)
}

func TestFileStore_KeepsValuesOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"gitEnabled": true}`), 0644))

	store, err := NewFileStore(path, FileStoreOptions{Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0644))
	assert.Error(t, store.Reload())

	enabled, err := store.GetBool("gitEnabled")
	require.NoError(t, err)
	assert.True(t, enabled)
}

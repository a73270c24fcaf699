package history_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/cmdpool/internal/history"
)

func newFile(t *testing.T) (*history.File, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "history")
	h, err := history.NewFile(history.FileConfig{Path: path})
	require.NoError(t, err)
	return h, path
}

func TestFileAppendAndLoad(t *testing.T) {
	tests := map[string]struct {
		commands   []string
		limit      int
		expEntries []string
		expErr     bool
	}{
		"Missing file should be an empty history.": {
			expEntries: []string{},
		},
		"Commands should be loaded oldest first.": {
			commands:   []string{"echo a", "ls -l", "sleep 1"},
			expEntries: []string{"echo a", "ls -l", "sleep 1"},
		},
		"Limit should return the most recent commands.": {
			commands:   []string{"echo a", "ls -l", "sleep 1"},
			limit:      2,
			expEntries: []string{"ls -l", "sleep 1"},
		},
		"Limit bigger than the history should return everything.": {
			commands:   []string{"echo a"},
			limit:      10,
			expEntries: []string{"echo a"},
		},
		"Line breaks should be flattened.": {
			commands:   []string{"echo a\necho b", "echo c\r\nd"},
			expEntries: []string{"echo a echo b", "echo c d"},
		},
		"Empty commands should be kept.": {
			commands:   []string{"", "echo"},
			expEntries: []string{"", "echo"},
		},
		"Negative limit should fail.": {
			limit:  -1,
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			h, _ := newFile(t)
			for _, c := range test.commands {
				require.NoError(t, h.Append(c))
			}

			got, err := h.Load(test.limit)
			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expEntries, got)
		})
	}
}

func TestFileConcurrentAppend(t *testing.T) {
	h, path := newFile(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.Append("echo hello"))
		}()
	}
	wg.Wait()

	got, err := h.Load(0)
	require.NoError(t, err)
	assert.Len(t, got, 50)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestNewFileRequiresPath(t *testing.T) {
	_, err := history.NewFile(history.FileConfig{})
	assert.Error(t, err)
}

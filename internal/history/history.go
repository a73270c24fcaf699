package history

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/slok/cmdpool/internal/log"
)

const maxLineBytes = 1024 * 1024

// FileConfig is the configuration for the file history.
type FileConfig struct {
	Path   string
	Logger log.Logger
}

func (c *FileConfig) defaults() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "history.File"})
	return nil
}

// File is a newline-delimited command history, one command per line, oldest first.
type File struct {
	path   string
	mu     sync.Mutex
	logger log.Logger
}

// NewFile returns a history backed by a file. The file is created on the first append.
func NewFile(cfg FileConfig) (*File, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &File{path: cfg.Path, logger: cfg.Logger}, nil
}

// Append adds a command at the end of the history. Line breaks are replaced by
// spaces so every entry stays in a single line.
func (f *File) Append(command string) error {
	line := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(command)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("could not create history directory: %w", err)
	}

	fd, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("could not open history file: %w", err)
	}
	defer fd.Close()

	if _, err := fd.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("could not write history file: %w", err)
	}

	return nil
}

// Load returns the last limit commands (all of them if limit is 0), oldest first.
// A missing file is an empty history.
func (f *File) Load(limit int) ([]string, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit can't be negative")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	fd, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("could not open history file: %w", err)
	}
	defer fd.Close()

	entries := []string{}
	sc := bufio.NewScanner(fd)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		entries = append(entries, sc.Text())
		if limit > 0 && len(entries) > limit {
			entries = entries[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("could not read history file: %w", err)
	}

	f.logger.Debugf("Loaded %d history entries", len(entries))
	return entries, nil
}

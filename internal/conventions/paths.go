package conventions

import (
	"path/filepath"

	"k8s.io/client-go/util/homedir"
)

const (
	// DefaultDataDir is the default cmdpool data directory name (relative to home).
	DefaultDataDir = ".cmdpool"

	// ArchiveDBFile is the SQLite task archive filename.
	ArchiveDBFile = "cmdpool.db"
	// HistoryFile is the command history filename.
	HistoryFile = "history"
	// ConfigFile is the optional configuration filename.
	ConfigFile = "config.yaml"
)

// DataDir returns the cmdpool data directory of the current user.
func DataDir() string {
	return filepath.Join(homedir.HomeDir(), DefaultDataDir)
}

// ArchiveDBPath returns the path to the archive database inside a data directory.
func ArchiveDBPath(dataDir string) string {
	return filepath.Join(dataDir, ArchiveDBFile)
}

// HistoryPath returns the path to the history file inside a data directory.
func HistoryPath(dataDir string) string {
	return filepath.Join(dataDir, HistoryFile)
}

// ConfigPath returns the path to the config file inside a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, ConfigFile)
}

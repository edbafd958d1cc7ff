// Package dotdir manages the .gravity/ and ~/.gravity directories, which
// hold the config file and the vector store snapshots.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the gravity directory.
	dirName = ".gravity"

	// snapshotsDir holds the vector store JSON snapshots.
	snapshotsDir = "snapshots"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .gravity/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.gravity/ dir
//  3. Home ~/.gravity/ dir
//  4. If none found, attempt to create ~/.gravity/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating gravity directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// SnapshotsDir resolves (and creates) the snapshot directory beneath the
// target .gravity/ directory.
func (m *Manager) SnapshotsDir(overrideDir string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(target, snapshotsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating snapshots directory %s: %w", dir, err)
	}

	return dir, nil
}

// localDirExists checks whether a .gravity/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}

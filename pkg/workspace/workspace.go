// Package workspace resolves the process's system directory and the
// per-agent working directories, and provides scoped filesystem
// helpers used by functions that shell out into a repository.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SysDir returns the typedai system directory: TYPEDAI_SYS_DIR when
// set, else ~/.typedai, else ./.typedai when the home directory is
// unknown.
func SysDir() string {
	if dir := os.Getenv("TYPEDAI_SYS_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".typedai"
	}
	return filepath.Join(home, ".typedai")
}

// AgentDir returns (and creates) the working directory for an agent.
func AgentDir(agentID string) (string, error) {
	dir := filepath.Join(SysDir(), "agents", agentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create agent dir: %w", err)
	}
	return dir, nil
}

// InDir runs fn with the process working directory set to dir. The
// previous working directory is restored on every exit path, so nested
// scopes do not leak cwd.
func InDir(dir string, fn func() error) (err error) {
	prev, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to read working directory: %w", err)
	}
	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("failed to enter %s: %w", dir, err)
	}
	defer func() {
		if restoreErr := os.Chdir(prev); restoreErr != nil && err == nil {
			err = fmt.Errorf("failed to restore working directory: %w", restoreErr)
		}
	}()
	return fn()
}

// gitRoots caches workingDir to repository-root lookups process-wide.
var gitRoots sync.Map

// GitRoot returns the repository root containing dir, walking up until
// a .git entry is found. Results are cached for the process lifetime.
func GitRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if cached, ok := gitRoots.Load(abs); ok {
		return cached.(string), nil
	}

	current := abs
	for {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			gitRoots.Store(abs, current)
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no git repository found above %s", abs)
		}
		current = parent
	}
}

// SafePathSegment sanitizes an identifier for use as a directory name.
func SafePathSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

package files

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FindUp looks for name in dir and its parents, returning the first path found or "" if there is none.
func FindUp(name, dir string) (string, error) {
	curDir := dir
	for {
		candidate := filepath.Join(curDir, name)
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		newDir := filepath.Dir(curDir)
		if newDir == curDir {
			return "", nil
		}
		curDir = newDir
	}
}

// ResolveExecutable finds the executable for name.
// A name containing a path separator is used as-is. Otherwise the PATH is searched,
// then dir and its parents.
func ResolveExecutable(name, dir string) (string, error) {
	if name == "" {
		return "", errors.New("empty executable name")
	}
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		info, err := os.Stat(name)
		if err != nil {
			return "", fmt.Errorf("executable %q: %w", name, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("executable %q is a directory", name)
		}
		return filepath.Abs(name)
	}

	path, err := exec.LookPath(name)
	if err == nil {
		return path, nil
	}

	found, findErr := FindUp(name, dir)
	if findErr != nil {
		return "", fmt.Errorf("searching for %q above %s: %w", name, dir, findErr)
	}
	if found == "" {
		return "", fmt.Errorf("executable %q not found in PATH or above %s: %w", name, dir, err)
	}
	return found, nil
}

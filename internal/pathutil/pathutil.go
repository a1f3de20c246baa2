// Package pathutil locates depcorr's working directories and keeps file
// writes inside them.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirName is the per-project and per-user state directory.
const DirName = ".depcorr"

// ProjectDir returns <root>/.depcorr.
func ProjectDir(root string) string {
	return filepath.Join(root, DirName)
}

// HomeDir returns ~/.depcorr.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// RedactPath shortens a path to .../<parent>/<base> for error messages.
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// OutputDirs lists where exports and metric dumps may be written:
// the project root and ~/.depcorr.
func OutputDirs(root string) ([]string, error) {
	home, err := HomeDir()
	if err != nil {
		return nil, err
	}
	return []string{root, home}, nil
}

// ValidatePath checks that path resolves inside one of dirs. Symlinks are
// resolved on the deepest existing ancestor so files that do not exist yet
// can still be checked.
func ValidatePath(path string, dirs []string) error {
	switch {
	case path == "":
		return errors.New("path validation failed: path is empty")
	case len(dirs) == 0:
		return errors.New("path validation failed: no allowed directories configured")
	case strings.ContainsRune(path, 0):
		return errors.New("path validation failed: path contains null byte")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	parent, err := resolve(filepath.Dir(abs))
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	target := filepath.Join(parent, filepath.Base(abs))

	for _, dir := range dirs {
		dirAbs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		resolved, err := resolve(dirAbs)
		if err != nil {
			continue
		}
		if within(target, resolved) {
			return nil
		}
	}
	return fmt.Errorf("path validation failed: %q is outside allowed directories", RedactPath(abs))
}

func resolve(dir string) (string, error) {
	if r, err := filepath.EvalSymlinks(dir); err == nil {
		return r, nil
	}
	up := filepath.Dir(dir)
	if up == dir {
		return "", fmt.Errorf("cannot resolve %s", RedactPath(dir))
	}
	r, err := resolve(up)
	if err != nil {
		return "", err
	}
	return filepath.Join(r, filepath.Base(dir)), nil
}

func within(path, base string) bool {
	return path == base || strings.HasPrefix(path, base+string(os.PathSeparator))
}

package paths

import (
	"os"
	"path/filepath"
	"strings"
)

func ReplaceTilde(path string) string {
	home := os.Getenv("HOME")
	if path == "~" {
		return home
	} else if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// Resolve expands a leading tilde and makes path absolute against the
// current working directory, so that re-executed stages agree on it.
func Resolve(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return filepath.Abs(ReplaceTilde(path))
}

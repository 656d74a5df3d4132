package fsutil

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conn-castle/shovel/internal/messages"
)

// SafeJoin joins rel onto base and rejects results that escape base.
// Absolute rel paths and volume names are rejected outright.
func SafeJoin(base string, rel string) (string, error) {
	if rel == "" {
		return filepath.Clean(base), nil
	}
	slashed := filepath.ToSlash(rel)
	if filepath.IsAbs(rel) || strings.HasPrefix(slashed, "/") || filepath.VolumeName(rel) != "" {
		return "", fmt.Errorf(messages.FSPathEscapesFmt, rel, base)
	}
	cleanBase := filepath.Clean(base)
	joined := filepath.Join(cleanBase, filepath.FromSlash(slashed))
	if !IsWithin(cleanBase, joined) {
		return "", fmt.Errorf(messages.FSPathEscapesFmt, rel, base)
	}
	return joined, nil
}

// IsWithin reports whether path equals base or is nested below it.
func IsWithin(base string, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(path))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

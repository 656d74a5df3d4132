package manifest

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/conn-castle/shovel/internal/messages"
)

// FilenameFromURL returns the file name a download should be stored under:
// the "#/name" fragment when present, otherwise the last path segment.
func FilenameFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf(messages.ManifestURLParseFmt, raw, err)
	}
	if u.Scheme == "" || (u.Host == "" && u.Scheme != "file") {
		return "", fmt.Errorf(messages.ManifestURLAbsoluteFmt, raw)
	}
	if name, ok := strings.CutPrefix(u.Fragment, "/"); ok && name != "" {
		return path.Base(name), nil
	}
	if u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return "", fmt.Errorf(messages.ManifestURLFilenameFmt, raw)
	}
	return path.Base(u.Path), nil
}

// StripRename removes a "#/name" fragment used only to rename the download.
func StripRename(raw string) string {
	if i := strings.Index(raw, "#/"); i >= 0 {
		return raw[:i]
	}
	return raw
}

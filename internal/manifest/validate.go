package manifest

import (
	"strings"

	"github.com/conn-castle/shovel/internal/messages"
)

// validate checks cross-field invariants on a decoded manifest.
func validate(m *Manifest) *Error {
	if strings.TrimSpace(m.Version) == "" {
		return newError("version", KindInvalid, messages.ManifestVersionEmpty)
	}
	if bad := reInvalidVersion.FindString(m.Version); bad != "" {
		return newError("version", KindInvalid, messages.ManifestVersionCharFmt, m.Version, bad)
	}

	if perr := validateDownloads(m); perr != nil {
		return perr
	}

	if perr := validateScripts(m.Common, ""); perr != nil {
		return perr
	}
	for _, arch := range m.Architectures() {
		if perr := validateScripts(*m.Architecture[arch], joinPath("architecture", string(arch))); perr != nil {
			return perr
		}
	}
	return nil
}

// validateDownloads requires at least one URL for every architecture the
// manifest declares (or for the common scope when none is declared), and
// exactly one well-formed hash per URL.
func validateDownloads(m *Manifest) *Error {
	if len(m.Common.URL) > 0 || len(m.Architecture) == 0 {
		if len(m.Common.URL) == 0 {
			return newError("url", KindMissing, messages.ManifestFieldRequired)
		}
		if perr := validateScope(m.Common.URL, "url", m.Common.Hash, "hash"); perr != nil {
			return perr
		}
	}
	for _, arch := range m.Architectures() {
		prefix := joinPath("architecture", string(arch))
		over := m.Architecture[arch]
		urls, urlPath := over.URL, joinPath(prefix, "url")
		if urls == nil {
			urls, urlPath = m.Common.URL, "url"
		}
		if len(urls) == 0 {
			return newError(joinPath(prefix, "url"), KindMissing, messages.ManifestFieldRequired)
		}
		hashes, hashPath := over.Hash, joinPath(prefix, "hash")
		if hashes == nil {
			hashes, hashPath = m.Common.Hash, "hash"
		}
		if perr := validateScope(urls, urlPath, hashes, hashPath); perr != nil {
			return perr
		}
	}
	return nil
}

func validateScope(urls []string, urlPath string, hashes []string, hashPath string) *Error {
	for i, u := range urls {
		if _, err := FilenameFromURL(u); err != nil {
			return newError(indexPath(urlPath, i), KindInvalid, "%s", err.Error())
		}
	}
	if len(hashes) != len(urls) {
		return newError(hashPath, KindMismatch, messages.ManifestHashCountFmt, len(urls), len(hashes))
	}
	for i, h := range hashes {
		if _, err := ParseHash(h); err != nil {
			return newError(indexPath(hashPath, i), KindInvalid, "%s", err.Error())
		}
	}
	return nil
}

type scriptField struct {
	key   string
	lines []string
}

// validateScripts requires hook bodies to be plain text. They are not
// executed or interpreted here.
func validateScripts(f Fields, prefix string) *Error {
	scripts := []scriptField{
		{"pre_install", f.PreInstall},
		{"post_install", f.PostInstall},
		{"pre_uninstall", f.PreUninstall},
		{"post_uninstall", f.PostUninstall},
	}
	if f.Installer != nil {
		scripts = append(scripts, scriptField{"installer.script", f.Installer.Script})
	}
	if f.Uninstaller != nil {
		scripts = append(scripts, scriptField{"uninstaller.script", f.Uninstaller.Script})
	}
	for _, script := range scripts {
		for i, line := range script.lines {
			if strings.ContainsRune(line, 0) {
				return newError(indexPath(joinPath(prefix, script.key), i), KindInvalid, messages.ManifestScriptNUL)
			}
		}
	}
	return nil
}

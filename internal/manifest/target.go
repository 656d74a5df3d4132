package manifest

import (
	"fmt"

	"github.com/conn-castle/shovel/internal/messages"
)

// Target is a manifest resolved for one architecture: per-architecture
// fields with common fields as fallback.
type Target struct {
	Arch          Arch
	URLs          []string
	Hashes        []Hash
	Bins          []Bin
	EnvAddPath    []string
	EnvSet        map[string]string
	ExtractDir    []string
	ExtractTo     []string
	Installer     *Installer
	Uninstaller   *Installer
	PreInstall    []string
	PostInstall   []string
	PreUninstall  []string
	PostUninstall []string
	Shortcuts     []Shortcut
}

// Supports reports whether m has downloads for arch.
func (m *Manifest) Supports(arch Arch) bool {
	return len(m.fields(arch).URL) > 0
}

// Compatible returns the first architecture in preferred that m supports.
func (m *Manifest) Compatible(preferred []Arch) (Arch, bool) {
	for _, arch := range preferred {
		if m.Supports(arch) {
			return arch, true
		}
	}
	return "", false
}

// Target resolves m for arch.
func (m *Manifest) Target(arch Arch) (Target, error) {
	f := m.fields(arch)
	if len(f.URL) == 0 {
		return Target{}, fmt.Errorf(messages.ManifestArchUnsupportedFmt, m.Name, arch)
	}
	hashes := make([]Hash, 0, len(f.Hash))
	for _, raw := range f.Hash {
		h, err := ParseHash(raw)
		if err != nil {
			return Target{}, err
		}
		hashes = append(hashes, h)
	}
	return Target{
		Arch:          arch,
		URLs:          f.URL,
		Hashes:        hashes,
		Bins:          f.Bin,
		EnvAddPath:    f.EnvAddPath,
		EnvSet:        f.EnvSet,
		ExtractDir:    f.ExtractDir,
		ExtractTo:     f.ExtractTo,
		Installer:     f.Installer,
		Uninstaller:   f.Uninstaller,
		PreInstall:    f.PreInstall,
		PostInstall:   f.PostInstall,
		PreUninstall:  f.PreUninstall,
		PostUninstall: f.PostUninstall,
		Shortcuts:     f.Shortcuts,
	}, nil
}

// fields merges the architecture override for arch over the common fields.
func (m *Manifest) fields(arch Arch) Fields {
	out := m.Common
	over, ok := m.Architecture[arch]
	if !ok || over == nil {
		return out
	}
	if over.URL != nil {
		out.URL = over.URL
	}
	if over.Hash != nil {
		out.Hash = over.Hash
	}
	if over.Bin != nil {
		out.Bin = over.Bin
	}
	if over.EnvAddPath != nil {
		out.EnvAddPath = over.EnvAddPath
	}
	if over.EnvSet != nil {
		out.EnvSet = over.EnvSet
	}
	if over.ExtractDir != nil {
		out.ExtractDir = over.ExtractDir
	}
	if over.ExtractTo != nil {
		out.ExtractTo = over.ExtractTo
	}
	if over.Installer != nil {
		out.Installer = over.Installer
	}
	if over.Uninstaller != nil {
		out.Uninstaller = over.Uninstaller
	}
	if over.PreInstall != nil {
		out.PreInstall = over.PreInstall
	}
	if over.PostInstall != nil {
		out.PostInstall = over.PostInstall
	}
	if over.PreUninstall != nil {
		out.PreUninstall = over.PreUninstall
	}
	if over.PostUninstall != nil {
		out.PostUninstall = over.PostUninstall
	}
	if over.Shortcuts != nil {
		out.Shortcuts = over.Shortcuts
	}
	return out
}

// Package manifest models Scoop-compatible package manifests and validates
// them. Parsing is pure and deterministic: the same bytes always produce the
// same Manifest or the same error path.
package manifest

import (
	"encoding/json"
	"path"
	"strings"
)

// Manifest describes one installable package version.
type Manifest struct {
	// Name is not part of the JSON document; it comes from the file name.
	Name        string
	Version     string
	Description string
	Homepage    string
	License     License
	Depends     []Dependency
	Suggest     map[string][]string
	Notes       []string
	Persist     []PersistEntry
	PSModule    string
	InnoSetup   bool
	Checkver    json.RawMessage
	Autoupdate  json.RawMessage

	// Common holds fields that apply to every architecture unless overridden.
	Common       Fields
	Architecture map[Arch]*Fields

	// Raw is the exact document the manifest was parsed from.
	Raw []byte
}

// Fields are the manifest fields that may be set per architecture.
type Fields struct {
	URL           []string
	Hash          []string
	Bin           []Bin
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

// License is a software license, written either as a plain identifier or as
// {"identifier", "url"}.
type License struct {
	Identifier string
	URL        string
}

func (l License) String() string {
	switch {
	case l.Identifier != "" && l.URL != "":
		return l.Identifier + " (" + l.URL + ")"
	case l.Identifier != "":
		return l.Identifier
	case l.URL != "":
		return l.URL
	}
	return "Unknown"
}

// Bin is an executable exposed through a shim.
type Bin struct {
	Executable string
	Alias      string
	Args       []string
}

// ShimName is the name the shim is created under: the alias, or the
// executable's file name without its extension.
func (b Bin) ShimName() string {
	if b.Alias != "" {
		return b.Alias
	}
	base := path.Base(strings.ReplaceAll(b.Executable, `\`, "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// Shortcut is a start-menu shortcut: [executable, name, (args), (icon)].
type Shortcut struct {
	Executable string
	Name       string
	Args       string
	Icon       string
}

// Installer is an installer or uninstaller declaration.
type Installer struct {
	File   string
	Script []string
	Args   []string
	Keep   bool
}

// PersistEntry is a path kept across upgrades. Target differs from Source
// when the entry was written as [source, target].
type PersistEntry struct {
	Source string
	Target string
}

// IsNightly reports whether m tracks a rolling build.
func (m *Manifest) IsNightly() bool {
	return m.Version == "nightly"
}

// Architectures returns the architectures m declares, in validation order.
func (m *Manifest) Architectures() []Arch {
	var out []Arch
	for _, arch := range Arches {
		if _, ok := m.Architecture[arch]; ok {
			out = append(out, arch)
		}
	}
	return out
}

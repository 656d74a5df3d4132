package manifest

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	hashA = strings.Repeat("a", 64)
	hashB = strings.Repeat("b", 64)
)

func requireManifestError(t *testing.T, err error, path string, kind ErrorKind) *Error {
	t.Helper()
	require.Error(t, err)
	var merr *Error
	require.True(t, errors.As(err, &merr), "expected *manifest.Error, got %T: %v", err, err)
	assert.Equal(t, path, merr.Path, merr.Error())
	assert.Equal(t, kind, merr.Kind, merr.Error())
	assert.ErrorIs(t, err, ErrInvalid)
	return merr
}

func TestParseEcosystemManifest(t *testing.T) {
	raw, err := os.ReadFile("testdata/7zip.json")
	require.NoError(t, err)

	m, err := ParseNamed("7zip", raw)
	require.NoError(t, err)

	assert.Equal(t, "7zip", m.Name)
	assert.Equal(t, "23.01", m.Version)
	assert.Equal(t, "LGPL-2.1-or-later (https://www.7-zip.org/license.txt)", m.License.String())
	assert.Len(t, m.Notes, 1)
	assert.Equal(t, []Arch{Arch64, Arch32, ArchARM64}, m.Architectures())
	assert.Equal(t, []PersistEntry{{Source: "Config", Target: "Config"}, {Source: "Data", Target: "data"}}, m.Persist)
	assert.Equal(t, map[string][]string{"vcredist": {"extras/vcredist2022"}}, m.Suggest)
	assert.NotEmpty(t, m.Checkver)
	assert.NotEmpty(t, m.Autoupdate)
	assert.Equal(t, raw, m.Raw)

	require.Len(t, m.Common.Bin, 3)
	assert.Equal(t, "7z", m.Common.Bin[0].ShimName())
	assert.Equal(t, "7zfm", m.Common.Bin[1].ShimName())
	assert.Equal(t, []string{"-y"}, m.Common.Bin[2].Args)
	assert.Equal(t, []Shortcut{{Executable: "7zFM.exe", Name: "7-Zip"}}, m.Common.Shortcuts)

	target, err := m.Target(Arch64)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.7-zip.org/a/7z2301-x64.msi"}, target.URLs)
	assert.Equal(t, SHA256, target.Hashes[0].Algorithm)
	assert.Equal(t, []string{`Files\7-Zip`}, target.ExtractDir)
	assert.Len(t, target.Bins, 3, "bins fall back to the common field")
	assert.Len(t, target.PostInstall, 2)
	assert.Empty(t, target.PreInstall)

	arm, err := m.Target(ArchARM64)
	require.NoError(t, err)
	assert.Len(t, arm.PreInstall, 2)
	assert.Empty(t, arm.ExtractDir)
}

func TestParseIsDeterministic(t *testing.T) {
	raw := []byte(`{"version": "1.0", "architecture": {"arm64": {"url": "https://x/a.zip"}, "64bit": {"url": "https://x/b.zip"}}}`)
	_, first := Parse(raw)
	for i := 0; i < 20; i++ {
		_, err := Parse(raw)
		require.Equal(t, first.Error(), err.Error())
	}
	requireManifestError(t, first, "architecture.64bit.hash", KindMismatch)
}

func TestParseErrorPaths(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		path string
		kind ErrorKind
	}{
		{"not json", `{`, "", KindSyntax},
		{"not object", `[1, 2]`, "", KindSyntax},
		{"null document", `null`, "", KindSyntax},
		{"missing version", `{"url": "https://x/a.zip", "hash": "` + hashA + `"}`, "version", KindMissing},
		{"empty version", `{"version": "", "url": "https://x/a.zip", "hash": "` + hashA + `"}`, "version", KindInvalid},
		{"bad version char", `{"version": "1.0 beta", "url": "https://x/a.zip", "hash": "` + hashA + `"}`, "version", KindInvalid},
		{"version wrong type", `{"version": 1, "url": "https://x/a.zip"}`, "version", KindType},
		{"missing url", `{"version": "1.0"}`, "url", KindMissing},
		{"url wrong type", `{"version": "1.0", "url": 3}`, "url", KindType},
		{"url element wrong type", `{"version": "1.0", "url": ["https://x/a.zip", 3]}`, "url[1]", KindType},
		{"relative url", `{"version": "1.0", "url": "a.zip", "hash": "` + hashA + `"}`, "url[0]", KindInvalid},
		{"url without file", `{"version": "1.0", "url": "https://x/dir/", "hash": "` + hashA + `"}`, "url[0]", KindInvalid},
		{"hash count", `{"version": "1.0", "url": ["https://x/a.zip", "https://x/b.zip"], "hash": "` + hashA + `"}`, "hash", KindMismatch},
		{"missing hash", `{"version": "1.0", "url": "https://x/a.zip"}`, "hash", KindMismatch},
		{"bad hash algorithm", `{"version": "1.0", "url": ["https://x/a.zip", "https://x/b.zip"], "hash": ["` + hashA + `", "crc32:abcd"]}`, "hash[1]", KindInvalid},
		{"bad hash length", `{"version": "1.0", "url": "https://x/a.zip", "hash": "abc"}`, "hash[0]", KindInvalid},
		{"arch hash count", `{"version": "1.0", "architecture": {"64bit": {"url": "https://x/a.zip", "hash": ["` + hashA + `", "` + hashB + `"]}}}`, "architecture.64bit.hash", KindMismatch},
		{"arch hash element", `{"version": "1.0", "architecture": {"64bit": {"url": ["https://x/a.zip", "https://x/b.zip"], "hash": ["` + hashA + `", "md5:zz"]}}}`, "architecture.64bit.hash[1]", KindInvalid},
		{"unknown arch", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "architecture": {"mips": {}}}`, "architecture.mips", KindInvalid},
		{"arch without url", `{"version": "1.0", "architecture": {"64bit": {"hash": "` + hashA + `"}}}`, "architecture.64bit.url", KindMissing},
		{"arch not object", `{"version": "1.0", "architecture": {"64bit": "x"}}`, "architecture.64bit", KindType},
		{"bin shim arity", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "bin": [["only.exe"]]}`, "bin[0]", KindInvalid},
		{"bin nested type", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "bin": [["a.exe", 1]]}`, "bin[0][1]", KindType},
		{"shortcut arity", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "shortcuts": [["a", "b", "c", "d", "e"]]}`, "shortcuts[0]", KindInvalid},
		{"env_set value", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "env_set": {"A": 1}}`, "env_set.A", KindType},
		{"env_set key", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "env_set": {"A=B": "1"}}`, "env_set.A=B", KindInvalid},
		{"script type", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "post_install": ["ok", 2]}`, "post_install[1]", KindType},
		{"script nul", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "pre_uninstall": ["echo \u0000"]}`, "pre_uninstall[0]", KindInvalid},
		{"arch script nul", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "architecture": {"32bit": {"post_install": "\u0000"}}}`, "architecture.32bit.post_install[0]", KindInvalid},
		{"installer script", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "installer": {"script": {"a": 1}}}`, "installer.script", KindType},
		{"installer keep", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "installer": {"keep": "yes"}}`, "installer.keep", KindType},
		{"depends entry", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "depends": ["ok", "bad name"]}`, "depends[1]", KindInvalid},
		{"depends constraint", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "depends": "lib@>="}`, "depends[0]", KindInvalid},
		{"license type", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "license": 3}`, "license", KindType},
		{"psmodule name", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "psmodule": {}}`, "psmodule.name", KindMissing},
		{"persist arity", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "persist": [["a", "b", "c"]]}`, "persist[0]", KindInvalid},
		{"suggest type", `{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "suggest": {"x": 1}}`, "suggest.x", KindType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			requireManifestError(t, err, tc.path, tc.kind)
		})
	}
}

func TestParseRejectsInvalidUTF8(t *testing.T) {
	_, err := Parse([]byte("{\"version\": \"1.0\xff\"}"))
	requireManifestError(t, err, "", KindSyntax)
}

func TestParseNamedErrorCarriesName(t *testing.T) {
	_, err := ParseNamed("Foo", []byte(`{"version": "1.0"}`))
	merr := requireManifestError(t, err, "url", KindMissing)
	assert.Equal(t, "foo", merr.Name)
	assert.Contains(t, err.Error(), "manifest foo: url:")

	_, err = ParseNamed("../evil", []byte(`{}`))
	require.Error(t, err)
}

func TestParseMinimalManifest(t *testing.T) {
	m, err := Parse([]byte(`{"version": "1.0", "url": "https://example.test/foo.zip", "hash": "` + hashA + `", "bin": "foo.exe", "depends": ["bar", "extras/baz@>=2.0"], "env_add_path": "bin", "env_set": {"FOO_HOME": "$dir"}}`))
	require.NoError(t, err)
	assert.Equal(t, "Unknown", m.License.String())
	require.Len(t, m.Depends, 2)
	assert.Equal(t, "bar", m.Depends[0].Name)
	assert.Equal(t, "extras", m.Depends[1].Bucket)
	assert.Equal(t, "extras/baz@>=2.0", m.Depends[1].String())
	assert.Equal(t, []Bin{{Executable: "foo.exe"}}, m.Common.Bin)
	assert.Equal(t, []string{"bin"}, m.Common.EnvAddPath)
	assert.Equal(t, map[string]string{"FOO_HOME": "$dir"}, m.Common.EnvSet)

	arch, ok := m.Compatible(CompatibleArches(ArchARM64))
	require.True(t, ok)
	assert.Equal(t, ArchARM64, arch, "common urls support every architecture")
}

func TestParseArchitectureFallsBackToCommonHash(t *testing.T) {
	m, err := Parse([]byte(`{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "architecture": {"64bit": {"bin": "x64.exe"}}}`))
	require.NoError(t, err)
	target, err := m.Target(Arch64)
	require.NoError(t, err)
	assert.Equal(t, hashA, target.Hashes[0].Hex)
	assert.Equal(t, "x64", target.Bins[0].ShimName())
}

func TestParseAcceptsNullOptionalFields(t *testing.T) {
	m, err := Parse([]byte(`{"version": "1.0", "url": "https://x/a.zip", "hash": "` + hashA + `", "notes": null, "bin": null, "license": null, "installer": null, "architecture": null}`))
	require.NoError(t, err)
	assert.Nil(t, m.Notes)
	assert.Nil(t, m.Architecture)
}

func TestParseInstallerFields(t *testing.T) {
	m, err := Parse([]byte(`{"version": "1.0", "url": "https://x/setup.exe", "hash": "` + hashA + `", "installer": {"file": "setup.exe", "args": ["/S", "/D=$dir"], "keep": true}, "uninstaller": {"script": "Remove-Item $dir"}}`))
	require.NoError(t, err)
	require.NotNil(t, m.Common.Installer)
	assert.Equal(t, "setup.exe", m.Common.Installer.File)
	assert.Equal(t, []string{"/S", "/D=$dir"}, m.Common.Installer.Args)
	assert.True(t, m.Common.Installer.Keep)
	assert.Equal(t, []string{"Remove-Item $dir"}, m.Common.Uninstaller.Script)
}

func TestManifestTargetUnsupported(t *testing.T) {
	m, err := Parse([]byte(`{"version": "1.0", "architecture": {"64bit": {"url": "https://x/a.zip", "hash": "` + hashA + `"}}}`))
	require.NoError(t, err)
	_, err = m.Target(Arch32)
	require.Error(t, err)
	assert.False(t, m.Supports(ArchARM64))
	_, ok := m.Compatible([]Arch{Arch32})
	assert.False(t, ok)
}

func TestIsNightly(t *testing.T) {
	m := &Manifest{Version: "nightly"}
	assert.True(t, m.IsNightly())
}

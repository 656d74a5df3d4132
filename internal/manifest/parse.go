package manifest

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/conn-castle/shovel/internal/messages"
)

// Parse parses and validates a manifest document. The returned error is an
// *Error whose Path names the offending field.
func Parse(raw []byte) (*Manifest, error) {
	return parse("", raw)
}

// ParseNamed is Parse for a manifest whose package name is known, usually
// from its file name. The name is normalized and validated.
func ParseNamed(name string, raw []byte) (*Manifest, error) {
	normalized := NormalizeName(name)
	if err := ValidateName(normalized); err != nil {
		return nil, &Error{Name: name, Kind: KindInvalid, Msg: err.Error()}
	}
	return parse(normalized, raw)
}

func parse(name string, raw []byte) (*Manifest, error) {
	m, perr := decode(raw)
	if perr == nil {
		perr = validate(m)
	}
	if perr != nil {
		perr.Name = name
		return nil, perr
	}
	m.Name = name
	m.Raw = append([]byte(nil), raw...)
	return m, nil
}

// topLevelOrder fixes the order fields are decoded in so the first error is
// always the same one.
var topLevelOrder = []string{
	"version", "description", "homepage", "license", "depends", "suggest", "notes",
	"persist", "psmodule", "innosetup", "checkver", "autoupdate",
}

func decode(raw []byte) (*Manifest, *Error) {
	if !utf8.Valid(raw) {
		return nil, newError("", KindSyntax, messages.ManifestNotUTF8)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, newError("", KindSyntax, messages.ManifestSyntaxFmt, err)
	}
	if doc == nil {
		return nil, newError("", KindSyntax, messages.ManifestNotObject)
	}
	if _, ok := doc["version"]; !ok {
		return nil, newError("version", KindMissing, messages.ManifestFieldRequired)
	}

	m := &Manifest{}
	for _, key := range topLevelOrder {
		value, ok := doc[key]
		if !ok {
			continue
		}
		if perr := decodeTopLevel(m, key, value); perr != nil {
			return nil, perr
		}
	}

	common, perr := decodeFields(doc, "")
	if perr != nil {
		return nil, perr
	}
	m.Common = common

	if value, ok := doc["architecture"]; ok && !isNull(value) {
		arches, perr := decodeArchitecture(value)
		if perr != nil {
			return nil, perr
		}
		m.Architecture = arches
	}
	return m, nil
}

func decodeTopLevel(m *Manifest, key string, value json.RawMessage) *Error {
	var perr *Error
	switch key {
	case "version":
		m.Version, perr = decodeString(value, key)
	case "description":
		var lines []string
		lines, perr = decodeList(value, key)
		m.Description = strings.Join(lines, " ")
	case "homepage":
		m.Homepage, perr = decodeString(value, key)
	case "license":
		m.License, perr = decodeLicense(value, key)
	case "depends":
		m.Depends, perr = decodeDepends(value, key)
	case "suggest":
		m.Suggest, perr = decodeSuggest(value, key)
	case "notes":
		m.Notes, perr = decodeList(value, key)
	case "persist":
		m.Persist, perr = decodePersist(value, key)
	case "psmodule":
		m.PSModule, perr = decodePSModule(value, key)
	case "innosetup":
		if err := json.Unmarshal(value, &m.InnoSetup); err != nil {
			perr = newError(key, KindType, messages.ManifestExpectedBool)
		}
	case "checkver":
		m.Checkver = append(json.RawMessage(nil), value...)
	case "autoupdate":
		m.Autoupdate = append(json.RawMessage(nil), value...)
	}
	return perr
}

func decodeArchitecture(value json.RawMessage) (map[Arch]*Fields, *Error) {
	var byKey map[string]json.RawMessage
	if kind(value) != '{' || json.Unmarshal(value, &byKey) != nil {
		return nil, newError("architecture", KindType, messages.ManifestExpectedObject)
	}
	keys := sortedKeys(byKey)
	for _, key := range keys {
		if _, err := ParseArch(key); err != nil {
			return nil, newError(joinPath("architecture", key), KindInvalid, messages.ManifestUnknownArchFmt, key)
		}
	}
	out := make(map[Arch]*Fields, len(byKey))
	for _, arch := range Arches {
		archValue, ok := byKey[string(arch)]
		if !ok {
			continue
		}
		prefix := joinPath("architecture", string(arch))
		var archDoc map[string]json.RawMessage
		if kind(archValue) != '{' || json.Unmarshal(archValue, &archDoc) != nil {
			return nil, newError(prefix, KindType, messages.ManifestExpectedObject)
		}
		fields, perr := decodeFields(archDoc, prefix)
		if perr != nil {
			return nil, perr
		}
		out[arch] = &fields
	}
	return out, nil
}

func decodeFields(doc map[string]json.RawMessage, prefix string) (Fields, *Error) {
	var f Fields
	var perr *Error
	lists := []struct {
		key string
		dst *[]string
	}{
		{"url", &f.URL},
		{"hash", &f.Hash},
		{"env_add_path", &f.EnvAddPath},
		{"extract_dir", &f.ExtractDir},
		{"extract_to", &f.ExtractTo},
		{"pre_install", &f.PreInstall},
		{"post_install", &f.PostInstall},
		{"pre_uninstall", &f.PreUninstall},
		{"post_uninstall", &f.PostUninstall},
	}
	for _, item := range lists {
		value, ok := doc[item.key]
		if !ok {
			continue
		}
		if *item.dst, perr = decodeList(value, joinPath(prefix, item.key)); perr != nil {
			return Fields{}, perr
		}
	}
	if value, ok := doc["bin"]; ok {
		if f.Bin, perr = decodeBins(value, joinPath(prefix, "bin")); perr != nil {
			return Fields{}, perr
		}
	}
	if value, ok := doc["env_set"]; ok {
		if f.EnvSet, perr = decodeEnvSet(value, joinPath(prefix, "env_set")); perr != nil {
			return Fields{}, perr
		}
	}
	if value, ok := doc["installer"]; ok {
		if f.Installer, perr = decodeInstaller(value, joinPath(prefix, "installer")); perr != nil {
			return Fields{}, perr
		}
	}
	if value, ok := doc["uninstaller"]; ok {
		if f.Uninstaller, perr = decodeInstaller(value, joinPath(prefix, "uninstaller")); perr != nil {
			return Fields{}, perr
		}
	}
	if value, ok := doc["shortcuts"]; ok {
		if f.Shortcuts, perr = decodeShortcuts(value, joinPath(prefix, "shortcuts")); perr != nil {
			return Fields{}, perr
		}
	}
	return f, nil
}

func kind(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func decodeString(raw json.RawMessage, path string) (string, *Error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if kind(raw) != '"' || json.Unmarshal(raw, &s) != nil {
		return "", newError(path, KindType, messages.ManifestExpectedString)
	}
	return s, nil
}

// decodeList decodes a field written as a string or an array of strings.
func decodeList(raw json.RawMessage, path string) ([]string, *Error) {
	switch kind(raw) {
	case 'n':
		if isNull(raw) {
			return nil, nil
		}
	case '"':
		s, perr := decodeString(raw, path)
		if perr != nil {
			return nil, perr
		}
		return []string{s}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, newError(path, KindType, messages.ManifestExpectedList)
		}
		out := make([]string, 0, len(items))
		for i, item := range items {
			if kind(item) != '"' {
				return nil, newError(indexPath(path, i), KindType, messages.ManifestExpectedString)
			}
			s, perr := decodeString(item, indexPath(path, i))
			if perr != nil {
				return nil, perr
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, newError(path, KindType, messages.ManifestExpectedList)
}

func decodeStringArray(raw json.RawMessage, path string) ([]string, *Error) {
	if kind(raw) != '[' {
		return nil, newError(path, KindType, messages.ManifestExpectedArray)
	}
	return decodeList(raw, path)
}

func decodeLicense(raw json.RawMessage, path string) (License, *Error) {
	switch kind(raw) {
	case '"':
		s, perr := decodeString(raw, path)
		return License{Identifier: s}, perr
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return License{}, newError(path, KindType, messages.ManifestExpectedObject)
		}
		var l License
		var perr *Error
		if value, ok := obj["identifier"]; ok {
			if l.Identifier, perr = decodeString(value, joinPath(path, "identifier")); perr != nil {
				return License{}, perr
			}
		}
		if value, ok := obj["url"]; ok {
			if l.URL, perr = decodeString(value, joinPath(path, "url")); perr != nil {
				return License{}, perr
			}
		}
		return l, nil
	}
	if isNull(raw) {
		return License{}, nil
	}
	return License{}, newError(path, KindType, messages.ManifestExpectedLicense)
}

func decodeDepends(raw json.RawMessage, path string) ([]Dependency, *Error) {
	entries, perr := decodeList(raw, path)
	if perr != nil {
		return nil, perr
	}
	deps := make([]Dependency, 0, len(entries))
	for i, entry := range entries {
		dep, err := ParseDependency(entry)
		if err != nil {
			return nil, newError(indexPath(path, i), KindInvalid, "%s", err.Error())
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

func decodeSuggest(raw json.RawMessage, path string) (map[string][]string, *Error) {
	if isNull(raw) {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if kind(raw) != '{' || json.Unmarshal(raw, &obj) != nil {
		return nil, newError(path, KindType, messages.ManifestExpectedObject)
	}
	out := make(map[string][]string, len(obj))
	for _, key := range sortedKeys(obj) {
		items, perr := decodeList(obj[key], joinPath(path, key))
		if perr != nil {
			return nil, perr
		}
		out[key] = items
	}
	return out, nil
}

func decodePersist(raw json.RawMessage, path string) ([]PersistEntry, *Error) {
	switch kind(raw) {
	case '"':
		s, perr := decodeString(raw, path)
		if perr != nil {
			return nil, perr
		}
		return []PersistEntry{{Source: s, Target: s}}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, newError(path, KindType, messages.ManifestExpectedList)
		}
		out := make([]PersistEntry, 0, len(items))
		for i, item := range items {
			itemPath := indexPath(path, i)
			switch kind(item) {
			case '"':
				s, perr := decodeString(item, itemPath)
				if perr != nil {
					return nil, perr
				}
				out = append(out, PersistEntry{Source: s, Target: s})
			case '[':
				pair, perr := decodeStringArray(item, itemPath)
				if perr != nil {
					return nil, perr
				}
				switch len(pair) {
				case 1:
					out = append(out, PersistEntry{Source: pair[0], Target: pair[0]})
				case 2:
					out = append(out, PersistEntry{Source: pair[0], Target: pair[1]})
				default:
					return nil, newError(itemPath, KindInvalid, messages.ManifestPersistArity)
				}
			default:
				return nil, newError(itemPath, KindType, messages.ManifestExpectedList)
			}
		}
		return out, nil
	}
	if isNull(raw) {
		return nil, nil
	}
	return nil, newError(path, KindType, messages.ManifestExpectedList)
}

func decodePSModule(raw json.RawMessage, path string) (string, *Error) {
	if isNull(raw) {
		return "", nil
	}
	var obj map[string]json.RawMessage
	if kind(raw) != '{' || json.Unmarshal(raw, &obj) != nil {
		return "", newError(path, KindType, messages.ManifestExpectedObject)
	}
	value, ok := obj["name"]
	if !ok {
		return "", newError(joinPath(path, "name"), KindMissing, messages.ManifestFieldRequired)
	}
	return decodeString(value, joinPath(path, "name"))
}

// decodeBins decodes "bin": a string, or an array whose elements are strings
// or [executable, alias, args...] arrays.
func decodeBins(raw json.RawMessage, path string) ([]Bin, *Error) {
	switch kind(raw) {
	case '"':
		s, perr := decodeString(raw, path)
		if perr != nil {
			return nil, perr
		}
		return []Bin{{Executable: s}}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, newError(path, KindType, messages.ManifestExpectedList)
		}
		out := make([]Bin, 0, len(items))
		for i, item := range items {
			itemPath := indexPath(path, i)
			switch kind(item) {
			case '"':
				s, perr := decodeString(item, itemPath)
				if perr != nil {
					return nil, perr
				}
				out = append(out, Bin{Executable: s})
			case '[':
				parts, perr := decodeStringArray(item, itemPath)
				if perr != nil {
					return nil, perr
				}
				if len(parts) < 2 {
					return nil, newError(itemPath, KindInvalid, messages.ManifestShimArity)
				}
				out = append(out, Bin{Executable: parts[0], Alias: parts[1], Args: parts[2:]})
			default:
				return nil, newError(itemPath, KindType, messages.ManifestExpectedList)
			}
		}
		return out, nil
	}
	if isNull(raw) {
		return nil, nil
	}
	return nil, newError(path, KindType, messages.ManifestExpectedList)
}

func decodeShortcuts(raw json.RawMessage, path string) ([]Shortcut, *Error) {
	if isNull(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if kind(raw) != '[' || json.Unmarshal(raw, &items) != nil {
		return nil, newError(path, KindType, messages.ManifestExpectedArray)
	}
	out := make([]Shortcut, 0, len(items))
	for i, item := range items {
		itemPath := indexPath(path, i)
		parts, perr := decodeStringArray(item, itemPath)
		if perr != nil {
			return nil, perr
		}
		if len(parts) < 2 || len(parts) > 4 {
			return nil, newError(itemPath, KindInvalid, messages.ManifestShortcutArity)
		}
		sc := Shortcut{Executable: parts[0], Name: parts[1]}
		if len(parts) > 2 {
			sc.Args = parts[2]
		}
		if len(parts) > 3 {
			sc.Icon = parts[3]
		}
		out = append(out, sc)
	}
	return out, nil
}

func decodeEnvSet(raw json.RawMessage, path string) (map[string]string, *Error) {
	if isNull(raw) {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if kind(raw) != '{' || json.Unmarshal(raw, &obj) != nil {
		return nil, newError(path, KindType, messages.ManifestExpectedObject)
	}
	out := make(map[string]string, len(obj))
	for _, key := range sortedKeys(obj) {
		if strings.TrimSpace(key) == "" || strings.ContainsAny(key, "=\x00") {
			return nil, newError(joinPath(path, key), KindInvalid, messages.ManifestEnvKeyInvalidFmt, key)
		}
		value, perr := decodeString(obj[key], joinPath(path, key))
		if perr != nil {
			return nil, perr
		}
		out[key] = value
	}
	return out, nil
}

func decodeInstaller(raw json.RawMessage, path string) (*Installer, *Error) {
	if isNull(raw) {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if kind(raw) != '{' || json.Unmarshal(raw, &obj) != nil {
		return nil, newError(path, KindType, messages.ManifestExpectedObject)
	}
	inst := &Installer{}
	var perr *Error
	if value, ok := obj["file"]; ok {
		if inst.File, perr = decodeString(value, joinPath(path, "file")); perr != nil {
			return nil, perr
		}
	}
	if value, ok := obj["script"]; ok {
		if inst.Script, perr = decodeList(value, joinPath(path, "script")); perr != nil {
			return nil, perr
		}
	}
	if value, ok := obj["args"]; ok {
		if inst.Args, perr = decodeList(value, joinPath(path, "args")); perr != nil {
			return nil, perr
		}
	}
	if value, ok := obj["keep"]; ok {
		if err := json.Unmarshal(value, &inst.Keep); err != nil {
			return nil, newError(joinPath(path, "keep"), KindType, messages.ManifestExpectedBool)
		}
	}
	return inst, nil
}

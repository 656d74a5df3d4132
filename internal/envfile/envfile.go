// Package envfile reads and writes the activation environment: the PATH
// entries and variables installed packages contribute to a user's shell.
//
// The file holds one entry per line. "PATH+=DIR" adds a PATH entry and
// "KEY=VALUE" sets a variable; values may be single or double quoted.
package envfile

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/conn-castle/shovel/internal/messages"
)

const pathKey = "PATH"

var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Env is a parsed activation environment. Path is in precedence order: the
// first entry wins.
type Env struct {
	Path []string
	Vars map[string]string
}

// New returns an empty Env.
func New() *Env {
	return &Env{Vars: make(map[string]string)}
}

// Parse reads activation env content.
func Parse(content string) (*Env, error) {
	env := New()
	if content == "" {
		return env, nil
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		key, value, isPath, ok, err := parseLine(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf(messages.EnvfileLineErrorFmt, lineNo, err)
		}
		if !ok {
			continue
		}
		if isPath {
			env.AddPath(value)
			continue
		}
		env.Vars[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf(messages.EnvfileReadFailedFmt, err)
	}
	// AddPath prepends; restore file order.
	for i, j := 0, len(env.Path)-1; i < j; i, j = i+1, j-1 {
		env.Path[i], env.Path[j] = env.Path[j], env.Path[i]
	}
	return env, nil
}

// AddPath puts dirs ahead of the existing entries, skipping any already
// present, and returns the ones it added.
func (e *Env) AddPath(dirs ...string) []string {
	var added []string
	for _, dir := range dirs {
		if dir == "" || e.HasPath(dir) || containsPath(added, dir) {
			continue
		}
		added = append(added, dir)
	}
	if len(added) > 0 {
		e.Path = append(append([]string{}, added...), e.Path...)
	}
	return added
}

// RemovePath drops dirs and returns the ones that were present.
func (e *Env) RemovePath(dirs ...string) []string {
	var removed []string
	kept := e.Path[:0]
	for _, entry := range e.Path {
		if containsPath(dirs, entry) {
			removed = append(removed, entry)
			continue
		}
		kept = append(kept, entry)
	}
	e.Path = kept
	return removed
}

// HasPath reports whether dir is a PATH entry.
func (e *Env) HasPath(dir string) bool {
	return containsPath(e.Path, dir)
}

// Set assigns a variable and returns the value it replaced.
func (e *Env) Set(key string, value string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	prev, existed := e.Vars[key]
	e.Vars[key] = value
	return prev, existed, nil
}

// Unset removes a variable.
func (e *Env) Unset(key string) {
	delete(e.Vars, key)
}

// Format renders the file: PATH entries in precedence order, then variables
// sorted by name.
func (e *Env) Format() string {
	var b strings.Builder
	b.WriteString(messages.EnvfileHeader)
	b.WriteByte('\n')
	for _, dir := range e.Path {
		fmt.Fprintf(&b, "%s+=%s\n", pathKey, encodeValue(dir))
	}
	for _, key := range e.keys() {
		fmt.Fprintf(&b, "%s=%s\n", key, encodeValue(e.Vars[key]))
	}
	return b.String()
}

// Script renders a POSIX shell script that applies the environment.
func (e *Env) Script() string {
	var b strings.Builder
	b.WriteString(messages.EnvfileScriptHeader)
	b.WriteByte('\n')
	if len(e.Path) > 0 {
		quoted := make([]string, 0, len(e.Path))
		for _, dir := range e.Path {
			quoted = append(quoted, shellQuote(dir))
		}
		fmt.Fprintf(&b, "export PATH=%s:\"$PATH\"\n", strings.Join(quoted, ":"))
	}
	for _, key := range e.keys() {
		fmt.Fprintf(&b, "export %s=%s\n", key, shellQuote(e.Vars[key]))
	}
	return b.String()
}

func (e *Env) keys() []string {
	keys := make([]string, 0, len(e.Vars))
	for key := range e.Vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func validateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf(messages.EnvfileInvalidKeyFmt, key)
	}
	if strings.EqualFold(key, pathKey) {
		return fmt.Errorf(messages.EnvfilePathKeyFmt, key)
	}
	return nil
}

func containsPath(list []string, dir string) bool {
	for _, entry := range list {
		if entry == dir {
			return true
		}
	}
	return false
}

// parseLine parses one line. ok is false for blank lines and comments.
func parseLine(line string) (key string, value string, isPath bool, ok bool, err error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false, false, nil
	}
	idx := strings.Index(trimmed, "=")
	if idx <= 0 {
		return "", "", false, false, errors.New(messages.EnvfileExpectedKeyValue)
	}
	key = strings.TrimSpace(trimmed[:idx])
	if strings.HasSuffix(key, "+") {
		key = strings.TrimSpace(strings.TrimSuffix(key, "+"))
		if key != pathKey {
			return "", "", false, false, errors.New(messages.EnvfileExpectedKeyValue)
		}
		isPath = true
	} else if err := validateKey(key); err != nil {
		return "", "", false, false, err
	}
	value, err = decodeValue(strings.TrimSpace(trimmed[idx+1:]))
	if err != nil {
		return "", "", false, false, err
	}
	return key, value, isPath, true, nil
}

func decodeValue(value string) (string, error) {
	switch {
	case strings.HasPrefix(value, `"`):
		return parseDoubleQuotedValue(value)
	case strings.HasPrefix(value, `'`):
		return parseSingleQuotedValue(value)
	}
	return value, nil
}

func parseDoubleQuotedValue(value string) (string, error) {
	closing := findClosingDoubleQuote(value)
	if closing < 0 {
		return "", errors.New(messages.EnvfileUnterminatedQuotedValue)
	}
	if err := validateQuotedValueSuffix(value[closing+1:]); err != nil {
		return "", err
	}
	return unescapeDoubleQuotedValue(value[1:closing]), nil
}

func parseSingleQuotedValue(value string) (string, error) {
	closingOffset := strings.IndexByte(value[1:], '\'')
	if closingOffset < 0 {
		return "", errors.New(messages.EnvfileUnterminatedQuotedValue)
	}
	closing := 1 + closingOffset
	if err := validateQuotedValueSuffix(value[closing+1:]); err != nil {
		return "", err
	}
	return value[1:closing], nil
}

// findClosingDoubleQuote returns the index of the first unescaped quote after
// the opening one, or -1.
func findClosingDoubleQuote(value string) int {
	escaped := false
	for i := 1; i < len(value); i++ {
		if escaped {
			escaped = false
			continue
		}
		switch value[i] {
		case '\\':
			escaped = true
		case '"':
			return i
		}
	}
	return -1
}

func validateQuotedValueSuffix(suffix string) error {
	trimmed := strings.TrimSpace(suffix)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil
	}
	return errors.New(messages.EnvfileInvalidQuotedSuffix)
}

// unescapeDoubleQuotedValue reverses encodeValue.
func unescapeDoubleQuotedValue(escaped string) string {
	var b strings.Builder
	b.Grow(len(escaped))
	for i := 0; i < len(escaped); i++ {
		if escaped[i] == '\\' && i+1 < len(escaped) {
			switch escaped[i+1] {
			case '\\', '"':
				b.WriteByte(escaped[i+1])
				i++
				continue
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case 'r':
				b.WriteByte('\r')
				i++
				continue
			}
		}
		b.WriteByte(escaped[i])
	}
	return b.String()
}

// encodeValue double-quotes values that would not survive a bare round trip.
func encodeValue(val string) string {
	if val == "" || strings.ContainsAny(val, " \t#\n\r\"'\\") {
		val = strings.ReplaceAll(val, `\`, `\\`)
		val = strings.ReplaceAll(val, `"`, `\"`)
		val = strings.ReplaceAll(val, "\n", `\n`)
		val = strings.ReplaceAll(val, "\r", `\r`)
		return `"` + val + `"`
	}
	return val
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

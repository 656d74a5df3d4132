package install

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conn-castle/shovel/internal/messages"
)

const shimMarker = "shovel-shim:"

// shim is a redirector from the shims directory to an executable inside a
// package's current directory.
type shim struct {
	Package string
	Name    string
	Target  string
	Args    []string
}

func shimPath(dir string, name string, goos string) string {
	if goos == "windows" {
		return filepath.Join(dir, name+".cmd")
	}
	return filepath.Join(dir, name)
}

// content renders the shim script for goos. The marker line names the owning
// package so another package cannot silently take the name over.
func (s shim) content(goos string) []byte {
	var b strings.Builder
	if goos == "windows" {
		fmt.Fprintf(&b, "@rem %s%s\r\n", shimMarker, s.Package)
		fmt.Fprintf(&b, "@\"%s\"", s.Target)
		for _, arg := range s.Args {
			fmt.Fprintf(&b, " \"%s\"", strings.ReplaceAll(arg, `"`, `""`))
		}
		b.WriteString(" %*\r\n")
		return []byte(b.String())
	}
	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "# %s%s\n", shimMarker, s.Package)
	b.WriteString("exec " + shellQuote(s.Target))
	for _, arg := range s.Args {
		b.WriteString(" " + shellQuote(arg))
	}
	b.WriteString(" \"$@\"\n")
	return []byte(b.String())
}

// shimOwner returns the package named by the shim's marker line, or "" when
// the file is not a shovel shim.
func shimOwner(data []byte) string {
	for _, line := range bytes.SplitN(data, []byte("\n"), 3) {
		if _, owner, ok := strings.Cut(strings.TrimSpace(string(line)), shimMarker); ok {
			return strings.TrimSpace(owner)
		}
	}
	return ""
}

// shimState captures a shim file before it is replaced so it can be put back.
type shimState struct {
	path    string
	existed bool
	data    []byte
}

// writeShim writes content to path unless identical content is already
// there. It refuses to replace a file owned by another package.
func writeShim(sys System, path string, pkg string, content []byte) (shimState, bool, error) {
	prev := shimState{path: path}
	data, err := sys.ReadFile(path)
	switch {
	case err == nil:
		prev.existed = true
		prev.data = data
		if owner := shimOwner(data); owner != pkg {
			if owner == "" {
				return prev, false, fmt.Errorf(messages.InstallShimForeignFmt, path)
			}
			return prev, false, fmt.Errorf(messages.InstallShimOwnedFmt, path, owner)
		}
		if bytes.Equal(data, content) {
			return prev, false, nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return prev, false, fmt.Errorf(messages.InstallReadFileFmt, path, err)
	}
	if err := sys.WriteFileAtomic(path, content, 0o755); err != nil {
		return prev, false, fmt.Errorf(messages.InstallWriteShimFmt, path, err)
	}
	return prev, true, nil
}

// restore puts the captured shim back.
func (s shimState) restore(sys System) error {
	if !s.existed {
		if err := sys.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return sys.WriteFileAtomic(s.path, s.data, 0o755)
}

// removeShim deletes path if pkg still owns it.
func removeShim(sys System, path string, pkg string) error {
	data, err := sys.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf(messages.InstallReadFileFmt, path, err)
	}
	if shimOwner(data) != pkg {
		return nil
	}
	if err := sys.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf(messages.InstallRemoveFmt, path, err)
	}
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

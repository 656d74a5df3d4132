// Package testutil holds builders shared by package tests: archives,
// executable stubs and local git remotes.
package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
)

// File is one archive entry. Link makes the entry a symlink to Link.
type File struct {
	Name string
	Body string
	Mode os.FileMode
	Link string
	// Hardlink names an earlier entry; only tar archives carry it.
	Hardlink string
}

func (f File) mode() os.FileMode {
	if f.Mode == 0 {
		return 0o644
	}
	return f.Mode
}

// Files turns a name-to-body map into entries sorted by name.
func Files(m map[string]string) []File {
	files := make([]File, 0, len(m))
	for name, body := range m {
		files = append(files, File{Name: name, Body: body})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files
}

// Zip returns a zip archive of files.
func Zip(t *testing.T, files []File) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		hdr := &zip.FileHeader{Name: f.Name, Method: zip.Deflate}
		body := f.Body
		if f.Link != "" {
			hdr.SetMode(os.ModeSymlink | 0o777)
			body = f.Link
		} else {
			hdr.SetMode(f.mode())
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("zip header %s: %v", f.Name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// TarGz returns a gzip-compressed tar archive of files.
func TarGz(t *testing.T, files []File) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, f := range files {
		hdr := &tar.Header{Name: f.Name, Mode: int64(f.mode()), Size: int64(len(f.Body)), Typeflag: tar.TypeReg}
		switch {
		case f.Link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = f.Link
			hdr.Size = 0
		case f.Hardlink != "":
			hdr.Typeflag = tar.TypeLink
			hdr.Linkname = f.Hardlink
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %s: %v", f.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(f.Body)); err != nil {
				t.Fatalf("tar write %s: %v", f.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

// SHA256 returns the hex sha256 of data.
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteStub writes an executable shell stub that exits successfully.
// t is the active test; dir is the output directory; name is the executable file name.
func WriteStub(t *testing.T, dir string, name string) {
	t.Helper()
	WriteStubWithExit(t, dir, name, 0)
}

// WriteStubWithExit writes an executable shell stub that exits with the provided code.
// t is the active test; dir is the output directory; name is the executable file name.
func WriteStubWithExit(t *testing.T, dir string, name string, exitCode int) {
	t.Helper()
	path := filepath.Join(dir, name)
	content := []byte(fmt.Sprintf("#!/bin/sh\nexit %d\n", exitCode))
	if err := os.WriteFile(path, content, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// ServeFileRemotes makes go-git serve file:// remotes in-process, so tests
// do not need a git binary. Call it from TestMain.
func ServeFileRemotes() {
	client.InstallProtocol("file", server.NewClient(server.DefaultLoader))
}

// GitRemote is a local repository used as a bucket remote.
type GitRemote struct {
	t    *testing.T
	Dir  string
	repo *git.Repository
	tick int
}

// NewGitRemote initializes an empty repository under a temp dir.
func NewGitRemote(t *testing.T) *GitRemote {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "remote")
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("git init: %v", err)
	}
	return &GitRemote{t: t, Dir: dir, repo: repo}
}

// URL returns the remote's file URL.
func (r *GitRemote) URL() string {
	return "file://" + filepath.ToSlash(r.Dir)
}

// Commit writes files (slash-separated path to content) and returns the new
// revision.
func (r *GitRemote) Commit(files map[string]string) string {
	r.t.Helper()
	wt, err := r.repo.Worktree()
	if err != nil {
		r.t.Fatalf("worktree: %v", err)
	}
	for _, f := range Files(files) {
		full := filepath.Join(r.Dir, filepath.FromSlash(f.Name))
		WriteFile(r.t, full, []byte(f.Body))
		if _, err := wt.Add(f.Name); err != nil {
			r.t.Fatalf("git add %s: %v", f.Name, err)
		}
	}
	r.tick++
	when := time.Date(2024, 1, 1, 0, 0, r.tick, 0, time.UTC)
	hash, err := wt.Commit(fmt.Sprintf("commit %d", r.tick), &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.test", When: when},
	})
	if err != nil {
		r.t.Fatalf("git commit: %v", err)
	}
	return hash.String()
}

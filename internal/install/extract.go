package install

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/conn-castle/shovel/internal/fsutil"
	"github.com/conn-castle/shovel/internal/messages"
)

// Limits bounds what one archive may unpack.
type Limits struct {
	MaxFiles int
	MaxBytes int64
}

// DefaultLimits are used when Options.Limits is zero.
var DefaultLimits = Limits{MaxFiles: 200_000, MaxBytes: 16 << 30}

type archiveKind int

const (
	archiveNone archiveKind = iota
	archiveZip
	archiveTar
	archiveTarGz
)

func archiveKindOf(name string) archiveKind {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return archiveZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return archiveTarGz
	case strings.HasSuffix(lower, ".tar"):
		return archiveTar
	}
	return archiveNone
}

// extractor unpacks one artifact into a directory, keeping every entry
// inside it.
type extractor struct {
	ctx  context.Context
	dest string
	// real is dest with symlinks resolved. Entries are checked against it
	// after links created earlier in the archive are followed.
	real   string
	limits Limits
	files  int
	bytes  int64
}

// extractArtifact unpacks src into dest. Files that are not a supported
// archive are copied as name.
func extractArtifact(ctx context.Context, src string, name string, dest string, limits Limits) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf(messages.InstallCreateDirFmt, dest, err)
	}
	real, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return fmt.Errorf(messages.InstallCreateDirFmt, dest, err)
	}
	x := &extractor{ctx: ctx, dest: dest, real: real, limits: limits}
	switch archiveKindOf(name) {
	case archiveZip:
		return x.zip(src)
	case archiveTar:
		f, err := os.Open(src)
		if err != nil {
			return fmt.Errorf(messages.InstallOpenArtifactFmt, src, err)
		}
		defer func() { _ = f.Close() }()
		return x.tar(f)
	case archiveTarGz:
		f, err := os.Open(src)
		if err != nil {
			return fmt.Errorf(messages.InstallOpenArtifactFmt, src, err)
		}
		defer func() { _ = f.Close() }()
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf(messages.InstallArchiveFmt, name, err)
		}
		defer func() { _ = gz.Close() }()
		return x.tar(gz)
	}
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf(messages.InstallOpenArtifactFmt, src, err)
	}
	defer func() { _ = f.Close() }()
	target, err := fsutil.SafeJoin(dest, name)
	if err != nil {
		return err
	}
	return x.writeFile(target, f, 0o755)
}

func (x *extractor) zip(src string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf(messages.InstallArchiveFmt, filepath.Base(src), err)
	}
	defer func() { _ = r.Close() }()
	for _, f := range r.File {
		if err := x.next(); err != nil {
			return err
		}
		target, err := x.join(f.Name)
		if err != nil {
			return err
		}
		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := x.mkdir(f.Name, target); err != nil {
				return err
			}
		case mode&os.ModeSymlink != 0:
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf(messages.InstallArchiveEntryFmt, f.Name, err)
			}
			link, err := io.ReadAll(io.LimitReader(rc, 4096))
			_ = rc.Close()
			if err != nil {
				return fmt.Errorf(messages.InstallArchiveEntryFmt, f.Name, err)
			}
			if err := x.symlink(f.Name, string(link), target); err != nil {
				return err
			}
		default:
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf(messages.InstallArchiveEntryFmt, f.Name, err)
			}
			err = x.writeEntry(f.Name, target, rc, mode.Perm()|0o600)
			_ = rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *extractor) tar(r io.Reader) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf(messages.InstallArchiveFmt, "tar", err)
		}
		if err := x.next(); err != nil {
			return err
		}
		target, err := x.join(hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := x.mkdir(hdr.Name, target); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := x.writeEntry(hdr.Name, target, tr, os.FileMode(hdr.Mode).Perm()|0o600); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := x.symlink(hdr.Name, hdr.Linkname, target); err != nil {
				return err
			}
		case tar.TypeLink:
			if err := x.hardlink(hdr.Name, hdr.Linkname, target); err != nil {
				return err
			}
		default:
			// Devices, fifos and pax metadata carry no package content.
		}
	}
}

func (x *extractor) next() error {
	if err := x.ctx.Err(); err != nil {
		return err
	}
	x.files++
	if x.limits.MaxFiles > 0 && x.files > x.limits.MaxFiles {
		return fmt.Errorf(messages.InstallArchiveTooManyFmt, x.limits.MaxFiles)
	}
	return nil
}

func (x *extractor) join(name string) (string, error) {
	return fsutil.SafeJoin(x.dest, name)
}

// resolve returns where path lands on disk once every existing link along
// it is followed. It fails when that is outside the destination, or when the
// path runs through a dangling link whose final target cannot be checked.
func (x *extractor) resolve(name string, path string) (string, error) {
	existing := path
	var rest []string
	for {
		real, err := filepath.EvalSymlinks(existing)
		if err == nil {
			full := filepath.Join(append([]string{real}, rest...)...)
			if !fsutil.IsWithin(x.real, full) {
				return "", fmt.Errorf(messages.InstallArchiveEntryEscapesFmt, name)
			}
			return full, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf(messages.InstallArchiveEntryFmt, name, err)
		}
		if _, lerr := os.Lstat(existing); lerr == nil {
			return "", fmt.Errorf(messages.InstallArchiveEntryEscapesFmt, name)
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return "", fmt.Errorf(messages.InstallArchiveEntryEscapesFmt, name)
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}
}

// parent creates the directory holding target and returns its resolved path.
func (x *extractor) parent(name string, target string) (string, error) {
	dir, err := x.resolve(name, filepath.Dir(target))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf(messages.InstallCreateDirFmt, dir, err)
	}
	return dir, nil
}

// replaceable clears a link left at path by an earlier entry so the next
// write replaces the link instead of following it.
func replaceable(path string) error {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return nil
	}
	return os.Remove(path)
}

func (x *extractor) mkdir(name string, target string) error {
	dir, err := x.resolve(name, target)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf(messages.InstallCreateDirFmt, target, err)
	}
	return nil
}

// symlink creates target -> link when link, read from the real parent
// directory, stays inside the destination.
func (x *extractor) symlink(name string, link string, target string) error {
	if filepath.IsAbs(link) || strings.HasPrefix(filepath.ToSlash(link), "/") {
		return fmt.Errorf(messages.InstallArchiveLinkEscapesFmt, name, link)
	}
	dir, err := x.parent(name, target)
	if err != nil {
		return err
	}
	if !fsutil.IsWithin(x.real, filepath.Join(dir, filepath.FromSlash(link))) {
		return fmt.Errorf(messages.InstallArchiveLinkEscapesFmt, name, link)
	}
	placed := filepath.Join(dir, filepath.Base(target))
	if err := replaceable(placed); err != nil {
		return fmt.Errorf(messages.InstallArchiveEntryFmt, name, err)
	}
	if err := os.Symlink(link, placed); err != nil {
		return fmt.Errorf(messages.InstallArchiveEntryFmt, name, err)
	}
	return nil
}

// hardlink links target to an earlier regular file of the archive.
func (x *extractor) hardlink(name string, linkname string, target string) error {
	lexical, err := x.join(linkname)
	if err != nil {
		return err
	}
	source, err := x.resolve(name, lexical)
	if err != nil {
		return err
	}
	info, err := os.Lstat(source)
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf(messages.InstallArchiveHardlinkFmt, name, linkname)
	}
	dir, err := x.parent(name, target)
	if err != nil {
		return err
	}
	placed := filepath.Join(dir, filepath.Base(target))
	if err := replaceable(placed); err != nil {
		return fmt.Errorf(messages.InstallArchiveEntryFmt, name, err)
	}
	if err := os.Link(source, placed); err != nil {
		return fmt.Errorf(messages.InstallArchiveEntryFmt, name, err)
	}
	return nil
}

// writeEntry writes an archive file at target after confining its real
// location to the destination.
func (x *extractor) writeEntry(name string, target string, r io.Reader, perm os.FileMode) error {
	dir, err := x.parent(name, target)
	if err != nil {
		return err
	}
	placed := filepath.Join(dir, filepath.Base(target))
	if err := replaceable(placed); err != nil {
		return fmt.Errorf(messages.InstallArchiveEntryFmt, name, err)
	}
	return x.writeFile(placed, r, perm)
}

func (x *extractor) writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf(messages.InstallCreateDirFmt, filepath.Dir(target), err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf(messages.InstallWriteFileFmt, target, err)
	}
	limit := int64(-1)
	if x.limits.MaxBytes > 0 {
		limit = x.limits.MaxBytes - x.bytes
	}
	var src io.Reader = r
	if limit >= 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(f, src)
	x.bytes += n
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf(messages.InstallWriteFileFmt, target, err)
	}
	if limit >= 0 && n > limit {
		return fmt.Errorf(messages.InstallArchiveTooLargeFmt, x.limits.MaxBytes)
	}
	return nil
}

// placeExtracted moves the contents of src (or its subdirectory sub) into
// dest, replacing entries that already exist there.
func placeExtracted(src string, sub string, dest string) error {
	from, err := fsutil.SafeJoin(src, sub)
	if err != nil {
		return err
	}
	info, err := os.Stat(from)
	if err != nil {
		return fmt.Errorf(messages.InstallExtractDirFmt, sub, err)
	}
	if !info.IsDir() {
		return fmt.Errorf(messages.InstallExtractDirFmt, sub, errors.New(messages.InstallNotADirectory))
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf(messages.InstallCreateDirFmt, dest, err)
	}
	entries, err := os.ReadDir(from)
	if err != nil {
		return fmt.Errorf(messages.InstallExtractDirFmt, sub, err)
	}
	for _, entry := range entries {
		target := filepath.Join(dest, entry.Name())
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf(messages.InstallRemoveFmt, target, err)
		}
		if err := os.Rename(filepath.Join(from, entry.Name()), target); err != nil {
			return fmt.Errorf(messages.InstallMoveFmt, entry.Name(), target, err)
		}
	}
	return nil
}

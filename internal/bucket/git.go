package bucket

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/conn-castle/shovel/internal/messages"
)

// Git is the version-control surface the store needs. Revisions are full
// commit hashes.
type Git interface {
	Clone(ctx context.Context, remote string, dir string) (string, error)
	Fetch(ctx context.Context, dir string) (string, error)
	IsAncestor(dir string, ancestor string, descendant string) (bool, error)
	Checkout(dir string, revision string) error
	ReadFile(dir string, revision string, name string) ([]byte, error)
	ListFiles(dir string, revision string, subdir string) ([]string, error)
}

// GoGit implements Git in-process with go-git.
type GoGit struct{}

const remoteName = "origin"

// Clone clones remote into dir and returns the checked-out revision.
func (GoGit) Clone(ctx context.Context, remote string, dir string) (string, error) {
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          remote,
		RemoteName:   remoteName,
		SingleBranch: true,
		Tags:         git.NoTags,
	})
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf(messages.BucketGitHeadFmt, err)
	}
	return head.Hash().String(), nil
}

// Fetch downloads new objects for the tracked branch without touching the
// worktree, and returns the remote branch's revision.
func (GoGit) Fetch(ctx context.Context, dir string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", err
	}
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		Tags:       git.NoTags,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf(messages.BucketGitHeadFmt, err)
	}
	ref, err := repo.Reference(plumbing.NewRemoteReferenceName(remoteName, head.Name().Short()), true)
	if err != nil {
		return "", fmt.Errorf(messages.BucketGitRemoteRefFmt, head.Name().Short(), err)
	}
	return ref.Hash().String(), nil
}

// IsAncestor reports whether ancestor is reachable from descendant.
func (GoGit) IsAncestor(dir string, ancestor string, descendant string) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return false, err
	}
	a, err := repo.CommitObject(plumbing.NewHash(ancestor))
	if err != nil {
		return false, err
	}
	d, err := repo.CommitObject(plumbing.NewHash(descendant))
	if err != nil {
		return false, err
	}
	return a.IsAncestor(d)
}

// Checkout hard-resets the worktree and current branch to revision.
func (GoGit) Checkout(dir string, revision string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Reset(&git.ResetOptions{Commit: plumbing.NewHash(revision), Mode: git.HardReset})
}

// ReadFile reads name from the object database at revision. It returns an
// error wrapping os.ErrNotExist when the file is absent.
func (GoGit) ReadFile(dir string, revision string, name string) ([]byte, error) {
	tree, err := treeAt(dir, revision)
	if err != nil {
		return nil, err
	}
	file, err := tree.File(name)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, fmt.Errorf(messages.BucketGitFileMissingFmt, name, os.ErrNotExist)
		}
		return nil, err
	}
	contents, err := file.Contents()
	if err != nil {
		return nil, err
	}
	return []byte(contents), nil
}

// ListFiles returns the names of regular files directly inside subdir at
// revision, sorted. An empty subdir lists the repository root.
func (GoGit) ListFiles(dir string, revision string, subdir string) ([]string, error) {
	tree, err := treeAt(dir, revision)
	if err != nil {
		return nil, err
	}
	if subdir != "" {
		tree, err = tree.Tree(strings.Trim(path.Clean(subdir), "/"))
		if err != nil {
			if errors.Is(err, object.ErrDirectoryNotFound) {
				return nil, fmt.Errorf(messages.BucketGitDirMissingFmt, subdir, os.ErrNotExist)
			}
			return nil, err
		}
	}
	var names []string
	for _, entry := range tree.Entries {
		if entry.Mode.IsFile() {
			names = append(names, entry.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func treeAt(dir string, revision string) (*object.Tree, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(plumbing.NewHash(revision))
	if err != nil {
		return nil, err
	}
	return commit.Tree()
}

package resolve

import (
	"fmt"

	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/messages"
	"github.com/conn-castle/shovel/internal/version"
)

// Request asks for a package, optionally from one bucket and within a
// version constraint. The zero Constraint means latest.
type Request struct {
	Name       string
	Bucket     string
	Constraint version.Constraint
}

// ParseRequest parses "[bucket/]name[@constraint]".
func ParseRequest(s string) (Request, error) {
	dep, err := manifest.ParseDependency(s)
	if err != nil {
		return Request{}, fmt.Errorf(messages.ResolveRequestFmt, s, err)
	}
	return Request{Name: dep.Name, Bucket: dep.Bucket, Constraint: dep.Constraint}, nil
}

// ParseRequests parses each argument with ParseRequest.
func ParseRequests(args []string) ([]Request, error) {
	reqs := make([]Request, 0, len(args))
	for _, arg := range args {
		req, err := ParseRequest(arg)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func (r Request) String() string {
	return manifest.Dependency{Bucket: r.Bucket, Name: r.Name, Constraint: r.Constraint}.String()
}

// InstalledPackage is what the resolver needs to know about an installed
// package.
type InstalledPackage struct {
	Name    string
	Version string
	Bucket  string
}

// Installed reports installed packages.
type Installed interface {
	Installed(name string) (InstalledPackage, bool, error)
}

// InstalledSet is an in-memory Installed keyed by package name.
type InstalledSet map[string]InstalledPackage

// Installed implements Installed.
func (s InstalledSet) Installed(name string) (InstalledPackage, bool, error) {
	pkg, ok := s[name]
	return pkg, ok, nil
}

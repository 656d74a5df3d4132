package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/conn-castle/shovel/internal/messages"
	"github.com/conn-castle/shovel/internal/version"
)

var (
	reName           = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}._+-]*$`)
	reInvalidVersion = regexp.MustCompile(`[^\w.\-+]`)
)

// NormalizeName returns the canonical form of a package or bucket name:
// trimmed, NFC normalized and lowercased.
func NormalizeName(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

// ValidateName rejects names that cannot be used as file names.
func ValidateName(name string) error {
	if !reName.MatchString(name) {
		return fmt.Errorf(messages.ManifestInvalidNameFmt, name)
	}
	return nil
}

// Dependency is one entry of a manifest's depends list, written
// "[bucket/]name[@constraint]".
type Dependency struct {
	Bucket     string
	Name       string
	Constraint version.Constraint
}

// ParseDependency parses a depends entry.
func ParseDependency(s string) (Dependency, error) {
	raw := strings.TrimSpace(s)
	namePart, constraintPart, _ := strings.Cut(raw, "@")
	var dep Dependency
	bucket, name, qualified := strings.Cut(namePart, "/")
	if qualified {
		dep.Bucket = NormalizeName(bucket)
		dep.Name = NormalizeName(name)
		if err := ValidateName(dep.Bucket); err != nil {
			return Dependency{}, fmt.Errorf(messages.ManifestDependencyFmt, raw, err)
		}
	} else {
		dep.Name = NormalizeName(namePart)
	}
	if err := ValidateName(dep.Name); err != nil {
		return Dependency{}, fmt.Errorf(messages.ManifestDependencyFmt, raw, err)
	}
	constraint, err := version.ParseConstraint(constraintPart)
	if err != nil {
		return Dependency{}, fmt.Errorf(messages.ManifestDependencyFmt, raw, err)
	}
	dep.Constraint = constraint
	return dep, nil
}

// String renders d in its written form.
func (d Dependency) String() string {
	s := d.Name
	if d.Bucket != "" {
		s = d.Bucket + "/" + s
	}
	if !d.Constraint.IsAny() {
		s += "@" + d.Constraint.String()
	}
	return s
}

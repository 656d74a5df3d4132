package bucket

import (
	"fmt"

	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/messages"
)

// Problem is a manifest in a bucket that failed to load.
type Problem struct {
	Name string
	Err  error
}

// Report is the outcome of Verify.
type Report struct {
	Bucket   string
	Revision string
	Checked  int
	Problems []Problem
}

// Verify parses every manifest in bucket name at its pinned revision.
func (s *Store) Verify(name string) (Report, error) {
	b, err := s.Get(name)
	if err != nil {
		return Report{}, err
	}
	unlock := s.locks.RLock(writeKey(b.Name))
	defer unlock()

	names, err := s.manifestNames(b.Path, b.Revision)
	if err != nil {
		return Report{}, err
	}
	report := Report{Bucket: b.Name, Revision: b.Revision}
	if len(names) == 0 {
		return report, newError(KindInvalid, b.Name, nil, messages.BucketNoManifestsFmt, short(b.Revision))
	}
	for _, pkg := range names {
		report.Checked++
		raw, _, err := s.readManifestBytes(b, pkg)
		if err == nil {
			_, err = manifest.ParseNamed(pkg, raw)
		}
		if err != nil {
			report.Problems = append(report.Problems, Problem{Name: pkg, Err: fmt.Errorf(messages.BucketManifestFmt, b.Name, err)})
		}
	}
	return report, nil
}

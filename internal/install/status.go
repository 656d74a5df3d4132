package install

import (
	"errors"

	"github.com/conn-castle/shovel/internal/bucket"
	"github.com/conn-castle/shovel/internal/version"
)

// Catalog finds the manifest that would be installed for a package.
type Catalog interface {
	Resolve(pkg string) (bucket.Match, error)
}

// Status compares one installed package against its bucket.
type Status struct {
	Name      string
	Installed string
	Latest    string
	Bucket    string
	Outdated  bool
	// Missing is set when no bucket carries the package any more.
	Missing bool
}

// Status reports every installed package, sorted by name. Packages are
// looked up in the bucket they were installed from when it is known.
func (e *Engine) Status(catalog Catalog) ([]Status, error) {
	records, err := e.records.List()
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(records))
	for _, rec := range records {
		st := Status{Name: rec.Name, Installed: rec.Version, Bucket: rec.Bucket}
		query := rec.Name
		if rec.Bucket != "" {
			query = rec.Bucket + "/" + rec.Name
		}
		match, err := catalog.Resolve(query)
		switch {
		case errors.Is(err, bucket.ErrNotFound):
			st.Missing = true
		case err != nil:
			return nil, err
		default:
			st.Latest = match.Manifest.Version
			st.Bucket = match.Bucket
			st.Outdated = version.Compare(match.Manifest.Version, rec.Version) > 0
		}
		out = append(out, st)
	}
	return out, nil
}

package bucket

import (
	"sort"

	"github.com/sahilm/fuzzy"
)

// SearchResult is one fuzzy match across bucket manifests.
type SearchResult struct {
	Bucket         string
	Name           string
	Score          int
	MatchedIndexes []int
}

type searchSource []SearchResult

func (s searchSource) String(i int) string { return s[i].Name }
func (s searchSource) Len() int { return len(s) }

// Search fuzzy-matches query against every manifest name in every bucket.
// Results are ordered best match first; an empty query lists everything by
// bucket then name.
func (s *Store) Search(query string) ([]SearchResult, error) {
	buckets, err := s.List()
	if err != nil {
		return nil, err
	}
	var source searchSource
	for _, b := range buckets {
		names, err := s.Manifests(b.Name)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			source = append(source, SearchResult{Bucket: b.Name, Name: name})
		}
	}
	if query == "" {
		return source, nil
	}

	matches := fuzzy.FindFrom(query, source)
	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		r := source[m.Index]
		r.Score = m.Score
		r.MatchedIndexes = m.MatchedIndexes
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// Package version compares the free-form version strings found in manifests.
//
// Versions are split into segments at '.', '-', '_' and '+' and at every
// boundary between digits and letters. Segments compare pairwise: numbers
// numerically, words case-insensitively, and a number sorts above a word at the
// same position. When one version runs out of segments, the longer one is
// newer if its next segment is a number ("1.0.1" > "1.0") and older if it is a
// word ("1.0-beta" < "1.0"). A leading "v" is ignored. "nightly" sorts above
// every other version.
package version

import (
	"strings"
	"unicode"
)

// Nightly is the version string manifests use for rolling builds.
const Nightly = "nightly"

type segment struct {
	text    string
	numeric bool
}

// Compare returns -1, 0, or 1 when a is older than, equal to, or newer than b.
func Compare(a string, b string) int {
	a = normalize(a)
	b = normalize(b)
	if a == b {
		return 0
	}
	aNightly := strings.EqualFold(a, Nightly)
	bNightly := strings.EqualFold(b, Nightly)
	switch {
	case aNightly && bNightly:
		return 0
	case aNightly:
		return 1
	case bNightly:
		return -1
	}

	as := split(a)
	bs := split(b)
	for i := 0; i < len(as) || i < len(bs); i++ {
		switch {
		case i >= len(as):
			if bs[i].numeric {
				return -1
			}
			return 1
		case i >= len(bs):
			if as[i].numeric {
				return 1
			}
			return -1
		}
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return 0
}

// Less reports whether a is older than b.
func Less(a string, b string) bool {
	return Compare(a, b) < 0
}

// Latest returns the newest of versions, or "" when versions is empty.
func Latest(versions []string) string {
	latest := ""
	for i, v := range versions {
		if i == 0 || Compare(v, latest) > 0 {
			latest = v
		}
	}
	return latest
}

func normalize(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 1 && (v[0] == 'v' || v[0] == 'V') && v[1] >= '0' && v[1] <= '9' {
		v = v[1:]
	}
	return v
}

func split(v string) []segment {
	var out []segment
	var cur strings.Builder
	curNumeric := false
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, segment{text: cur.String(), numeric: curNumeric})
			cur.Reset()
		}
	}
	for _, r := range v {
		switch {
		case r == '.' || r == '-' || r == '_' || r == '+':
			flush()
		case unicode.IsDigit(r):
			if cur.Len() > 0 && !curNumeric {
				flush()
			}
			curNumeric = true
			cur.WriteRune(r)
		default:
			if cur.Len() > 0 && curNumeric {
				flush()
			}
			curNumeric = false
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

func compareSegment(a segment, b segment) int {
	switch {
	case a.numeric && b.numeric:
		return compareNumeric(a.text, b.text)
	case a.numeric:
		return 1
	case b.numeric:
		return -1
	}
	return strings.Compare(strings.ToLower(a.text), strings.ToLower(b.text))
}

// compareNumeric compares digit strings of any length without overflow.
func compareNumeric(a string, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

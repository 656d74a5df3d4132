package version

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/conn-castle/shovel/internal/messages"
)

// ErrInvalidConstraint is returned for constraints that cannot be parsed.
var ErrInvalidConstraint = errors.New("invalid version constraint")

// Constraint is a parsed dependency version constraint.
//
// Constraints use the semver range syntax ("^1.2", ">= 2.0, < 3", "1.x || 2.x").
// When both the constraint and the candidate parse as semver, semver
// semantics apply. Otherwise the comparison operators fall back to Compare,
// and a bare version means equality.
type Constraint struct {
	raw    string
	semver *semver.Constraints
	groups [][]clause
}

type clause struct {
	op      string
	version string
}

var operators = []string{">=", "<=", "!=", "==", ">", "<", "=", "~", "^"}

// ParseConstraint parses s. Empty, "*" and "latest" accept any version.
func ParseConstraint(s string) (Constraint, error) {
	raw := strings.TrimSpace(s)
	c := Constraint{raw: raw}
	if isAny(raw) {
		return c, nil
	}
	if sem, err := semver.NewConstraint(raw); err == nil {
		c.semver = sem
	}
	for _, group := range strings.Split(raw, "||") {
		var clauses []clause
		for _, part := range strings.FieldsFunc(group, func(r rune) bool { return r == ',' }) {
			cl, err := parseClause(part)
			if err != nil {
				return Constraint{}, err
			}
			clauses = append(clauses, cl...)
		}
		if len(clauses) == 0 {
			return Constraint{}, fmt.Errorf(messages.VersionConstraintInvalidFmt, ErrInvalidConstraint, s)
		}
		c.groups = append(c.groups, clauses)
	}
	return c, nil
}

// MustParseConstraint is ParseConstraint that panics on error. For tests and
// constants only.
func MustParseConstraint(s string) Constraint {
	c, err := ParseConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// parseClause parses one comma-free part, which may hold several
// space-separated comparisons such as ">= 1.0 < 2.0".
func parseClause(part string) ([]clause, error) {
	fields := strings.Fields(part)
	var out []clause
	for i := 0; i < len(fields); i++ {
		field := fields[i]
		op := ""
		for _, candidate := range operators {
			if strings.HasPrefix(field, candidate) {
				op = candidate
				break
			}
		}
		value := strings.TrimSpace(strings.TrimPrefix(field, op))
		if value == "" && op != "" && i+1 < len(fields) {
			i++
			value = fields[i]
		}
		if value == "" {
			return nil, fmt.Errorf(messages.VersionConstraintInvalidFmt, ErrInvalidConstraint, part)
		}
		if op == "" || op == "==" {
			op = "="
		}
		out = append(out, clause{op: op, version: value})
	}
	return out, nil
}

func isAny(raw string) bool {
	return raw == "" || raw == "*" || strings.EqualFold(raw, "latest")
}

// String returns the constraint as written.
func (c Constraint) String() string {
	if c.raw == "" {
		return "*"
	}
	return c.raw
}

// IsAny reports whether c accepts every version.
func (c Constraint) IsAny() bool {
	return isAny(c.raw)
}

// Check reports whether v satisfies c.
func (c Constraint) Check(v string) bool {
	if c.IsAny() {
		return true
	}
	if c.semver != nil {
		if sv, err := semver.NewVersion(v); err == nil {
			return c.semver.Check(sv)
		}
	}
	for _, group := range c.groups {
		ok := true
		for _, cl := range group {
			if !cl.check(v) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (cl clause) check(v string) bool {
	cmp := Compare(v, cl.version)
	switch cl.op {
	case "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case "~", "^":
		// Without semver structure, treat the prefix as the compatible range.
		return cmp >= 0 && sharesLeadingSegment(v, cl.version)
	}
	return false
}

func sharesLeadingSegment(v string, base string) bool {
	vs := split(normalize(v))
	bs := split(normalize(base))
	if len(vs) == 0 || len(bs) == 0 {
		return false
	}
	return compareSegment(vs[0], bs[0]) == 0
}

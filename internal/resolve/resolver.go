// Package resolve turns package requests into an ordered install plan. It
// reads buckets and installed records and never mutates either.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/conn-castle/shovel/internal/bucket"
	"github.com/conn-castle/shovel/internal/messages"
	"github.com/conn-castle/shovel/internal/telemetry"
	"github.com/conn-castle/shovel/internal/version"
)

// maxPasses bounds re-resolution when a later requirement invalidates an
// earlier choice.
const maxPasses = 8

// Source looks up every bucket manifest for a package name.
type Source interface {
	Lookup(name string) ([]bucket.Match, error)
}

// Options configures a Resolver.
type Options struct {
	// Reinstall plans requested packages even when the installed version
	// already satisfies the request.
	Reinstall bool
	Logger    *slog.Logger
}

// Resolver computes plans. It is safe for concurrent use when its Source and
// Installed are.
type Resolver struct {
	source    Source
	installed Installed
	opts      Options
	logger    *slog.Logger
}

// New returns a resolver. A nil installed means nothing is installed.
func New(source Source, installed Installed, opts Options) *Resolver {
	if installed == nil {
		installed = InstalledSet(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{source: source, installed: installed, opts: opts, logger: logger}
}

// requirement is a Requirement with its parsed constraint.
type requirement struct {
	Requirement
	constraint version.Constraint
}

func (r requirement) key() string {
	return r.Bucket + "|" + r.constraint.String()
}

type node struct {
	name      string
	root      bool
	installed *InstalledPackage
	satisfied bool
	match     bucket.Match
	deps      []string
	// unmet is set when no candidate fits the requirements seen when the
	// node was decided. It is classified once the pass has collected every
	// requirement on the package.
	unmet      bool
	candidates []bucket.Match
}

func (n *node) version() string {
	if n.satisfied {
		return n.installed.Version
	}
	return n.match.Manifest.Version
}

func (n *node) accepts(req requirement) bool {
	if n.unmet {
		return false
	}
	if !req.constraint.Check(n.version()) {
		return false
	}
	return n.satisfied || req.Bucket == "" || req.Bucket == n.match.Bucket
}

type resolution struct {
	r       *Resolver
	roots   map[string]bool
	lookups map[string][]bucket.Match
	prev    map[string][]requirement
	cur     map[string][]requirement
	nodes   map[string]*node
	order   []string
}

// Resolve builds a plan for reqs. Resolution errors are returned before any
// step is produced.
func (r *Resolver) Resolve(ctx context.Context, reqs []Request) (plan *Plan, err error) {
	_, span := telemetry.Start(ctx, "resolve")
	defer func() { telemetry.End(span, err) }()

	res := &resolution{
		r:       r,
		roots:   make(map[string]bool, len(reqs)),
		lookups: make(map[string][]bucket.Match),
		prev:    make(map[string][]requirement),
	}
	for _, req := range reqs {
		res.roots[req.Name] = true
	}
	for pass := 0; pass < maxPasses; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := res.pass(reqs); err != nil {
			return nil, err
		}
		if n := res.unmet(); n != nil {
			if _, ok := pick(n.candidates, res.cur[n.name]); !ok {
				return nil, unsatisfiable(n.name, n.candidates, res.cur[n.name])
			}
			// Only stale requirements from the previous pass were in the way.
			r.logger.Debug("re-resolving without stale requirements", "package", n.name, "pass", pass+1)
			res.prev = res.cur
			continue
		}
		unsettled := res.unsettled()
		if unsettled == "" {
			return res.plan()
		}
		if sameRequirements(res.prev[unsettled], res.cur[unsettled]) {
			return nil, unsatisfiable(unsettled, res.lookups[unsettled], res.cur[unsettled])
		}
		r.logger.Debug("re-resolving after new requirements", "package", unsettled, "pass", pass+1)
		res.prev = res.cur
	}
	name := res.unsettled()
	if n := res.unmet(); n != nil {
		name = n.name
	}
	return nil, &Error{
		Kind:         KindConflict,
		Package:      name,
		Requirements: publicRequirements(res.cur[name]),
		Msg:          fmt.Sprintf(messages.ResolveUnstableFmt, name),
	}
}

func (res *resolution) pass(reqs []Request) error {
	res.cur = make(map[string][]requirement)
	res.nodes = make(map[string]*node)
	res.order = nil
	for _, req := range reqs {
		rq := requirement{
			Requirement: Requirement{Bucket: req.Bucket, Constraint: constraintText(req.Constraint)},
			constraint:  req.Constraint,
		}
		if err := res.visit(req.Name, rq, nil); err != nil {
			return err
		}
	}
	return nil
}

func (res *resolution) visit(name string, req requirement, stack []string) error {
	chain := append(slices.Clone(stack), name)
	req.Chain = chain
	res.cur[name] = append(res.cur[name], req)

	if i := slices.Index(stack, name); i >= 0 {
		return cycleError(chain[i:])
	}
	if _, ok := res.nodes[name]; ok {
		return nil
	}
	n, err := res.decide(name, chain)
	if err != nil {
		return err
	}
	res.nodes[name] = n
	res.order = append(res.order, name)
	if n.satisfied || n.unmet {
		return nil
	}
	for _, dep := range n.match.Manifest.Depends {
		rq := requirement{
			Requirement: Requirement{Bucket: dep.Bucket, Constraint: constraintText(dep.Constraint)},
			constraint:  dep.Constraint,
		}
		if err := res.visit(dep.Name, rq, chain); err != nil {
			return err
		}
	}
	return nil
}

// decide picks the version of name given every requirement known so far.
func (res *resolution) decide(name string, chain []string) (*node, error) {
	reqs := mergeRequirements(res.prev[name], res.cur[name])
	n := &node{name: name, root: res.roots[name]}

	var qualified []requirement
	for _, req := range reqs {
		if req.Bucket != "" && !slices.ContainsFunc(qualified, func(q requirement) bool { return q.Bucket == req.Bucket }) {
			qualified = append(qualified, req)
		}
	}
	if len(qualified) > 1 {
		err := conflictError(name, publicRequirements(qualified))
		buckets := make([]string, 0, len(qualified))
		for _, q := range qualified {
			buckets = append(buckets, q.Bucket)
		}
		err.Msg = fmt.Sprintf(messages.ResolveBucketConflictFmt, name, strings.Join(buckets, ", "))
		return nil, err
	}

	inst, ok, err := res.r.installed.Installed(name)
	if err != nil {
		return nil, err
	}
	if ok {
		n.installed = &inst
		if acceptAll(reqs, inst.Version) && !(n.root && res.r.opts.Reinstall) {
			n.satisfied = true
			return n, nil
		}
	}

	candidates, err := res.candidates(name, chain)
	if err != nil {
		return nil, err
	}
	if len(qualified) == 1 {
		candidates = slices.DeleteFunc(slices.Clone(candidates), func(m bucket.Match) bool {
			return m.Bucket != qualified[0].Bucket
		})
	}
	if len(candidates) == 0 {
		return nil, &Error{
			Kind:    KindNotFound,
			Package: name,
			Chain:   chain,
			Msg:     fmt.Sprintf(messages.ResolveNotFoundFmt, name, formatChain(chain)),
		}
	}

	match, ok := pick(candidates, reqs)
	if !ok && len(res.prev[name]) > 0 {
		// Requirements from the previous pass may come from choices that
		// changed since; retry with the current pass alone.
		reqs = res.cur[name]
		match, ok = pick(candidates, reqs)
	}
	if !ok {
		n.unmet = true
		n.candidates = candidates
		return n, nil
	}
	n.match = match
	n.deps = dependencyNames(match)
	res.r.logger.Debug("resolved package", "package", name, "version", match.Manifest.Version, "bucket", match.Bucket)
	return n, nil
}

func (res *resolution) candidates(name string, chain []string) ([]bucket.Match, error) {
	if c, ok := res.lookups[name]; ok {
		return c, nil
	}
	matches, err := res.r.source.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf(messages.ResolveLookupFmt, name, formatChain(chain), err)
	}
	res.lookups[name] = matches
	return matches, nil
}

// unmet returns the first node no candidate could satisfy, or nil.
func (res *resolution) unmet() *node {
	for _, name := range res.order {
		if n := res.nodes[name]; n.unmet {
			return n
		}
	}
	return nil
}

// unsettled returns the first package whose chosen version fails a
// requirement discovered after the choice was made.
func (res *resolution) unsettled() string {
	for _, name := range res.order {
		n := res.nodes[name]
		for _, req := range res.cur[name] {
			if !n.accepts(req) {
				return name
			}
		}
	}
	return ""
}

// pick applies the first-match policy: candidates arrive in bucket order and
// the first one satisfying every requirement wins.
func pick(candidates []bucket.Match, reqs []requirement) (bucket.Match, bool) {
	for _, c := range candidates {
		if acceptAll(reqs, c.Manifest.Version) {
			return c, true
		}
	}
	return bucket.Match{}, false
}

// unsatisfiable explains why no candidate fits reqs, which must hold every
// requirement of the pass. Two or more distinct constraints are a conflict; a
// lone constraint nothing satisfies is not found.
func unsatisfiable(name string, candidates []bucket.Match, reqs []requirement) *Error {
	explicit := make(map[string]bool, len(reqs))
	for _, req := range reqs {
		if !req.constraint.IsAny() {
			explicit[req.constraint.String()] = true
		}
	}
	if len(explicit) > 1 {
		return conflictError(name, publicRequirements(reqs))
	}
	for _, req := range reqs {
		if _, ok := pick(candidates, []requirement{req}); !ok {
			available := make([]string, 0, len(candidates))
			for _, c := range candidates {
				available = append(available, c.Manifest.Version+" in "+c.Bucket)
			}
			return &Error{
				Kind:         KindNotFound,
				Package:      name,
				Chain:        req.Chain,
				Requirements: []Requirement{req.Requirement},
				Msg:          fmt.Sprintf(messages.ResolveUnsatisfiableFmt, name, req.Requirement.String(), strings.Join(available, ", ")),
			}
		}
	}
	return conflictError(name, publicRequirements(reqs))
}

func acceptAll(reqs []requirement, v string) bool {
	for _, req := range reqs {
		if !req.constraint.Check(v) {
			return false
		}
	}
	return true
}

func mergeRequirements(a []requirement, b []requirement) []requirement {
	out := make([]requirement, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, list := range [][]requirement{b, a} {
		for _, req := range list {
			if seen[req.key()] {
				continue
			}
			seen[req.key()] = true
			out = append(out, req)
		}
	}
	return out
}

func sameRequirements(a []requirement, b []requirement) bool {
	keys := func(reqs []requirement) []string {
		out := make([]string, 0, len(reqs))
		for _, req := range reqs {
			out = append(out, req.key())
		}
		slices.Sort(out)
		return slices.Compact(out)
	}
	return slices.Equal(keys(a), keys(b))
}

func publicRequirements(reqs []requirement) []Requirement {
	out := make([]Requirement, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, req.Requirement)
	}
	return out
}

func dependencyNames(m bucket.Match) []string {
	var names []string
	for _, dep := range m.Manifest.Depends {
		if !slices.Contains(names, dep.Name) {
			names = append(names, dep.Name)
		}
	}
	return names
}

func constraintText(c version.Constraint) string {
	if c.IsAny() {
		return ""
	}
	return c.String()
}

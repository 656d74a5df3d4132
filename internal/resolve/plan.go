package resolve

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/messages"
)

// Action is what a step does to a package.
type Action string

const (
	ActionInstall   Action = "install"
	ActionUpgrade   Action = "upgrade"
	ActionReinstall Action = "reinstall"
)

// Step installs one package version.
type Step struct {
	Name     string
	Version  string
	Bucket   string
	Manifest *manifest.Manifest
	Action   Action
	// From is the installed version replaced by an upgrade or reinstall.
	From string
	// Dependencies lists plan steps that must finish first.
	Dependencies []string
}

// ID returns the graph identity of the step.
func (s Step) ID() string {
	return s.Name + "@" + s.Version
}

// Satisfied is a package the plan leaves alone because the installed version
// already meets every requirement.
type Satisfied struct {
	Name      string
	Version   string
	Bucket    string
	Requested bool
}

// Plan is an ordered install plan. Every step appears after all of its
// Dependencies.
type Plan struct {
	Steps     []Step
	Satisfied []Satisfied
}

// Empty reports whether the plan has no steps.
func (p *Plan) Empty() bool {
	return len(p.Steps) == 0
}

// Step returns the step for name.
func (p *Plan) Step(name string) (Step, bool) {
	for _, s := range p.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

func (res *resolution) plan() (*Plan, error) {
	plan := &Plan{}
	inPlan := make(map[string]bool)
	for _, name := range res.order {
		if !res.nodes[name].satisfied {
			inPlan[name] = true
		}
	}

	steps := make(map[string]Step, len(inPlan))
	for _, name := range res.order {
		n := res.nodes[name]
		if n.satisfied {
			plan.Satisfied = append(plan.Satisfied, Satisfied{
				Name:      name,
				Version:   n.installed.Version,
				Bucket:    n.installed.Bucket,
				Requested: n.root,
			})
			continue
		}
		step := Step{
			Name:     name,
			Version:  n.match.Manifest.Version,
			Bucket:   n.match.Bucket,
			Manifest: n.match.Manifest,
			Action:   ActionInstall,
		}
		if n.installed != nil {
			step.From = n.installed.Version
			step.Action = ActionUpgrade
			if step.From == step.Version {
				step.Action = ActionReinstall
			}
		}
		for _, dep := range n.deps {
			if inPlan[dep] {
				step.Dependencies = append(step.Dependencies, dep)
			}
		}
		slices.Sort(step.Dependencies)
		steps[name] = step
	}

	order, err := topoSort(steps)
	if err != nil {
		return nil, err
	}
	for _, name := range order {
		plan.Steps = append(plan.Steps, steps[name])
	}
	slices.SortFunc(plan.Satisfied, func(a, b Satisfied) int { return strings.Compare(a.Name, b.Name) })
	return plan, nil
}

// topoSort orders steps with Kahn's algorithm, always taking the
// alphabetically first ready step.
func topoSort(steps map[string]Step) ([]string, error) {
	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))
	for name, step := range steps {
		indegree[name] = len(step.Dependencies)
		for _, dep := range step.Dependencies {
			dependents[dep] = append(dependents[dep], name)
		}
	}
	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	slices.Sort(ready)

	order := make([]string, 0, len(steps))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		for _, dependent := range dependents[name] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				i, _ := slices.BinarySearch(ready, dependent)
				ready = slices.Insert(ready, i, dependent)
			}
		}
	}
	if len(order) != len(steps) {
		var stuck []string
		for name, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		slices.Sort(stuck)
		return nil, cycleError(append(stuck, stuck[0]))
	}
	return order, nil
}

// Render writes a table of the plan.
func (p *Plan) Render(w io.Writer) error {
	if p.Empty() && len(p.Satisfied) == 0 {
		_, err := fmt.Fprintln(w, messages.PlanEmpty)
		return err
	}
	if !p.Empty() {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, messages.PlanHeader)
		for _, s := range p.Steps {
			action := string(s.Action)
			if s.Action == ActionUpgrade {
				action = fmt.Sprintf(messages.PlanUpgradeFmt, s.From)
			}
			depends := messages.PlanNoDependsText
			if len(s.Dependencies) > 0 {
				depends = strings.Join(s.Dependencies, ",")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.Version, s.Bucket, action, depends)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	for _, s := range p.Satisfied {
		if _, err := fmt.Fprintf(w, messages.PlanSatisfiedFmt+"\n", s.Name, s.Version); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/conn-castle/shovel/internal/install"
	"github.com/conn-castle/shovel/internal/messages"
	"github.com/conn-castle/shovel/internal/resolve"
)

const durationPrecision = 100 * time.Millisecond

// progressPrinter writes intermediate pipeline states as they happen.
// Outcomes are reported once the whole plan finishes.
type progressPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out}
}

// Observe implements install.Observer.
func (p *progressPrinter) Observe(t install.Transition) {
	switch t.To {
	case install.StateFetching, install.StateExtracting, install.StateLinking, install.StateHookRunning, install.StateUninstalling:
	default:
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, messages.ProgressStateFmt, t.Package, t.Version, color.New(color.Faint).Sprint(t.To))
}

// printSatisfied lists requested packages the plan leaves alone.
func printSatisfied(out io.Writer, plan *resolve.Plan) {
	for _, s := range plan.Satisfied {
		if s.Requested {
			_, _ = fmt.Fprintf(out, messages.ResultSatisfiedFmt+"\n", s.Name, s.Version)
		}
	}
}

// printReport writes one line per plan step, then notes and suggestions of
// the packages that installed.
func printReport(out io.Writer, report *install.Report) {
	for _, res := range report.Results {
		if res.Err != nil {
			_, _ = fmt.Fprintln(out, color.RedString(messages.ResultFailedFmt, res.Name, res.Version, res.Err))
			continue
		}
		elapsed := res.Duration.Round(durationPrecision).String()
		var line string
		switch res.Action {
		case resolve.ActionUpgrade:
			line = fmt.Sprintf(messages.ResultUpgradedFmt, res.Name, res.From, res.Version, res.Bucket, elapsed)
		case resolve.ActionReinstall:
			line = fmt.Sprintf(messages.ResultReinstalledFmt, res.Name, res.Version, res.Bucket, elapsed)
		default:
			line = fmt.Sprintf(messages.ResultInstalledFmt, res.Name, res.Version, res.Bucket, elapsed)
		}
		_, _ = fmt.Fprintln(out, color.GreenString(line))
	}
	for _, res := range report.Results {
		if res.Err != nil {
			continue
		}
		if len(res.Notes) > 0 {
			_, _ = fmt.Fprintln(out, color.YellowString(messages.ResultNotesFmt, res.Name))
			for _, note := range res.Notes {
				_, _ = fmt.Fprintln(out, "  "+note)
			}
		}
		features := make([]string, 0, len(res.Suggest))
		for feature := range res.Suggest {
			features = append(features, feature)
		}
		sort.Strings(features)
		for _, feature := range features {
			_, _ = fmt.Fprintf(out, messages.ResultSuggestFmt+"\n", res.Name, feature, strings.Join(res.Suggest[feature], ", "))
		}
	}
	if failed := len(report.Failed()); failed > 0 {
		_, _ = fmt.Fprintln(out, color.RedString(messages.ResultSummaryFmt, failed, len(report.Results)))
	}
}

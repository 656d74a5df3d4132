package install

import (
	"fmt"
	"sync"
	"time"

	"github.com/conn-castle/shovel/internal/messages"
)

// State is a package's position in the install or uninstall lifecycle.
type State string

const (
	StatePlanned      State = "planned"
	StateFetching     State = "fetching"
	StateVerifying    State = "verifying"
	StateExtracting   State = "extracting"
	StateLinking      State = "linking"
	StateHookRunning  State = "running hooks"
	StateInstalled    State = "installed"
	StateFailed       State = "failed"
	StateUninstalling State = "uninstalling"
	StateRemoved      State = "removed"
)

var transitions = map[State][]State{
	StatePlanned:      {StateFetching, StateFailed},
	StateFetching:     {StateVerifying, StateFailed},
	StateVerifying:    {StateExtracting, StateFailed},
	StateExtracting:   {StateLinking, StateFailed},
	StateLinking:      {StateHookRunning, StateFailed},
	StateHookRunning:  {StateInstalled, StateFailed},
	StateInstalled:    {StateUninstalling},
	StateUninstalling: {StateRemoved, StateFailed},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from State, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends a lifecycle.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateRemoved || s == StateInstalled
}

// Transition is one state change of one package.
type Transition struct {
	Package string
	Version string
	From    State
	To      State
	// Err is set on transitions to StateFailed.
	Err error
	At  time.Time
}

// Observer receives every transition. Calls for different packages may be
// concurrent; calls for one package are sequential.
type Observer interface {
	Observe(Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Transition)

// Observe calls f.
func (f ObserverFunc) Observe(t Transition) {
	f(t)
}

// Observers fans a transition out to each observer in order.
type Observers []Observer

// Observe implements Observer.
func (o Observers) Observe(t Transition) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(t)
		}
	}
}

type nopObserver struct{}

func (nopObserver) Observe(Transition) {}

// machine tracks one package and refuses illegal transitions.
type machine struct {
	mu       sync.Mutex
	pkg      string
	version  string
	state    State
	observer Observer
	now      func() time.Time
}

func newMachine(pkg string, version string, start State, observer Observer, now func() time.Time) *machine {
	m := &machine{pkg: pkg, version: version, state: start, observer: observer, now: now}
	if start == StatePlanned {
		m.observer.Observe(Transition{Package: pkg, Version: version, To: StatePlanned, At: now()})
	}
	return m
}

func (m *machine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// to moves the machine. An illegal transition is a programming error.
func (m *machine) to(next State) {
	m.move(next, nil)
}

// fail moves the machine to StateFailed unless it already ended.
func (m *machine) fail(err error) {
	if m.current().Terminal() {
		return
	}
	m.move(StateFailed, err)
}

func (m *machine) move(next State, err error) {
	m.mu.Lock()
	from := m.state
	if !CanTransition(from, next) {
		m.mu.Unlock()
		panic(fmt.Sprintf(messages.InstallBadTransitionFmt, m.pkg, from, next))
	}
	m.state = next
	m.mu.Unlock()
	m.observer.Observe(Transition{Package: m.pkg, Version: m.version, From: from, To: next, Err: err, At: m.now()})
}

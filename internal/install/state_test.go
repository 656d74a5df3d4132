package install

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transitionLog struct {
	mu  sync.Mutex
	all []Transition
}

func (l *transitionLog) Observe(t Transition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.all = append(l.all, t)
}

// states returns the target states seen for pkg, in order.
func (l *transitionLog) states(pkg string) []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []State
	for _, t := range l.all {
		if t.Package == pkg {
			out = append(out, t.To)
		}
	}
	return out
}

func fixedNow() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from State
		to   State
		want bool
	}{
		{StatePlanned, StateFetching, true},
		{StateFetching, StateVerifying, true},
		{StateVerifying, StateExtracting, true},
		{StateExtracting, StateLinking, true},
		{StateLinking, StateHookRunning, true},
		{StateHookRunning, StateInstalled, true},
		{StateInstalled, StateUninstalling, true},
		{StateUninstalling, StateRemoved, true},
		{StateExtracting, StateFailed, true},
		{StatePlanned, StateLinking, false},
		{StateFetching, StateInstalled, false},
		{StateInstalled, StateFailed, false},
		{StateFailed, StateFetching, false},
		{StateRemoved, StateInstalled, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestMachineEmitsEveryTransition(t *testing.T) {
	log := &transitionLog{}
	m := newMachine("jq", "1.7", StatePlanned, log, fixedNow)
	m.to(StateFetching)
	m.to(StateVerifying)
	cause := errors.New("boom")
	m.fail(cause)

	assert.Equal(t, []State{StatePlanned, StateFetching, StateVerifying, StateFailed}, log.states("jq"))
	last := log.all[len(log.all)-1]
	assert.Equal(t, StateVerifying, last.From)
	assert.Same(t, cause, last.Err)
	assert.Equal(t, "1.7", last.Version)
	assert.Equal(t, fixedNow(), last.At)
}

func TestMachineRejectsIllegalTransition(t *testing.T) {
	m := newMachine("jq", "1.7", StatePlanned, nopObserver{}, fixedNow)
	assert.PanicsWithValue(t, "package jq: illegal state transition planned -> linking", func() {
		m.to(StateLinking)
	})
}

func TestMachineFailIsNoOpOnceTerminal(t *testing.T) {
	log := &transitionLog{}
	m := newMachine("jq", "1.7", StateInstalled, log, fixedNow)
	m.fail(errors.New("late"))
	assert.Equal(t, StateInstalled, m.current())
	assert.Empty(t, log.states("jq"))
}

func TestObserversFanOut(t *testing.T) {
	var a, b int
	obs := Observers{
		ObserverFunc(func(Transition) { a++ }),
		ObserverFunc(func(Transition) { b++ }),
	}
	m := newMachine("jq", "1.7", StatePlanned, obs, fixedNow)
	m.to(StateFetching)
	require.Equal(t, 2, a)
	require.Equal(t, 2, b)
}

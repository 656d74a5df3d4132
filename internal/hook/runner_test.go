//go:build unix

package hook

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRun struct {
	name string
	err  error
}

type fakeRecorder struct {
	runs []recordedRun
}

func (f *fakeRecorder) HookFinished(name string, _ time.Duration, err error) {
	f.runs = append(f.runs, recordedRun{name: name, err: err})
}

func TestRunCapturesOutputInDirWithEnv(t *testing.T) {
	dir := t.TempDir()
	rec := &fakeRecorder{}
	runner := NewRunner(Options{Recorder: rec})

	res, err := runner.Run(context.Background(), Request{
		Name:   "post_install",
		Script: "echo \"app=$SHOVEL_APP\"\npwd\necho oops >&2",
		Dir:    dir,
		Env:    map[string]string{"SHOVEL_APP": "7zip"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Output, "app=7zip")
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Contains(t, res.Output, resolved)
	assert.Contains(t, res.Output, "oops")
	require.Len(t, rec.runs, 1)
	assert.Equal(t, "post_install", rec.runs[0].name)
	assert.NoError(t, rec.runs[0].err)
}

func TestRunNonZeroExit(t *testing.T) {
	rec := &fakeRecorder{}
	runner := NewRunner(Options{Recorder: rec})
	res, err := runner.Run(context.Background(), Request{Name: "pre_install", Script: "echo broken\nexit 3", Dir: t.TempDir()})
	require.ErrorIs(t, err, ErrFailed)

	var herr *Error
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, 3, herr.ExitCode)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, herr.Output, "broken")
	assert.Contains(t, err.Error(), "pre_install")
	assert.Contains(t, err.Error(), "3")
	require.Len(t, rec.runs, 1)
	assert.Error(t, rec.runs[0].err)
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "survived")
	runner := NewRunner(Options{Timeout: 200 * time.Millisecond})

	start := time.Now()
	_, err := runner.Run(context.Background(), Request{
		Name:   "post_install",
		Script: "(sleep 1; touch " + marker + ") &\nsleep 30",
		Dir:    dir,
	})
	require.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsTimeout(err))
	assert.Less(t, time.Since(start), 10*time.Second)

	time.Sleep(1500 * time.Millisecond)
	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "background child outlived the hook")
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := NewRunner(Options{}).Run(ctx, Request{Name: "pre_uninstall", Script: "sleep 30", Dir: t.TempDir()})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTimeout(err))
}

func TestRunStartFailure(t *testing.T) {
	runner := NewRunner(Options{Interpreter: []string{filepath.Join(t.TempDir(), "no-such-shell"), "-c"}})
	_, err := runner.Run(context.Background(), Request{Name: "installer", Script: "true", Dir: t.TempDir()})
	require.ErrorIs(t, err, ErrStart)
	assert.Contains(t, err.Error(), "installer")
}

func TestRunBlankScriptIsNoop(t *testing.T) {
	runner := NewRunner(Options{Interpreter: []string{"/definitely/not/here"}})
	res, err := runner.Run(context.Background(), Request{Name: "post_install", Script: "  \n"})
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestRunBoundsOutput(t *testing.T) {
	runner := NewRunner(Options{MaxOutput: 16})
	res, err := runner.Run(context.Background(), Request{Name: "noisy", Script: "printf '%0100d' 0", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Output, strings.Repeat("0", 16)))
	assert.Contains(t, res.Output, "[output truncated]")
}

func TestEnvironIsMinimal(t *testing.T) {
	orig := lookupEnv
	t.Cleanup(func() { lookupEnv = orig })
	lookupEnv = func(key string) (string, bool) {
		switch key {
		case "PATH":
			return "/usr/bin", true
		case "HOME":
			return "/home/u", true
		}
		return "", false
	}
	t.Setenv("SHOVEL_TEST_SECRET", "leak")

	env := environ(map[string]string{"HOME": "/override", "SHOVEL_DIR": "/apps/x"})
	assert.Equal(t, []string{"HOME=/override", "PATH=/usr/bin", "SHOVEL_DIR=/apps/x"}, env)
}

func TestBoundedBufferWriteNeverFails(t *testing.T) {
	buf := newBoundedBuffer(4)
	n, err := buf.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	n, err = buf.Write([]byte("gh"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "abcd\n[output truncated]\n", buf.String())
}

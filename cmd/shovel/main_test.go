package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/shovel/internal/testutil"
)

// NOTE: Tests in this package mutate package-level globals (executeFunc,
// colorEnabled, color.NoColor, Version metadata). Do not use t.Parallel().

// TestMain serves file remotes in-process so bucket clones do not need a git
// binary.
func TestMain(m *testing.M) {
	testutil.ServeFileRemotes()
	os.Exit(m.Run())
}

func stubExecute(t *testing.T, fn func(args []string, stdout io.Writer, stderr io.Writer) error) {
	t.Helper()
	orig := executeFunc
	executeFunc = fn
	t.Cleanup(func() { executeFunc = orig })
}

func TestMainVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, execute([]string{"shovel", "--version"}, &out, &out))
	assert.Contains(t, out.String(), Version)
}

func TestMainUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := execute([]string{"shovel", "unknown"}, &out, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestRunMainSuccess(t *testing.T) {
	var out bytes.Buffer
	called := false
	runMain([]string{"shovel", "--version"}, &out, &out, func(int) { called = true })
	assert.False(t, called, "unexpected exit")
}

func TestRunMainError(t *testing.T) {
	var out bytes.Buffer
	code := 0
	runMain([]string{"shovel", "unknown"}, &out, &out, func(c int) { code = c })
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "unknown command")
}

func TestRunMainSilentExit(t *testing.T) {
	stubExecute(t, func([]string, io.Writer, io.Writer) error {
		return fmt.Errorf("wrapped: %w", &SilentExitError{Code: 3})
	})
	var out bytes.Buffer
	code := 0
	runMain([]string{"shovel"}, &out, &out, func(c int) { code = c })
	assert.Equal(t, 3, code)
	assert.Empty(t, out.String())
}

func TestRunMainCanceled(t *testing.T) {
	stubExecute(t, func([]string, io.Writer, io.Writer) error {
		return fmt.Errorf("install: %w", context.Canceled)
	})
	var out bytes.Buffer
	code := 0
	runMain([]string{"shovel"}, &out, &out, func(c int) { code = c })
	assert.Equal(t, exitInterrupted, code)
	assert.Contains(t, out.String(), "context canceled")
}

func TestMainCallsExecute(t *testing.T) {
	stubExecute(t, func(args []string, _ io.Writer, _ io.Writer) error {
		if len(args) != 2 || args[1] != "--version" {
			return errors.New("unexpected args")
		}
		return nil
	})
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()
	os.Args = []string{"shovel", "--version"}
	main()
}

func TestVersionString(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, BuildDate
	t.Cleanup(func() { Version, Commit, BuildDate = origVersion, origCommit, origDate })

	Version, Commit, BuildDate = "v1.2.3", "unknown", "unknown"
	assert.Equal(t, "v1.2.3", versionString())

	Commit = "abc1234"
	assert.Equal(t, "v1.2.3 (commit abc1234)", versionString())

	BuildDate = "2024-05-01"
	assert.Equal(t, "v1.2.3 (commit abc1234, built 2024-05-01)", versionString())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, execute([]string{"shovel", "version"}, &out, &out))
	assert.Equal(t, versionString()+"\n", out.String())
}

func TestRootHelp(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, execute([]string{"shovel"}, &out, &out))
	assert.Contains(t, out.String(), "manifest")
	for _, sub := range []string{"install", "uninstall", "update", "plan", "bucket", "search", "info", "cat", "list", "status", "cache"} {
		assert.Contains(t, out.String(), sub)
	}
}

func TestRootRejectsUnknownLogFormat(t *testing.T) {
	var out bytes.Buffer
	err := execute([]string{"shovel", "--log-format", "xml", "version"}, &out, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid --log-format "xml"`)
}

func TestColorFollowsTerminalAndFlag(t *testing.T) {
	origNoColor := color.NoColor
	origEnabled := colorEnabled
	t.Cleanup(func() {
		color.NoColor = origNoColor
		colorEnabled = origEnabled
	})
	colorEnabled = func(io.Writer) bool { return true }

	var out bytes.Buffer
	require.NoError(t, execute([]string{"shovel", "version"}, &out, &out))
	assert.False(t, color.NoColor)

	require.NoError(t, execute([]string{"shovel", "--no-color", "version"}, &out, &out))
	assert.True(t, color.NoColor)

	colorEnabled = func(io.Writer) bool { return false }
	require.NoError(t, execute([]string{"shovel", "version"}, &out, &out))
	assert.True(t, color.NoColor)
}

func TestNewLoggerLevelsAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := (&rootOptions{logFormat: logFormatText}).newLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "package", "jq")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "package=jq")

	buf.Reset()
	logger = (&rootOptions{logFormat: logFormatJSON, verbose: true}).newLogger(&buf)
	logger.Debug("detail", "bucket", "main")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
	assert.Contains(t, buf.String(), `"bucket":"main"`)
}

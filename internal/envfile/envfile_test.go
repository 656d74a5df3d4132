package envfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmpty(t *testing.T) {
	env, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, env.Path)
	assert.Empty(t, env.Vars)
}

func TestParseKeepsPathOrder(t *testing.T) {
	env, err := Parse("# comment\nPATH+=/a\n\nPATH += /b\nPATH+=/a\nJAVA_HOME=\"/opt/jdk 21\"\nGREETING='hi # there'\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b"}, env.Path)
	assert.Equal(t, map[string]string{"JAVA_HOME": "/opt/jdk 21", "GREETING": "hi # there"}, env.Vars)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "no equals", content: "JUSTAKEY", want: "line 1"},
		{name: "append to non path", content: "FOO+=x", want: "PATH+=DIR"},
		{name: "bad key", content: "ok=1\n1BAD=2", want: "line 2"},
		{name: "path as variable", content: "PATH=/usr/bin", want: "path entries"},
		{name: "unterminated", content: `A="open`, want: "unterminated"},
		{name: "trailing garbage", content: `A="x" y`, want: "trailing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.content)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAddPathIsIdempotent(t *testing.T) {
	env := New()
	assert.Equal(t, []string{"/apps/git/current/cmd"}, env.AddPath("/apps/git/current/cmd"))
	assert.Equal(t, []string{"/apps/jq/current"}, env.AddPath("/apps/jq/current", "/apps/git/current/cmd"))
	assert.Empty(t, env.AddPath("/apps/jq/current"))
	assert.Equal(t, []string{"/apps/jq/current", "/apps/git/current/cmd"}, env.Path)

	assert.Equal(t, []string{"/apps/jq/current"}, env.RemovePath("/apps/jq/current", "/never/added"))
	assert.Equal(t, []string{"/apps/git/current/cmd"}, env.Path)
}

func TestSetRejectsInvalidKeys(t *testing.T) {
	env := New()
	_, _, err := env.Set("path", "/x")
	require.Error(t, err)
	_, _, err = env.Set("has space", "x")
	require.Error(t, err)

	prev, existed, err := env.Set("JAVA_HOME", "/a")
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Empty(t, prev)
	prev, existed, err = env.Set("JAVA_HOME", "/b")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, "/a", prev)
	env.Unset("JAVA_HOME")
	assert.Empty(t, env.Vars)
}

func TestFormatRoundTrips(t *testing.T) {
	env := New()
	env.AddPath("/b", "/a dir")
	_, _, err := env.Set("Z_VAR", "line1\nline2\r")
	require.NoError(t, err)
	_, _, err = env.Set("A_VAR", `quote " and \ slash`)
	require.NoError(t, err)
	_, _, err = env.Set("EMPTY", "")
	require.NoError(t, err)

	out := env.Format()
	assert.Contains(t, out, "PATH+=/b\nPATH+=\"/a dir\"\n")

	parsed, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, env.Path, parsed.Path)
	assert.Equal(t, env.Vars, parsed.Vars)
}

func TestScript(t *testing.T) {
	env := New()
	env.AddPath("/apps/b", "/apps/it's")
	_, _, err := env.Set("JAVA_HOME", "/opt/jdk")
	require.NoError(t, err)

	script := env.Script()
	assert.Contains(t, script, `export PATH='/apps/b':'/apps/it'\''s':"$PATH"`)
	assert.Contains(t, script, "export JAVA_HOME='/opt/jdk'\n")
}

func TestScriptWithoutPath(t *testing.T) {
	assert.NotContains(t, New().Script(), "PATH")
}

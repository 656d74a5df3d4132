package hook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandLineQuotesForShell(t *testing.T) {
	runner := NewRunner(Options{Interpreter: []string{"sh", "-c"}})
	assert.Equal(t, `exec '/apps/x/setup.sh' '--dir' 'it'\''s here'`, runner.CommandLine("/apps/x/setup.sh", []string{"--dir", "it's here"}))
}

func TestCommandLineQuotesForPowerShell(t *testing.T) {
	runner := NewRunner(Options{Interpreter: []string{`C:\Program Files\PowerShell\7\pwsh.exe`, "-Command"}})
	assert.Equal(t, "& 'C:\\apps\\x\\setup.exe' '/S' 'it''s'\nexit $LASTEXITCODE", runner.CommandLine(`C:\apps\x\setup.exe`, []string{"/S", "it's"}))
}

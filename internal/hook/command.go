package hook

import (
	"path"
	"strings"
)

// CommandLine renders a script line that runs exe with args under the
// runner's interpreter.
func (r *Runner) CommandLine(exe string, args []string) string {
	if isPowerShell(r.opts.Interpreter[0]) {
		parts := []string{"&", psQuote(exe)}
		for _, arg := range args {
			parts = append(parts, psQuote(arg))
		}
		return strings.Join(parts, " ") + "\nexit $LASTEXITCODE"
	}
	parts := []string{"exec", shQuote(exe)}
	for _, arg := range args {
		parts = append(parts, shQuote(arg))
	}
	return strings.Join(parts, " ")
}

func isPowerShell(interpreter string) bool {
	base := strings.ToLower(path.Base(strings.ReplaceAll(interpreter, `\`, "/")))
	base = strings.TrimSuffix(base, ".exe")
	return base == "pwsh" || base == "powershell"
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

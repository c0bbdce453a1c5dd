package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/barysiuk/clipbridge/internal/core"
)

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// stdioIsTerminal reports whether stdin and stdout are both terminals.
var stdioIsTerminal = func() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

// attended reports whether someone is at the keyboard: --yes was not given
// and both stdin and stdout are terminals.
func attended(cmd *cobra.Command) bool {
	if yes, err := cmd.Flags().GetBool("yes"); err == nil && yes {
		return false
	}
	return stdioIsTerminal()
}

// terminalWidth returns the width of stdout, or 0 when it is not a terminal.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}

// settingsOverrides collects the settings flags the user actually passed.
// Unset flags stay nil so they can be asked for or defaulted.
func settingsOverrides(cmd *cobra.Command) core.SettingsOverrides {
	var o core.SettingsOverrides
	flags := cmd.Flags()
	if flags.Changed("ttl") {
		v, _ := flags.GetInt("ttl")
		o.TTLSeconds = &v
	}
	if flags.Changed("max-dimension") {
		v, _ := flags.GetInt("max-dimension")
		o.MaxImageDimension = &v
	}
	if flags.Changed("restrict-to-home") {
		v, _ := flags.GetBool("restrict-to-home")
		o.RestrictToHome = &v
	}
	return o
}

// scopeFlag parses --scope. An empty value means "decide".
func scopeFlag(cmd *cobra.Command) (core.Scope, error) {
	s, _ := cmd.Flags().GetString("scope")
	if s == "" {
		return "", nil
	}
	return core.ParseScope(s)
}

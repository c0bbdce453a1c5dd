package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/barysiuk/clipbridge/internal/tui"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "clipbridge",
	Short: "Install the WSL clipboard bridge and wire it into ShareX",
	Long: `clipbridge installs the xclip-compatible clipboard bridge into a WSL
distribution, writes its configuration, and adds a ShareX action that copies
screenshots straight into the WSL clipboard.

Run without flags for a guided install, or pass --yes for an unattended one.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// Decided before any validation so flag errors also pause.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		pauseOnError = attended(cmd)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "clipbridge %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

// pauseOnError is set by attended runs so a console window opened by
// double-clicking the installer stays up long enough to read the error.
var pauseOnError bool

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log diagnostics to stderr")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command and reports a failure on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		tui.RenderError(os.Stderr, err)
		if pauseOnError {
			waitForEnter(os.Stdin, os.Stderr)
		}
	}
	return err
}

func waitForEnter(in io.Reader, out io.Writer) {
	fmt.Fprint(out, "\nPress Enter to exit...")
	_, _ = bufio.NewReader(in).ReadString('\n')
}

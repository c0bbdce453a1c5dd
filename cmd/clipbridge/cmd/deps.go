package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/barysiuk/clipbridge/internal/core"
	"github.com/barysiuk/clipbridge/internal/core/guest"
	"github.com/barysiuk/clipbridge/internal/logging"
)

// deps holds shared dependencies for CLI commands.
type deps struct {
	config *core.ConfigManager
	runner *guest.WSL
	log    zerolog.Logger
}

// newDeps creates shared dependencies. Called lazily by commands that need them.
func newDeps(cmd *cobra.Command) (*deps, error) {
	config, err := core.NewConfigManager()
	if err != nil {
		return nil, fmt.Errorf("initializing config: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := logging.New(logging.Options{
		Verbose: verbose,
		Out:     cmd.ErrOrStderr(),
		NoColor: !isTerminal(os.Stderr),
	})
	runner := guest.NewWSL("")
	logger.Debug().Str("wsl", runner.Binary()).Str("prefs_dir", config.ConfigDir()).Msg("starting")

	return &deps{
		config: config,
		runner: runner,
		log:    logger,
	}, nil
}

package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/barysiuk/clipbridge/internal/core"
	"github.com/barysiuk/clipbridge/internal/tui"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the clipboard bridge into a WSL distribution",
	Long: `Install the clipboard bridge into a WSL distribution.

The installer:
  1. finds the WSL distributions and picks one (or uses --instance)
  2. downloads the bridge binary for its architecture and verifies the
     published checksum when one exists
  3. installs it into ~/.local/bin (user scope) or /usr/local/bin (system
     scope) and makes sure the directory is on PATH
  4. writes ~/.config/wsl-clip-bridge/config.toml inside the distribution
  5. adds a "Copy Image to WSL Clipboard" action to ShareX, backing up
     ApplicationConfig.json first

Nothing is changed until the plan is confirmed. With --yes every question
takes its default and a running ShareX is left alone, which fails the run.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if name, _ := cmd.Flags().GetString("instance"); name != "" {
			if err := core.ValidateInstanceName(name); err != nil {
				return err
			}
		}
		if _, err := scopeFlag(cmd); err != nil {
			return err
		}
		return nil
	},
	RunE: runInstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	d, err := newDeps(cmd)
	if err != nil {
		return err
	}

	interactive := attended(cmd)

	scope, _ := scopeFlag(cmd)
	instance, _ := cmd.Flags().GetString("instance")
	skip, _ := cmd.Flags().GetBool("skip-sharex")
	sharexConfig, _ := cmd.Flags().GetString("sharex-config")
	releaseBase, _ := cmd.Flags().GetString("release-base")

	var prompter core.Prompter = core.AutoPrompter{}
	if interactive {
		prompter = tui.NewPrompter(os.Stdin, os.Stdout)
	}
	out := cmd.OutOrStdout()

	orch := core.NewOrchestrator(core.Deps{
		Runner:     d.runner,
		Prompter:   prompter,
		Reporter:   tui.NewReporter(out),
		Log:        d.log,
		Config:     d.config,
		HTTPClient: core.NewHTTPClient(),
		Processes:  core.HostProcesses{},
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sum, err := orch.Run(ctx, core.Options{
		Instance:        instance,
		Scope:           scope,
		Settings:        settingsOverrides(cmd),
		SkipCompanion:   skip,
		CompanionConfig: sharexConfig,
		ReleaseBase:     releaseBase,
		Interactive:     interactive,
	})
	if err != nil {
		return err
	}

	text, err := tui.RenderNextSteps(sum, interactive, terminalWidth())
	if err != nil {
		d.log.Warn().Err(err).Msg("falling back to plain summary")
		text = tui.NextStepsMarkdown(sum)
	}
	fmt.Fprint(out, text)
	return nil
}

func init() {
	installCmd.Flags().BoolP("yes", "y", false, "Accept all defaults without prompting")
	installCmd.Flags().StringP("instance", "d", "", "WSL distribution to install into")
	installCmd.Flags().String("scope", "", "Install scope: user (~/.local/bin) or system (/usr/local/bin)")
	installCmd.Flags().Int("ttl", core.DefaultTTLSeconds, "Seconds the bridge keeps clipboard data (1-86400)")
	installCmd.Flags().Int("max-dimension", core.DefaultMaxImageDimension, "Downscale images larger than this many pixels (0 disables)")
	installCmd.Flags().Bool("restrict-to-home", true, "Only let the bridge read files under the home directory")
	installCmd.Flags().Bool("skip-sharex", false, "Do not touch the ShareX configuration")
	installCmd.Flags().String("sharex-config", "", "Path to ShareX ApplicationConfig.json")
	installCmd.Flags().String("release-base", "", "Base URL to download release assets from (https only)")
	rootCmd.AddCommand(installCmd)
}

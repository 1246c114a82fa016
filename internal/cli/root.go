// Package cli wires the ledger store to a cobra command tree.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"studyledger/internal/config"
	"studyledger/internal/ledger"
	"studyledger/internal/ui"
)

const Version = "0.3.0"

// app carries the process-level dependencies shared by every command.
type app struct {
	configPath string
	verbose    bool

	in         io.Reader
	isTerminal func() bool
	now        func() time.Time
	runTUI     func(*ledger.Store, config.Config) error
}

func defaultApp() *app {
	return &app{
		in:         os.Stdin,
		isTerminal: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
		now:        time.Now,
		runTUI:     ui.Run,
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "studyledger",
		Short:         "Study points ledger: earn points for tasks, spend them on rewards",
		Long:          "studyledger tracks study tasks, rewards and a points balance with a full history.\nRun without a subcommand to open the interactive board.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, a)
		},
	}
	rootCmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default $"+config.EnvConfigPath+" or the user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(
		newTUICmd(a),
		newTaskCmd(a),
		newRewardCmd(a),
		newHistoryCmd(a),
		newStatsCmd(a),
		newBalanceCmd(a),
		newCurrencyCmd(a),
		newTemplateCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newResetCmd(a),
	)
	return rootCmd
}

func Execute() {
	if err := newRootCmd(defaultApp()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Bad.Render(ui.IconError+" "+err.Error()))
		os.Exit(1)
	}
}

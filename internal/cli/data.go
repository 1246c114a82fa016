package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"studyledger/internal/config"
	"studyledger/internal/ledger"
	"studyledger/internal/ui"
)

var errNotConfirmed = errors.New("aborted")

// confirm asks prompt on the terminal. Without a terminal the caller must
// pass --yes.
func (a *app) confirm(cmd *cobra.Command, yes bool, prompt string) error {
	if yes {
		return nil
	}
	if !a.isTerminal() {
		return errors.New("stdin is not a terminal: pass --yes to confirm")
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s [y/N]: ", ui.Warn.Render(ui.IconWarn), prompt)
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	}
	return errNotConfirmed
}

func newExportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole ledger as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				data, err := s.ExportSnapshot()
				if err != nil {
					return err
				}
				data = append(data, '\n')
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", ui.Good.Render(ui.IconScroll+" Exported to"), output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "import [file|-]",
		Short: "Replace the whole ledger with an exported JSON snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if len(args) == 0 || args[0] == "-" {
				// stdin carries the snapshot, so it cannot also carry the answer.
				if !yes {
					return errors.New("reading the snapshot from stdin: pass --yes to confirm")
				}
				data, err = io.ReadAll(a.in)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			if err := a.confirm(cmd, yes, "Replace all tasks, rewards, points and history?"); err != nil {
				return err
			}
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				if err := s.ImportSnapshot(data); err != nil {
					return err
				}
				st := s.Snapshot()
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d tasks, %d rewards, %d history entries  balance %s\n",
					ui.Good.Render("Imported"), len(st.Tasks), len(st.Rewards), len(st.History),
					ui.Balance(st.Points, st.Currency))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every task, reward and history entry and zero the balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.confirm(cmd, yes, "Erase the whole ledger?"); err != nil {
				return err
			}
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				if err := s.Reset(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.Good.Render("Ledger reset"))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newTemplateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Preset catalogues of tasks and rewards",
	}

	var file string
	var yes bool
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Replace tasks and rewards with a catalogue (built-in unless --file)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ledger.BuiltinCatalogue()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				if c, err = ledger.LoadCatalogue(f); err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
			}
			if err := a.confirm(cmd, yes, "Replace all tasks and rewards? Points and history are kept."); err != nil {
				return err
			}
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				if err := s.ImportCatalogue(c); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d tasks, %d rewards\n",
					ui.Good.Render(ui.IconScroll+" Imported catalogue:"), len(c.Tasks), len(c.Rewards))
				return nil
			})
		},
	}
	importCmd.Flags().StringVarP(&file, "file", "f", "", "YAML catalogue to import")
	importCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	cmd.AddCommand(importCmd)
	return cmd
}

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, a)
		},
	}
}

func runTUI(cmd *cobra.Command, a *app) error {
	return a.withStore(cmd, func(s *ledger.Store, cfg config.Config) error {
		return a.runTUI(s, cfg)
	})
}

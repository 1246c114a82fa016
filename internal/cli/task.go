package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"studyledger/internal/config"
	"studyledger/internal/ledger"
	"studyledger/internal/ui"
)

func newTaskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage study tasks",
	}
	cmd.AddCommand(
		newTaskAddCmd(a),
		newTaskListCmd(a),
		newTaskEditCmd(a),
		newTaskRmCmd(a),
		newTaskDoneCmd(a),
	)
	return cmd
}

func exactlyOne(what string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

func newTaskAddCmd(a *app) *cobra.Command {
	var in ledger.TaskInput
	var freq string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a task",
		Args:  exactlyOne("name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ledger.ParseFrequency(freq)
			if err != nil {
				return err
			}
			in.Name = args[0]
			in.Frequency = f
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				t, err := s.AddTask(in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", ui.Good.Render(ui.IconTask+" Added"), t.Name, ui.Muted.Render(t.ID))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&in.Points, "points", "p", 0, "Points earned per completion")
	cmd.Flags().StringVarP(&in.Category, "category", "c", "", "Category")
	cmd.Flags().StringVarP(&freq, "frequency", "f", string(ledger.FrequencyDaily), "Frequency (daily|weekly|as_needed)")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "Description")
	_ = cmd.MarkFlagRequired("points")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newTaskListCmd(a *app) *cobra.Command {
	var freq, category string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := ledger.TaskFilter{Category: category}
			if freq != "" && freq != "all" {
				f, err := ledger.ParseFrequency(freq)
				if err != nil {
					return err
				}
				filter.Frequency = f
			}
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				tasks := s.Tasks(filter)
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), ui.Muted.Render("No tasks."))
					return nil
				}
				rows := make([][]string, 0, len(tasks))
				for _, t := range tasks {
					rows = append(rows, []string{t.ID, t.Category, t.Name, strconv.Itoa(t.Points), string(t.Frequency)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "CATEGORY", "NAME", "POINTS", "FREQUENCY"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&freq, "frequency", "f", "", "Only tasks of this frequency (all|daily|weekly|as_needed)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only tasks in this category")
	return cmd
}

func newTaskEditCmd(a *app) *cobra.Command {
	var name, category, freq, desc string
	var points int

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task",
		Args:  exactlyOne("task id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch ledger.TaskPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("category") {
				patch.Category = &category
			}
			if flags.Changed("points") {
				patch.Points = &points
			}
			if flags.Changed("description") {
				patch.Description = &desc
			}
			if flags.Changed("frequency") {
				f, err := ledger.ParseFrequency(freq)
				if err != nil {
					return err
				}
				patch.Frequency = &f
			}
			if patch == (ledger.TaskPatch{}) {
				return errors.New("nothing to change: pass at least one of --name, --category, --points, --frequency, --description")
			}
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				t, err := s.UpdateTask(args[0], patch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Good.Render("Updated"), t.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "New name")
	cmd.Flags().StringVarP(&category, "category", "c", "", "New category")
	cmd.Flags().IntVarP(&points, "points", "p", 0, "New points")
	cmd.Flags().StringVarP(&freq, "frequency", "f", "", "New frequency (daily|weekly|as_needed)")
	cmd.Flags().StringVarP(&desc, "description", "d", "", "New description")
	return cmd
}

func newTaskRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task (history is kept)",
		Args:    exactlyOne("task id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				if err := s.DeleteTask(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Good.Render("Deleted"), args[0])
				return nil
			})
		},
	}
}

func newTaskDoneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "done <id>",
		Aliases: []string{"complete"},
		Short:   "Complete a task and earn its points",
		Args:    exactlyOne("task id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				entry, err := s.CompleteTask(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s  balance %s\n",
					ui.Good.Render(ui.IconDone+" Completed"), entry.TaskName,
					ui.Signed(entry.Delta()), ui.Balance(s.Points(), s.Currency()))
				return nil
			})
		},
	}
}

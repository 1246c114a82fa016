package cli

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"studyledger/internal/config"
	"studyledger/internal/ledger"
	"studyledger/internal/ui"
)

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(ui.Muted).
		Headers(headers...).
		Rows(rows...).
		String()
}

func newHistoryCmd(a *app) *cobra.Command {
	var kind string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show completions and redemptions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var only ledger.EntryType
			switch strings.ToLower(kind) {
			case "", "all":
			case string(ledger.EntryTask):
				only = ledger.EntryTask
			case string(ledger.EntryReward):
				only = ledger.EntryReward
			default:
				return fmt.Errorf("--type must be task or reward, got %q", kind)
			}
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				history := s.History()
				slices.Reverse(history)

				rows := make([][]string, 0, len(history))
				for _, h := range history {
					if only != "" && h.Type != only {
						continue
					}
					if limit > 0 && len(rows) == limit {
						break
					}
					rows = append(rows, []string{
						h.Date.Local().Format("2006-01-02 15:04"),
						string(h.Type),
						h.Label(),
						fmt.Sprintf("%+d", h.Delta()),
					})
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), ui.Muted.Render("No history."))
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"DATE", "TYPE", "NAME", "POINTS"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&kind, "type", "t", "", "Only entries of this type (task|reward)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most N entries (0 for all)")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	var weeks int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Totals, category breakdown and weekly trend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if weeks < 0 {
				return fmt.Errorf("--weeks must not be negative")
			}
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				st := s.Stats(a.now(), weeks)
				w := cmd.OutOrStdout()
				cur := s.Currency()

				fmt.Fprintln(w, ui.Heading(ui.IconChart, "Statistics"))
				fmt.Fprintf(w, "Tasks completed:  %d (+%d %s)\n", st.TasksCompleted, st.PointsEarned, cur)
				fmt.Fprintf(w, "Rewards redeemed: %d (-%d %s)\n", st.RewardsRedeemed, st.PointsSpent, cur)
				fmt.Fprintf(w, "Balance:          %s\n", ui.Balance(s.Points(), cur))

				printBuckets(w, "Tasks by category", st.TaskCategories)
				printBuckets(w, "Rewards by category", st.RewardCategories)

				rows := make([][]string, 0, len(st.Weeks))
				for _, wk := range st.Weeks {
					rows = append(rows, []string{
						wk.Label,
						strconv.Itoa(wk.Completed), "+" + strconv.Itoa(wk.Earned),
						strconv.Itoa(wk.Redeemed), "-" + strconv.Itoa(wk.Spent),
					})
				}
				fmt.Fprintln(w, ui.H2.Render("Weekly trend"))
				fmt.Fprintln(w, renderTable([]string{"WEEK", "DONE", "EARNED", "REDEEMED", "SPENT"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&weeks, "weeks", "w", ledger.DefaultTrendWeeks, "Number of weeks in the trend")
	return cmd
}

func printBuckets(w io.Writer, title string, buckets []ledger.Bucket) {
	fmt.Fprintln(w, ui.H2.Render(title))
	if len(buckets) == 0 {
		fmt.Fprintln(w, ui.Muted.Render("  none"))
		return
	}
	for _, b := range buckets {
		name := b.Name
		if name == "" {
			name = "(deleted)"
		}
		fmt.Fprintf(w, "  %-16s %3d× %5d\n", name, b.Count, b.Points)
	}
}

func newBalanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the points balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", s.Points(), s.Currency())
				return nil
			})
		},
	}
}

func newCurrencyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "currency",
		Short: "Show or change the currency label",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				fmt.Fprintln(cmd.OutOrStdout(), s.Currency())
				return nil
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <label>",
		Short: "Rename the points currency",
		Args:  exactlyOne("label"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				if err := s.SetCurrency(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Good.Render("Currency is now"), s.Currency())
				return nil
			})
		},
	})
	return cmd
}

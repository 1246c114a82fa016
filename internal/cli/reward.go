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

func newRewardCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reward",
		Short: "Manage rewards",
	}
	cmd.AddCommand(
		newRewardAddCmd(a),
		newRewardListCmd(a),
		newRewardEditCmd(a),
		newRewardRmCmd(a),
		newRewardRedeemCmd(a),
	)
	return cmd
}

func newRewardAddCmd(a *app) *cobra.Command {
	var in ledger.RewardInput

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a reward",
		Args:  exactlyOne("name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				r, err := s.AddReward(in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", ui.Good.Render(ui.IconReward+" Added"), r.Name, ui.Muted.Render(r.ID))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&in.Cost, "cost", "p", 0, "Points needed to redeem")
	cmd.Flags().StringVarP(&in.Category, "category", "c", "", "Category")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "Description")
	_ = cmd.MarkFlagRequired("cost")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newRewardListCmd(a *app) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List rewards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				rewards := s.Rewards(ledger.ParseRewardFilter(filter))
				if len(rewards) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), ui.Muted.Render("No rewards."))
					return nil
				}
				points := s.Points()
				rows := make([][]string, 0, len(rewards))
				for _, r := range rewards {
					avail := "yes"
					if r.Cost > points {
						avail = "no"
					}
					rows = append(rows, []string{r.ID, r.Category, r.Name, strconv.Itoa(r.Cost), avail})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "CATEGORY", "NAME", "COST", "AFFORDABLE"}, rows))
				fmt.Fprintln(cmd.OutOrStdout(), ui.Balance(points, s.Currency()))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "all", "all, available, unavailable, or a category name")
	return cmd
}

func newRewardEditCmd(a *app) *cobra.Command {
	var name, category, desc string
	var cost int

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a reward",
		Args:  exactlyOne("reward id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch ledger.RewardPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("category") {
				patch.Category = &category
			}
			if flags.Changed("cost") {
				patch.Cost = &cost
			}
			if flags.Changed("description") {
				patch.Description = &desc
			}
			if patch == (ledger.RewardPatch{}) {
				return errors.New("nothing to change: pass at least one of --name, --category, --cost, --description")
			}
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				r, err := s.UpdateReward(args[0], patch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Good.Render("Updated"), r.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "New name")
	cmd.Flags().StringVarP(&category, "category", "c", "", "New category")
	cmd.Flags().IntVarP(&cost, "cost", "p", 0, "New cost")
	cmd.Flags().StringVarP(&desc, "description", "d", "", "New description")
	return cmd
}

func newRewardRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a reward (history is kept)",
		Args:    exactlyOne("reward id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				if err := s.DeleteReward(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Good.Render("Deleted"), args[0])
				return nil
			})
		},
	}
}

func newRewardRedeemCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "redeem <id>",
		Short: "Spend points on a reward",
		Args:  exactlyOne("reward id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(s *ledger.Store, _ config.Config) error {
				entry, err := s.RedeemReward(args[0])
				var ib *ledger.InsufficientBalanceError
				if errors.As(err, &ib) {
					return fmt.Errorf("%w for %q: need %d %s, have %d", ledger.ErrInsufficientBalance, ib.Reward, ib.Cost, s.Currency(), ib.Balance)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s  balance %s\n",
					ui.Good.Render(ui.IconReward+" Redeemed"), entry.RewardName,
					ui.Signed(entry.Delta()), ui.Balance(s.Points(), s.Currency()))
				return nil
			})
		},
	}
}

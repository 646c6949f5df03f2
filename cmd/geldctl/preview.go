package main

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/geld/internal/di"
	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/modules/rebalancing"
	"github.com/aristath/geld/internal/utils"
)

func newPreviewCmd(opts *rootOptions) *cobra.Command {
	var (
		clientID int64
		moves    []string
		cascade  bool
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Compute a rebalance and print the report without applying it",
		Long: `Runs one rebalance pass for the client with the given movements and
prints the instructions and resulting allocations. Nothing is written.

Each --move is goal=amount. Positive amounts are contributions, negative
amounts withdrawals. Goals without a move receive zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			movements, err := parseMoves(moves)
			if err != nil {
				return err
			}

			return opts.withContainer(cmd, func(c *di.Container, _ zerolog.Logger) error {
				result, err := c.RebalancingService.Process(clientID, movements, cascade)
				if err != nil {
					return err
				}
				return opts.render(cmd.OutOrStdout(), rebalancing.Report(result))
			})
		},
	}

	cmd.Flags().Int64Var(&clientID, "client", 0, "Client id")
	cmd.Flags().StringArrayVar(&moves, "move", nil, "Movement as goal=amount (repeatable)")
	cmd.Flags().BoolVar(&cascade, "cascade", false, "Run the surplus cascade after the pass")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

// parseMoves turns goal=amount pairs into movements
func parseMoves(moves []string) ([]domain.Movement, error) {
	out := make([]domain.Movement, 0, len(moves))
	for _, m := range moves {
		k, v, err := utils.SplitPair(m)
		if err != nil {
			return nil, err
		}
		goalID, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid goal id in %q: %w", m, err)
		}
		amount, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amount in %q: %w", m, err)
		}
		out = append(out, domain.Movement{GoalID: goalID, Amount: amount})
	}
	return out, nil
}

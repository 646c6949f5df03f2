package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/modules/matrix"
)

func newValidateMatrixCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate-matrix",
		Short: "Validate the built-in target matrices or an override file",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := matrix.Load(file)
			if err != nil {
				return err
			}

			source := "built-in matrices"
			if file != "" {
				source = file
			}

			var b strings.Builder
			fmt.Fprintf(&b, "# %s\n\n", source)
			for _, goalType := range []domain.GoalType{domain.GoalTypeGeneral, domain.GoalTypeRetirement} {
				fmt.Fprintf(&b, "## %s\n\n", goalType)
				b.WriteString("| Months | Low | Moderate | High | DI in low | Credit in low |\n|---|---|---|---|---|---|\n")
				for _, row := range table.Rows(goalType) {
					fmt.Fprintf(&b, "| %d | %.2f | %.2f | %.2f | %.2f | %.2f |\n",
						row.HorizonMonths, row.PercentLow, row.PercentModerate, row.PercentHigh,
						row.PercentDIWithinLow, row.PercentCreditWithinLow)
				}
				b.WriteString("\n")
			}
			b.WriteString("Valid.\n")
			return opts.render(cmd.OutOrStdout(), b.String())
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML override file (default: built-in matrices)")
	return cmd
}

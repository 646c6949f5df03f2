package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/geld/internal/di"
	"github.com/aristath/geld/internal/domain"
)

func newValidateSlicesCmd(opts *rootOptions) *cobra.Command {
	var clientID int64

	cmd := &cobra.Command{
		Use:   "validate-slices",
		Short: "Check that a client's slices sum to 100% per class",
		Long: `Sums every goal's ownership percentages per risk class. A class nobody
owns sums to zero and is valid. Exits non-zero when any class has drifted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd, func(c *di.Container, _ zerolog.Logger) error {
				v, err := c.Maintenance.ValidateSlices(clientID)
				if err != nil {
					return err
				}

				var b strings.Builder
				fmt.Fprintf(&b, "# Slice sums, client %d\n\n", clientID)
				writeVectorTable(&b, "Sum %", v.Sums)
				if v.Valid {
					b.WriteString("\nAll classes are within tolerance.\n")
				} else {
					b.WriteString("\n**Slices have drifted.** Run `geldctl repair-slices` to rebuild them.\n")
				}
				if err := opts.render(cmd.OutOrStdout(), b.String()); err != nil {
					return err
				}

				if !v.Valid {
					return fmt.Errorf("client %d slices have drifted", clientID)
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&clientID, "client", 0, "Client id")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func newRepairSlicesCmd(opts *rootOptions) *cobra.Command {
	var clientID int64

	cmd := &cobra.Command{
		Use:   "repair-slices",
		Short: "Rebuild a client's slices from current goal values",
		Long: `Rewrites every goal's ownership percentages from its current value,
spreading unassigned capital proportionally. The result sums to 100% per owned class.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd, func(c *di.Container, log zerolog.Logger) error {
				repaired, err := c.Maintenance.RepairSlicesFromPool(clientID)
				if err != nil {
					return err
				}
				log.Info().Int64("client_id", clientID).Int("goals", len(repaired)).Msg("Slices repaired")

				ids := make([]int64, 0, len(repaired))
				for id := range repaired {
					ids = append(ids, id)
				}
				sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

				var b strings.Builder
				fmt.Fprintf(&b, "# Repaired slices, client %d\n\n", clientID)
				b.WriteString("| Goal |")
				for _, rc := range domain.AllRiskClasses {
					fmt.Fprintf(&b, " %s |", rc)
				}
				b.WriteString("\n|---|---|---|---|---|\n")
				for _, id := range ids {
					fmt.Fprintf(&b, "| %d |", id)
					for _, rc := range domain.AllRiskClasses {
						fmt.Fprintf(&b, " %.2f |", repaired[id][rc])
					}
					b.WriteString("\n")
				}
				return opts.render(cmd.OutOrStdout(), b.String())
			})
		},
	}

	cmd.Flags().Int64Var(&clientID, "client", 0, "Client id")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func writeVectorTable(b *strings.Builder, label string, v domain.ClassVector) {
	b.WriteString("| Class | " + label + " |\n|---|---|\n")
	for _, rc := range domain.AllRiskClasses {
		fmt.Fprintf(b, "| %s | %.2f |\n", rc, v[rc])
	}
}

package rebalancing

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/aristath/geld/internal/domain"
)

// ReportCurrency is the currency every amount is reported in
const ReportCurrency = money.BRL

// FormatMoney renders an amount in the report currency, e.g. R$1.234,56.
// The amount is rounded to the currency's minor unit.
func FormatMoney(amount float64) string {
	cur := money.GetCurrency(ReportCurrency)
	minor := decimal.NewFromFloat(amount).Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), ReportCurrency).Display()
}

// InstructionLine renders one instruction, e.g. "BUY R$1.234,56 moderate"
func InstructionLine(inst ClassInstruction) string {
	if inst.Action == ActionRedistribute {
		return fmt.Sprintf("%s %s", inst.Action, inst.Class)
	}
	return fmt.Sprintf("%s %s %s", inst.Action, FormatMoney(inst.Amount), inst.Class)
}

// Report renders a result as markdown
func Report(result *Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Rebalance for client %d\n\n", result.ClientID)
	fmt.Fprintf(&b, "Computed at %s. Total movement %s.\n\n",
		result.ComputedAt.Format("2006-01-02 15:04"), FormatMoney(result.TotalMovement))

	b.WriteString("## Instructions\n\n")
	b.WriteString("| Class | Rebalance | Net of movement |\n|---|---|---|\n")
	for i, inst := range result.Instructions {
		net := result.NetInstructions[i]
		fmt.Fprintf(&b, "| %s | %s | %s |\n", inst.Class, InstructionLine(inst), InstructionLine(net))
	}

	b.WriteString("\n## Goals\n\n")
	b.WriteString("| Goal | Horizon | Movement | Current | New | PV ideal |")
	for _, c := range domain.AllRiskClasses {
		fmt.Fprintf(&b, " %% %s |", c)
	}
	b.WriteString("\n|---|---|---|---|---|---|---|---|---|---|\n")

	for _, g := range result.Goals {
		fmt.Fprintf(&b, "| %s | %dm (%dm) | %s | %s | %s | %s |",
			g.Name, g.HorizonMonths, g.MatrixHorizon,
			FormatMoney(g.Movement), FormatMoney(g.CurrentTotal), FormatMoney(g.NewTotal), FormatMoney(g.PresentValueIdeal))
		for _, c := range domain.AllRiskClasses {
			fmt.Fprintf(&b, " %.2f |", g.NewPercent[c])
		}
		b.WriteString("\n")
	}

	if len(result.Transfers) > 0 {
		names := make(map[int64]string, len(result.Goals))
		for _, g := range result.Goals {
			names[g.GoalID] = g.Name
		}

		b.WriteString("\n## Cascade transfers\n\n")
		for _, t := range result.Transfers {
			fmt.Fprintf(&b, "- iteration %d: %s from %s to %s\n", t.Iteration, FormatMoney(t.Amount), names[t.From], names[t.To])
		}
	}

	if unassigned := result.UnassignedCapital.Total(); unassigned >= 0.01 || unassigned <= -0.01 {
		fmt.Fprintf(&b, "\nUnassigned capital: %s\n", FormatMoney(unassigned))
	}

	return b.String()
}

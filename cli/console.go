package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/warp/shift-allowance/allowance"
	"github.com/warp/shift-allowance/export"
	"github.com/warp/shift-allowance/service"
)

var (
	boldCyan  = color.New(color.FgCyan, color.Bold).SprintFunc()
	boldGreen = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldRed   = color.New(color.FgRed, color.Bold).SprintFunc()
)

func displayBanner(w io.Writer, version string) {
	fmt.Fprintln(w, boldCyan("Shift Allowance Report"), fmt.Sprintf("(v%s)", version))
}

func renderTable(data pterm.TableData) string {
	table := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(data)

	rendered, _ := table.Srender()
	return rendered
}

func renderRows(rows []export.SummaryRow) string {
	data := pterm.TableData{export.Header}
	for _, r := range rows {
		data = append(data, r.Strings())
	}
	return renderTable(data)
}

func renderClientTotals(cs []service.ClientTotal) string {
	data := pterm.TableData{{"#", "Client", "Code", "Head Count", "Days", "Total Allowance"}}
	for i, c := range cs {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			c.Client,
			c.ClientCode,
			strconv.Itoa(c.HeadCount),
			c.TotalDays.String(),
			allowance.Round(c.TotalAllowance).StringFixed(2),
		})
	}
	return renderTable(data)
}

// renderDeltas shows increases in red and decreases in green.
func renderDeltas(periods []allowance.PeriodDeltas) string {
	data := pterm.TableData{{"Period", "Client", "Change"}}
	for _, p := range periods {
		for _, client := range sortedKeys(p.Deltas) {
			d := allowance.Round(p.Deltas[client])
			change := d.StringFixed(2)
			switch {
			case d.IsPositive():
				change = boldRed("+" + change)
			case d.IsNegative():
				change = boldGreen(change)
			}
			data = append(data, []string{p.Period, client, change})
		}
	}
	return renderTable(data)
}

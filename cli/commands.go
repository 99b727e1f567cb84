package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/warp/shift-allowance/allowance"
	"github.com/warp/shift-allowance/export"
	"github.com/warp/shift-allowance/service"
)

func (app *App) summaryCmd() *cobra.Command {
	var cf criteriaFlags
	var withDeltas bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the client summary for the selected periods",
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := app.svc.ClientSummary(cmd.Context(), service.SummaryRequest{
				Criteria:   cf.criteria(),
				Clients:    cf.filter(),
				WithDeltas: withDeltas,
			})
			if err != nil {
				return err
			}

			for _, p := range sum.Forest.Periods {
				if !p.HasData() {
					fmt.Fprintln(app.out, pterm.Warning.Sprintf("%s: %s", p.Key, p.Message))
					continue
				}
				fmt.Fprintln(app.out, pterm.DefaultSection.Sprint(p.Key))
				fmt.Fprintln(app.out, renderRows(export.SummaryRows(allowance.Forest{Periods: []allowance.PeriodNode{p}})))
				fmt.Fprintf(app.out, "Period total: %s (%d employees)\n\n",
					allowance.Round(p.Total.Total).StringFixed(2), p.Total.HeadCount)
			}

			if withDeltas {
				fmt.Fprintln(app.out, renderDeltas(sum.Deltas))
			}
			return nil
		},
	}
	cf.register(cmd)
	cmd.Flags().BoolVar(&withDeltas, "deltas", false, "Show client changes from the previous period")
	return cmd
}

func (app *App) exportCmd() *cobra.Command {
	var cf criteriaFlags
	var format, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the client summary to an XLSX, CSV or PDF file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if out == "" {
				out = "client-summary." + string(f)
			}

			sum, err := app.svc.ClientSummary(cmd.Context(), service.SummaryRequest{
				Criteria: cf.criteria(),
				Clients:  cf.filter(),
			})
			if err != nil {
				return err
			}
			rows := export.SummaryRows(sum.Forest)

			path, err := filepath.Abs(out)
			if err != nil {
				return err
			}
			file, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}
			if err := export.Write(file, f, "Client Summary", rows); err != nil {
				file.Close()
				return fmt.Errorf("write %s: %w", path, err)
			}
			if err := file.Close(); err != nil {
				return err
			}

			fmt.Fprintln(app.out, pterm.Success.Sprintf("Wrote %d rows to %s", len(rows), path))
			return nil
		},
	}
	cf.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "xlsx", "Output format: xlsx, csv, pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: client-summary.<format>)")
	return cmd
}

func (app *App) topCmd() *cobra.Command {
	var cf criteriaFlags
	var top int

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Rank clients by total allowance in each period",
		RunE: func(cmd *cobra.Command, args []string) error {
			periods, err := app.svc.TopClients(cmd.Context(), cf.criteria(), top)
			if err != nil {
				return err
			}
			for _, p := range periods {
				if len(p.Clients) == 0 {
					fmt.Fprintln(app.out, pterm.Warning.Sprintf("%s: %s", p.Period, p.Message))
					continue
				}
				fmt.Fprintln(app.out, pterm.DefaultSection.Sprint(p.Period))
				fmt.Fprintln(app.out, renderClientTotals(p.Clients))
			}
			return nil
		},
	}
	cf.register(cmd)
	cmd.Flags().IntVarP(&top, "top", "n", service.DefaultTop, "Number of clients per period")
	return cmd
}

func (app *App) latestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Print the most recent duration month with data",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, ok, err := app.svc.LatestMonth(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(app.out, pterm.Warning.Sprint("No allowance data"))
				return nil
			}
			fmt.Fprintln(app.out, m.String())
			return nil
		},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

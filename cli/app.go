/*
Package cli implements the allowance-report command.

PURPOSE:
  Runs the same reports as the HTTP API against a local database and
  prints them as terminal tables, or writes them to XLSX/CSV/PDF files.

COMMANDS:
  summary   Client summary per period (department rows)
  export    Client summary written to a file
  top       Top clients by allowance per period
  latest    Most recent duration month with data

CRITERIA FLAGS (summary, export, top):
  --start, --end       YYYY-MM range
  --year               Whole year
  --months             Months of --year, e.g. 01,02
  --quarters           Quarters of --year, e.g. Q1,Q3
  --client             Restrict to clients (repeatable)

  No criteria means the latest month with data.

SEE ALSO:
  - cmd/allowance-report/main.go
  - service/: Report implementations
*/
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/shift-allowance/allowance"
	"github.com/warp/shift-allowance/config"
	"github.com/warp/shift-allowance/service"
	"github.com/warp/shift-allowance/store/sqlite"
	"go.uber.org/zap"
)

// App is the command tree plus the state the commands share once
// configuration has been loaded.
type App struct {
	root    *cobra.Command
	version string
	out     io.Writer

	cfg   *config.Config
	store *sqlite.Store
	svc   *service.Service
}

func NewApp(version string) *App {
	app := &App{version: version, out: os.Stdout}

	root := &cobra.Command{
		Use:               "allowance-report",
		Short:             "Shift allowance reports",
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: app.open,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.close()
		},
	}
	root.SetVersionTemplate(`{{printf "allowance-report version: %s\n" .Version}}`)

	root.PersistentFlags().StringP("config-file", "C", "", "Path to a TOML, YAML, or JSON configuration file")
	root.PersistentFlags().String("db", "", "SQLite database path (overrides database.path)")
	root.PersistentFlags().Bool("no-banner", false, "Do not print the banner")

	root.AddCommand(
		app.summaryCmd(),
		app.exportCmd(),
		app.topCmd(),
		app.latestCmd(),
	)

	app.root = root
	return app
}

// SetOutput redirects everything the commands print.
func (app *App) SetOutput(w io.Writer) {
	app.out = w
	app.root.SetOut(w)
	app.root.SetErr(w)
}

// SetArgs overrides os.Args[1:].
func (app *App) SetArgs(args []string) { app.root.SetArgs(args) }

func (app *App) Execute() error {
	return app.root.Execute()
}

func (app *App) open(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config-file")
	dbPath, _ := cmd.Flags().GetString("db")
	noBanner, _ := cmd.Flags().GetBool("no-banner")

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if !noBanner {
		displayBanner(app.out, app.version)
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	app.cfg = cfg
	app.store = store
	app.svc = service.New(store, service.Options{
		Logger:           zap.L(),
		Aliases:          service.ClientAliases(cfg.Allowance.ClientAliases),
		StrictShiftTypes: cfg.Allowance.StrictShiftTypes,
	})
	return nil
}

func (app *App) close() error {
	if app.store == nil {
		return nil
	}
	err := app.store.Close()
	app.store = nil
	return err
}

// =============================================================================
// CRITERIA FLAGS
// =============================================================================

type criteriaFlags struct {
	start    string
	end      string
	year     int
	months   []string
	quarters []string
	clients  []string
}

func (f *criteriaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "Start month (YYYY-MM)")
	cmd.Flags().StringVar(&f.end, "end", "", "End month (YYYY-MM)")
	cmd.Flags().IntVar(&f.year, "year", 0, "Selected year")
	cmd.Flags().StringSliceVar(&f.months, "months", nil, "Months of --year (comma-separated, e.g. 01,02)")
	cmd.Flags().StringSliceVar(&f.quarters, "quarters", nil, "Quarters of --year (comma-separated, e.g. Q1,Q2)")
	cmd.Flags().StringSliceVar(&f.clients, "client", nil, "Restrict to these clients")
}

func (f *criteriaFlags) criteria() allowance.Criteria {
	return allowance.Criteria{
		StartMonth:       f.start,
		EndMonth:         f.end,
		SelectedYear:     f.year,
		SelectedMonths:   f.months,
		SelectedQuarters: f.quarters,
	}
}

func (f *criteriaFlags) filter() allowance.GroupFilter {
	if len(f.clients) == 0 {
		return allowance.AllClients()
	}
	m := make(map[string][]string, len(f.clients))
	for _, c := range f.clients {
		m[c] = nil
	}
	return allowance.NewGroupFilter(m)
}

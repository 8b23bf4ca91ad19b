package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"visitmap/internal/cli"
	"visitmap/internal/config"
	applog "visitmap/internal/log"
	"visitmap/internal/services"
)

// app carries what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	svc    *services.VisitService
	output string
}

// run executes visitctl with args and closes the store whatever the outcome.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if a.svc != nil {
		if cerr := a.svc.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {

	root := &cobra.Command{
		Use:   "visitctl",
		Short: "Manage visited cities and visit categories",
		Long: `visitctl reads and edits the same store as the visitmap server.

Examples:
  # Record a trip
  visitctl add 杭州 旅行 2024-03

  # Import visits from a file, one "city purpose [date]" per line
  visitctl import visits.txt

  # Show the province map data
  visitctl provinces
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "table", "Output format: table or json")
	root.PersistentFlags().String("backend", "", "Override DATA_BACKEND (memory, file, sqlite)")

	root.AddCommand(
		newCitiesCmd(a),
		newProvincesCmd(a),
		newVisitsCmd(a),
		newAddCmd(a),
		newDeleteCmd(a),
		newUpdateCmd(a),
		newImportCmd(a),
		newPurposesCmd(a),
		newColorCmd(a),
	)
	return root
}

func (a *app) open(cmd *cobra.Command) error {
	if a.output != "table" && a.output != "json" {
		return fmt.Errorf("invalid output format %q: must be table or json", a.output)
	}

	cli.LoadEnvFile()
	cfg := config.Load()
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		cfg.DataBackend = backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Logs go to stderr so that table and JSON output stay clean.
	level := applog.ParseLevel(cfg.LogLevel)
	if os.Getenv("LOG_LEVEL") == "" {
		level = slog.LevelWarn
	}
	a.logger = applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: applog.ComponentCLI,
		Output:    cmd.ErrOrStderr(),
	}).Logger

	svc, err := cli.OpenService(cmd.Context(), cfg, a.logger)
	if err != nil {
		return err
	}
	a.cfg, a.svc = cfg, svc
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/outcomes/internal/config"
	"github.com/ehr/outcomes/internal/domain/assessment"
	"github.com/ehr/outcomes/internal/domain/trends"
	"github.com/ehr/outcomes/internal/platform/db"
	"github.com/ehr/outcomes/migrations"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "outcomes-server",
		Short:        "Clinical assessment scoring and outcome trends API",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(catalogCmd())
	root.AddCommand(scoreCmd())
	return root
}

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := cfg.RequireDatabase(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	catalog, err := assessment.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load instrument catalog")
	}
	registry, err := trends.LoadRegistry(cfg.MetricsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load metric definitions")
	}
	logger.Info().
		Int("instruments", len(catalog.List())).
		Int("metrics", len(registry.List())).
		Msg("definitions loaded")

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := newServer(serverDeps{
		cfg:         cfg,
		logger:      logger,
		catalog:     catalog,
		registry:    registry,
		responses:   assessment.NewResponseRepoPG(pool),
		assignments: assessment.NewAssignmentRepoPG(pool),
		samples:     trends.NewSampleRepoPG(pool),
		dbHealth:    db.HealthHandler(pool),
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			migrator, closeFn, err := openMigrator(cmd.Context(), dir)
			if err != nil {
				return err
			}
			defer closeFn()

			fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)
			count, err := migrator.Up(cmd.Context(), schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			migrator, closeFn, err := openMigrator(cmd.Context(), dir)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(cmd.Context(), schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), schema, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openMigrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrationFS(dir)), pool.Close, nil
}

func migrationFS(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func printMigrationStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect instrument and metric definitions",
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an instrument catalog and metric definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("path")
			metricsPath, _ := cmd.Flags().GetString("metrics")

			catalog, err := assessment.LoadCatalog(path)
			if err != nil {
				return err
			}
			registry, err := trends.LoadRegistry(metricsPath)
			if err != nil {
				return err
			}
			for _, def := range registry.List() {
				if def.Instrument != "" && !catalog.Has(def.Instrument) {
					return fmt.Errorf("metric %s is fed by unknown instrument %s", def.Name, def.Instrument)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d instrument(s), %d metric(s)\n", len(catalog.List()), len(registry.List()))
			return nil
		},
	}
	validateCmd.Flags().String("path", "", "Instrument catalog YAML (default: embedded catalog)")
	validateCmd.Flags().String("metrics", "", "Metric definitions YAML (default: embedded definitions)")
	cmd.AddCommand(validateCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List instruments and their score ranges",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("path")
			catalog, err := assessment.LoadCatalog(path)
			if err != nil {
				return err
			}
			printCatalog(cmd.OutOrStdout(), catalog.List())
			return nil
		},
	}
	listCmd.Flags().String("path", "", "Instrument catalog YAML (default: embedded catalog)")
	cmd.AddCommand(listCmd)

	return cmd
}

func printCatalog(w io.Writer, instruments []assessment.Instrument) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQUESTIONS\tRANGE\tBANDS")
	for i := range instruments {
		inst := &instruments[i]
		bands := make([]string, 0, len(inst.Scoring.Ranges))
		for _, r := range inst.Scoring.Ranges {
			bands = append(bands, r.Label)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d-%d\t%s\n",
			inst.ID, inst.Name, len(inst.Questions), inst.Scoring.Min, inst.Scoring.Max, strings.Join(bands, ", "))
	}
	tw.Flush()
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a set of answers against an instrument",
		Example: "  outcomes-server score --instrument gad7 " +
			"--answers gad7_1=1,gad7_2=0,gad7_3=2,gad7_4=1,gad7_5=0,gad7_6=1,gad7_7=0",
		RunE: func(cmd *cobra.Command, args []string) error {
			instrumentID, _ := cmd.Flags().GetString("instrument")
			raw, _ := cmd.Flags().GetString("answers")
			path, _ := cmd.Flags().GetString("path")
			if instrumentID == "" {
				return fmt.Errorf("--instrument is required")
			}

			answers, err := parseAnswers(raw)
			if err != nil {
				return err
			}
			catalog, err := assessment.LoadCatalog(path)
			if err != nil {
				return err
			}
			res, err := catalog.Evaluate(instrumentID, answers)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().String("instrument", "", "Instrument id")
	cmd.Flags().String("answers", "", "Comma-separated question=value pairs")
	cmd.Flags().String("path", "", "Instrument catalog YAML (default: embedded catalog)")
	return cmd
}

// parseAnswers reads "q1=2,q2=0" into an answer map. Repeated ids are rejected.
func parseAnswers(raw string) (map[string]int, error) {
	answers := make(map[string]int)
	if strings.TrimSpace(raw) == "" {
		return answers, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("answer %q is not question=value", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("answer %s: value %q is not an integer", k, v)
		}
		if _, dup := answers[k]; dup {
			return nil, fmt.Errorf("answer %s given more than once", k)
		}
		answers[k] = n
	}
	return answers, nil
}

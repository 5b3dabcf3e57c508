package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/casperlundberg/mec-offloading-engine/internal/api"
	"github.com/casperlundberg/mec-offloading-engine/internal/database"
	"github.com/casperlundberg/mec-offloading-engine/internal/metrics"
	"github.com/casperlundberg/mec-offloading-engine/internal/simulation"
)

type options struct {
	dbPath      string
	configPath  string
	name        string
	description string
	port        string
}

// NewRootCmd builds the mecsim command tree
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "mecsim",
		Short:        "MEC offloading decision engine",
		Long:         `Simulates mobile devices offloading tasks to an edge station and serves the recorded decisions.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "analytics.db", "path to SQLite database file")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Runs a simulation and stores its decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return simulate(ctx, opts)
		},
	}
	simulateCmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "simulation config (yaml or json); defaults when empty")
	simulateCmd.Flags().StringVar(&opts.name, "name", "", "simulation name (overrides config)")
	simulateCmd.Flags().StringVar(&opts.description, "description", "", "simulation description (overrides config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the analytics API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}
	serveCmd.Flags().StringVarP(&opts.port, "port", "p", "8080", "port to run API server on")
	serveCmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "run this simulation in the background while serving")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists stored simulations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return list(cmd, opts)
		},
	}

	rootCmd.AddCommand(simulateCmd, serveCmd, listCmd)
	return rootCmd
}

// Execute runs the command tree and exits non-zero on failure
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func openRepository(dbPath string) (*database.DB, *database.Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	log.Printf("Connecting to database at %s", dbPath)
	db, err := database.NewDatabase(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, database.NewRepository(db), nil
}

func loadConfig(opts *options) (simulation.Config, error) {
	config := simulation.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if config, err = simulation.LoadConfig(opts.configPath); err != nil {
			return simulation.Config{}, err
		}
	}
	if opts.name != "" {
		config.Name = opts.name
	}
	if opts.description != "" {
		config.Description = opts.description
	}
	return config, nil
}

func simulate(ctx context.Context, opts *options) error {
	config, err := loadConfig(opts)
	if err != nil {
		return err
	}

	db, repo, err := openRepository(opts.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	return runSimulation(ctx, config, repo, nil)
}

func runSimulation(ctx context.Context, config simulation.Config, repo *database.Repository, recorder *metrics.Recorder) error {
	dbCollector, err := simulation.NewDBCollector(repo, config.Name, config.Description, config)
	if err != nil {
		return fmt.Errorf("failed to create database collector: %w", err)
	}
	log.Printf("Created simulation with ID: %s", dbCollector.GetSimulationID())

	runner, err := simulation.NewRunner(config, dbCollector, recorder)
	if err != nil {
		_ = dbCollector.Close("failed")
		return fmt.Errorf("failed to create simulation runner: %w", err)
	}

	log.Printf("Starting simulation at %s", time.Now().Format(time.RFC3339))
	summary, err := runner.Run(ctx)
	summary.Log()
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	log.Printf("Results stored in database. Simulation ID: %s", summary.SimulationID)
	return nil
}

func serve(ctx context.Context, opts *options) error {
	db, repo, err := openRepository(opts.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	recorder := metrics.NewRecorder()

	if opts.configPath != "" {
		config, err := loadConfig(opts)
		if err != nil {
			return err
		}
		go func() {
			if err := runSimulation(ctx, config, repo, recorder); err != nil {
				log.Printf("Warning: background simulation failed: %v", err)
			}
		}()
	}

	log.Printf("Starting analytics API server on port %s", opts.port)
	server := api.NewServer(repo, recorder, opts.port)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func list(cmd *cobra.Command, opts *options) error {
	db, repo, err := openRepository(opts.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	sims, err := repo.ListSimulations()
	if err != nil {
		return fmt.Errorf("failed to list simulations: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSTARTED")
	for _, sim := range sims {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sim.ID, sim.Name, sim.Status, sim.StartTime.Format(time.RFC3339))
	}
	return w.Flush()
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dp9910/app4me-sub001/internal/profile"
	"github.com/dp9910/app4me-sub001/server/retrieval"
	"github.com/dp9910/app4me-sub001/store"
	"github.com/dp9910/app4me-sub001/store/db"
)

var version = "0.1.0"

type rootOptions struct {
	config  string
	mode    string
	driver  string
	dsn     string
	data    string
	addr    string
	port    int
	verbose bool
}

var rootOpts = &rootOptions{}

var rootCmd = &cobra.Command{
	Use:           "app4me",
	Short:         "Hybrid semantic and keyword search over an app catalog",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		level := slog.LevelInfo
		if rootOpts.verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootOpts.config, "config", "", "config file (yaml, toml or json)")
	flags.StringVar(&rootOpts.mode, "mode", "", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.StringVar(&rootOpts.driver, "driver", "", "database driver, sqlite or postgres")
	flags.StringVar(&rootOpts.dsn, "dsn", "", "database source name")
	flags.StringVar(&rootOpts.data, "data", "", "data directory of the sqlite database")
	flags.StringVar(&rootOpts.addr, "addr", "", "address of server")
	flags.IntVar(&rootOpts.port, "port", 0, "port of server")
	flags.BoolVarP(&rootOpts.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newSearchCmd(), newExportCmd(), newServeCmd())
}

// loadProfile reads the profile and applies the flags set on the command line.
func loadProfile(cmd *cobra.Command) (*profile.Profile, error) {
	prof, err := profile.Load(rootOpts.config)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("mode") {
		prof.Mode = rootOpts.mode
	}
	if flags.Changed("driver") {
		prof.Driver = rootOpts.driver
	}
	if flags.Changed("dsn") {
		prof.DSN = rootOpts.dsn
	}
	if flags.Changed("data") {
		prof.Data = rootOpts.data
	}
	if flags.Changed("addr") {
		prof.Addr = rootOpts.addr
	}
	if flags.Changed("port") {
		prof.Port = rootOpts.port
	}
	prof.Version = version
	if err := prof.Validate(); err != nil {
		return nil, err
	}
	return prof, nil
}

// openPipeline opens and migrates the store, then wires a pipeline on it.
// The caller closes the store.
func openPipeline(ctx context.Context, prof *profile.Profile) (*store.Store, *retrieval.Pipeline, error) {
	driver, err := db.NewDBDriver(prof)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(driver, prof)
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("failed to migrate: %w", err)
	}
	pipeline, err := retrieval.NewPipelineFromProfile(st, prof, slog.Default())
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return st, pipeline, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Command terrabridge is the CLI entry point.
//
// The bridge listens on one TCP port for a RoleA client (Minecraft by
// default) and a RoleB client (tModLoader by default), classifies each by
// its Connect brand, pairs them, and relays packets between them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/terrabridge/internal/admin"
	"github.com/1ureka/terrabridge/internal/app"
	"github.com/1ureka/terrabridge/internal/config"
	"github.com/1ureka/terrabridge/internal/util"
)

var version = "dev"

type flags struct {
	configPath string
	listen     string
	capacity   int
	adminAddr  string
	debug      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "terrabridge",
		Short:         "Bridge one Minecraft client and one tModLoader client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, f)
		},
	}

	root.Flags().StringVarP(&f.configPath, "config", "c", config.DefaultPath, "Path to the TOML config file")
	root.Flags().StringVar(&f.listen, "listen", "", "Bridge listen address (overrides config)")
	root.Flags().IntVar(&f.capacity, "capacity", 0, "Relay queue capacity per direction (overrides config)")
	root.Flags().StringVar(&f.adminAddr, "admin", "", "Admin HTTP listen address (overrides config)")
	root.Flags().BoolVar(&f.debug, "debug", false, "Enable debug logging")

	root.AddCommand(newInitCmd())
	return root
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path); err != nil {
				util.LogError("%v", err)
				return err
			}
			util.LogSuccess("Default config written to %s", path)
			return nil
		},
	}
}

func serve(cmd *cobra.Command, f flags) error {
	// Root context, cancelled on Ctrl+C or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := resolveConfig(cmd, f)
	if err != nil {
		util.LogError("%v", err)
		return err
	}

	if err := util.SetLevel(cfg.Log.Level); err != nil {
		util.LogError("%v", err)
		return err
	}
	if f.debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("TerraBridge v%s", version))
	pterm.Println()

	hub := admin.NewHub(admin.DefaultCapacity)
	srv := app.NewServer(cfg, app.WithEventSink(hub))

	if cfg.Admin.Listen != "" {
		adminSrv := admin.NewServer(cfg.Admin.Listen, srv.Registry(), hub)
		if err := adminSrv.Start(); err != nil {
			util.LogError("%v", err)
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = adminSrv.Shutdown(shutdownCtx)
		}()
	}

	util.StartStatsReporter(ctx, cfg.Log.StatsInterval.Std())

	if err := srv.ListenAndServe(ctx); err != nil {
		util.LogError("%v", err)
		return err
	}

	util.LogInfo("Bridge stopped")
	return nil
}

// resolveConfig layers defaults, the config file, .env and TERRABRIDGE_*
// variables, then explicitly set flags.
func resolveConfig(cmd *cobra.Command, f flags) (config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return config.Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return config.Config{}, err
	}

	if cmd.Flags().Changed("listen") {
		cfg.Listen = f.listen
	}
	if cmd.Flags().Changed("capacity") {
		cfg.PacketBounds = f.capacity
	}
	if cmd.Flags().Changed("admin") {
		cfg.Admin.Listen = f.adminAddr
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

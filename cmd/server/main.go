package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kaira-dev/kaira/internal/api"
	"github.com/kaira-dev/kaira/internal/convert"
	"github.com/kaira-dev/kaira/internal/files"
	"github.com/kaira-dev/kaira/internal/metrics"
	"github.com/kaira-dev/kaira/internal/storage"
	"github.com/kaira-dev/kaira/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "kaira-server",
	Short: "Kaira Server - Floor plan to 3D model backend",
	Long: `Kaira Server manages user accounts, floor plan projects, and hands
floor plan images to Blender to turn them into 3D models.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kaira-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	// Local development keeps secrets in a .env file
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	var cfg *Config

	// Load configuration from file if provided
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.Address = httpAddr
	}
	cfg.Verbose = verbose

	// Token secrets come from the environment, never from the config file
	accessSecret := os.Getenv("KAIRA_ACCESS_SECRET")
	refreshSecret := os.Getenv("KAIRA_REFRESH_SECRET")
	if accessSecret == "" || refreshSecret == "" {
		return fmt.Errorf("KAIRA_ACCESS_SECRET and KAIRA_REFRESH_SECRET environment variables are required")
	}
	if accessSecret == refreshSecret {
		return fmt.Errorf("KAIRA_ACCESS_SECRET and KAIRA_REFRESH_SECRET must differ")
	}

	// Auto-create data directory
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Initialize storage
	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// Create default admin user on first run
	if err := store.EnsureAdminUser(); err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}

	log.Printf("database initialized at %s", cfg.Database.Path)

	fileStore, err := files.NewStore(cfg.Uploads.Dir)
	if err != nil {
		return fmt.Errorf("create file store: %w", err)
	}

	var converter convert.Converter
	if cfg.Convert.Enabled() {
		timeout, err := cfg.ConvertTimeout()
		if err != nil {
			return fmt.Errorf("convert timeout: %w", err)
		}
		converter = convert.NewBlenderConverter(convert.BlenderConfig{
			BlenderPath:     cfg.Convert.BlenderPath,
			FloorplanScript: cfg.Convert.FloorplanScript,
			ExportScript:    cfg.Convert.ExportScript,
			WorkDir:         cfg.Convert.WorkDir,
			Timeout:         timeout,
		})
		log.Printf("blender converter enabled (%s, timeout %s)", cfg.Convert.BlenderPath, timeout)
	} else {
		log.Printf("blender converter disabled, conversion endpoints will refuse requests")
	}

	var launcher convert.Launcher
	if cfg.VR.Command != "" {
		launcher = convert.NewExecLauncher(cfg.VR.Command, cfg.VR.Args...)
		log.Printf("vr launcher enabled (%s)", cfg.VR.Command)
	}

	accessTTL, err := cfg.AccessTokenTTL()
	if err != nil {
		return fmt.Errorf("access token ttl: %w", err)
	}
	refreshTTL, err := cfg.RefreshTokenTTL()
	if err != nil {
		return fmt.Errorf("refresh token ttl: %w", err)
	}

	apiCfg := &api.Config{
		Address:          cfg.Server.Address,
		AccessSecret:     []byte(accessSecret),
		RefreshSecret:    []byte(refreshSecret),
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AccessTokenTTL:   accessTTL,
		RefreshTokenTTL:  refreshTTL,
		RateLimitPerIP:   cfg.Server.RateLimitPerIP,
		RateLimitPerUser: cfg.Server.RateLimitPerUser,
		Verbose:          cfg.Verbose,
	}

	srv, err := api.New(apiCfg, store, fileStore, converter, launcher)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	log.Printf("starting kaira-server %s", config.Version)
	metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	if cfg.Metrics.Enabled {
		metricsSrv := metrics.NewServer(cfg.Metrics.Address)
		g.Go(func() error {
			return metricsSrv.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	log.Printf("server stopped")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tailplane/api"
	"tailplane/config"
	"tailplane/descriptor"
	"tailplane/model"
	"tailplane/storage"
	"tailplane/ui"
	"tailplane/watch"
)

var (
	dataDir    string
	listen     string
	listenPort int
	appVersion = "0.3.0"
)

// errReported is returned after the failure was already printed.
var errReported = errors.New("failed")

var rootCmd = &cobra.Command{
	Use:               "tailplane",
	Short:             "tailplane – tailwind config checker and service",
	Long:              "Tailplane loads, validates, migrates and merges tailwind configuration files, and serves the current one over HTTP.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prepareEnv,
}

var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Watch a config file and serve it over HTTP",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  "Manage tailplane settings files.",
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a default settings file",
	Long:  "Generate a default tailplane.config file in the data directory (or current directory if not specified).",
	RunE:  runConfigGenerate,
}

func init() {
	wd, _ := os.Getwd()
	rootCmd.Version = appVersion
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", wd, "Data directory for settings and history (env: TAILPLANE_DATA_DIR)")

	serveCmd.Flags().StringVar(&listen, "listen", "all", "IP address to listen on (default: all)")
	serveCmd.Flags().IntVar(&listenPort, "listen-port", 8080, "Port to listen on (default: 8080)")

	configCmd.AddCommand(configGenerateCmd)
	rootCmd.AddCommand(serveCmd, configCmd)
	registerDescriptorCommands(rootCmd)
}

// prepareEnv loads .env before any command runs, so TAILPLANE_DATA_DIR from
// the file applies unless --data-dir was given.
func prepareEnv(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	if !cmd.Flags().Changed("data-dir") {
		dataDir = config.DataDirFromEnv(dataDir)
	}
	return nil
}

// loadSettings reads tailplane.config from the data dir and applies
// TAILPLANE_* overrides.
func loadSettings() (config.Config, error) {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return config.ApplyEnv(cfg), nil
}

// resolveDescriptor picks the file to work on: the argument, then the
// configured path, then the conventional name in the working directory.
func resolveDescriptor(args []string, cfg config.Config) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg.DescriptorPath != "" {
		return cfg.DescriptorPath, nil
	}
	return descriptor.Discover(".")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("listen") || cmd.Flags().Changed("listen-port") {
		if listen != "" && listen != "all" {
			cfg.ListenAddr = fmt.Sprintf("%s:%d", listen, listenPort)
		} else {
			cfg.ListenAddr = fmt.Sprintf(":%d", listenPort)
		}
	}

	path, err := resolveDescriptor(args, cfg)
	if err != nil {
		return err
	}
	cfg.DescriptorPath = path
	if err := cfg.Validate(); err != nil {
		return err
	}

	dataDirAbs, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = dataDirAbs

	store := storage.New(cfg.DataDir)
	if err := store.EnsureDirs(); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	w := watch.New(path, cfg.Interval(), store, cfg.HistoryLimit)
	apiServer := api.NewServer(store, w)
	w.OnChange(func(snap *model.Snapshot, d *descriptor.Descriptor) {
		apiServer.HandleChange(snap, d)
	})

	// first load happens before the listener so the API never starts empty
	if _, err := w.Check(); err != nil {
		ui.Logf("warning", "[watch] initial load: %v", err)
	}
	w.Start(ctx)

	mux := http.NewServeMux()
	apiServer.Register(mux)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	printListeningAddresses(cfg.ListenAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	ui.LogStatus("info", "shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		ui.Logf("error", "server shutdown: %v", err)
	}
	return nil
}

func runConfigGenerate(cmd *cobra.Command, args []string) error {
	dataDirAbs, err := filepath.Abs(dataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := config.Default()
	cfg.DataDir = dataDirAbs
	if path, err := descriptor.Discover("."); err == nil {
		cfg.DescriptorPath = path
	}

	cfgPath := filepath.Join(dataDirAbs, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("config file already exists: %s", cfgPath)
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	ui.Logf("success", "Generated default config file: %s", cfgPath)
	return nil
}

func printListeningAddresses(addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		ui.Logf("info", "listening on http://%s", addr)
		return
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		addrs, err := net.InterfaceAddrs()
		if err == nil {
			ui.LogStatus("info", "listening on:")
			for _, a := range addrs {
				if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
					if ipnet.IP.To4() != nil {
						ui.Logf("info", "  http://%s:%s", ipnet.IP.String(), port)
					}
				}
			}
			ui.Logf("info", "  http://localhost:%s", port)
		} else {
			ui.Logf("info", "listening on http://0.0.0.0:%s", port)
		}
	} else {
		ui.Logf("info", "listening on http://%s:%s", host, port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			ui.Logf("error", "error: %v", err)
		}
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opticore/opticore/internal/config"
	"github.com/opticore/opticore/internal/optimizer"
	"github.com/opticore/opticore/internal/server"
	"github.com/opticore/opticore/internal/storage"
	"github.com/opticore/opticore/pkg/cssmin"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "opticore",
		Short: "OptiCore - Site Performance and Hardening Toolkit",
		Long: `OptiCore renders a site through a set of toggleable optimizations
and serves a settings console to switch them on and off.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		RunE:         runServer,
		SilenceUsage: true,
	}

	// Add configuration flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "./data", "Data directory path")
	rootCmd.PersistentFlags().StringP("listen", "l", ":8080", "Site listen address")
	rootCmd.PersistentFlags().StringP("console-listen", "", ":8081", "Settings console listen address")
	rootCmd.PersistentFlags().StringP("log-level", "", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("public-url", "", "http://localhost:8080", "Public URL of the site")
	rootCmd.PersistentFlags().StringP("cache-root", "", "", "Cache directory (default <data-dir>/content/cache)")
	rootCmd.PersistentFlags().BoolP("enable-tls", "", false, "Enable TLS")
	rootCmd.PersistentFlags().StringP("tls-cert", "", "", "TLS certificate file")
	rootCmd.PersistentFlags().StringP("tls-key", "", "", "TLS key file")

	rootCmd.AddCommand(newServeCmd(), newMinifyCmd(), newCacheCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the site and the settings console",
		Args:  cobra.NoArgs,
		RunE:  runServer,
	}
}

func newMinifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "minify [file]",
		Short: "Minify a stylesheet and print the result",
		Long:  "Minify reads CSS from the named file, or from stdin when no file is given, and writes the minified stylesheet to stdout.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open stylesheet: %w", err)
				}
				defer f.Close()
				in = f
			}
			return minifyStream(in, cmd.OutOrStdout())
		},
	}
}

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the minified stylesheet cache",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached file",
		Args:  cobra.NoArgs,
		RunE:  runCacheClear,
	})
	return cacheCmd
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logging
	setupLogging(cfg.LogLevel)

	logrus.WithFields(logrus.Fields{
		"version": version,
		"commit":  commit,
		"date":    date,
	}).Info("Starting OptiCore")

	// Create server
	srv, err := server.New(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	// Start server
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logrus.Info("Received shutdown signal")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logrus.Info("OptiCore stopped")
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg.LogLevel)

	cache, err := storage.NewBackend(cfg.Cache.Root)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer cache.Close()

	entries, err := cache.List(cmd.Context(), optimizer.CacheRoot)
	if err != nil {
		return fmt.Errorf("failed to list cache: %w", err)
	}
	if err := cache.Reset(cmd.Context(), optimizer.CacheRoot); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"root":  cfg.Cache.Root,
		"files": len(entries),
	}).Info("Cache cleared")
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached files\n", len(entries))
	return nil
}

func minifyStream(r io.Reader, w io.Writer) error {
	css, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read stylesheet: %w", err)
	}
	_, err = w.Write(cssmin.MinifyBytes(css))
	return err
}

func setupLogging(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

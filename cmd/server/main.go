package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/leonardcser/livescore-mcp/internal/api"
	"github.com/leonardcser/livescore-mcp/internal/config"
	"github.com/leonardcser/livescore-mcp/internal/logger"
	"github.com/leonardcser/livescore-mcp/internal/tools"
)

const version = "0.2.0"

type serverFlags struct {
	c string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	sf := new(serverFlags)
	rootCmd := &cobra.Command{
		Use:          "livescore-mcp",
		Short:        "Live score overlay and tiered JSON cache, served over MCP stdio.",
		Version:      version,
		RunE:         func(cmd *cobra.Command, args []string) error { return runStdio(sf) },
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&sf.c, "config", "c", "", "config file")

	stdioCmd := &cobra.Command{
		Use:   "stdio [-c config_file]",
		Short: "Serve the MCP tools over stdio (default).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(sf)
		},
		DisableFlagsInUseLine: true,
	}

	httpCmd := &cobra.Command{
		Use:   "http [-c config_file]",
		Short: "Serve the HTTP API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHTTP(sf)
		},
		DisableFlagsInUseLine: true,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration.",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration as YAML.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(sf.c)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	})

	rootCmd.AddCommand(stdioCmd, httpCmd, configCmd)
	return rootCmd
}

func runStdio(sf *serverFlags) error {
	a, err := setup(sf.c)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go a.overlay.Run(ctx)

	s := server.NewMCPServer(
		"Live Score MCP",
		version,
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)
	logger.Infof("Created MCP server instance")
	tools.Register(s, a.cache, a.overlay)

	logger.Infof("Starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Errorf("server error: %v", err)
		return err
	}
	return nil
}

func runHTTP(sf *serverFlags) error {
	a, err := setup(sf.c)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go a.overlay.Run(ctx)

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           api.New(a.cache, a.overlay, api.Options{Logger: a.log, Gatherer: a.reg}).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http api listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

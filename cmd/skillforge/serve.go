package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillforge/pkg/editor"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/presenter"
	"github.com/jingkaihe/skillforge/pkg/server"
)

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	Host          string
	Port          int
	MaxUploadSize int64
	Record        bool
}

// NewServeConfig creates a new ServeConfig with default values
func NewServeConfig() *ServeConfig {
	return &ServeConfig{
		Host:   "localhost",
		Port:   8080,
		Record: true,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the skillforge JSON API",
	Long: `Start a local HTTP server exposing the capture, analysis, history and editor
workflow as a JSON API under /api. The workflow is shared by every client.

The server will be available at http://localhost:8080/api by default.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context(), getServeConfigFromFlags(cmd))
	},
}

func init() {
	defaults := NewServeConfig()
	serveCmd.Flags().String("host", defaults.Host, "Host to bind the API server to")
	serveCmd.Flags().Int("port", defaults.Port, "Port to bind the API server to")
	serveCmd.Flags().Bool("record", defaults.Record, "Offer screen recording through the configured recorder")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func getServeConfigFromFlags(cmd *cobra.Command) *ServeConfig {
	config := NewServeConfig()
	config.Host = viper.GetString("server.host")
	config.Port = viper.GetInt("server.port")
	config.MaxUploadSize = maxIntakeSize()
	if record, err := cmd.Flags().GetBool("record"); err == nil {
		config.Record = record
	}
	return config
}

func runServe(ctx context.Context, config *ServeConfig) error {
	ws, err := openWorkspace(ctx, config.Record)
	if err != nil {
		return err
	}
	defer ws.Close(ctx)

	srv, err := server.NewServer(ws.ctrl, editor.Attach(ws.ctrl), &server.ServerConfig{
		Host:          config.Host,
		Port:          config.Port,
		MaxUploadSize: config.MaxUploadSize,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.G(ctx).WithError(err).Error("failed to close API server")
		}
	}()

	if config.Port < 1024 {
		logger.G(ctx).WithField("port", config.Port).Warn("using privileged port (< 1024) may require elevated permissions")
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.G(ctx).WithField("host", config.Host).WithField("port", config.Port).Info("starting API server")
	presenter.Info("Press Ctrl+C to stop the server")

	if err := srv.Start(ctx); err != nil {
		return err
	}
	presenter.Info("API server stopped")
	return nil
}

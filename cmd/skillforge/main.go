package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/presenter"
	"github.com/jingkaihe/skillforge/pkg/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "skillforge",
	Short: "Turn screen recordings into agent skill packages",
	Long: `Skillforge turns a screen recording, screenshot or PDF of a workflow into a
reusable agent skill package: a SKILL.md document plus scripts, references and
assets, exported as a zip archive or installed into a skills directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.Configure(logger.Config{
			Level:  viper.GetString("log_level"),
			Format: viper.GetString("log_format"),
		}); err != nil {
			return err
		}
		if quiet, err := cmd.Flags().GetBool("quiet"); err == nil && quiet {
			presenter.SetQuiet(true)
		}

		shutdown, err := initTracing(cmd.Context())
		if err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("failed to initialize tracing")
			return nil
		}
		shutdownTracing = shutdown
		return nil
	},
}

var shutdownTracing telemetry.ShutdownFunc

func flushTracing(ctx context.Context) {
	if shutdownTracing == nil {
		return
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to shut down tracing")
	}
}

func init() {
	rootCmd.PersistentFlags().String("model", "", "Gemini model used for analysis (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (overrides config)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (overrides config)")

	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Only print errors")

	_ = viper.BindPFlag("model", rootCmd.PersistentFlags().Lookup("model"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(withTracing(generateCmd))
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(withTracing(exportCmd))
	rootCmd.AddCommand(withTracing(editCmd))
	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(withTracing(serveCmd))
	rootCmd.AddCommand(withTracing(watchCmd))
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx := context.Background()

	err := rootCmd.ExecuteContext(ctx)
	flushTracing(ctx)
	if err != nil {
		presenter.Error(err, "skillforge failed")
		os.Exit(1)
	}
}

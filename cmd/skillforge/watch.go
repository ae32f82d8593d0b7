package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/analysis"
	"github.com/jingkaihe/skillforge/pkg/inbox"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/presenter"
)

// WatchConfig holds configuration for the watch command
type WatchConfig struct {
	OutputDir  string
	InstallDir string
	Include    string
	Debounce   time.Duration
	Existing   bool
}

// NewWatchConfig creates a new WatchConfig with default values
func NewWatchConfig() *WatchConfig {
	return &WatchConfig{
		OutputDir:  "",
		InstallDir: "",
		Include:    inbox.DefaultInclude,
		Debounce:   500 * time.Millisecond,
		Existing:   false,
	}
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Generate skills from media dropped into a directory",
	Long: `Watch a directory for new recordings, screenshots and PDFs. Every matching
file is analyzed once it stops changing and the skill archive is written to the
output directory (default <dir>/skills). Notes for a file can be placed next to
it in <file>.notes. Failures are logged and the next file is processed.`,
	Example: `  skillforge watch ~/Recordings --install-dir ~/.kodelet/skills
  skillforge watch ./inbox --include "**/*.pdf" --existing`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := getWatchConfigFromFlags(cmd)
		return runWatch(cmd.Context(), config, args[0])
	},
}

func init() {
	defaults := NewWatchConfig()
	watchCmd.Flags().StringP("output", "o", defaults.OutputDir, "Directory skill archives are written to (default <dir>/skills)")
	watchCmd.Flags().String("install-dir", defaults.InstallDir, "Also install every skill as a directory under this skills directory")
	watchCmd.Flags().String("include", defaults.Include, "Doublestar pattern of media files to process, relative to the directory")
	watchCmd.Flags().Duration("debounce", defaults.Debounce, "How long a file must stay unchanged before it is processed")
	watchCmd.Flags().Bool("existing", defaults.Existing, "Also process matching files already in the directory")
}

func getWatchConfigFromFlags(cmd *cobra.Command) *WatchConfig {
	config := NewWatchConfig()
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.OutputDir = output
	}
	if installDir, err := cmd.Flags().GetString("install-dir"); err == nil {
		config.InstallDir = installDir
	}
	if include, err := cmd.Flags().GetString("include"); err == nil {
		config.Include = include
	}
	if debounce, err := cmd.Flags().GetDuration("debounce"); err == nil {
		config.Debounce = debounce
	}
	if existing, err := cmd.Flags().GetBool("existing"); err == nil {
		config.Existing = existing
	}
	return config
}

func inboxConfig(config *WatchConfig, dir string) inbox.Config {
	output := config.OutputDir
	if output == "" {
		output = filepath.Join(dir, "skills")
	}
	cfg := inbox.NewConfig(dir, output)
	cfg.InstallDir = config.InstallDir
	cfg.Include = config.Include
	cfg.Debounce = config.Debounce
	cfg.MaxSize = maxIntakeSize()
	cfg.ProcessExisting = config.Existing
	return cfg
}

func runWatch(ctx context.Context, config *WatchConfig, dir string) error {
	ws, err := openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer ws.Close(ctx)

	cfg := inboxConfig(config, dir)
	w, err := inbox.New(ws.ctrl, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	presenter.Info(fmt.Sprintf("Watching %s, archives go to %s", cfg.Dir, cfg.OutputDir))
	presenter.Info("Press Ctrl+C to stop watching")

	err = w.Run(ctx, func(res *inbox.Result, err error) {
		if err != nil {
			logger.G(ctx).WithField("kind", analysis.KindOf(err)).WithError(err).Warn("failed to process inbox file")
			presenter.Error(err, "failed to process inbox file")
			return
		}
		presenter.Success(fmt.Sprintf("%s -> %s", filepath.Base(res.Source), res.Archive))
	})
	if err != nil {
		return err
	}
	presenter.Info("Stopped watching")
	return nil
}

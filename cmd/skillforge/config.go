package main

import (
	"context"
	"runtime"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillforge/pkg/analysis"
	"github.com/jingkaihe/skillforge/pkg/capture"
	"github.com/jingkaihe/skillforge/pkg/history"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/workflow"
)

func init() {
	initConfig()
}

// initConfig sets up environment variables, the optional config file and
// the defaults of every configuration key.
func initConfig() {
	viper.SetEnvPrefix("SKILLFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillforge")
	viper.AddConfigPath(".")

	setDefaults()

	// The config file is optional
	_ = viper.ReadInConfig()
}

func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")

	viper.SetDefault("model", analysis.DefaultModel)
	// Nested keys need a default so UnmarshalKey sees their env overrides
	viper.SetDefault("google.backend", "")
	viper.SetDefault("google.api_key", "")
	viper.SetDefault("google.project", "")
	viper.SetDefault("google.location", "")
	_ = viper.BindEnv("google.api_key", "SKILLFORGE_GOOGLE_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")

	viper.SetDefault("analysis.timeout", analysis.DefaultTimeout)
	viper.SetDefault("analysis.inline_limit", analysis.DefaultInlineLimit)

	viper.SetDefault("history.store", history.KindSQLite)
	viper.SetDefault("history.dir", "")

	viper.SetDefault("capture.command", "ffmpeg")
	viper.SetDefault("capture.args", capture.DefaultArgs(runtime.GOOS))
	viper.SetDefault("capture.mime_type", "video/webm")
	viper.SetDefault("capture.extension", ".webm")

	viper.SetDefault("intake.max_size", capture.DefaultMaxSize)

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.sampler", "ratio")
	viper.SetDefault("tracing.ratio", 1.0)

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
}

// analysisConfigFromViper builds the gateway configuration from config
// keys, environment and flags.
func analysisConfigFromViper() (analysis.Config, error) {
	cfg := analysis.Config{
		Model:       viper.GetString("model"),
		Timeout:     viper.GetDuration("analysis.timeout"),
		InlineLimit: viper.GetInt64("analysis.inline_limit"),
	}
	if err := viper.UnmarshalKey("google", &cfg.Google); err != nil {
		return cfg, errors.Wrap(err, "invalid google configuration")
	}
	// UnmarshalKey reads the nested map and misses the alternative env names
	cfg.Google.APIKey = viper.GetString("google.api_key")
	return cfg, nil
}

// recorderFromViper builds the screen recorder from the capture keys.
func recorderFromViper() *capture.CommandRecorder {
	rec := capture.NewCommandRecorder()
	if command := viper.GetString("capture.command"); command != "" {
		rec.Command = command
	}
	if args := viper.GetStringSlice("capture.args"); len(args) > 0 {
		rec.Args = args
	}
	if mimeType := viper.GetString("capture.mime_type"); mimeType != "" {
		rec.MIMEType = mimeType
	}
	if ext := viper.GetString("capture.extension"); ext != "" {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		rec.Extension = ext
	}
	return rec
}

func maxIntakeSize() int64 {
	return viper.GetInt64("intake.max_size")
}

func openHistory(ctx context.Context) (*history.Store, error) {
	return history.OpenStore(ctx, viper.GetString("history.store"), viper.GetString("history.dir"))
}

// lazyGenerator defers creating the Gemini client until the first analysis,
// so commands that only browse or edit history work without credentials.
func lazyGenerator(cfg analysis.Config) analysis.Generator {
	var (
		once    sync.Once
		gateway *analysis.GoogleGateway
		initErr error
	)
	return analysis.GeneratorFunc(func(ctx context.Context, data []byte, mimeType, notes string) (*analysis.Result, error) {
		once.Do(func() {
			gateway, initErr = analysis.NewGoogleGateway(ctx, cfg)
			if initErr == nil {
				logger.G(ctx).WithField("model", gateway.Model()).Debug("created analysis gateway")
			}
		})
		if initErr != nil {
			return nil, &analysis.Error{Kind: analysis.KindService, Err: initErr}
		}
		return gateway.Generate(ctx, data, mimeType, notes)
	})
}

// workspace is a controller wired to the configured collaborators.
type workspace struct {
	ctrl  *workflow.Controller
	store *history.Store
}

// openWorkspace wires a workflow controller to the configured history,
// analysis gateway and, when withRecorder is set, the screen recorder.
func openWorkspace(ctx context.Context, withRecorder bool) (*workspace, error) {
	analysisCfg, err := analysisConfigFromViper()
	if err != nil {
		return nil, err
	}

	store, err := openHistory(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open history")
	}

	cfg := workflow.Config{
		Generator:       lazyGenerator(analysisCfg),
		History:         store,
		AnalysisTimeout: analysisCfg.Timeout,
	}
	if withRecorder {
		cfg.Recorder = recorderFromViper()
	}
	return &workspace{ctrl: workflow.New(cfg), store: store}, nil
}

// Close releases any running capture and closes the history backend.
func (w *workspace) Close(ctx context.Context) {
	if err := w.ctrl.Close(); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to release capture")
	}
	if err := w.store.Close(); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to close history")
	}
}

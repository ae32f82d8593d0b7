package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/analysis"
	"github.com/jingkaihe/skillforge/pkg/archive"
	"github.com/jingkaihe/skillforge/pkg/capture"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/presenter"
	"github.com/jingkaihe/skillforge/pkg/tui"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
	"github.com/jingkaihe/skillforge/pkg/workflow"
)

// GenerateConfig holds configuration for the generate command
type GenerateConfig struct {
	Record     bool
	Notes      string
	NotesSet   bool
	Yes        bool
	OutputDir  string
	InstallDir string
}

// NewGenerateConfig creates a new GenerateConfig with default values
func NewGenerateConfig() *GenerateConfig {
	return &GenerateConfig{
		OutputDir: ".",
	}
}

var generateCmd = &cobra.Command{
	Use:   "generate [file]",
	Short: "Generate a skill package from a recording, screenshot or PDF",
	Long: `Generate a skill package from media showing a workflow.

Pass a video, image or PDF file, or use --record to capture the screen with the
configured recorder. The media is previewed, optionally annotated with notes,
analyzed by Gemini and exported as <slug>.zip into the output directory.`,
	Example: `  skillforge generate demo.webm --notes "sort invoices by vendor"
  skillforge generate --record --install-dir ~/.kodelet/skills`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := getGenerateConfigFromFlags(cmd)
		if err := validateGenerateConfig(config, args); err != nil {
			return err
		}
		return runGenerate(cmd.Context(), config, args)
	},
}

func init() {
	defaults := NewGenerateConfig()
	generateCmd.Flags().Bool("record", defaults.Record, "Record the screen instead of reading a file")
	generateCmd.Flags().String("notes", defaults.Notes, "Notes sent with the media (skips the notes prompt)")
	generateCmd.Flags().BoolP("yes", "y", defaults.Yes, "Analyze without reviewing the media or prompting for notes")
	generateCmd.Flags().StringP("output", "o", defaults.OutputDir, "Directory the skill archive is written to")
	generateCmd.Flags().String("install-dir", defaults.InstallDir, "Also install the skill as a directory under this skills directory")
}

func getGenerateConfigFromFlags(cmd *cobra.Command) *GenerateConfig {
	config := NewGenerateConfig()

	if record, err := cmd.Flags().GetBool("record"); err == nil {
		config.Record = record
	}
	if notes, err := cmd.Flags().GetString("notes"); err == nil {
		config.Notes = notes
		config.NotesSet = cmd.Flags().Changed("notes")
	}
	if yes, err := cmd.Flags().GetBool("yes"); err == nil {
		config.Yes = yes
	}
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.OutputDir = output
	}
	if installDir, err := cmd.Flags().GetString("install-dir"); err == nil {
		config.InstallDir = installDir
	}

	return config
}

func validateGenerateConfig(config *GenerateConfig, args []string) error {
	switch {
	case config.Record && len(args) > 0:
		return errors.New("pass either a media file or --record, not both")
	case !config.Record && len(args) == 0:
		return errors.New("a media file or --record is required")
	case config.OutputDir == "":
		return errors.New("output directory cannot be empty")
	}
	return nil
}

func runGenerate(ctx context.Context, config *GenerateConfig, args []string) error {
	ws, err := openWorkspace(ctx, config.Record)
	if err != nil {
		return err
	}
	defer ws.Close(ctx)
	ctrl := ws.ctrl

	var artifact *skill.MediaArtifact
	if config.Record {
		artifact, err = recordMedia(ctx, ctrl)
	} else {
		artifact, err = uploadMedia(ctrl, args[0])
	}
	if err != nil || artifact == nil {
		return err
	}
	presenter.Info(fmt.Sprintf("Media ready: %s", artifact))

	notes := config.Notes
	if !config.NotesSet && !config.Yes {
		var analyze bool
		notes, analyze, err = tui.PromptNotes(ctx, "", artifact.String())
		if err != nil {
			return err
		}
		if !analyze {
			if err := ctrl.Discard(); err != nil {
				return err
			}
			presenter.Info("Media discarded")
			return nil
		}
	}
	if err := ctrl.SetNotes(notes); err != nil {
		return err
	}

	presenter.Info("Analyzing media, this can take a few minutes...")
	generated, err := ctrl.Analyze(ctx)
	if err != nil {
		logger.G(ctx).WithField("kind", analysis.KindOf(err)).WithError(err).Debug("analysis failed")
		return errors.Wrap(err, "skill generation failed")
	}

	return deliver(ctx, generated, config.OutputDir, config.InstallDir)
}

func uploadMedia(ctrl *workflow.Controller, path string) (*skill.MediaArtifact, error) {
	artifact, err := capture.FromFile(path, maxIntakeSize())
	if err != nil {
		return nil, err
	}
	if err := ctrl.Upload(artifact); err != nil {
		return nil, err
	}
	return artifact, nil
}

// recordMedia runs a capture with the recording prompt. It returns nil
// without error when the capture was declined or cancelled.
func recordMedia(ctx context.Context, ctrl *workflow.Controller) (*skill.MediaArtifact, error) {
	if err := ctrl.StartCapture(ctx); err != nil {
		return nil, err
	}
	if ctrl.State() != workflow.Recording {
		presenter.Warning("Screen recording was declined")
		return nil, nil
	}

	done := ctrl.CaptureDone()
	outcome, err := tui.RunRecording(ctx, done, "screen")
	if err != nil {
		return nil, err
	}

	switch outcome {
	case tui.OutcomeCancelled:
		if err := ctrl.Close(); err != nil {
			return nil, err
		}
		presenter.Info("Recording cancelled")
		return nil, nil
	case tui.OutcomeEnded:
		artifact, err := ctrl.WaitCapture(ctx, done)
		if capture.Declined(err) {
			presenter.Warning("Screen recording was declined")
			return nil, nil
		}
		return artifact, err
	default:
		if ctrl.State() != workflow.Recording {
			// The recorder finished while the prompt was closing
			return ctrl.WaitCapture(ctx, done)
		}
		return ctrl.StopCapture(ctx)
	}
}

// deliver exports the generated package and prints a summary of it.
func deliver(ctx context.Context, generated *skill.GeneratedSkill, outputDir, installDir string) error {
	p := generated.Package
	for _, w := range archive.Lint(p) {
		presenter.Warning(w)
	}

	path, err := archive.Export(ctx, p, outputDir)
	if err != nil {
		return err
	}

	var installed string
	if installDir != "" {
		installed, err = archive.Install(ctx, p, installDir)
		if err != nil {
			return err
		}
		checkInstalled(installed)
	}

	presenter.Section("Generated skill")
	presenter.Field("ID", generated.ID)
	presenter.Field("Name", p.Frontmatter.Name)
	presenter.Field("Description", p.Frontmatter.Description)
	presenter.Field("Archive", path)
	if installed != "" {
		presenter.Field("Installed", installed)
	}
	presenter.Tree(p.Slug, entryPaths(p))
	presenter.Success(fmt.Sprintf("Skill %q is ready", p.Slug))
	return nil
}

func entryPaths(p skill.SkillPackage) []string {
	var paths []string
	prefix := p.Slug + "/"
	for _, e := range archive.Entries(p) {
		paths = append(paths, strings.TrimPrefix(e.Path, prefix))
	}
	return paths
}

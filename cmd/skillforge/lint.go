package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/archive"
	"github.com/jingkaihe/skillforge/pkg/presenter"
	"github.com/jingkaihe/skillforge/pkg/skills"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// LintConfig holds configuration for the lint command
type LintConfig struct {
	Strict bool
}

// NewLintConfig creates a new LintConfig with default values
func NewLintConfig() *LintConfig {
	return &LintConfig{
		Strict: false,
	}
}

var lintCmd = &cobra.Command{
	Use:   "lint <archive.zip|skill-dir>",
	Short: "Check a skill archive or installed skill",
	Long: `Check that a skill archive or installed skill directory has the expected
layout and a well-formed package, and warn about problems a skill loader would
trip over.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := getLintConfigFromFlags(cmd)

		p, warnings, err := lintPath(args[0])
		if err != nil {
			return err
		}

		for _, w := range warnings {
			presenter.Warning(w)
		}
		if len(warnings) > 0 && config.Strict {
			return errors.Errorf("%s has %d warning(s)", args[0], len(warnings))
		}
		presenter.Success(fmt.Sprintf("%s: %d file(s), %d warning(s)", p.Slug, p.FileCount(), len(warnings)))
		return nil
	},
}

func init() {
	defaults := NewLintConfig()
	lintCmd.Flags().Bool("strict", defaults.Strict, "Fail when there are warnings")
}

func getLintConfigFromFlags(cmd *cobra.Command) *LintConfig {
	config := NewLintConfig()
	if strict, err := cmd.Flags().GetBool("strict"); err == nil {
		config.Strict = strict
	}
	return config
}

func lintPath(path string) (skill.SkillPackage, []string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return skill.SkillPackage{}, nil, errors.Wrap(err, "failed to read skill")
	}
	if info.IsDir() {
		installed, err := skills.Load(path)
		if err != nil {
			return skill.SkillPackage{}, nil, err
		}
		return lintPackage(installed.Package)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return skill.SkillPackage{}, nil, errors.Wrap(err, "failed to read archive")
	}
	return lintArchive(data)
}

// lintArchive unpacks data and returns the package with its lint warnings.
// Layout problems and structural violations are errors.
func lintArchive(data []byte) (skill.SkillPackage, []string, error) {
	p, err := archive.Unpack(data)
	if err != nil {
		return p, nil, err
	}
	return lintPackage(p)
}

func lintPackage(p skill.SkillPackage) (skill.SkillPackage, []string, error) {
	if err := p.Validate(); err != nil {
		return p, nil, err
	}
	return p, archive.Lint(p), nil
}

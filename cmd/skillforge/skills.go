package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/presenter"
	"github.com/jingkaihe/skillforge/pkg/skills"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// SkillsConfig holds configuration for the skills commands
type SkillsConfig struct {
	Dirs []string
}

// NewSkillsConfig creates a new SkillsConfig with default values
func NewSkillsConfig() *SkillsConfig {
	return &SkillsConfig{
		Dirs: nil,
	}
}

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Inspect installed skills",
	Long: `List the skills installed in skills directories and import them into history
so they can be edited and exported. Without --dir the repo-local ./.kodelet/skills
and the user-global ~/.kodelet/skills directories are searched.`,
}

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed skills",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		discovery, err := newSkillDiscovery(getSkillsConfigFromFlags(cmd))
		if err != nil {
			return err
		}
		installed, err := discovery.Discover(cmd.Context())
		if err != nil {
			return err
		}
		return renderInstalled(cmd.OutOrStdout(), installed)
	},
}

var skillsImportCmd = &cobra.Command{
	Use:   "import <name>",
	Short: "Import an installed skill into history",
	Long:  `Import an installed skill, found by frontmatter name or directory name, into history.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		discovery, err := newSkillDiscovery(getSkillsConfigFromFlags(cmd))
		if err != nil {
			return err
		}
		imported, err := importSkill(ctx, discovery, args[0])
		if err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Imported %s as %s", imported.Package.Slug, imported.ID))
		return nil
	},
}

func init() {
	defaults := NewSkillsConfig()
	skillsCmd.PersistentFlags().StringSlice("dir", defaults.Dirs, "Skills directory to search (repeatable)")

	skillsCmd.AddCommand(skillsListCmd)
	skillsCmd.AddCommand(skillsImportCmd)
	rootCmd.AddCommand(skillsCmd)
}

func getSkillsConfigFromFlags(cmd *cobra.Command) *SkillsConfig {
	config := NewSkillsConfig()
	if dirs, err := cmd.Flags().GetStringSlice("dir"); err == nil {
		config.Dirs = dirs
	}
	return config
}

func newSkillDiscovery(config *SkillsConfig) (*skills.Discovery, error) {
	if len(config.Dirs) == 0 {
		return skills.NewDiscovery()
	}
	return skills.NewDiscovery(skills.WithSkillDirs(config.Dirs...))
}

// importSkill adds the installed skill to the front of history.
func importSkill(ctx context.Context, discovery *skills.Discovery, name string) (skill.GeneratedSkill, error) {
	installed, err := discovery.Get(ctx, name)
	if err != nil {
		return skill.GeneratedSkill{}, err
	}
	if err := installed.Package.Validate(); err != nil {
		return skill.GeneratedSkill{}, err
	}

	store, err := openHistory(ctx)
	if err != nil {
		return skill.GeneratedSkill{}, err
	}
	defer store.Close()

	g := skill.NewGeneratedSkill(installed.Package, "", time.Now())
	if err := store.Prepend(ctx, g); err != nil {
		return skill.GeneratedSkill{}, err
	}
	return g, nil
}

func renderInstalled(w io.Writer, installed []*skills.Installed) error {
	if len(installed) == 0 {
		presenter.Info("No skills installed")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFILES\tDIRECTORY\tDESCRIPTION")
	fmt.Fprintln(tw, "----\t-----\t---------\t-----------")
	for _, s := range installed {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.Name, s.Package.FileCount(), s.Directory, truncate(s.Description, 60))
	}
	return tw.Flush()
}

// checkInstalled reports a freshly installed skill that a skills loader
// would not pick up.
func checkInstalled(dir string) {
	if _, err := skills.Load(dir); err != nil {
		presenter.Warning(fmt.Sprintf("installed skill at %s is not discoverable: %v", dir, err))
	}
}

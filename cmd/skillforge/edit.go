package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/archive"
	"github.com/jingkaihe/skillforge/pkg/editor"
	"github.com/jingkaihe/skillforge/pkg/presenter"
)

// EditConfig holds configuration for the edit command
type EditConfig struct {
	File   string
	From   string
	DryRun bool
}

// NewEditConfig creates a new EditConfig with default values
func NewEditConfig() *EditConfig {
	return &EditConfig{
		File:   "",
		From:   "",
		DryRun: false,
	}
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a file of a generated skill",
	Long: `Edit a file of a skill in history.

Without --file the editable files are listed. With --file but no --from the
current content is printed. With --from the file content is replaced by the
given file ("-" reads stdin), the pending diff is shown and the change is saved
unless --dry-run is set. SKILL.md (or "document") edits the markdown body; the
name and description header is kept.`,
	Example: `  skillforge edit 3f2a --file scripts/sort.py --from ./sort.py
  cat body.md | skillforge edit 3f2a --file SKILL.md --from - --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := getEditConfigFromFlags(cmd)
		if config.From != "" && config.File == "" {
			return errors.New("--from requires --file")
		}
		return runEdit(cmd.Context(), config, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	defaults := NewEditConfig()
	editCmd.Flags().String("file", defaults.File, "File to edit, e.g. SKILL.md or scripts/sort.py")
	editCmd.Flags().String("from", defaults.From, "Read the new content from this file, or - for stdin")
	editCmd.Flags().Bool("dry-run", defaults.DryRun, "Show the diff without saving")
}

func getEditConfigFromFlags(cmd *cobra.Command) *EditConfig {
	config := NewEditConfig()
	if file, err := cmd.Flags().GetString("file"); err == nil {
		config.File = file
	}
	if from, err := cmd.Flags().GetString("from"); err == nil {
		config.From = from
	}
	if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil {
		config.DryRun = dryRun
	}
	return config
}

func runEdit(ctx context.Context, config *EditConfig, ref string, stdin io.Reader, stdout io.Writer) error {
	ws, err := openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer ws.Close(ctx)

	id, err := resolveID(ws.ctrl.History(), ref)
	if err != nil {
		return err
	}
	if _, err := ws.ctrl.SelectFromHistory(id); err != nil {
		return err
	}
	ed := editor.Attach(ws.ctrl)

	switch {
	case config.File == "":
		return listFiles(stdout, ed)
	case config.From == "":
		content, err := ed.Content(config.File)
		if err != nil {
			return errors.Wrap(err, config.File)
		}
		_, err = io.WriteString(stdout, content)
		return err
	}

	text, err := readSource(config.From, stdin)
	if err != nil {
		return err
	}
	if err := ed.EditContent(config.File, text); err != nil {
		return errors.Wrap(err, config.File)
	}
	if !ed.Dirty() {
		presenter.Info("No changes")
		return nil
	}
	fmt.Fprint(stdout, ed.Diff())

	if config.DryRun {
		presenter.Info("Dry run, nothing saved")
		return nil
	}
	if err := ed.Commit(ctx); err != nil {
		return err
	}
	presenter.Success(fmt.Sprintf("Saved %s", config.File))
	return nil
}

func listFiles(w io.Writer, ed *editor.Editor) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "File\tLanguage")
	fmt.Fprintln(tw, "----\t--------")
	for _, name := range ed.Files() {
		lang := archive.LanguageFor(name)
		if lang == "" {
			lang = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\n", name, lang)
	}
	return tw.Flush()
}

func readSource(from string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if from == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(from)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", from)
	}
	return string(data), nil
}

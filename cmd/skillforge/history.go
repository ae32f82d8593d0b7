package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/skillforge/pkg/archive"
	"github.com/jingkaihe/skillforge/pkg/history"
	"github.com/jingkaihe/skillforge/pkg/presenter"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// Output formats of the history commands
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// HistoryListConfig holds configuration for the history list command
type HistoryListConfig struct {
	Format string
	Limit  int
}

// NewHistoryListConfig creates a new HistoryListConfig with default values
func NewHistoryListConfig() *HistoryListConfig {
	return &HistoryListConfig{
		Format: formatTable,
		Limit:  0,
	}
}

// HistoryShowConfig holds configuration for the history show command
type HistoryShowConfig struct {
	Format string
}

// NewHistoryShowConfig creates a new HistoryShowConfig with default values
func NewHistoryShowConfig() *HistoryShowConfig {
	return &HistoryShowConfig{
		Format: formatTable,
	}
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse generated skills",
	Long:  `List, show and delete the skills generated so far, newest first.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List generated skills",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		config := getHistoryListConfigFromFlags(cmd)

		store, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		entries := store.List()
		if config.Limit > 0 && len(entries) > config.Limit {
			entries = entries[:config.Limit]
		}
		summaries := make([]skill.Summary, 0, len(entries))
		for _, g := range entries {
			summaries = append(summaries, g.Summarize())
		}
		return renderSummaries(os.Stdout, summaries, config.Format)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a generated skill",
	Long:  `Show a generated skill. The id may be abbreviated to any unique prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		config := getHistoryShowConfigFromFlags(cmd)

		store, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := resolveID(store.List(), args[0])
		if err != nil {
			return err
		}
		g, err := store.Get(id)
		if err != nil {
			return err
		}
		return renderSkill(os.Stdout, g, config.Format)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a generated skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ws, err := openWorkspace(ctx, false)
		if err != nil {
			return err
		}
		defer ws.Close(ctx)

		id, err := resolveID(ws.ctrl.History(), args[0])
		if err != nil {
			return err
		}
		if err := ws.ctrl.DeleteFromHistory(ctx, id); err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Deleted %s", id))
		return nil
	},
}

func init() {
	listDefaults := NewHistoryListConfig()
	historyListCmd.Flags().StringP("format", "f", listDefaults.Format, "Output format (table, json, yaml)")
	historyListCmd.Flags().Int("limit", listDefaults.Limit, "Maximum number of entries to list (0 for all)")

	showDefaults := NewHistoryShowConfig()
	historyShowCmd.Flags().StringP("format", "f", showDefaults.Format, "Output format (table, json, yaml)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}

func getHistoryListConfigFromFlags(cmd *cobra.Command) *HistoryListConfig {
	config := NewHistoryListConfig()
	if format, err := cmd.Flags().GetString("format"); err == nil {
		config.Format = format
	}
	if limit, err := cmd.Flags().GetInt("limit"); err == nil {
		config.Limit = limit
	}
	return config
}

func getHistoryShowConfigFromFlags(cmd *cobra.Command) *HistoryShowConfig {
	config := NewHistoryShowConfig()
	if format, err := cmd.Flags().GetString("format"); err == nil {
		config.Format = format
	}
	return config
}

// resolveID returns the id of the entry whose id equals ref or, failing
// that, the only entry whose id starts with ref.
func resolveID(entries []skill.GeneratedSkill, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("skill id cannot be empty")
	}

	var matches []string
	for _, g := range entries {
		if g.ID == ref {
			return g.ID, nil
		}
		if strings.HasPrefix(g.ID, ref) {
			matches = append(matches, g.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", errors.Wrapf(history.ErrNotFound, "%s", ref)
	case 1:
		return matches[0], nil
	default:
		return "", errors.Errorf("id prefix %q is ambiguous: matches %d skills", ref, len(matches))
	}
}

func renderSummaries(w io.Writer, summaries []skill.Summary, format string) error {
	switch format {
	case formatJSON:
		return writeJSON(w, summaries)
	case formatYAML:
		return writeYAML(w, summaries)
	case formatTable:
	default:
		return errors.Errorf("unknown format %q, expected table, json or yaml", format)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(w, "No generated skills found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCreated\tSlug\tFiles\tDescription")
	fmt.Fprintln(tw, "--\t-------\t----\t-----\t-----------")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			s.ID,
			s.CreatedAt.Local().Format(time.DateTime),
			s.Slug,
			s.FileCount,
			truncate(s.Description, 60),
		)
	}
	return tw.Flush()
}

func renderSkill(w io.Writer, g skill.GeneratedSkill, format string) error {
	switch format {
	case formatJSON:
		return writeJSON(w, g)
	case formatYAML:
		return writeYAML(w, g)
	case formatTable:
	default:
		return errors.Errorf("unknown format %q, expected table, json or yaml", format)
	}

	p := g.Package
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", g.ID)
	fmt.Fprintf(tw, "Created:\t%s\n", g.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(tw, "Slug:\t%s\n", p.Slug)
	fmt.Fprintf(tw, "Name:\t%s\n", p.Frontmatter.Name)
	fmt.Fprintf(tw, "Description:\t%s\n", p.Frontmatter.Description)
	fmt.Fprintf(tw, "Files:\t%d\n", p.FileCount())
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	for _, e := range archive.Entries(p) {
		fmt.Fprintf(w, "  %s\n", e.Path)
	}
	fmt.Fprintf(w, "\n%s\n", archive.RenderDocument(p))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode json")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode yaml")
	}
	return enc.Close()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}

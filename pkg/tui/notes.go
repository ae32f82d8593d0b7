package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
)

// NotesModel edits the free-text notes sent along with the media.
type NotesModel struct {
	textarea  textarea.Model
	summary   string
	submitted bool
	quitting  bool
}

// NewNotesModel creates the notes editor prefilled with initial. summary
// describes the media under review.
func NewNotesModel(initial, summary string) NotesModel {
	ta := textarea.New()
	ta.Placeholder = "What should the skill capture? (optional)"
	ta.ShowLineNumbers = false
	ta.SetWidth(72)
	ta.SetHeight(4)
	ta.Prompt = "❯ "
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Prompt = promptStyle
	ta.SetValue(initial)
	ta.Focus()

	return NotesModel{textarea: ta, summary: summary}
}

// Init implements tea.Model.
func (m NotesModel) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m NotesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+d", "ctrl+s":
			m.submitted = true
			m.quitting = true
			return m, tea.Quit
		case "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m NotesModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Preview") + " " + m.summary + "\n\n")
	b.WriteString(m.textarea.View() + "\n")
	b.WriteString(hintStyle.Render("ctrl+d: analyze • esc: discard"))
	b.WriteString("\n")
	return b.String()
}

// Notes returns the trimmed notes.
func (m NotesModel) Notes() string { return strings.TrimSpace(m.textarea.Value()) }

// Submitted reports whether the user chose to analyze.
func (m NotesModel) Submitted() bool { return m.submitted }

// PromptNotes lets the user review the media and type notes. It returns
// the notes and whether the user chose to analyze rather than discard.
func PromptNotes(ctx context.Context, initial, summary string, opts ...tea.ProgramOption) (string, bool, error) {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	final, err := tea.NewProgram(NewNotesModel(initial, summary), opts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "notes prompt failed")
	}
	m := final.(NotesModel)
	return m.Notes(), m.Submitted(), nil
}

package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+d":
		return tea.KeyMsg{Type: tea.KeyCtrlD}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func isQuit(t *testing.T, cmd tea.Cmd) bool {
	t.Helper()
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestRecordModelKeys(t *testing.T) {
	tests := []struct {
		key  string
		want Outcome
	}{
		{"enter", OutcomeStopped},
		{"q", OutcomeStopped},
		{"s", OutcomeStopped},
		{"esc", OutcomeCancelled},
		{"ctrl+c", OutcomeCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			m := NewRecordModel(nil, "main display")
			next, cmd := m.Update(key(tt.key))
			assert.True(t, isQuit(t, cmd))
			assert.Equal(t, tt.want, next.(RecordModel).Outcome())
			assert.Empty(t, next.View())
		})
	}
}

func TestRecordModelIgnoresOtherKeys(t *testing.T) {
	m := NewRecordModel(nil, "main display")
	next, cmd := m.Update(key("x"))
	assert.Nil(t, cmd)
	assert.Contains(t, next.View(), "REC")
	assert.Contains(t, next.View(), "main display")
}

func TestRecordModelCaptureEnded(t *testing.T) {
	done := make(chan struct{})
	close(done)

	msg := waitFor(done)()
	require.IsType(t, captureEndedMsg{}, msg)

	next, cmd := NewRecordModel(done, "").Update(msg)
	assert.True(t, isQuit(t, cmd))
	assert.Equal(t, OutcomeEnded, next.(RecordModel).Outcome())
	assert.Equal(t, "ended", OutcomeEnded.String())
}

func TestNotesModel(t *testing.T) {
	m := NewNotesModel("", "demo.webm (video/webm, 10 B)")
	assert.Contains(t, m.View(), "demo.webm")

	var model tea.Model = m
	for _, r := range "sort by vendor" {
		model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	model, cmd := model.Update(key("ctrl+d"))
	assert.True(t, isQuit(t, cmd))

	notes := model.(NotesModel)
	assert.True(t, notes.Submitted())
	assert.Equal(t, "sort by vendor", notes.Notes())
}

func TestNotesModelDiscard(t *testing.T) {
	model, cmd := NewNotesModel("keep me", "").Update(key("esc"))
	assert.True(t, isQuit(t, cmd))
	notes := model.(NotesModel)
	assert.False(t, notes.Submitted())
	assert.Equal(t, "keep me", notes.Notes())
}

// Package tui provides the small interactive prompts of the generate
// command: a recording indicator with a stop key and a notes editor.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/stopwatch"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
)

// Outcome is how a recording prompt ended.
type Outcome int

const (
	// OutcomeStopped means the user asked to stop recording.
	OutcomeStopped Outcome = iota
	// OutcomeEnded means the recorder finished on its own.
	OutcomeEnded
	// OutcomeCancelled means the user abandoned the recording.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStopped:
		return "stopped"
	case OutcomeEnded:
		return "ended"
	default:
		return "cancelled"
	}
}

type captureEndedMsg struct{}

// RecordModel shows a running stopwatch until the user stops the capture
// or the capture ends by itself.
type RecordModel struct {
	stopwatch stopwatch.Model
	done      <-chan struct{}
	source    string
	outcome   Outcome
	quitting  bool
}

// NewRecordModel creates the recording prompt. done is closed when the
// capture ends; source names what is being recorded.
func NewRecordModel(done <-chan struct{}, source string) RecordModel {
	return RecordModel{
		stopwatch: stopwatch.NewWithInterval(time.Second),
		done:      done,
		source:    source,
		outcome:   OutcomeCancelled,
	}
}

// Init implements tea.Model.
func (m RecordModel) Init() tea.Cmd {
	return tea.Batch(m.stopwatch.Init(), waitFor(m.done))
}

func waitFor(done <-chan struct{}) tea.Cmd {
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		<-done
		return captureEndedMsg{}
	}
}

// Update implements tea.Model.
func (m RecordModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "s":
			return m.quit(OutcomeStopped)
		case "esc", "ctrl+c":
			return m.quit(OutcomeCancelled)
		}
		return m, nil
	case captureEndedMsg:
		return m.quit(OutcomeEnded)
	}

	var cmd tea.Cmd
	m.stopwatch, cmd = m.stopwatch.Update(msg)
	return m, cmd
}

func (m RecordModel) quit(o Outcome) (tea.Model, tea.Cmd) {
	m.outcome = o
	m.quitting = true
	return m, tea.Quit
}

// View implements tea.Model.
func (m RecordModel) View() string {
	if m.quitting {
		return ""
	}
	return fmt.Sprintf("%s %s %s\n%s\n",
		recordingStyle.Render("● REC"),
		elapsedStyle.Render(m.stopwatch.View()),
		m.source,
		hintStyle.Render("enter/q: stop and preview • esc: cancel"),
	)
}

// Outcome returns how the prompt ended.
func (m RecordModel) Outcome() Outcome { return m.outcome }

// Elapsed returns the time shown on the stopwatch.
func (m RecordModel) Elapsed() time.Duration { return m.stopwatch.Elapsed() }

// RunRecording runs the recording prompt until the user stops, cancels,
// or done is closed.
func RunRecording(ctx context.Context, done <-chan struct{}, source string, opts ...tea.ProgramOption) (Outcome, error) {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	final, err := tea.NewProgram(NewRecordModel(done, source), opts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return OutcomeCancelled, nil
		}
		return OutcomeCancelled, errors.Wrap(err, "recording prompt failed")
	}
	return final.(RecordModel).Outcome(), nil
}

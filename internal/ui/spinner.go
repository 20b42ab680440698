package ui

import (
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type doneMsg struct{ err error }

type spinnerModel struct {
	spinner spinner.Model
	title   string
	done    bool
	err     error
}

func newSpinnerModel(title string) spinnerModel {
	return spinnerModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(accent)),
		),
		title: title,
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + dimStyle.Render(m.title) + "\n"
}

// Run calls fn while drawing a spinner titled title on w. With interactive
// false it just calls fn.
func Run(w io.Writer, interactive bool, title string, fn func() error) error {
	if !interactive {
		return fn()
	}

	p := tea.NewProgram(newSpinnerModel(title), tea.WithOutput(w), tea.WithInput(nil))
	go func() {
		p.Send(doneMsg{err: fn()})
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}
	return final.(spinnerModel).err
}

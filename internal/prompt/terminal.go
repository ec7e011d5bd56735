package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(1, 2).
			Width(60)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// Terminal shows a small modal in the terminal. Enter submits, Esc or Ctrl+C cancels.
type Terminal struct {
	In  io.Reader
	Out io.Writer
	// Hint is the key help shown under the input.
	Hint string
}

func (t *Terminal) RequestText(ctx context.Context, label string) (string, error) {
	m := newInputModel(label, t.Hint)

	var opts []tea.ProgramOption
	opts = append(opts, tea.WithContext(ctx))
	if t.In != nil {
		opts = append(opts, tea.WithInput(t.In))
	}
	if t.Out != nil {
		opts = append(opts, tea.WithOutput(t.Out))
	}
	p := tea.NewProgram(m, opts...)

	type result struct {
		model tea.Model
		err   error
	}
	done := make(chan result, 1)
	go func() {
		final, err := p.Run()
		done <- result{model: final, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		p.Kill()
		<-done
		return "", ctx.Err()
	case res = <-done:
	}

	if res.err != nil {
		if errors.Is(res.err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("prompt: %w", res.err)
	}
	final, ok := res.model.(inputModel)
	if !ok || final.cancelled {
		return "", ErrUserCancelled
	}
	return final.value, nil
}

type inputModel struct {
	label     string
	hint      string
	input     textinput.Model
	value     string
	cancelled bool
	warning   string
}

func newInputModel(label, hint string) inputModel {
	ti := textinput.New()
	ti.CharLimit = 4000
	ti.Width = 50
	ti.Focus()
	if hint == "" {
		hint = "Enter: submit  Esc: cancel"
	}
	return inputModel{label: label, hint: hint, input: ti}
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc", "ctrl+c":
			m.cancelled = true
			return m, tea.Quit
		case "enter":
			value := strings.TrimSpace(m.input.Value())
			if value == "" {
				m.warning = "A value is required"
				return m, nil
			}
			m.value = value
			return m, tea.Quit
		}
		m.warning = ""
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.value != "" || m.cancelled {
		return ""
	}
	body := labelStyle.Render(m.label) + "\n\n" + m.input.View() + "\n\n"
	if m.warning != "" {
		body += errorStyle.Render(m.warning) + "\n"
	}
	body += hintStyle.Render(m.hint)
	return boxStyle.Render(body) + "\n"
}

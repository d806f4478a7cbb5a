// Package tui is the terminal front end of curios: the chat screen and the
// small prompts used by CLI commands.
package tui

import (
	"io"
	"os"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/curios-os/curios/internal/i18n"
)

// ConfirmResult is the outcome of a confirmation prompt.
type ConfirmResult int

const (
	ConfirmYes ConfirmResult = iota
	ConfirmNo
	ConfirmCancelled
)

// ConfirmOptions configures Confirm.
type ConfirmOptions struct {
	Prompt      string
	Detail      string // optional second line, muted
	Affirmative string // default "Yes"
	Negative    string // default "No"
	Default     bool   // initial selection; true = affirmative
	Input       io.Reader
	Output      io.Writer
}

// Confirm asks a yes/no question inline (no alternate screen) and returns
// the answer. Esc and q cancel; ctrl+c interrupts.
func Confirm(opts ConfirmOptions) (ConfirmResult, error) {
	if opts.Affirmative == "" {
		opts.Affirmative = i18n.T("common.yes", "Yes")
	}
	if opts.Negative == "" {
		opts.Negative = i18n.T("common.no", "No")
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	progOpts := []tea.ProgramOption{tea.WithOutput(opts.Output)}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}

	final, err := tea.NewProgram(newConfirmModel(opts), progOpts...).Run()
	if err != nil {
		return ConfirmCancelled, err
	}
	return final.(confirmModel).result, nil
}

type confirmModel struct {
	opts      ConfirmOptions
	selection bool
	result    ConfirmResult
	done      bool
	keys      confirmKeyMap
}

type confirmKeyMap struct {
	Toggle key.Binding
	Submit key.Binding
	Yes    key.Binding
	No     key.Binding
	Cancel key.Binding
	Abort  key.Binding
}

func newConfirmModel(opts ConfirmOptions) confirmModel {
	return confirmModel{
		opts:      opts,
		selection: opts.Default,
		result:    ConfirmCancelled,
		keys: confirmKeyMap{
			Toggle: key.NewBinding(key.WithKeys("left", "right", "h", "l", "tab", "shift+tab")),
			Submit: key.NewBinding(key.WithKeys("enter")),
			Yes:    key.NewBinding(key.WithKeys("y", "Y")),
			No:     key.NewBinding(key.WithKeys("n", "N")),
			Cancel: key.NewBinding(key.WithKeys("q", "esc")),
			Abort:  key.NewBinding(key.WithKeys("ctrl+c")),
		},
	}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) finish(r ConfirmResult) (tea.Model, tea.Cmd) {
	m.result = r
	m.done = true
	return m, tea.Quit
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(k, m.keys.Abort):
		m.result = ConfirmCancelled
		m.done = true
		return m, tea.Interrupt
	case key.Matches(k, m.keys.Cancel):
		return m.finish(ConfirmCancelled)
	case key.Matches(k, m.keys.Yes):
		return m.finish(ConfirmYes)
	case key.Matches(k, m.keys.No):
		return m.finish(ConfirmNo)
	case key.Matches(k, m.keys.Toggle):
		m.selection = !m.selection
	case key.Matches(k, m.keys.Submit):
		if m.selection {
			return m.finish(ConfirmYes)
		}
		return m.finish(ConfirmNo)
	}
	return m, nil
}

func (m confirmModel) View() tea.View {
	if m.done {
		return tea.NewView("")
	}
	s := GetStyles()

	yes, no := s.ConfirmUnselected, s.ConfirmSelected
	if m.selection {
		yes, no = s.ConfirmSelected, s.ConfirmUnselected
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Center, yes.Render(m.opts.Affirmative), "  ", no.Render(m.opts.Negative))

	content := "\n" + s.ConfirmPrompt.Render(m.opts.Prompt) + "\n"
	if m.opts.Detail != "" {
		content += s.MoreText.Render(m.opts.Detail) + "\n"
	}
	return tea.NewView(content + "\n" + buttons + "\n")
}

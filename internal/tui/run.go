package tui

import (
	"os"

	tea "charm.land/bubbletea/v2"
	"golang.org/x/term"
)

func termSizeOpts() []tea.ProgramOption {
	var opts []tea.ProgramOption
	for _, fd := range []int{int(os.Stdout.Fd()), int(os.Stdin.Fd()), int(os.Stderr.Fd())} {
		if term.IsTerminal(fd) {
			w, h, err := term.GetSize(fd)
			if err == nil && w > 0 && h > 0 {
				opts = append(opts, tea.WithWindowSize(w, h))
				break
			}
		}
	}
	return opts
}

// RunChat runs the chat screen until the user quits. The caller owns the
// engine and closes it afterwards.
func RunChat(opts ChatOptions) error {
	p := tea.NewProgram(NewChatModel(opts), termSizeOpts()...)
	_, err := p.Run()
	return err
}

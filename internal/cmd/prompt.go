package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

type fdReader interface {
	Fd() uintptr
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(fdReader)
	return ok && term.IsTerminal(int(f.Fd()))
}

// readLine prints prompt to w and reads one line from r. On a terminal with
// hidden set, the input is not echoed.
func readLine(r io.Reader, w io.Writer, prompt string, hidden bool) (string, error) {
	if prompt != "" {
		fmt.Fprint(w, prompt)
	}
	if hidden && isTerminal(r) {
		b, err := term.ReadPassword(int(r.(fdReader).Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

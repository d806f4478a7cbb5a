package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/curios-os/curios/internal/chat"
	"github.com/curios-os/curios/internal/history"
	"github.com/curios-os/curios/internal/i18n"
	"github.com/curios-os/curios/internal/session"
)

// sendJSON is the JSON schema for curios send --json.
type sendJSON struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Reply     string `json:"reply"`
	Secret    bool   `json:"secret"` // the next message will be treated as a secret
}

var sendCmd = &cobra.Command{
	Use:   "send [text]",
	Short: "Send one message and print the reply",
	Long: `Send one message in the current session and print the assistant's reply.

Without text the message is read from stdin. When the backend expects a
secret (a password during sign-in), input from a terminal is not echoed
and the message is never printed.

Examples:
  curios send "sign in"
  curios send                  # Prompt for the message
  echo hello | curios send`,
	Args: cobra.ArbitraryArgs,
	RunE: runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// Learn whether the backend expects a secret before reading input.
	a.engine.RefreshSession(ctx, "send", false)
	st := a.engine.Snapshot()
	if st.Error != "" {
		return errors.New(st.Error)
	}

	text := strings.Join(args, " ")
	if strings.TrimSpace(text) == "" {
		prompt := ""
		if isTerminal(cmd.InOrStdin()) {
			prompt = i18n.T("cmd.send.prompt", "> ")
			if st.Masking {
				prompt = i18n.T("cmd.send.secretPrompt", "secret> ")
			}
		}
		text, err = readLine(cmd.InOrStdin(), cmd.ErrOrStderr(), prompt, st.Masking)
		if err != nil {
			return err
		}
	}

	if err := a.engine.Send(ctx, text); err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			return err
		}
		return fmt.Errorf("send: %w", err)
	}

	st = a.engine.Snapshot()
	reply := lastReply(st)
	if outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(sendJSON{SessionID: st.SessionID, State: st.State, Reply: reply, Secret: st.Masking})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, reply)
	if verbose {
		fmt.Fprintf(w, "\n[%s]\n", session.StateLabel(st.State))
	}
	return nil
}

// lastReply returns the newest assistant message in the window.
func lastReply(st chat.State) string {
	msgs := st.Window.Unpinned()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Position == history.PositionLeft {
			return msgs[i].Display
		}
	}
	return ""
}

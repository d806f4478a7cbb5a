package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/curios-os/curios/internal/api"
	"github.com/curios-os/curios/internal/chat"
	"github.com/curios-os/curios/internal/i18n"
	"github.com/curios-os/curios/internal/session"
	"github.com/curios-os/curios/internal/tui"
)

// sessionJSON is the JSON schema for curios session show --json.
type sessionJSON struct {
	SessionID          string    `json:"session_id"`
	State              string    `json:"state"`
	StateLabel         string    `json:"state_label"`
	ProviderConfigured bool      `json:"provider_configured"`
	SelectedProvider   string    `json:"selected_provider,omitempty"`
	User               *api.User `json:"user"`
	Secret             bool      `json:"secret"`
	Context            string    `json:"context"`
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show or reset the current session",
	Long: `Show or reset the session this machine uses with the backend.

The session id is kept in local storage and shared by every curios
process using the same storage.

Examples:
  curios session show          # Describe the session
  curios session show --json   # Same, as JSON
  curios session reset         # Drop it and start over`,
	RunE: runSessionShow,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Describe the current session",
	Args:  cobra.NoArgs,
	RunE:  runSessionShow,
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the session and start a new one",
	Long: `Ask the backend to drop the current session, then start a new one.

On a terminal the command asks for confirmation first; --yes skips it.`,
	Args: cobra.NoArgs,
	RunE: runSessionReset,
}

var sessionResetYes bool

func init() {
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionResetCmd)
	sessionResetCmd.Flags().BoolVarP(&sessionResetYes, "yes", "y", false, i18n.T("cmd.session.flag.yes", "skip the confirmation prompt"))
}

// errFromState turns the error the engine recorded into a command error.
func errFromState(st chat.State) error {
	if st.Error != "" {
		return errors.New(st.Error)
	}
	if st.HistoryError != "" {
		return errors.New(st.HistoryError)
	}
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.engine.RefreshSession(ctx, "session show", false) == nil {
		if err := errFromState(a.engine.Snapshot()); err != nil {
			return err
		}
	}
	return printSession(cmd.OutOrStdout(), a.engine.Snapshot())
}

func runSessionReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	old := a.sessions.Get()
	if !sessionResetYes && isTerminal(cmd.InOrStdin()) {
		res, err := tui.Confirm(tui.ConfirmOptions{
			Prompt: i18n.T("tui.reset.prompt", "Start a new session? The current conversation is discarded."),
			Detail: i18n.Tf("cmd.session.resetDetail", "Current session: %s", old),
			Output: cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
		if res != tui.ConfirmYes {
			fmt.Fprintln(cmd.ErrOrStderr(), i18n.T("cmd.session.resetCancelled", "Cancelled."))
			return nil
		}
	}

	err = a.engine.ResetSession(ctx)
	st := a.engine.Snapshot()
	if stateErr := errFromState(st); stateErr != nil {
		return stateErr
	}
	if err != nil {
		return err
	}
	if outputJSON {
		return printSession(cmd.OutOrStdout(), st)
	}
	fmt.Fprintln(cmd.OutOrStdout(), i18n.Tf("cmd.session.reset", "Session %s discarded, now using %s", old, st.SessionID))
	return nil
}

func printSession(w io.Writer, st chat.State) error {
	out := sessionJSON{
		SessionID:          st.SessionID,
		State:              st.State,
		StateLabel:         session.StateLabel(st.State),
		ProviderConfigured: st.ProviderConfigured,
		SelectedProvider:   st.SelectedProvider,
		User:               st.User,
		Secret:             st.Masking,
		Context:            st.ActiveContext,
	}
	if outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	provider := session.ProviderLabel(st.SelectedProvider)
	if provider == "" {
		provider = "-"
	}
	user := st.User.Label()
	if user == "" {
		user = i18n.T("cmd.session.guest", "guest")
	}
	fmt.Fprintf(w, "%-10s %s\n", i18n.T("cmd.session.id", "Session:"), out.SessionID)
	fmt.Fprintf(w, "%-10s %s (%s)\n", i18n.T("cmd.session.state", "State:"), out.StateLabel, out.State)
	fmt.Fprintf(w, "%-10s %s\n", i18n.T("cmd.session.provider", "Provider:"), provider)
	fmt.Fprintf(w, "%-10s %s\n", i18n.T("cmd.session.user", "User:"), user)
	fmt.Fprintf(w, "%-10s %s\n", i18n.T("cmd.session.context", "Context:"), out.Context)
	if out.Secret {
		fmt.Fprintln(w, i18n.T("cmd.session.secret", "The backend is waiting for a secret; it will not be echoed."))
	}
	return nil
}

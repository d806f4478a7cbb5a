package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/curios-os/curios/internal/api"
	"github.com/curios-os/curios/internal/i18n"
	"github.com/curios-os/curios/internal/identity"
)

// Login command flags
var (
	loginEmail       string
	loginPassword    string
	loginCallbackURL string
	loginProvider    string
	loginRedirectTo  string
)

// whoamiJSON is the JSON schema for curios whoami --json.
type whoamiJSON struct {
	SignedIn    bool      `json:"signed_in"`
	Provider    string    `json:"provider_user,omitempty"` // identity provider's view
	BackendUser *api.User `json:"backend_user"`            // backend's view
	SessionID   string    `json:"session_id"`
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with the identity provider",
	Long: `Sign in with the configured identity provider and link the account
to the current session.

Auth is configured with CURIOS_SUPABASE_URL and CURIOS_SUPABASE_ANON_KEY
(or auth.url and auth.anon_key in ~/.curios/config.json).

Examples:
  curios login --email me@example.com          # Prompts for the password
  curios login --provider github               # Print an OAuth sign-in URL
  curios login --callback-url 'http://localhost/cb?code=…'`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Long: `Show the user known to the identity provider and the user the backend
has linked to the current session. They differ briefly after signing in,
until the backend resolves the new token.`,
	Args: cobra.NoArgs,
	RunE: runWhoami,
}

func init() {
	f := loginCmd.Flags()
	f.StringVar(&loginEmail, "email", "", i18n.T("cmd.login.flag.email", "account email"))
	f.StringVar(&loginPassword, "password", "", i18n.T("cmd.login.flag.password", "account password (prompted when omitted)"))
	f.StringVar(&loginCallbackURL, "callback-url", "", i18n.T("cmd.login.flag.callbackURL", "complete sign-in from an OAuth callback URL"))
	f.StringVar(&loginProvider, "provider", "", i18n.T("cmd.login.flag.provider", "start OAuth sign-in with this provider (e.g. github)"))
	f.StringVar(&loginRedirectTo, "redirect-to", "", i18n.T("cmd.login.flag.redirectTo", "redirect URL for --provider"))
	loginCmd.MarkFlagsMutuallyExclusive("callback-url", "provider", "email")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.auth.Available() {
		_, reason := a.cfg.Auth.AuthStatus()
		return fmt.Errorf("%w: %s", identity.ErrUnavailable, reason)
	}
	w := cmd.OutOrStdout()

	switch {
	case loginProvider != "":
		if a.gotrue == nil {
			return fmt.Errorf("--provider needs Supabase auth: %w", identity.ErrUnsupported)
		}
		u, err := a.gotrue.AuthorizeURL(loginProvider, loginRedirectTo)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, i18n.T("cmd.login.openURL", "Open this URL to sign in, then run curios login --callback-url with the address you land on:"))
		fmt.Fprintln(w, u)
		return nil

	case loginCallbackURL != "":
		res, err := a.auth.HandleRedirect(ctx, loginCallbackURL)
		if err != nil {
			return fmt.Errorf("complete sign-in: %w", err)
		}
		if !res.Handled {
			return errors.New("callback URL carries no sign-in result")
		}

	default:
		email := loginEmail
		if email == "" {
			if email, err = readLine(cmd.InOrStdin(), cmd.ErrOrStderr(), i18n.T("cmd.login.emailPrompt", "Email: "), false); err != nil {
				return err
			}
		}
		password := loginPassword
		if password == "" {
			if password, err = readLine(cmd.InOrStdin(), cmd.ErrOrStderr(), i18n.T("cmd.login.passwordPrompt", "Password: "), true); err != nil {
				return err
			}
		}
		if _, err := a.auth.SignIn(ctx, email, password); err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
	}

	// Wait for the backend to link the new token to the session.
	<-a.engine.SyncAfterIdentityChange(false, "login")
	return printWhoami(w, a)
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.auth.Current().SignedIn() {
		fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cmd.logout.notSignedIn", "Not signed in."))
		return nil
	}
	signOutErr := a.auth.SignOut(ctx)
	<-a.engine.SyncAfterIdentityChange(true, "signed out")
	if signOutErr != nil {
		// The local session is gone either way.
		fmt.Fprintln(cmd.ErrOrStderr(), i18n.Tf("cmd.logout.revokeFailed", "warning: could not revoke the session: %v", signOutErr))
	}
	fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cmd.logout.done", "Signed out."))
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.engine.RefreshSession(ctx, "whoami", false) == nil {
		if err := errFromState(a.engine.Snapshot()); err != nil {
			return err
		}
	}
	return printWhoami(cmd.OutOrStdout(), a)
}

func printWhoami(w io.Writer, a *app) error {
	st := a.engine.Snapshot()
	out := whoamiJSON{
		SignedIn:    a.engine.LoggedIn(),
		Provider:    a.auth.Current().Label(),
		BackendUser: st.User,
		SessionID:   st.SessionID,
	}
	if outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if !out.SignedIn {
		fmt.Fprintln(w, i18n.T("cmd.whoami.guest", "Not signed in (guest)."))
		return nil
	}
	if u := st.User.Label(); u != "" {
		fmt.Fprintln(w, i18n.Tf("cmd.whoami.user", "Signed in as %s", u))
	} else {
		fmt.Fprintln(w, i18n.Tf("cmd.whoami.pending", "Signed in as %s (not yet linked by the backend)", out.Provider))
	}
	return nil
}

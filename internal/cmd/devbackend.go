package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/curios-os/curios/internal/config"
	"github.com/curios-os/curios/internal/devserver"
	"github.com/curios-os/curios/internal/i18n"
	"github.com/curios-os/curios/internal/tuilog"
)

// Dev backend flags
var (
	devPort      int
	devHost      string
	devQuiet     bool
	devLinkDelay int
)

var devBackendCmd = &cobra.Command{
	Use:   "dev-backend",
	Short: "Run a local development backend",
	Long: `Run an in-memory backend implementing /session, /chat and /messages.

It plays a short onboarding conversation: choose sign in or guest, enter
an email and a password (declared secret), pick an AI provider, then it
echoes. Sessions live in memory and are lost on exit.

While it runs, curios commands on this machine use it unless an API base
is configured explicitly. The configured auth.access_token, if any, is
accepted as a bearer token for auth.user_id.

Examples:
  curios dev-backend                  # Listen on 127.0.0.1:8787
  curios dev-backend --port 0         # Pick a free port
  curios dev-backend --link-delay 2   # Link new tokens on the third lookup`,
	Args: cobra.NoArgs,
	RunE: runDevBackend,
}

func init() {
	f := devBackendCmd.Flags()
	f.IntVarP(&devPort, "port", "p", devserver.DefaultPort, i18n.T("cmd.devBackend.flag.port", "port to listen on (0 = random)"))
	f.StringVar(&devHost, "host", devserver.DefaultHost, i18n.T("cmd.devBackend.flag.host", "host to bind to"))
	f.BoolVarP(&devQuiet, "quiet", "q", false, i18n.T("cmd.devBackend.flag.quiet", "suppress request logging"))
	f.IntVar(&devLinkDelay, "link-delay", 0, i18n.T("cmd.devBackend.flag.linkDelay", "session lookups before a new token is linked"))
}

func runDevBackend(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		tuilog.Log.Warn("Config load failed, using defaults", "error", err)
		cfg = config.Default()
	}

	tokens := map[string]devserver.User{}
	if cfg.Auth.AccessToken != "" && cfg.Auth.UserID != "" {
		tokens[cfg.Auth.AccessToken] = devserver.User{ID: cfg.Auth.UserID, Email: cfg.Auth.Email}
	}

	srv := devserver.New(devserver.Config{
		Host:      devHost,
		Port:      devPort,
		Quiet:     devQuiet,
		Tokens:    tokens,
		LinkDelay: devLinkDelay,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}

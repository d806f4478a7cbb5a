// Package cmd provides the CLI commands for curios.
package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"

	"github.com/curios-os/curios/internal/i18n"
	"github.com/curios-os/curios/internal/tuilog"
)

// global flags
var (
	profileFile *os.File // held open for profiling
	logPath     string
	verbose     bool
	outputJSON  bool
	apiBase     string
	contextID   string
	metricsAddr string
)

// rootCmd is the root command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "curios",
	Short: "Terminal client for the CuriOS assistant",
	Long: `curios is a terminal client for the CuriOS assistant backend.

Running without a subcommand opens the chat screen.

Commands:
  tui          Open the chat screen (default)
  session      Show or reset the current session
  history      Print stored messages
  send         Send one message and print the reply
  login        Sign in with the identity provider
  logout       Sign out
  whoami       Show who the backend thinks you are
  dev-backend  Run a local development backend

Examples:
  curios                              # Open the chat screen
  curios send "sign in"               # One-shot message
  curios history --limit 20           # Last 20 messages
  curios dev-backend --port 8787      # Local backend for testing`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Start pprof profiling if CURIOS_PROFILE is set
		if profilePath := os.Getenv("CURIOS_PROFILE"); profilePath != "" {
			f, err := os.Create(profilePath)
			if err != nil {
				return fmt.Errorf("create profile file: %w", err)
			}
			profileFile = f

			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				profileFile = nil
				return fmt.Errorf("start CPU profile: %w", err)
			}
		}

		if err := tuilog.Init(logPath); err != nil {
			return err
		}
		tuilog.SetVerbose(verbose)

		return startMetrics(metricsAddr)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		stopMetrics()

		// Stop CPU profiling
		if profileFile != nil {
			pprof.StopCPUProfile()
			profileFile.Close()
			profileFile = nil
		}
		return tuilog.Log.Close()
	},
	RunE: runTUI,
}

// Execute runs the root command. Cancelling ctx aborts in-flight requests.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Localize the help strings before cobra renders them. The full Init
	// with the configured language happens once config is loaded.
	i18n.Init(i18n.ResolveLocale(""))

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&apiBase, "api-base", "", i18n.T("cmd.flag.apiBase", "backend base URL (overrides config and CURIOS_API_BASE)"))
	pf.StringVar(&contextID, "context", "", i18n.T("cmd.flag.context", "conversation context (system)"))
	pf.StringVar(&logPath, "log", "", i18n.T("cmd.flag.log", "write debug log to file"))
	pf.BoolVarP(&verbose, "verbose", "v", false, i18n.T("cmd.flag.verbose", "verbose output"))
	pf.BoolVar(&outputJSON, "json", false, i18n.T("cmd.flag.json", "output as JSON"))
	pf.StringVar(&metricsAddr, "metrics-addr", "", i18n.T("cmd.flag.metricsAddr", "serve Prometheus metrics on this address (e.g. :9090)"))

	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(devBackendCmd)
	rootCmd.AddCommand(versionCmd)
}

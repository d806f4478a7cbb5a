package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/curios-os/curios/internal/storage"
	"github.com/curios-os/curios/internal/tui"
	"github.com/curios-os/curios/internal/tui/theme"
	"github.com/curios-os/curios/internal/tuilog"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the chat screen",
	Long: `Open the interactive chat screen.

The transcript scrolls with pgup/pgdown or the mouse wheel; reaching the
top loads older messages. ctrl+o picks the context, ctrl+t toggles the
theme and ctrl+r starts a new session.`,
	RunE: runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	if !isTerminal(cmd.InOrStdin()) {
		return fmt.Errorf("the chat screen needs a terminal; use `curios send` for scripted use")
	}
	tuilog.Log.Info("Starting TUI")

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	stored, _, err := a.store.Get(storage.KeyTheme)
	if err != nil {
		tuilog.Log.Warn("Reading theme preference failed", "error", err)
	}

	err = tui.RunChat(tui.ChatOptions{
		Engine: a.engine,
		Prefs:  a.store,
		Theme:  theme.Resolve(stored, a.cfg.Theme),
	})
	tuilog.Log.Info("TUI exited", "error", err)
	return err
}

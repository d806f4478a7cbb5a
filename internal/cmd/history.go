package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/curios-os/curios/internal/api"
	"github.com/curios-os/curios/internal/history"
	"github.com/curios-os/curios/internal/i18n"
)

var (
	historyBefore string
	historyLimit  int
)

// historyJSON is the JSON schema for curios history --json. Secret
// messages carry the mask token, never their content.
type historyJSON struct {
	Messages      []historyMessageJSON `json:"messages"`
	OldestCursor  *string              `json:"oldest_cursor"`
	NewestCursor  *string              `json:"newest_cursor"`
	HasMoreBefore bool                 `json:"has_more_before"`
}

type historyMessageJSON struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Secret    bool   `json:"secret,omitempty"`
	CreatedAt string `json:"created_at"`
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print stored messages",
	Long: `Print one page of the session's stored messages, oldest first.

When older messages exist, the command prints the cursor to pass to
--before for the previous page.

Examples:
  curios history                  # Most recent page
  curios history --limit 10       # Last 10 messages
  curios history --before m2a     # The page before cursor m2a`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyBefore, "before", "", i18n.T("cmd.history.flag.before", "cursor of the oldest message already seen"))
	historyCmd.Flags().IntVar(&historyLimit, "limit", api.DefaultPageSize, i18n.T("cmd.history.flag.limit", "maximum messages to print"))
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	page, err := a.client.Messages(ctx, a.meta(), api.PageQuery{Limit: historyLimit, Before: historyBefore})
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	out := historyJSON{
		Messages:      make([]historyMessageJSON, 0, len(page.Messages)),
		OldestCursor:  page.PageInfo.OldestCursor,
		NewestCursor:  page.PageInfo.NewestCursor,
		HasMoreBefore: page.PageInfo.HasMoreBefore,
	}
	for _, sm := range page.Messages {
		m := history.FromServer(sm)
		out.Messages = append(out.Messages, historyMessageJSON{
			Role:      m.Role,
			Content:   m.Display,
			Secret:    m.Kind == history.KindSecret,
			CreatedAt: m.CreatedAt,
		})
	}

	w := cmd.OutOrStdout()
	if outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(out.Messages) == 0 {
		fmt.Fprintln(w, i18n.T("cmd.history.empty", "No messages yet."))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, i18n.T("cmd.history.header", "TIME\tAGE\tROLE\tMESSAGE"))
	for _, m := range out.Messages {
		ts, age := shortTime(m.CreatedAt)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ts, age, m.Role, oneLine(m.Content, 100))
	}
	tw.Flush()

	if out.HasMoreBefore && out.OldestCursor != nil {
		fmt.Fprintln(w, i18n.Tf("cmd.history.more", "\nOlder messages: curios history --before %s", *out.OldestCursor))
	}
	return nil
}

// shortTime formats a server timestamp as local time and a compact age.
func shortTime(ts string) (string, string) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return "-", "-"
	}
	return t.Local().Format("2006-01-02 15:04"), i18n.RelativeTimeShort(t)
}

// oneLine collapses whitespace and truncates to limit runes.
func oneLine(s string, limit int) string {
	var b []rune
	space := false
	for _, r := range s {
		if r == '\n' || r == '\t' || r == '\r' || r == ' ' {
			space = true
			continue
		}
		if space && len(b) > 0 {
			b = append(b, ' ')
		}
		space = false
		b = append(b, r)
	}
	if len(b) > limit {
		return string(b[:limit-3]) + "..."
	}
	return string(b)
}

package i18n

import (
	"time"
)

// now is replaced in tests.
var now = time.Now

// RelativeTime describes when a chat message was sent ("just now",
// "5 minutes ago", "3 hours ago"). Timestamps slightly in the future, from a
// backend clock running ahead, read as "just now".
func RelativeTime(t time.Time) string {
	d := now().Sub(t)
	switch {
	case d < time.Minute:
		return T("common.time.justNow", "just now")
	case d < time.Hour:
		return Tn("common.time.minutesAgo", "{{.Count}} minute ago", "{{.Count}} minutes ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return Tn("common.time.hoursAgo", "{{.Count}} hour ago", "{{.Count}} hours ago", int(d/time.Hour))
	default:
		return Tn("common.time.daysAgo", "{{.Count}} day ago", "{{.Count}} days ago", int(d/(24*time.Hour)))
	}
}

// RelativeTimeShort is the compact age used in history tables: "now",
// "5m", "3h", "2d", then the calendar date once a message is a week old.
func RelativeTimeShort(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	n := now()
	d := n.Sub(t)
	switch {
	case d < time.Minute:
		return T("common.time.short.now", "now")
	case d < time.Hour:
		return Tf("common.time.short.minutes", "%dm", int(d/time.Minute))
	case d < 24*time.Hour:
		return Tf("common.time.short.hours", "%dh", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return Tf("common.time.short.days", "%dd", int(d/(24*time.Hour)))
	case t.Year() == n.Year():
		return t.Local().Format("Jan 2")
	default:
		return t.Local().Format("2006-01-02")
	}
}

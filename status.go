package rollcheck

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// StatusPending is the trailing marker of a pending migration in a status
// report.
const StatusPending = "Pending"

// statusLine matches one migration record of a status report:
//
//	  2025_07_29_084338_add_columns ....................... Pending
//	  2025_07_24_122711_migration_efg .................... [11] Ran
//
// Group 1 is the migration id, group 2 is the status marker.
var statusLine = regexp.MustCompile(`^\s*(\S+)\s+\.+\s*(\[\d+\]\s+Ran|Pending)\s*$`)

// newlines normalizes the three accepted line terminators to "\n".
var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// splitLines splits text on "\n", "\r\n", or "\r".
func splitLines(text string) []string {
	return strings.Split(newlines.Replace(text), "\n")
}

// ParsePending extracts the ids of pending migrations from a status report,
// in the order they appear. Header lines, applied migrations, and any line
// that doesn't look like a migration record are ignored. An empty report
// yields an empty (nil) list.
func ParsePending(report string) []string {
	var pending []string
	seen := map[string]bool{}
	for _, line := range splitLines(report) {
		match := statusLine.FindStringSubmatch(line)
		if match == nil || match[2] != StatusPending {
			continue
		}
		id := match[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		pending = append(pending, id)
	}
	return pending
}

// StatusEntry is one line of a status report. A zero Batch means the
// migration is pending.
type StatusEntry struct {
	ID    string
	Batch int
}

// statusWidth is the minimum width of a rendered status line, not counting
// the indentation.
const statusWidth = 72

// FormatStatus renders a status report in the same shape that
// [ParsePending] consumes:
//
//	  Migration name ..................................... Batch / Status
//	  0001_create_users ........................................ [1] Ran
//	  0002_add_email ........................................... Pending
func FormatStatus(entries []StatusEntry) string {
	width := statusWidth
	for _, entry := range entries {
		if w := utf8.RuneCountInString(entry.ID) + len(" [0000] Ran") + 4; w > width {
			width = w
		}
	}
	var out strings.Builder
	out.WriteString(statusRow(width, "Migration name", "Batch / Status"))
	for _, entry := range entries {
		status := StatusPending
		if entry.Batch > 0 {
			status = fmt.Sprintf("[%d] Ran", entry.Batch)
		}
		out.WriteString(statusRow(width, entry.ID, status))
	}
	return out.String()
}

func statusRow(width int, left, right string) string {
	dots := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right) - 2
	if dots < 1 {
		dots = 1
	}
	return fmt.Sprintf("  %s %s %s\n", left, strings.Repeat(".", dots), right)
}

package rollcheck

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"
)

// Printer renders the difference between two snapshots for a human.
type Printer interface {
	DisplayDiff(previous, current Snapshot) error
}

// DiffPrinter writes a colorized unified diff of two snapshots.
//
//   - "+++ ", "--- " and "@@" lines are bold cyan
//   - other lines starting with "+" are green
//   - other lines starting with "-" are red
//   - context lines are printed as-is
type DiffPrinter struct {
	// Out is where the diff is written. Defaults to os.Stdout.
	Out io.Writer
	// NoColor disables all escape codes.
	NoColor bool
	// Context is the number of unchanged lines shown around each change.
	// Defaults to 3.
	Context int
}

var (
	diffHeader  = newDiffColor(color.Bold, color.FgCyan)
	diffAdded   = newDiffColor(color.FgGreen)
	diffRemoved = newDiffColor(color.FgRed)
)

// newDiffColor returns a color that is always rendered, regardless of
// whether the process is attached to a terminal; the caller decides with
// [DiffPrinter.NoColor].
func newDiffColor(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	c.EnableColor()
	return c
}

// Diff returns the unified diff of two texts, with "Original" and "New" as
// the file names. Identical texts produce an empty diff.
func (p DiffPrinter) Diff(previous, current string) (string, error) {
	context := p.Context
	if context <= 0 {
		context = 3
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(newlines.Replace(previous)),
		B:        difflib.SplitLines(newlines.Replace(current)),
		FromFile: "Original",
		ToFile:   "New",
		Context:  context,
	})
}

// Render colorizes a unified diff line by line. The result always ends with
// exactly one "\n".
func (p DiffPrinter) Render(diff string) string {
	lines := splitLines(strings.TrimRight(diff, "\r\n"))
	var out strings.Builder
	for _, line := range lines {
		out.WriteString(p.colorize(line))
		out.WriteString("\n")
	}
	return out.String()
}

func (p DiffPrinter) colorize(line string) string {
	if p.NoColor {
		return line
	}
	switch {
	case strings.HasPrefix(line, "+++ "),
		strings.HasPrefix(line, "--- "),
		strings.HasPrefix(line, "@@"):
		return diffHeader.Sprint(line)
	case strings.HasPrefix(line, "+"):
		return diffAdded.Sprint(line)
	case strings.HasPrefix(line, "-"):
		return diffRemoved.Sprint(line)
	default:
		return line
	}
}

// DisplayDiff writes the colorized diff of previous and current to
// [DiffPrinter.Out].
func (p DiffPrinter) DisplayDiff(previous, current Snapshot) error {
	diff, err := p.Diff(previous.String(), current.String())
	if err != nil {
		return fmt.Errorf("diff: %w", err)
	}
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	if _, err := io.WriteString(out, p.Render(diff)); err != nil {
		return fmt.Errorf("write diff: %w", err)
	}
	return nil
}

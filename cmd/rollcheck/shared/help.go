package shared

import (
	"strings"
)

// CLIHelp trims the blank lines around a help text and replaces tabs with
// spaces so that cobra prints it the way it reads in the source.
func CLIHelp(x string) string {
	return strings.ReplaceAll(strings.Trim(x, "\n\t "), "\t", "    ")
}

// CLIExample indents every line of an example by two spaces.
func CLIExample(x string) string {
	lines := strings.Split(strings.Trim(x, "\n\t "), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}

// Package colors provides terminal color helpers for CLI messages
package colors

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Message colors
var (
	Red    = color.New(color.FgRed)
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
)

// Init enables or disables colored output globally
func Init(enabled bool) {
	color.NoColor = !enabled
}

// ShouldUseColors determines if colored output should be enabled
func ShouldUseColors(noColor bool) bool {
	// Explicit disable via flag or environment
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}

	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Package ui provides console output helpers for the docprep CLI.
package ui

import (
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	out     io.Writer = os.Stdout
	errOut  io.Writer = os.Stderr
	verbose bool
)

// InitUI applies the colour and verbosity settings.
func InitUI(noColor, verboseOutput bool) {
	verbose = verboseOutput
	if noColor {
		color.NoColor = true
	}
}

// SetOutput redirects regular and error output.
func SetOutput(stdout, stderr io.Writer) {
	out, errOut = stdout, stderr
}

// Verbose reports whether verbose output was requested.
func Verbose() bool {
	return verbose
}

// Package cli provides terminal helpers for loyaltyctl: colored status lines
// and shell completion scripts.
package cli

import (
	"fmt"
	"io"
	"os"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorBold   = "\033[1m"
)

// Printer writes status lines, colored when the target is a terminal.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter returns a Printer for w. Color is enabled only for terminals.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, color: isTerminal(w)}
}

// Colorize returns text wrapped in color when enabled.
func (p *Printer) Colorize(text, color string) string {
	if !p.color {
		return text
	}
	return color + text + ColorReset
}

// Success prints a success message
func (p *Printer) Success(message string) { p.line(ColorGreen, "✓", message) }

// Error prints an error message
func (p *Printer) Error(message string) { p.line(ColorRed, "✗", message) }

// Warning prints a warning message
func (p *Printer) Warning(message string) { p.line(ColorYellow, "⚠", message) }

// Info prints an info message
func (p *Printer) Info(message string) { p.line(ColorBlue, "ℹ", message) }

func (p *Printer) line(color, mark, message string) {
	fmt.Fprintf(p.w, "%s %s\n", p.Colorize(mark, color), message)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	// Outcome colors
	Updated   = color.New(color.FgGreen)
	Unchanged = color.New(color.Faint)
	Skipped   = color.New(color.FgYellow)
	Failed    = color.New(color.FgRed)

	// Message colors
	Success = color.New(color.FgGreen)
	Warning = color.New(color.FgYellow)
	Error   = color.New(color.FgRed)
	Info    = color.New(color.FgCyan)
	Dim     = color.New(color.Faint)

	// Structural colors
	Header  = color.New(color.FgWhite, color.Bold)
	Package = color.New(color.FgBlue, color.Bold)
)

// NoColor disables color output
func NoColor() {
	color.NoColor = true
}

// ForceColor enables color output even when not a TTY
func ForceColor() {
	color.NoColor = false
}

// IsTerminal returns true if stdout is a terminal
func IsTerminal() bool {
	return isCharDevice(os.Stdout)
}

// IsStderrTerminal returns true if stderr is a terminal
func IsStderrTerminal() bool {
	return isCharDevice(os.Stderr)
}

func isCharDevice(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// StatusColor returns the color for an outcome status
func StatusColor(status string) *color.Color {
	switch status {
	case "updated":
		return Updated
	case "unchanged":
		return Unchanged
	case "skipped":
		return Skipped
	case "failed":
		return Failed
	default:
		return color.New(color.Reset)
	}
}

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	Success.Printf("✓ "+format+"\n", args...)
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	Error.Fprintf(os.Stderr, "✗ "+format+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	Warning.Printf("⚠ "+format+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	Info.Printf("→ "+format+"\n", args...)
}

// Sprintf returns a colored string without printing
func Sprintf(c *color.Color, format string, args ...interface{}) string {
	return c.Sprintf(format, args...)
}

// Sprint returns a colored string without printing
func Sprint(c *color.Color, a ...interface{}) string {
	return c.Sprint(a...)
}

// Fprintf prints with color to w
func Fprintf(w io.Writer, c *color.Color, format string, args ...interface{}) {
	c.Fprintf(w, format, args...)
}

// FormatStatus formats a status string with appropriate color
func FormatStatus(status string) string {
	c := StatusColor(status)
	return c.Sprintf("[%s]", status)
}

// FormatPackage formats a tree-relative package path with color
func FormatPackage(path string) string {
	return Package.Sprint(path)
}

// Summary prints the per-status counts of a run on one line
func Summary(w io.Writer, updated, unchanged, skipped, failed int) {
	fmt.Fprintf(w, "%s, %s, %s, %s\n",
		Updated.Sprintf("%d updated", updated),
		Unchanged.Sprintf("%d unchanged", unchanged),
		Skipped.Sprintf("%d skipped", skipped),
		Failed.Sprintf("%d failed", failed))
}

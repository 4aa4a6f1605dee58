// Package output provides consistent CLI output formatting with colors when
// writing to a terminal and plain text otherwise.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	styles   Styles
	useColor bool
}

// New creates a Writer. Color is used only for terminals without NO_COLOR.
func New(out io.Writer) *Writer {
	if IsTTY(out) && !DetectNoColor() {
		return &Writer{out: out, styles: DefaultStyles(), useColor: true}
	}
	return NewPlain(out)
}

// NewPlain creates a Writer that never emits escape codes.
func NewPlain(out io.Writer) *Writer {
	return &Writer{out: out, styles: NoColorStyles()}
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// Color reports whether the writer styles its output.
func (w *Writer) Color() bool {
	return w.useColor
}

// Styles returns the writer's styles.
func (w *Writer) Styles() Styles {
	return w.styles
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Header prints a section heading.
func (w *Writer) Header(title string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(title))
}

// KeyValue prints an aligned "label: value" line.
func (w *Writer) KeyValue(label, value string) {
	_, _ = fmt.Fprintf(w.out, "  %s %s\n", w.styles.Label.Render(fmt.Sprintf("%-14s", label+":")), value)
}

// Item prints a numbered entry with an optional dimmed detail line.
func (w *Writer) Item(n int, title, detail string) {
	_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.Accent.Render(fmt.Sprintf("%3d.", n)), w.styles.Title.Render(title))
	if detail != "" {
		_, _ = fmt.Fprintf(w.out, "     %s\n", w.styles.Dim.Render(detail))
	}
}

// Text prints body text indented under an item.
func (w *Writer) Text(content string) {
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Truncate shortens s to max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if max <= 3 || len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// Package tui renders the user-facing ERROR/WARNING lines, the run summary
// and the interval progress bar.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

// Colors
var (
	accent  = lipgloss.Color("#FF0000")
	warn    = lipgloss.Color("#FFAA00")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	errorStyle   = lipgloss.NewStyle().Foreground(accent).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(warn).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
)

// Printer writes messages to a pair of streams.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// NewPrinter creates a printer.
func NewPrinter(out, err io.Writer) *Printer {
	return &Printer{Out: out, Err: err}
}

// Error prints "ERROR: <err>" to the error stream. Continuation lines of a
// multi-line message are indented under the first.
func (p *Printer) Error(err error) {
	fmt.Fprintln(p.Err, errorStyle.Render("ERROR:")+" "+indent(err.Error(), "       "))
}

// Warning prints "WARNING: <msg>" to the error stream.
func (p *Printer) Warning(format string, args ...interface{}) {
	fmt.Fprintln(p.Err, warnStyle.Render("WARNING:")+" "+fmt.Sprintf(format, args...))
}

func indent(s, prefix string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+prefix)
}

// Report summarizes a finished run.
type Report struct {
	BatchFile string
	Intervals int
	Files     int
	Skipped   int
	Manifest  string
	Duration  time.Duration
}

// PrintReport prints the run summary to the output stream.
func (p *Printer) PrintReport(r *Report) {
	fmt.Fprintln(p.Out, successStyle.Render("✓ BATCH COMPLETE"))
	fmt.Fprintf(p.Out, "  %s %s\n", mutedStyle.Render("Script:"), titleStyle.Render(r.BatchFile))
	fmt.Fprintf(p.Out, "  %s %d intervals from %d files\n", mutedStyle.Render("Groups:"), r.Intervals, r.Files)
	if r.Skipped > 0 {
		fmt.Fprintf(p.Out, "  %s %d\n", mutedStyle.Render("Skipped:"), r.Skipped)
	}
	if r.Manifest != "" {
		fmt.Fprintf(p.Out, "  %s %s\n", mutedStyle.Render("Manifest:"), r.Manifest)
	}
	if r.Duration > 0 {
		fmt.Fprintf(p.Out, "  %s %s\n", mutedStyle.Render("Time:"), formatDuration(r.Duration))
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

// ShowProgress creates a progress bar over total intervals writing to w.
func ShowProgress(total int, description string, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

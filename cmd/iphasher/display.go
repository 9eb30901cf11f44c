package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/amplitudesxd/IPHasher/search"
)

// Display prints the human-facing console output. Lines carry the usual
// prefixes: [*] info, [+] success, [~] progress, [-] warning, [!] error.
type Display struct {
	w        io.Writer
	terminal bool
	live     bool // a progress line is on screen without a trailing newline

	info, good, busy, warn, bad, dim *color.Color
}

// NewDisplay writes to w. Colour and in-place progress are only used when
// enabled and w is a terminal.
func NewDisplay(w io.Writer, colorOn bool) *Display {
	terminal := false
	if f, ok := w.(*os.File); ok {
		terminal = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	d := &Display{
		w:        w,
		terminal: terminal,
		info:     color.New(color.FgCyan),
		good:     color.New(color.FgGreen, color.Bold),
		busy:     color.New(color.FgYellow),
		warn:     color.New(color.FgYellow, color.Bold),
		bad:      color.New(color.FgRed, color.Bold),
		dim:      color.New(color.Faint),
	}
	if !colorOn || !terminal {
		for _, c := range []*color.Color{d.info, d.good, d.busy, d.warn, d.bad, d.dim} {
			c.DisableColor()
		}
	}
	return d
}

func (d *Display) line(c *color.Color, prefix, format string, args ...interface{}) {
	d.EndProgress()
	fmt.Fprintf(d.w, "%s %s\n", c.Sprint(prefix), fmt.Sprintf(format, args...))
}

func (d *Display) Infof(format string, args ...interface{})    { d.line(d.info, "[*]", format, args...) }
func (d *Display) Successf(format string, args ...interface{}) { d.line(d.good, "[+]", format, args...) }
func (d *Display) Warnf(format string, args ...interface{})    { d.line(d.warn, "[-]", format, args...) }
func (d *Display) Errorf(format string, args ...interface{})   { d.line(d.bad, "[!]", format, args...) }

// Detail prints an indented continuation line.
func (d *Display) Detail(format string, args ...interface{}) {
	d.EndProgress()
	fmt.Fprintf(d.w, "    %s\n", fmt.Sprintf(format, args...))
}

// Blank prints an empty line.
func (d *Display) Blank() {
	d.EndProgress()
	fmt.Fprintln(d.w)
}

// Progress renders a snapshot, in place on a terminal and as one line per
// call otherwise.
func (d *Display) Progress(s search.Snapshot) {
	text := fmt.Sprintf("%s %6.2f%%  %s/%s  %s  eta %s  elapsed %s",
		d.busy.Sprint("[~]"),
		s.Percent(),
		FormatCount(s.Processed),
		FormatCount(s.Total),
		FormatRate(s.Rate),
		FormatDuration(s.ETA),
		FormatDuration(s.Elapsed),
	)
	if d.terminal {
		fmt.Fprintf(d.w, "\r\033[K%s", text)
		d.live = true
		return
	}
	fmt.Fprintln(d.w, text)
}

// EndProgress terminates an in-place progress line.
func (d *Display) EndProgress() {
	if d.live {
		fmt.Fprintln(d.w)
		d.live = false
	}
}

// Stats prints a titled block of label/value rows.
func (d *Display) Stats(title string, rows [][2]string) {
	d.EndProgress()
	width := 0
	for _, r := range rows {
		if len(r[0]) > width {
			width = len(r[0])
		}
	}
	header := fmt.Sprintf("========== %s ==========", strings.ToUpper(title))
	fmt.Fprintln(d.w)
	fmt.Fprintln(d.w, d.dim.Sprint(header))
	for _, r := range rows {
		fmt.Fprintf(d.w, "%-*s  %s\n", width+1, r[0]+":", r[1])
	}
	fmt.Fprintln(d.w, d.dim.Sprint(strings.Repeat("=", len(header))))
}

// OutcomeRows summarises a search for Stats.
func OutcomeRows(out search.Outcome, total uint64) [][2]string {
	rows := [][2]string{
		{"Duration", FormatDuration(out.Elapsed)},
		{"Backend", out.Backend},
		{"Workers", fmt.Sprintf("%d", out.Workers)},
	}
	if out.Processed > 0 {
		rows = append(rows, [2]string{"Hashed", fmt.Sprintf("%s of %s", FormatCount(out.Processed), FormatCount(total))})
		if secs := out.Elapsed.Seconds(); secs > 0 {
			rows = append(rows, [2]string{"Avg hashrate", FormatRate(float64(out.Processed) / secs)})
		}
	}
	return rows
}

// FormatCount abbreviates n with K/M/G suffixes.
func FormatCount(n uint64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.2fG", float64(n)/float64(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.2fM", float64(n)/float64(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2fK", float64(n)/float64(1<<10))
	}
	return fmt.Sprintf("%d", n)
}

// FormatRate renders hashes per second.
func FormatRate(r float64) string {
	switch {
	case r >= 1e9:
		return fmt.Sprintf("%.2f GH/s", r/1e9)
	case r >= 1e6:
		return fmt.Sprintf("%.2f MH/s", r/1e6)
	case r >= 1e3:
		return fmt.Sprintf("%.2f kH/s", r/1e3)
	}
	return fmt.Sprintf("%.0f H/s", r)
}

// FormatDuration rounds to a precision suited to the magnitude.
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

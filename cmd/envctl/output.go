package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
)

var (
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#2C4A54")
	colorBorder  = lipgloss.Color("#16858E")
)

var styles = struct {
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}{
	Header:  lipgloss.NewStyle().Bold(true).Foreground(colorSuccess).Padding(0, 1),
	Cell:    lipgloss.NewStyle().Padding(0, 1),
	Success: lipgloss.NewStyle().Foreground(colorSuccess),
	Warning: lipgloss.NewStyle().Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Foreground(colorError).Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
}

// printer writes command output. Styling is only applied on a terminal;
// piped output is plain tab-separated text.
type printer struct {
	w     io.Writer
	json  bool
	plain bool
}

func newPrinter(w io.Writer, jsonMode bool) *printer {
	plain := true
	if f, ok := w.(*os.File); ok {
		plain = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}
	return &printer{w: w, json: jsonMode, plain: plain}
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if p.plain {
		return text
	}
	return s.Render(text)
}

// JSON writes v as indented JSON.
func (p *printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table writes rows under headers.
func (p *printer) Table(headers []string, rows [][]string) {
	if p.plain {
		tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(headers, "\t"))
		for _, row := range rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		tw.Flush()
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Header
			}
			return styles.Cell
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(p.w, t.Render())
}

func (p *printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(styles.Success, "✓ "+fmt.Sprintf(format, args...)))
}

func (p *printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(styles.Warning, fmt.Sprintf(format, args...)))
}

func (p *printer) Error(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(styles.Error, "✗ "+fmt.Sprintf(format, args...)))
}

func (p *printer) Muted(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(styles.Muted, fmt.Sprintf(format, args...)))
}

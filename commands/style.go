package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pawdcast/pawdcast/orchestrator"
)

type palette struct {
	Title  lipgloss.Style
	Header lipgloss.Style
	Cell   lipgloss.Style
	Dim    lipgloss.Style
	Good   lipgloss.Style
	Error  lipgloss.Style
}

var (
	primary = lipgloss.Color("#00ff9f")
	dim     = lipgloss.Color("#6e7681")
	red     = lipgloss.Color("#ff5f5f")

	styles = palette{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(primary),
		Header: lipgloss.NewStyle().Bold(true).Foreground(primary).PaddingRight(2),
		Cell:   lipgloss.NewStyle().PaddingRight(2),
		Dim:    lipgloss.NewStyle().Foreground(dim),
		Good:   lipgloss.NewStyle().Foreground(primary),
		Error:  lipgloss.NewStyle().Bold(true).Foreground(red),
	}
)

// table renders rows as left aligned columns sized to their widest cell.
func table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, c := range r {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(c))
			}
		}
	}

	var b strings.Builder
	render := func(st lipgloss.Style, cells []string) {
		out := make([]string, len(cells))
		for i, c := range cells {
			out[i] = st.Width(widths[i] + 2).Render(c)
		}
		b.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, out...), " "))
		b.WriteByte('\n')
	}
	render(styles.Header, header)
	for _, r := range rows {
		render(styles.Cell, r)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// renderAnalysis shows each dialogue line with the span of audio it gets.
func renderAnalysis(a *orchestrator.Analysis) string {
	rows := make([][]string, 0, len(a.Lines))
	for i, l := range a.Lines {
		start, end := a.Points[i], a.Points[i+1]
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			l.Label(),
			fmt.Sprintf("%.2fs", start),
			fmt.Sprintf("%.2fs", end),
			fmt.Sprintf("%.2fs", end-start),
			truncate(l.Text, 48),
		})
	}
	var b strings.Builder
	b.WriteString(styles.Title.Render(fmt.Sprintf("%d lines, %.2fs of audio", len(a.Lines), a.Total)))
	b.WriteString(styles.Dim.Render(fmt.Sprintf("  (split: %s)", a.Tier)))
	b.WriteString("\n\n")
	b.WriteString(table([]string{"#", "SPEAKER", "START", "END", "LENGTH", "TEXT"}, rows))
	return b.String()
}

// progressBar draws fraction as a fixed width bar.
func progressBar(fraction float64, width int) string {
	fraction = max(0, min(1, fraction))
	filled := int(fraction * float64(width))
	return styles.Good.Render(strings.Repeat("█", filled)) +
		styles.Dim.Render(strings.Repeat("░", width-filled))
}

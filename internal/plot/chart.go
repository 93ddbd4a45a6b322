// Package plot draws training histories in the terminal.
package plot

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rcl-research/rcl/internal/model"
)

// Default plot area used by PlotHistory.
const (
	DefaultWidth  = 60
	DefaultHeight = 15
)

var markers = []rune{'●', '■', '▲', '◆', '✚', '✖'}

var palette = []lipgloss.Color{"39", "208", "42", "205", "226", "141"}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	axisStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)
)

func seriesStyle(i int) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(palette[i%len(palette)])
}

func marker(i int) rune {
	return markers[i%len(markers)]
}

// PlotHistory writes a chart of every series in h to w.
func PlotHistory(w io.Writer, h model.History) error {
	_, err := fmt.Fprintln(w, Render(h, DefaultWidth, DefaultHeight))
	return err
}

// Render draws every series of h on one shared y-scale. width and height size
// the plot area; axes, title and legend are added around it.
func Render(h model.History, width, height int) string {
	title := titleStyle.Render("Training history")
	if h.Empty() {
		return title + "\n" + emptyStyle.Render("no epochs recorded")
	}
	width = max(width, 2)
	height = max(height, 2)

	metrics := h.Metrics()
	lo, hi := bounds(h, metrics)
	epochs := h.Epochs()

	// grid holds the series index drawn in each cell, -1 when empty.
	grid := make([][]int, height)
	for r := range grid {
		grid[r] = make([]int, width)
		for c := range grid[r] {
			grid[r][c] = -1
		}
	}
	for i, name := range metrics {
		for e, v := range h.Series(name) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			grid[row(v, lo, hi, height)][column(e, epochs, width)] = i
		}
	}

	labels := yLabels(lo, hi, height)
	labelWidth := 0
	for _, l := range labels {
		labelWidth = max(labelWidth, len(l))
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	for r := range grid {
		b.WriteString(axisStyle.Render(fmt.Sprintf("%*s │", labelWidth, labels[r])))
		for _, idx := range grid[r] {
			if idx < 0 {
				b.WriteByte(' ')
				continue
			}
			b.WriteString(seriesStyle(idx).Render(string(marker(idx))))
		}
		b.WriteString("\n")
	}
	pad := strings.Repeat(" ", labelWidth+1)
	b.WriteString(axisStyle.Render(pad + "└" + strings.Repeat("─", width)))
	b.WriteString("\n")
	b.WriteString(axisStyle.Render(pad + " " + epochAxis(epochs, width)))
	b.WriteString("\n\n")
	b.WriteString(legend(metrics))
	return b.String()
}

// bounds returns the value range across all series, widened when flat.
func bounds(h model.History, metrics []string) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, name := range metrics {
		for _, v := range h.Series(name) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	if hi == lo {
		pad := math.Max(math.Abs(lo)*0.1, 0.5)
		return lo - pad, hi + pad
	}
	return lo, hi
}

func row(v, lo, hi float64, height int) int {
	r := int(math.Round((hi - v) / (hi - lo) * float64(height-1)))
	return min(max(r, 0), height-1)
}

func column(epoch, epochs, width int) int {
	if epochs <= 1 {
		return 0
	}
	return int(math.Round(float64(epoch) * float64(width-1) / float64(epochs-1)))
}

// yLabels labels the top, middle and bottom rows.
func yLabels(lo, hi float64, height int) []string {
	labels := make([]string, height)
	labels[0] = formatValue(hi)
	labels[height-1] = formatValue(lo)
	if height > 2 {
		labels[(height-1)/2] = formatValue(hi - (hi-lo)*float64((height-1)/2)/float64(height-1))
	}
	return labels
}

func formatValue(v float64) string {
	return fmt.Sprintf("%.4g", v)
}

func epochAxis(epochs, width int) string {
	first := "1"
	last := fmt.Sprintf("%d", epochs)
	if epochs <= 1 || width < len(first)+len(last)+1 {
		return first + " (epoch)"
	}
	return first + strings.Repeat(" ", width-len(first)-len(last)) + last
}

func legend(metrics []string) string {
	items := make([]string, len(metrics))
	for i, name := range metrics {
		items[i] = seriesStyle(i).Render(string(marker(i))) + " " + name
	}
	return strings.Join(items, "   ")
}

// only returns a history holding just the named series.
func only(h model.History, name string) model.History {
	var out model.History
	for _, v := range h.Series(name) {
		out.Append(map[string]float64{name: v})
	}
	return out
}

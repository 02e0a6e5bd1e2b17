package dashboard

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/gainview/internal/chart"
)

type keyMap struct {
	Open    key.Binding
	Upload  key.Binding
	Graph   key.Binding
	Topics  key.Binding
	Refresh key.Binding
	Clear   key.Binding
	Logout  key.Binding
	Help    key.Binding
	Quit    key.Binding
	Scroll  key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Open:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "choose file")),
		Upload:  key.NewBinding(key.WithKeys("u", "enter"), key.WithHelp("u", "upload")),
		Graph:   key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "graph")),
		Topics:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "topics")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Clear:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear")),
		Logout:  key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "logout")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		Quit:    key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		Scroll:  key.NewBinding(key.WithKeys("up", "down", "pgup", "pgdown"), key.WithHelp("↑/↓", "scroll")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Upload, k.Graph, k.Topics, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Open, k.Upload, k.Clear},
		{k.Graph, k.Topics, k.Refresh},
		{k.Scroll, k.Logout},
		{k.Help, k.Quit},
	}
}

func matches(msg tea.KeyMsg, binding key.Binding) bool {
	return key.Matches(msg, binding)
}

func (m *Model) renderAnalysis() []string {
	if m.busy() {
		return []string{m.spinner.View() + " " + labelStyle.Render("Loading analysis...")}
	}
	if !m.snap.Ready() {
		return []string{headerStyle.Render("Upload a file to begin analysis.")}
	}
	toggles := toggleLabel("g", "graph", m.snap.ShowGraph) + "   " + toggleLabel("t", "topics", m.snap.ShowTopics)
	out := []string{headerStyle.Render(toggles)}
	if m.snap.ShowGraph {
		out = append(out, m.renderGraph())
	}
	if m.snap.ShowTopics {
		out = append(out, m.renderTopics())
	}
	return out
}

func toggleLabel(shortcut, name string, on bool) string {
	if on {
		return "[" + shortcut + "] Hide " + name
	}
	return "[" + shortcut + "] Show " + name
}

func (m *Model) renderGraph() string {
	series, ok := m.snap.ActiveGain()
	title := titleStyle.Render("Gain: " + m.snap.ActiveFile)
	if !ok || len(series.Points) == 0 {
		return sectionStyle.Render(title + "\n" + headerStyle.Render("No gain data."))
	}
	opts := chart.Options{Height: m.opts.PlotHeight, Width: m.plotWidth()}
	return sectionStyle.Render(title + "\n" + chart.Render(series.Points, opts))
}

// plotWidth leaves room for the section border and the value axis.
func (m *Model) plotWidth() int {
	if m.width <= 0 {
		return 0
	}
	return chart.WidthFor(m.width-4, 6)
}

func (m *Model) renderTopics() string {
	title := titleStyle.Render("Topics")
	if len(m.snap.Topics) == 0 {
		return sectionStyle.Render(title + "\n" + headerStyle.Render(chart.NoTopicsMessage))
	}
	lines := chart.TopicLines(m.snap.Topics, m.width-4)
	for i, line := range lines {
		lines[i] = valueStyle.Render(line)
	}
	return sectionStyle.Render(title + "\n" + strings.Join(lines, "\n"))
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

func modalWidth(width int) int {
	return maxInt(40, minInt(width-4, 80))
}

func modalInnerWidth(width int) int {
	w := modalWidth(width)
	w -= 6 // 2 border + 4 padding
	if w < 10 {
		return 10
	}
	return w
}

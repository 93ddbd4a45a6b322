package plot

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rcl-research/rcl/internal/model"
)

var (
	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// Space reserved around the plot area for the y-axis labels, x-axis and legend.
const (
	chromeWidth  = 14
	chromeHeight = 8
)

type viewerModel struct {
	history  model.History
	metrics  []string
	focus    int // 0 shows every series, i>0 shows metrics[i-1] alone
	viewport viewport.Model
	ready    bool
}

func newViewerModel(h model.History) viewerModel {
	return viewerModel{history: h, metrics: h.Metrics()}
}

func (m viewerModel) Init() tea.Cmd {
	return nil
}

func (m viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-1)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 1
		}
		m.viewport.SetContent(m.chart())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "right", "l":
			m.focus = (m.focus + 1) % (len(m.metrics) + 1)
			m.viewport.SetContent(m.chart())
			return m, nil
		case "shift+tab", "left", "h":
			m.focus = (m.focus + len(m.metrics)) % (len(m.metrics) + 1)
			m.viewport.SetContent(m.chart())
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m viewerModel) focused() model.History {
	if m.focus == 0 {
		return m.history
	}
	return only(m.history, m.metrics[m.focus-1])
}

func (m viewerModel) chart() string {
	w := max(m.viewport.Width-chromeWidth, 10)
	h := max(m.viewport.Height-chromeHeight, 5)
	return Render(m.focused(), w, h)
}

func (m viewerModel) View() string {
	if !m.ready {
		return "loading..."
	}
	label := "all series"
	if m.focus > 0 {
		label = m.metrics[m.focus-1]
	}
	status := statusBarStyle.Render(label) + " " + hintStyle.Render("tab/←/→ cycle series  ↑/↓ scroll  q quit")
	return m.viewport.View() + "\n" + status
}

// Show opens an interactive viewer for h and blocks until the user quits.
func Show(h model.History) error {
	p := tea.NewProgram(newViewerModel(h), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

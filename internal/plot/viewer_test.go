package plot

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sized(t *testing.T) viewerModel {
	t.Helper()
	next, _ := newViewerModel(trainingHistory()).Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(viewerModel)
}

func TestViewer_CyclesSeries(t *testing.T) {
	m := sized(t)
	assert.Contains(t, m.View(), "all series")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(viewerModel)
	assert.Equal(t, 1, m.focus)
	assert.Equal(t, []string{"loss"}, m.focused().Metrics())

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	next, _ = next.(viewerModel).Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(viewerModel)
	assert.Equal(t, 0, m.focus, "cycling wraps back to all series")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = next.(viewerModel)
	assert.Equal(t, []string{"val_loss"}, m.focused().Metrics())
}

func TestViewer_Quit(t *testing.T) {
	m := sized(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestViewer_NotReady(t *testing.T) {
	assert.Equal(t, "loading...", newViewerModel(trainingHistory()).View())
}

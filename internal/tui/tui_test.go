package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func press(t *testing.T, m Model, k tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestInitialModelPrefills(t *testing.T) {
	m := InitialModel(map[string]string{
		"server.listen":    ":8080",
		"cipher.algorithm": "xchacha20-poly1305",
	})
	require.Len(t, m.Inputs, len(Keys))
	require.Equal(t, ":8080", m.Inputs[Listen].Value())
	require.Equal(t, "xchacha20-poly1305", m.Inputs[Cipher].Value())
	require.True(t, m.Inputs[Listen].Focused())

	require.Equal(t, map[string]string{
		"server.listen":    ":8080",
		"cipher.algorithm": "xchacha20-poly1305",
	}, m.Values())
}

func TestFocusWraps(t *testing.T) {
	m := InitialModel(nil)

	m, _ = press(t, m, tea.KeyShiftTab)
	require.Equal(t, VideoEncoders, m.focused)
	require.True(t, m.Inputs[VideoEncoders].Focused())
	require.False(t, m.Inputs[Listen].Focused())

	m, _ = press(t, m, tea.KeyTab)
	require.Equal(t, Listen, m.focused)
}

func TestEnterOnLastFieldSubmits(t *testing.T) {
	m := InitialModel(nil)
	for i := 0; i < len(m.Inputs)-1; i++ {
		m, _ = press(t, m, tea.KeyEnter)
	}
	require.Equal(t, VideoEncoders, m.focused)

	m, cmd := press(t, m, tea.KeyEnter)
	require.False(t, m.Quit)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestEscapeQuitsWithoutSaving(t *testing.T) {
	m, cmd := press(t, InitialModel(nil), tea.KeyEsc)
	require.True(t, m.Quit)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestViewListsFields(t *testing.T) {
	v := InitialModel(nil).View()
	for _, f := range fields {
		require.Contains(t, v, f.label)
	}
}

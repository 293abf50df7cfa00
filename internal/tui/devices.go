// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"wavviz/internal/source"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	DetailScreen
)

var (
	keyQuit   = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	keyUp     = key.NewBinding(key.WithKeys("up", "k"))
	keyDown   = key.NewBinding(key.WithKeys("down", "j"))
	keyEnter  = key.NewBinding(key.WithKeys("enter"))
	keyBack   = key.NewBinding(key.WithKeys("esc"))
	keySelect = key.NewBinding(key.WithKeys("s"))
)

// DeviceListModel is the Bubble Tea model for browsing output devices and
// picking one for playback.
type DeviceListModel struct {
	devices       []source.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	fetch  func() ([]source.Device, error)
	chosen int // Device ID picked with "s", MinDeviceID if none.
}

// NewDeviceListModel creates a model that lists source.OutputDevices.
func NewDeviceListModel() DeviceListModel {
	return newDeviceListModel(source.OutputDevices)
}

func newDeviceListModel(fetch func() ([]source.Device, error)) DeviceListModel {
	return DeviceListModel{
		activeScreen: ListScreen,
		fetch:        fetch,
		chosen:       source.MinDeviceID,
	}
}

type devicesMsg struct {
	devices []source.Device
}

type errMsg struct {
	err error
}

// Init fetches the device list.
func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, keyUp):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, keyDown):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, keyEnter):
				if len(m.devices) > 0 {
					m.activeScreen = DetailScreen
				}
			}
		case DetailScreen:
			switch {
			case key.Matches(msg, keyBack):
				m.activeScreen = ListScreen
			case key.Matches(msg, keySelect):
				m.chosen = m.devices[m.selectedIndex].ID
				return m, tea.Quit
			}
		}
		m.refresh()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == DetailScreen {
		m.viewport.SetContent(m.renderDeviceDetail())
	} else {
		m.viewport.SetContent(m.renderDevices())
	}
}

// View renders the UI
func (m DeviceListModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Output Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Details • q: Quit")
	} else {
		title = titleStyle.Render("Device Details")
		help = infoStyle.Render("s: Use this device • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No output devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		line := fmt.Sprintf("[%d] %s (%d ch, %.0f Hz)", device.ID, device.Name,
			device.MaxOutputChannels, device.DefaultSampleRate)
		if i == m.selectedIndex {
			line = highlightStyle.Render("▶ " + line)
		} else {
			line = "  " + line
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m DeviceListModel) renderDeviceDetail() string {
	d := m.devices[m.selectedIndex]

	var sb strings.Builder
	sb.WriteString(highlightStyle.Render(d.Name))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "  Device ID:           %d\n", d.ID)
	fmt.Fprintf(&sb, "  Output channels:     %d\n", d.MaxOutputChannels)
	fmt.Fprintf(&sb, "  Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
	fmt.Fprintf(&sb, "  Latency:             %.2fms low, %.2fms high\n", d.LowLatencyMs, d.HighLatencyMs)
	fmt.Fprintf(&sb, "\n  Use with: --device %d or audio.output_device: %d\n", d.ID, d.ID)
	return sb.String()
}

// Chosen returns the device ID picked by the user, or source.MinDeviceID.
func (m DeviceListModel) Chosen() int { return m.chosen }

// StartDeviceListUI runs the device picker and returns the chosen device ID,
// source.MinDeviceID when the user quit without choosing.
func StartDeviceListUI() (int, error) {
	p := tea.NewProgram(
		NewDeviceListModel(),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return source.MinDeviceID, err
	}
	return final.(DeviceListModel).Chosen(), nil
}

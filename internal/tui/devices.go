// SPDX-License-Identifier: MIT

// Package tui is the interactive input device browser behind `freqmeter list`.
package tui

import (
	"fmt"
	"strings"

	"freqmeter/internal/audio"
	"freqmeter/internal/channel"

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

	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F2C14E")).
			Bold(true)
)

// chromeHeight is the number of rows taken by the title and help lines.
const chromeHeight = 4

// ScreenType defines which screen is currently active.
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

type keyMap struct {
	Quit   key.Binding
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Back   key.Binding
}

var keys = keyMap{
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c")),
	Up:     key.NewBinding(key.WithKeys("up", "k")),
	Down:   key.NewBinding(key.WithKeys("down", "j")),
	Select: key.NewBinding(key.WithKeys("enter")),
	Back:   key.NewBinding(key.WithKeys("esc")),
}

// DeviceListModel lists the input devices and builds the command line that
// meters the selected one.
type DeviceListModel struct {
	program       string
	fetch         func() ([]audio.Device, error)
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	modes     []channel.Mode
	modeIndex int
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// NewDeviceListModel returns a model that lists the host's input devices.
// program is the executable name shown in the generated command line.
func NewDeviceListModel(program string) DeviceListModel {
	return DeviceListModel{
		program:      program,
		fetch:        audio.GetDevices,
		activeScreen: ListScreen,
		modes:        []channel.Mode{channel.Stereo, channel.MidSide, channel.Direct},
	}
}

// Init fetches the device list.
func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{inputDevices(devices)}
	}
}

func inputDevices(devices []audio.Device) []audio.Device {
	inputs := make([]audio.Device, 0, len(devices))
	for _, d := range devices {
		if d.IsInput() {
			inputs = append(inputs, d)
		}
	}
	return inputs
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-chromeHeight)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - chromeHeight
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		m.selectedIndex = 0
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
		if m.err != nil {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, keys.Up):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, keys.Down):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, keys.Select):
				if len(m.devices) > 0 {
					m.activeScreen = ConfigScreen
				}
			}

		case ConfigScreen:
			switch {
			case key.Matches(msg, keys.Back):
				m.activeScreen = ListScreen
			case key.Matches(msg, keys.Up):
				if m.modeIndex > 0 {
					m.modeIndex--
				}
			case key.Matches(msg, keys.Down):
				if m.modeIndex < len(m.modes)-1 {
					m.modeIndex++
				}
			}
		}
		m.refresh()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// refresh re-renders the active screen into the viewport.
func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen {
		m.viewport.SetContent(m.renderDeviceConfig())
		return
	}
	m.viewport.SetContent(m.renderDevices())
}

func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress any key to exit.", m.err)
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Input Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Meter Configuration")
		help = infoStyle.Render("↑/↓: Processing Mode • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// Selected returns the highlighted device, if any.
func (m DeviceListModel) Selected() (audio.Device, bool) {
	if len(m.devices) == 0 {
		return audio.Device{}, false
	}
	return m.devices[m.selectedIndex], true
}

// Mode returns the processing mode picked on the configure screen.
func (m DeviceListModel) Mode() channel.Mode {
	return m.modes[m.modeIndex]
}

// CommandLine returns the invocation that meters the selected device in the
// selected mode.
func (m DeviceListModel) CommandLine() string {
	device, ok := m.Selected()
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s --device %d --mode %s", m.program, device.ID, m.Mode())
}

func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		info := fmt.Sprintf("[%d] %s (%s)\n", device.ID, device.Name, device.Kind())
		info += fmt.Sprintf("    Input channels: %d\n", device.MaxInputChannels)
		info += fmt.Sprintf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)

		if i == m.selectedIndex {
			info = highlightStyle.Render(info)
		}

		sb.WriteString(info)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m DeviceListModel) renderDeviceConfig() string {
	device := m.devices[m.selectedIndex]

	var sb strings.Builder
	fmt.Fprintf(&sb, "Device: %s\n\n", device.Name)
	sb.WriteString("Processing mode:\n")

	for i, mode := range m.modes {
		marker := " "
		if i == m.modeIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %s\n", marker, mode)
		if i == m.modeIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}

	if device.MaxInputChannels < 2 && m.Mode() != channel.Direct {
		sb.WriteString("\n  Mono device: the second channel will be silent.\n")
	}

	sb.WriteString("\nRun:\n  ")
	sb.WriteString(commandStyle.Render(m.CommandLine()))
	sb.WriteString("\n")
	return sb.String()
}

// StartDeviceListUI runs the browser until the user quits.
func StartDeviceListUI(program string) error {
	p := tea.NewProgram(
		NewDeviceListModel(program),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}

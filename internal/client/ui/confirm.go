package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kamikazebr/sentinel/pkg/models"
)

// DeviceConfirmModel guards a destructive action on one device: the
// operator has to type the device ID before Enter counts.
type DeviceConfirmModel struct {
	action    string
	device    models.Device
	input     []rune
	confirmed bool
	done      bool
}

func NewDeviceConfirm(action string, device models.Device) DeviceConfirmModel {
	return DeviceConfirmModel{action: action, device: device}
}

func (m DeviceConfirmModel) Init() tea.Cmd {
	return nil
}

func (m DeviceConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.done = true
		return m, tea.Quit
	case tea.KeyEnter:
		m.confirmed = m.matches()
		m.done = true
		return m, tea.Quit
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyRunes:
		m.input = append(m.input, key.Runes...)
	}
	return m, nil
}

func (m DeviceConfirmModel) matches() bool {
	return m.device.ID != "" && string(m.input) == m.device.ID
}

func (m DeviceConfirmModel) View() string {
	if m.done {
		return ""
	}

	d := m.device
	name := d.Name
	if name == "" {
		name = d.ID
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s %s", m.action, name)))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "  ID:        %s\n", d.ID)
	if d.Type != "" {
		fmt.Fprintf(&b, "  Type:      %s\n", d.Type)
	}
	if d.AllowedIP != "" {
		fmt.Fprintf(&b, "  Address:   %s\n", d.AllowedIP)
	}
	if d.Status != "" {
		fmt.Fprintf(&b, "  Status:    %s\n", StatusStyle(d.Status).Render(string(d.Status)))
	}
	if d.LastSeen != nil {
		fmt.Fprintf(&b, "  Last seen: %s\n", d.LastSeen.Local().Format("2006-01-02 15:04"))
	}

	b.WriteString("\nType the device ID to confirm: ")
	typed := string(m.input)
	if m.matches() {
		b.WriteString(SuccessStyle.Render(typed))
	} else {
		b.WriteString(WarningStyle.Render(typed))
	}
	b.WriteString(CursorStyle.Render("█"))
	b.WriteString("\n\n")
	b.WriteString(HelpStyle.Render("Enter confirm • Esc cancel"))
	return b.String()
}

// Confirmed is true only when Enter was pressed on the exact device ID
func (m DeviceConfirmModel) Confirmed() bool {
	return m.confirmed
}

// ConfirmDevice runs the prompt; cancelling or a mistyped ID returns false
func ConfirmDevice(action string, device models.Device) (bool, error) {
	result, err := tea.NewProgram(NewDeviceConfirm(action, device)).Run()
	if err != nil {
		return false, fmt.Errorf("failed to run confirm: %w", err)
	}
	return result.(DeviceConfirmModel).Confirmed(), nil
}

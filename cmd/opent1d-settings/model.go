package main

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"opent1d/internal/form"
)

const requestTimeout = 45 * time.Second

// focus order: one slot per form.Fields entry, then the Save button.
var saveSlot = len(form.Fields)

type loadedMsg struct{ err error }

type savedMsg struct{ err error }

// expireMsg asks for a re-render once a notification may have expired.
type expireMsg struct{}

type styles struct {
	title    lipgloss.Style
	label    lipgloss.Style
	muted    lipgloss.Style
	button   lipgloss.Style
	focused  lipgloss.Style
	errText  lipgloss.Style
	success  lipgloss.Style
	failure  lipgloss.Style
	helpText lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).MarginBottom(1),
		label:    lipgloss.NewStyle().Width(10),
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		button:   lipgloss.NewStyle().Padding(0, 2).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("241")),
		focused:  lipgloss.NewStyle().Padding(0, 2).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7D56F4")).Bold(true),
		errText:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")),
		success:  lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("#04B575")).Padding(0, 1),
		failure:  lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("#FF5F87")).Padding(0, 1),
		helpText: lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
	}
}

// model renders a form.Controller in the terminal. Every keystroke in an
// input is forwarded to the controller, which owns the values.
type model struct {
	ctrl    *form.Controller
	inputs  []textinput.Model
	focus   int
	spinner spinner.Model
	styles  styles
	view    form.View
	now     func() time.Time
}

func newModel(ctrl *form.Controller) model {
	inputs := make([]textinput.Model, len(form.Fields))
	for i, f := range form.Fields {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 256
		in.Width = 40
		switch f {
		case form.FieldUsername:
			in.Placeholder = "you@example.com"
		case form.FieldPassword:
			in.Placeholder = "password"
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		inputs[i] = in
	}
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	return model{
		ctrl:    ctrl,
		inputs:  inputs,
		spinner: sp,
		styles:  defaultStyles(),
		view:    ctrl.View(),
		now:     time.Now,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m model) load() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return loadedMsg{err: ctrl.Load(ctx)}
	}
}

func (m model) save() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return savedMsg{err: ctrl.Save(ctx)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case loadedMsg:
		m.view = m.ctrl.View()
		m.syncInputs()
		return m, m.setFocus(0)

	case savedMsg:
		m.view = m.ctrl.View()
		m.syncInputs()
		return m, m.expireAfter()

	case expireMsg:
		m.view = m.ctrl.View()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	}

	if !m.view.ShowForm() {
		if m.view.Phase == form.LoadFailed && msg.String() == "r" {
			m.view = form.View{Phase: form.Loading}
			return m, tea.Batch(m.spinner.Tick, m.load())
		}
		return m, nil
	}

	switch msg.String() {
	case "tab", "down":
		return m, m.setFocus((m.focus + 1) % (saveSlot + 1))
	case "shift+tab", "up":
		return m, m.setFocus((m.focus + saveSlot) % (saveSlot + 1))
	case "ctrl+s":
		return m.startSave()
	case "enter":
		if m.focus == saveSlot {
			return m.startSave()
		}
		return m, m.setFocus(m.focus + 1)
	}

	if m.focus == saveSlot {
		return m, nil
	}
	var cmd tea.Cmd
	before := m.inputs[m.focus].Value()
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	if after := m.inputs[m.focus].Value(); after != before {
		_ = m.ctrl.Edit(form.Fields[m.focus], after)
		m.view = m.ctrl.View()
	}
	return m, cmd
}

func (m model) startSave() (tea.Model, tea.Cmd) {
	cmd := m.save()
	// Save flips the phase before the request goes out; reflect that now.
	m.view.Phase = form.Saving
	return m, tea.Batch(m.spinner.Tick, cmd)
}

// expireAfter schedules a re-render when the current notification expires.
func (m model) expireAfter() tea.Cmd {
	n := m.view.Notification
	if n == nil {
		return nil
	}
	return tea.Tick(n.ExpiresAt.Sub(m.now()), func(time.Time) tea.Msg { return expireMsg{} })
}

func (m *model) setFocus(i int) tea.Cmd {
	m.focus = i
	var cmd tea.Cmd
	for j := range m.inputs {
		if j == i {
			cmd = m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
	return cmd
}

// syncInputs copies controller values into the inputs without moving the
// cursor of inputs whose value did not change.
func (m *model) syncInputs() {
	for i, f := range form.Fields {
		var v string
		switch f {
		case form.FieldUsername:
			v = m.view.Values.Username
		case form.FieldPassword:
			v = m.view.Values.Password
		}
		if m.inputs[i].Value() != v {
			m.inputs[i].SetValue(v)
		}
	}
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("LibreLinkUp settings"))
	b.WriteString("\n")

	switch m.view.Phase {
	case form.Loading:
		b.WriteString(m.spinner.View() + " Loading...\n")
		return b.String()
	case form.LoadFailed:
		b.WriteString(m.styles.errText.Render("Error : " + m.view.Error))
		b.WriteString("\n")
		b.WriteString(m.styles.helpText.Render("r retry • esc quit"))
		return b.String()
	}

	if n := m.view.Notification; n != nil {
		style := m.styles.success
		if n.Kind == form.NotificationError {
			style = m.styles.failure
		}
		b.WriteString(style.Render(n.Title + "\n" + n.Message))
		b.WriteString("\n")
	}

	for i, f := range form.Fields {
		label := "Username"
		if f == form.FieldPassword {
			label = "Password"
		}
		b.WriteString(m.styles.label.Render(label))
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}
	region := m.view.Values.Region
	if region == "" {
		region = "-"
	}
	b.WriteString(m.styles.label.Render("Region"))
	b.WriteString(m.styles.muted.Render(region))
	b.WriteString("\n")

	if m.view.Phase == form.SaveFailed && m.view.Error != "" {
		b.WriteString(m.styles.errText.Render(m.view.Error))
		b.WriteString("\n")
	}

	button := m.styles.button
	if m.focus == saveSlot {
		button = m.styles.focused
	}
	b.WriteString(button.Render("Save"))
	if m.view.Phase == form.Saving {
		b.WriteString(" " + m.spinner.View() + " Saving...")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.helpText.Render("tab next • ctrl+s save • esc quit"))
	return b.String()
}

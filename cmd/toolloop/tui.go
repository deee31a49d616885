package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/martinemde/toolloop/agentloop"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true)

	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	streamStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	doneStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)

	approvalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("220")).
			Padding(0, 1)
)

type sessionEventMsg struct{ ev agentloop.SessionEvent }

type eventsClosedMsg struct{}

type runDoneMsg struct {
	term agentloop.Terminate
	err  error
}

// respondent is the part of agentloop.Session the UI talks back to.
type respondent interface {
	Run(ctx context.Context, msg string) (agentloop.Terminate, error)
	Respond(d agentloop.Decision)
	Quit()
}

type ui struct {
	ctx     context.Context
	session respondent
	emitter *agentloop.EventEmitter
	modelID string

	input    textinput.Model
	spinner  spinner.Model
	timeline viewport.Model

	task     string
	lines    []string
	stream   string
	pending  *agentloop.PendingApproval
	running  bool
	quitting bool
	result   *agentloop.Terminate
	runErr   error

	width int
}

func newUI(ctx context.Context, s respondent, emitter *agentloop.EventEmitter, task, modelID string) ui {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Describe the task and press enter"
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return ui{
		ctx:      ctx,
		session:  s,
		emitter:  emitter,
		modelID:  modelID,
		input:    input,
		spinner:  sp,
		timeline: viewport.New(0, 0),
		task:     task,
	}
}

func (m ui) Init() tea.Cmd {
	if m.task == "" {
		return textinput.Blink
	}
	return startCmd(m.task)
}

type startMsg struct{ task string }

func startCmd(task string) tea.Cmd {
	return func() tea.Msg { return startMsg{task: task} }
}

func waitForEvent(ch <-chan agentloop.SessionEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return sessionEventMsg{ev: ev}
	}
}

func runSession(ctx context.Context, s respondent, task string) tea.Cmd {
	return func() tea.Msg {
		term, err := s.Run(ctx, task)
		return runDoneMsg{term: term, err: err}
	}
}

func (m ui) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.timeline.Width = msg.Width
		m.timeline.Height = max(msg.Height-6, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()

	case tea.KeyMsg:
		return m.onKey(msg)

	case startMsg:
		m.task = msg.task
		m.running = true
		m.input.Blur()
		m.lines = append(m.lines, userStyle.Render("you: ")+msg.task)
		m.refresh()
		cmds = append(cmds, runSession(m.ctx, m.session, msg.task), waitForEvent(m.emitter.Events()), m.spinner.Tick)

	case sessionEventMsg:
		m.apply(msg.ev)
		m.refresh()
		cmds = append(cmds, waitForEvent(m.emitter.Events()))

	case eventsClosedMsg:

	case runDoneMsg:
		m.running = false
		m.pending = nil
		m.runErr = msg.err
		if m.result == nil {
			t := msg.term
			m.result = &t
		}
		m.emitter.Close()
		m.refresh()
		if m.quitting {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.running {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m ui) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch {
	case m.result != nil:
		return m, tea.Quit

	case !m.running:
		switch key {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			task := strings.TrimSpace(m.input.Value())
			if task == "" {
				return m, nil
			}
			m.input.Reset()
			return m, startCmd(task)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case m.pending != nil:
		decision, ok := approvalKeys[key]
		if !ok {
			if key == "ctrl+c" {
				decision, ok = agentloop.DecisionQuit, true
			}
		}
		if ok {
			m.pending = nil
			m.quitting = m.quitting || decision == agentloop.DecisionQuit
			m.session.Respond(decision)
			m.refresh()
		}
		return m, nil

	default:
		switch key {
		case "q", "esc", "ctrl+c":
			m.quitting = key == "ctrl+c"
			m.session.Quit()
		default:
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			return m, cmd
		}
		return m, nil
	}
}

var approvalKeys = map[string]agentloop.Decision{
	"a": agentloop.DecisionApproveOnce,
	"s": agentloop.DecisionApproveSession,
	"d": agentloop.DecisionDeny,
	"q": agentloop.DecisionQuit,
}

func (m *ui) apply(ev agentloop.SessionEvent) {
	text, _ := ev.Data["text"].(string)

	switch ev.Kind {
	case agentloop.EventAssistantTextDelta:
		m.stream += text
	case agentloop.EventAssistantText:
		m.stream = ""
		m.lines = append(m.lines, assistantStyle.Render(text))
	case agentloop.EventToolResult:
		m.stream = ""
		style := toolStyle
		if strings.HasPrefix(text, "tool failed:") {
			style = errorStyle
		}
		m.lines = append(m.lines, style.Render("• "+text))
	case agentloop.EventNotice:
		m.lines = append(m.lines, noticeStyle.Render("! "+text))
	case agentloop.EventApprovalRequested:
		m.stream = ""
		m.pending = ev.Approval
	case agentloop.EventSessionEnd:
		m.stream = ""
		m.pending = nil
		m.result = ev.Terminate
	}
}

func (m *ui) refresh() {
	content := strings.Join(m.lines, "\n")
	if m.stream != "" {
		content += "\n" + streamStyle.Render(m.stream)
	}
	m.timeline.SetContent(lipgloss.NewStyle().Width(max(m.width-1, 20)).Render(content))
	m.timeline.GotoBottom()
}

func (m ui) View() string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("toolloop · %s", m.modelID)))
	sb.WriteString("\n")
	sb.WriteString(m.timeline.View())
	sb.WriteString("\n")
	sb.WriteString(m.footer())
	return sb.String()
}

func (m ui) footer() string {
	switch {
	case m.result != nil:
		return m.summary() + "\n" + streamStyle.Render("press any key to exit")
	case m.pending != nil:
		p := m.pending
		target := p.ToolName
		if p.AffectedPath != "" {
			target += " " + p.AffectedPath
		}
		return approvalStyle.Render(fmt.Sprintf(
			"approve %s (step %d)?\n%s\n[a] once  [s] all gated tools this session  [d] deny  [q] quit",
			target, p.StepIndex, truncateArgs(string(p.Arguments), 200)))
	case m.running:
		return m.spinner.View() + " working  " + streamStyle.Render("[q] quit")
	default:
		return m.input.View()
	}
}

func (m ui) summary() string {
	if m.result == nil {
		return ""
	}
	style := doneStyle
	if m.result.Status == agentloop.StatusFailed {
		style = errorStyle
	}
	out := style.Render(fmt.Sprintf("%s: %s", m.result.Status, m.result.Reason))
	if m.runErr != nil {
		out += " " + errorStyle.Render(fmt.Sprintf("(%v)", m.runErr))
	}
	return out
}

func truncateArgs(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

package tui

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"eventbot/internal/domain"
	"eventbot/internal/service"
	"eventbot/internal/session"
)

type answerMsg struct{ answer domain.Answer }

type stageMsg struct {
	stage  service.Stage
	stages <-chan service.Stage
}

// Model is the Bubble Tea model for the chat.
type Model struct {
	ctx      context.Context
	session  *session.Session
	title    string
	digest   string
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	busy     bool
	status   string
	ready    bool
}

// New creates a chat model over an existing session. digest is shown under
// the title and may be empty.
func New(ctx context.Context, s *session.Session, title, digest string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about the event..."
	ti.Focus()
	ti.CharLimit = 500
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return Model{
		ctx:      ctx,
		session:  s,
		title:    title,
		digest:   digest,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Type a question and press Enter. Ctrl+C quits.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, progress and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := transcriptBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and digest, status, input box
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.Type {
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			m.busy = true
			m.status = service.StageRetrieving.String()
			stages := make(chan service.Stage, 3)
			cmd := tea.Batch(m.spinner.Tick, m.ask(q, stages), waitStage(stages))
			m.refreshWith(q)
			return m, cmd
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case stageMsg:
		if msg.stage != service.StageDone {
			m.status = msg.stage.String()
		}
		return m, waitStage(msg.stages)
	case answerMsg:
		m.busy = false
		m.status = "Type a question and press Enter. Ctrl+C quits."
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render(m.title)
	digest := digestStyle.Render(m.digest)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + digest + "\n" + transcript + "\n" + input + "\n" + status
}

// ask runs the question on a background command. Stage transitions are
// forwarded on stages, which is closed when the answer is ready.
func (m Model) ask(q string, stages chan service.Stage) tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		defer close(stages)
		ans := s.Ask(ctx, q, func(st service.Stage) {
			select {
			case stages <- st:
			default:
			}
		})
		return answerMsg{answer: ans}
	}
}

func waitStage(stages <-chan service.Stage) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-stages
		if !ok {
			return nil
		}
		return stageMsg{stage: st, stages: stages}
	}
}

func (m *Model) refresh() { m.refreshWith("") }

// refreshWith renders the transcript, plus a pending question that has not
// been recorded yet.
func (m *Model) refreshWith(pending string) {
	width := m.viewport.Width
	content := RenderTranscript(m.session.Turns(), width)
	if pending != "" {
		content += "\n\n" + renderUser(pending, width)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

// RenderTranscript renders every turn in order. Text is sanitised before
// rendering; timings are shown under timed and error answers only.
func RenderTranscript(turns []domain.Turn, width int) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		if t.Role == domain.RoleUser {
			parts = append(parts, renderUser(t.Question, width))
			continue
		}
		parts = append(parts, renderAssistant(t.Answer, width))
	}
	return strings.Join(parts, "\n\n")
}

func renderUser(q string, width int) string {
	return userLabelStyle.Render("You") + "\n" + wrap(Sanitize(q), width)
}

func renderAssistant(a domain.Answer, width int) string {
	style := botTextStyle
	if a.Kind == domain.ErrorAnswer {
		style = errorTextStyle
	}
	out := botLabelStyle.Render("Event Bot") + "\n" + style.Render(wrap(Sanitize(a.Text), width))
	if a.HasTimings() {
		out += "\n" + timingStyle.Render(a.TimingLine())
	}
	return out
}

func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(\x07|\x1b\\)|\x1b.`)

// Sanitize strips terminal escape sequences and control characters other
// than newlines and tabs, so user or model text cannot drive the terminal.
func Sanitize(s string) string {
	s = ansiEscape.ReplaceAllString(s, "")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

var (
	titleStyle         = lipgloss.NewStyle().Bold(true)
	digestStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	spinnerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	userLabelStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	botLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	botTextStyle       = lipgloss.NewStyle()
	errorTextStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	timingStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

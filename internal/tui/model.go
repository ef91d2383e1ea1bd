// Package tui is an interactive terminal front end for the scanner.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joseph-ayodele/fichas-scanner/constants"
	"github.com/joseph-ayodele/fichas-scanner/internal/extract"
	"github.com/joseph-ayodele/fichas-scanner/internal/notify"
	"github.com/joseph-ayodele/fichas-scanner/internal/pipeline"
)

// Pipeline is the orchestrator surface the screen drives.
type Pipeline interface {
	StartCamera(ctx context.Context) error
	StopCamera() bool
	Process(ctx context.Context) (extract.Record, bool, error)
	FillForm(ctx context.Context) (bool, error)
	View() pipeline.View
}

type (
	// doneMsg reports that an action finished; the screen then re-reads the view.
	doneMsg       struct{ err error }
	noticeMsg     notify.Notice
	transitionMsg pipeline.Transition
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")).Width(22)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#CDD6F4"))
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#45475A"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#45475A")).Padding(0, 1)
	stateStyles = map[pipeline.State]lipgloss.Style{
		pipeline.StateIdle:         lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		pipeline.StateCameraActive: lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")),
		pipeline.StateProcessing:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
		pipeline.StateCompleted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		pipeline.StateFailed:       lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
	}
)

// Model is the bubbletea model of the scanner screen.
type Model struct {
	ctx         context.Context
	pipeline    Pipeline
	notices     <-chan notify.Notice
	transitions <-chan pipeline.Transition
	keys        KeyMap
	spinner     spinner.Model

	view    pipeline.View
	notice  *notify.Notice
	working bool
	width   int
}

var _ tea.Model = (*Model)(nil)

// New builds the screen. notices and transitions may be nil.
func New(ctx context.Context, p Pipeline, notices <-chan notify.Notice, transitions <-chan pipeline.Transition) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &Model{
		ctx:         ctx,
		pipeline:    p,
		notices:     notices,
		transitions: transitions,
		keys:        DefaultKeyMap(),
		spinner:     sp,
		view:        p.View(),
		width:       80,
	}
}

// Observer returns a pipeline observer feeding ch without blocking.
func Observer(ch chan<- pipeline.Transition) pipeline.Observer {
	return func(t pipeline.Transition) {
		select {
		case ch <- t:
		default:
		}
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("Ficha de Hóspede"),
		m.spinner.Tick,
		waitNotice(m.notices),
		waitTransition(m.transitions),
	)
}

func waitNotice(ch <-chan notify.Notice) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}

func waitTransition(ch <-chan pipeline.Transition) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		t, ok := <-ch
		if !ok {
			return nil
		}
		return transitionMsg(t)
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case doneMsg:
		m.working = false
		m.view = m.pipeline.View()
		return m, nil

	case noticeMsg:
		n := notify.Notice(msg)
		m.notice = &n
		return m, waitNotice(m.notices)

	case transitionMsg:
		m.view = m.pipeline.View()
		return m, waitTransition(m.transitions)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		m.pipeline.StopCamera()
		return tea.Quit
	}
	if m.working || m.view.Busy {
		return nil
	}

	cameraOn := m.view.State == pipeline.StateCameraActive
	switch {
	case !cameraOn && key.Matches(msg, m.keys.Start):
		return m.run(func(ctx context.Context) error { return m.pipeline.StartCamera(ctx) })
	case cameraOn && key.Matches(msg, m.keys.Capture):
		return m.run(func(ctx context.Context) error {
			_, _, err := m.pipeline.Process(ctx)
			return err
		})
	case cameraOn && key.Matches(msg, m.keys.Stop):
		m.pipeline.StopCamera()
		m.view = m.pipeline.View()
		return nil
	case m.view.HasResult && key.Matches(msg, m.keys.Fill):
		return m.run(func(ctx context.Context) error {
			_, err := m.pipeline.FillForm(ctx)
			return err
		})
	}
	return nil
}

func (m *Model) run(fn func(context.Context) error) tea.Cmd {
	m.working = true
	ctx := m.ctx
	return func() tea.Msg {
		return doneMsg{err: fn(ctx)}
	}
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Ficha de Hóspede"))
	b.WriteString("\n\n")

	st, ok := stateStyles[m.view.State]
	if !ok {
		st = lipgloss.NewStyle()
	}
	status := st.Render(stateLabel(m.view.State))
	if m.working || m.view.Busy {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(status)
	b.WriteString("\n")

	b.WriteString(boxStyle.Render(m.renderRecord()))
	b.WriteString("\n")

	if m.notice != nil {
		b.WriteString(notify.Render(*m.notice))
		b.WriteString("\n")
	}

	bindings := m.keys.ShortHelp(m.view.State == pipeline.StateCameraActive, m.view.HasResult)
	hints := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	b.WriteString(helpStyle.Render(strings.Join(hints, " | ")))
	return b.String()
}

func (m *Model) renderRecord() string {
	lines := make([]string, 0, len(constants.FieldKeys))
	for _, k := range constants.FieldKeys {
		v := m.view.Result.Get(k)
		value := valueStyle.Render(v)
		if v == "" {
			value = emptyStyle.Render("Não encontrado")
		}
		lines = append(lines, labelStyle.Render(constants.FieldLabels[k])+value)
	}
	return strings.Join(lines, "\n")
}

func stateLabel(s pipeline.State) string {
	switch s {
	case pipeline.StateIdle:
		return "Câmera desligada"
	case pipeline.StateCameraActive:
		return "Câmera ativa, posicione a ficha"
	case pipeline.StateProcessing:
		return "Processando..."
	case pipeline.StateCompleted:
		return "Dados extraídos"
	case pipeline.StateFailed:
		return "Falha no processamento"
	}
	return string(s)
}

// Run starts the screen on the terminal and blocks until the user quits.
func Run(ctx context.Context, m *Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

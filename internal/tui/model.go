// Package tui provides the Bubble Tea game interface.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/endure/internal/engine"
	"github.com/verte-zerg/endure/internal/model"
	statsPkg "github.com/verte-zerg/endure/internal/stats"
)

// TickInterval is how often the session is advanced.
const TickInterval = 200 * time.Millisecond

const dialWidth = 22

// TickMsg advances the session to the carried time.
type TickMsg time.Time

// Session is the engine surface the game screen drives.
type Session interface {
	Initialize(cfg model.SessionConfig)
	StartPause()
	Reset()
	End() model.SessionStats
	Advance(now time.Time) engine.View
	Close()
}

// Model implements the Bubble Tea game UI.
type Model struct {
	session Session
	config  model.SessionConfig
	history statsPkg.SessionLister
	log     zerolog.Logger
	now     func() time.Time

	keys keyMap
	help help.Model

	width  int
	height int

	view  engine.View
	ended *model.SessionStats

	hasLast      bool
	lastRepeats  int
	allSessions  int
	bestRepeats  int
	allSequences int
}

var (
	dialStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A")).
			Padding(0, 1).
			Width(dialWidth)
	activeDialStyle = dialStyle.Copy().BorderForeground(lipgloss.Color("#C89A3A"))
	dialTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	dialValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	labelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	limitStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0"))
	footerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs the game model and initializes a stopped session.
func NewModel(session Session, cfg model.SessionConfig, history statsPkg.SessionLister, log zerolog.Logger) *Model {
	m := &Model{
		session: session,
		config:  cfg,
		history: history,
		log:     log,
		now:     time.Now,
		keys:    defaultKeyMap(),
		help:    help.New(),
	}
	m.session.Initialize(cfg)
	m.view = m.session.Advance(m.now())
	m.loadFooterStats()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case TickMsg:
		m.view = m.session.Advance(time.Time(msg))
		return m, tick()
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.session.Close()
		return m, tea.Quit
	}
	if m.ended != nil {
		m.ended = nil
		m.session.Initialize(m.config)
		m.view = m.session.Advance(m.now())
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Start):
		m.session.StartPause()
	case key.Matches(msg, m.keys.Reset):
		m.session.Reset()
	case key.Matches(msg, m.keys.End):
		m.finishSession()
	default:
		return m, nil
	}
	m.view = m.session.Advance(m.now())
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	if m.ended != nil {
		content = renderEnded(*m.ended)
	} else {
		content = m.renderGame()
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	footer := m.renderFooter()
	helpLine := m.help.View(m.keys)
	if m.height < 4 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-2, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	helpRow := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, helpLine)
	return body + "\n" + footerLine + "\n" + helpRow
}

func (m *Model) renderGame() string {
	v := m.view
	timer1Note := fmt.Sprintf("repeats %d/%d", v.Repeats, v.MaxRepeats)
	if v.LimitArmed {
		timer1Note = limitStyle.Render(fitLabel("limit reached", dialWidth-2))
	}
	timer2Note := fmt.Sprintf("sequences %d", v.Timer2Sequences)
	if !v.Timer2.Enabled {
		timer2Note = "disabled"
	}
	dials := lipgloss.JoinHorizontal(lipgloss.Top,
		renderDial("TIMER 1", v.Timer1, timer1Note),
		" ",
		renderDial("TIMER 2", v.Timer2, timer2Note),
	)
	return lipgloss.JoinVertical(lipgloss.Center, dials, "", statusStyle.Render(m.statusLine()))
}

func renderDial(title string, t engine.TimerView, note string) string {
	inner := dialWidth - 2
	value := dialValueStyle.Render(fitLabel(t.Text(), inner))
	if t.Label != "" {
		value = labelStyle.Render(fitLabel(t.Text(), inner))
	}
	body := strings.Join([]string{
		dialTitleStyle.Render(fitLabel(title, inner)),
		value,
		dialTitleStyle.Render(fitLabel(note, inner)),
	}, "\n")
	if t.InSequence {
		return activeDialStyle.Render(body)
	}
	return dialStyle.Render(body)
}

func (m *Model) statusLine() string {
	v := m.view
	state := "PAUSED"
	if v.Running {
		state = "RUNNING"
	}
	if !v.Initialized {
		state = "IDLE"
	}
	if v.GateBusy && !v.CooldownUntil.IsZero() {
		left := v.CooldownUntil.Sub(m.now())
		if left > 0 {
			return fmt.Sprintf("%s · cooldown %ds", state, int(left.Round(time.Second)/time.Second))
		}
	}
	return state
}

func renderEnded(st model.SessionStats) string {
	rows := [][2]string{
		{"Duration", statsPkg.FormatDuration(st.Duration())},
		{"Max repeats reached", fmt.Sprintf("%d", st.Timer1MaxRepeatsReached)},
		{"Final ceiling", fmt.Sprintf("%d", st.Timer1FinalMaxRepeats)},
	}
	if st.Timer2Enabled {
		rows = append(rows,
			[2]string{"Timer 2 sequences", fmt.Sprintf("%d", st.Timer2SequenceCount)},
			[2]string{"Warn delays", fmt.Sprintf("%ds", st.Timer2WarnDelaySum)},
			[2]string{"Delays after go", fmt.Sprintf("%ds", st.Timer2DelayAfter2Sum)},
			[2]string{"Base waits", fmt.Sprintf("%ds", st.Timer2BaseAfter3Sum)},
			[2]string{"Jitter", fmt.Sprintf("%ds", st.Timer2JitterSum)},
		)
	}
	lines := []string{dialValueStyle.Render("Session ended"), ""}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s  %s",
			dialTitleStyle.Render(runewidth.FillRight(r[0], 20)),
			dialValueStyle.Render(runewidth.FillLeft(r[1], 8))))
	}
	lines = append(lines, "", footerStyle.Render("press any key for a new session"))
	return strings.Join(lines, "\n")
}

func (m *Model) finishSession() {
	st := m.session.End()
	m.ended = &st
	m.hasLast = true
	m.lastRepeats = st.Timer1MaxRepeatsReached
	m.allSessions++
	m.allSequences += st.Timer2SequenceCount
	if st.Timer1MaxRepeatsReached > m.bestRepeats {
		m.bestRepeats = st.Timer1MaxRepeatsReached
	}
}

func (m *Model) loadFooterStats() {
	if m.history == nil {
		return
	}
	sessions, err := m.history.ListSessions(context.Background(), model.StatsConfig{})
	if err != nil {
		m.log.Error().Err(err).Msg("failed to load session stats")
		return
	}
	if len(sessions) == 0 {
		return
	}
	m.hasLast = true
	m.lastRepeats = sessions[len(sessions)-1].Timer1MaxRepeatsReached
	sum := statsPkg.Summarize(sessions)
	m.allSessions = sum.Sessions
	m.bestRepeats = sum.BestRepeats
	m.allSequences = sum.Timer2Sequences
}

func (m *Model) renderFooter() string {
	segments := []string{fmt.Sprintf("Repeats %d/%d", m.view.Repeats, m.view.MaxRepeats)}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %d repeats", m.lastRepeats))
	}
	segments = append(segments, fmt.Sprintf("All-time %d sessions · best %d · %d sequences", m.allSessions, m.bestRepeats, m.allSequences))
	return footerStyle.Render(strings.Join(segments, "  "))
}

// fitLabel truncates s to width cells and centers it.
func fitLabel(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = runewidth.Truncate(s, width, "…")
	pad := width - runewidth.StringWidth(s)
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}

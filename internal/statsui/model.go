// Package statsui provides the Bubble Tea stats interface.
package statsui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/verte-zerg/endure/internal/model"
	"github.com/verte-zerg/endure/internal/stats"
)

const (
	tabOverview = iota
	tabSessions
)

var tabTitles = []string{"Overview", "Sessions"}

var (
	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8A8A8")).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#444444"))
	activeTabStyle = tabStyle.
			Foreground(lipgloss.Color("#F2F2F2")).
			Bold(true).
			BorderForeground(lipgloss.Color("#3FA7A0"))
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5534B"))
	cardStyle  = lipgloss.NewStyle().
			Width(22).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#444444"))
	cardLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F2F2F2")).Bold(true)
)

// Model implements the Bubble Tea stats UI.
type Model struct {
	lister stats.SessionLister
	cfg    model.StatsConfig
	now    func() time.Time

	keys     keyMap
	formKeys formKeyMap
	help     help.Model

	report  stats.Report
	loadErr error

	tab      int
	overview viewport.Model
	table    table.Model

	form      filterForm
	filtering bool

	width  int
	height int
}

// NewModel constructs a stats UI model and loads the first report.
func NewModel(lister stats.SessionLister, cfg model.StatsConfig) *Model {
	m := &Model{
		lister:   lister,
		cfg:      cfg,
		now:      time.Now,
		keys:     defaultKeyMap(),
		formKeys: defaultFormKeyMap(),
		help:     help.New(),
		overview: viewport.New(0, 0),
		table:    newSessionTable(),
		form:     newFilterForm(),
	}
	m.reload()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.resize()
		m.renderOverview()
		return m, nil
	case tea.KeyMsg:
		if m.filtering {
			return m, m.updateForm(msg)
		}
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Prev):
		m.switchTab(-1)
		return tea.ClearScreen
	case key.Matches(msg, m.keys.Next):
		m.switchTab(1)
		return tea.ClearScreen
	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m.form.load(m.cfg)
	case key.Matches(msg, m.keys.Top):
		if m.tab == tabSessions {
			m.table.GotoTop()
		} else {
			m.overview.GotoTop()
		}
		return nil
	case key.Matches(msg, m.keys.Bottom):
		if m.tab == tabSessions {
			m.table.GotoBottom()
		} else {
			m.overview.GotoBottom()
		}
		return nil
	}
	var cmd tea.Cmd
	if m.tab == tabSessions {
		m.table, cmd = m.table.Update(msg)
	} else {
		m.overview, cmd = m.overview.Update(msg)
	}
	return cmd
}

func (m *Model) updateForm(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.formKeys.Cancel):
		m.filtering = false
		return nil
	case key.Matches(msg, m.formKeys.Apply):
		cfg, err := m.form.parse()
		if err != nil {
			m.form.err = err
			return nil
		}
		m.cfg = cfg
		m.filtering = false
		m.reload()
		m.resize()
		return nil
	case key.Matches(msg, m.formKeys.Next):
		return m.form.focusField(m.form.focus + 1)
	case key.Matches(msg, m.formKeys.Prev):
		return m.form.focusField(m.form.focus - 1)
	}
	return m.form.update(msg)
}

func (m *Model) switchTab(delta int) {
	n := len(tabTitles)
	m.tab = ((m.tab+delta)%n + n) % n
	if m.tab == tabSessions {
		m.table.Focus()
	} else {
		m.table.Blur()
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerH, bodyH, footerH := m.heights()
	return strings.Join([]string{
		block(m.header(), m.width, headerH),
		block(m.body(), m.width, bodyH),
		block(m.footer(), m.width, footerH),
	}, "\n")
}

func (m *Model) heights() (header, body, footer int) {
	header = lipgloss.Height(activeTabStyle.Render("x")) + 1
	footer = 1
	if m.loadErr != nil && !m.filtering {
		footer++
	}
	body = max(1, m.height-header-footer)
	return header, body, footer
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyH, _ := m.heights()
	m.overview.Width = m.width
	m.overview.Height = bodyH
	m.table.SetWidth(m.width)
	m.table.SetHeight(max(2, bodyH-1))
	m.form.setWidth(m.width)
}

func (m *Model) header() string {
	tabs := make([]string, len(tabTitles))
	for i, title := range tabTitles {
		style := tabStyle
		if i == m.tab {
			style = activeTabStyle
		}
		tabs[i] = style.Render(title)
	}
	filter := mutedStyle.Render(clip("Showing "+describeFilter(m.cfg), m.width))
	return lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...) + "\n" + filter
}

func (m *Model) body() string {
	switch {
	case m.filtering:
		return m.form.view()
	case m.tab == tabSessions:
		if len(m.report.Sessions) == 0 {
			return "No sessions found."
		}
		return m.table.View() + "\n" + mutedStyle.Render(clip(m.selectedDetail(), m.width))
	default:
		return m.overview.View()
	}
}

func (m *Model) footer() string {
	if m.filtering {
		return m.help.View(m.formKeys)
	}
	line := m.help.View(m.keys)
	if m.loadErr != nil {
		line += "\n" + errorStyle.Render(m.loadErr.Error())
	}
	return line
}

func (m *Model) reload() {
	report, err := stats.BuildReport(context.Background(), m.lister, m.cfg)
	if err != nil {
		m.loadErr = err
		m.report = stats.Report{}
		m.table.SetRows(nil)
		m.overview.SetContent("Failed to load stats.")
		return
	}
	m.loadErr = nil
	m.report = report
	rows := make([]table.Row, len(report.Sessions))
	now := m.now()
	for i, s := range report.Sessions {
		rows[i] = stats.SessionRow(s, now)
	}
	m.table.SetRows(rows)
	m.table.GotoBottom()
	m.renderOverview()
}

func (m *Model) renderOverview() {
	if m.loadErr != nil {
		return
	}
	width := m.width
	if width <= 0 {
		width = stats.TerminalWidth()
	}
	m.overview.SetContent(overviewContent(m.report, width, m.now()))
}

// selectedDetail breaks down the timer-2 waits of the highlighted session.
func (m *Model) selectedDetail() string {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.report.Sessions) {
		return ""
	}
	s := m.report.Sessions[idx]
	if !s.Timer2Enabled || s.Timer2SequenceCount == 0 {
		return fmt.Sprintf("%s: no timer 2 sequences", s.EndedAt.Local().Format("2006-01-02 15:04"))
	}
	return fmt.Sprintf("%s: %d sequences, warn %ds, after go %ds, base %ds, jitter %ds",
		s.EndedAt.Local().Format("2006-01-02 15:04"),
		s.Timer2SequenceCount,
		s.Timer2WarnDelaySum,
		s.Timer2DelayAfter2Sum,
		s.Timer2BaseAfter3Sum,
		s.Timer2JitterSum,
	)
}

func overviewContent(report stats.Report, width int, now time.Time) string {
	if len(report.Sessions) == 0 {
		return "No sessions found."
	}
	sum := report.Summary
	cards := []string{
		card("Sessions", humanize.Comma(int64(sum.Sessions))),
		card("Time played", stats.FormatDuration(sum.TotalDuration)),
		card("Best repeats", strconv.Itoa(sum.BestRepeats)),
		card("Highest ceiling", strconv.Itoa(sum.HighestCeiling)),
		card("Sequences", humanize.Comma(int64(sum.Timer2Sequences))),
		card("Avg wait", fmt.Sprintf("%.1fs", sum.AvgSequenceWait)),
	}
	perRow := max(1, width/lipgloss.Width(cards[0]))
	rows := make([]string, 0, len(cards)/perRow+1)
	for start := 0; start < len(cards); start += perRow {
		end := min(start+perRow, len(cards))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[start:end]...))
	}

	lines := []string{lipgloss.JoinVertical(lipgloss.Left, rows...), ""}
	lines = append(lines, mutedStyle.Render("Avg repeats: ")+fmt.Sprintf("%.2f", sum.AvgRepeats))
	label := "Repeats trend: "
	if trend := stats.RepeatsTrend(report.Sessions, width-len(label)); trend != "" {
		lines = append(lines, mutedStyle.Render(label)+trend)
	}
	lines = append(lines, mutedStyle.Render("Last session: ")+humanize.RelTime(sum.LastEnded, now, "ago", "from now"))
	return strings.Join(lines, "\n")
}

func card(label, value string) string {
	return cardStyle.Render(cardLabelStyle.Render(label) + "\n" + cardValueStyle.Render(value))
}

func newSessionTable() table.Model {
	widths := []int{16, 9, 9, 8, 8, 9, 10, 9}
	cols := make([]table.Column, len(stats.SessionHeaders))
	for i, title := range stats.SessionHeaders {
		cols[i] = table.Column{Title: title, Width: widths[i]}
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(2))

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#444444")).
		Bold(true).
		PaddingLeft(0)
	styles.Cell = styles.Cell.PaddingLeft(0)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#3FA7A0"))
	t.SetStyles(styles)
	return t
}

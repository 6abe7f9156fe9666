package statsui

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/endure/internal/model"
)

const dateLayout = "2006-01-02"

var (
	errBadSince = errors.New("since must be a date like 2024-03-01")
	errBadLast  = errors.New("last must be 0 or a positive number")
)

const (
	fieldSince = iota
	fieldLast
)

// filterForm edits the history filter in place.
type filterForm struct {
	fields []textinput.Model
	focus  int
	err    error
}

func newFilterForm() filterForm {
	return filterForm{fields: []textinput.Model{
		newField("Since (YYYY-MM-DD): ", 10),
		newField("Last N sessions:    ", 6),
	}}
}

func newField(prompt string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.CharLimit = limit
	in.Cursor.SetMode(cursor.CursorBlink)
	return in
}

// load copies cfg into the fields and focuses the first one.
func (f *filterForm) load(cfg model.StatsConfig) tea.Cmd {
	since, last := "", ""
	if cfg.Since != nil {
		since = cfg.Since.Format(dateLayout)
	}
	if cfg.Last > 0 {
		last = strconv.Itoa(cfg.Last)
	}
	f.fields[fieldSince].SetValue(since)
	f.fields[fieldLast].SetValue(last)
	f.err = nil
	return f.focusField(0)
}

func (f *filterForm) focusField(idx int) tea.Cmd {
	n := len(f.fields)
	f.focus = (idx%n + n) % n
	var cmd tea.Cmd
	for i := range f.fields {
		if i == f.focus {
			cmd = f.fields[i].Focus()
			continue
		}
		f.fields[i].Blur()
	}
	return cmd
}

func (f *filterForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.fields[f.focus], cmd = f.fields[f.focus].Update(msg)
	return cmd
}

func (f *filterForm) setWidth(width int) {
	for i := range f.fields {
		f.fields[i].Width = max(10, width-len(f.fields[i].Prompt)-2)
	}
}

// parse validates the fields. An empty field means no filter.
func (f *filterForm) parse() (model.StatsConfig, error) {
	var cfg model.StatsConfig
	if v := strings.TrimSpace(f.fields[fieldSince].Value()); v != "" {
		since, err := time.ParseInLocation(dateLayout, v, time.Local)
		if err != nil {
			return model.StatsConfig{}, errBadSince
		}
		cfg.Since = &since
	}
	if v := strings.TrimSpace(f.fields[fieldLast].Value()); v != "" {
		last, err := strconv.Atoi(v)
		if err != nil || last < 0 {
			return model.StatsConfig{}, errBadLast
		}
		cfg.Last = last
	}
	return cfg, nil
}

func (f filterForm) view() string {
	lines := make([]string, 0, len(f.fields)+2)
	lines = append(lines, titleStyle.Render("Filter history"))
	for _, in := range f.fields {
		lines = append(lines, in.View())
	}
	if f.err != nil {
		lines = append(lines, errorStyle.Render(f.err.Error()))
	}
	return strings.Join(lines, "\n")
}

func describeFilter(cfg model.StatsConfig) string {
	since := "any date"
	if cfg.Since != nil {
		since = "since " + cfg.Since.Format(dateLayout)
	}
	if cfg.Last > 0 {
		return since + ", last " + strconv.Itoa(cfg.Last)
	}
	return since + ", all sessions"
}

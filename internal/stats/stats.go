// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/verte-zerg/endure/internal/model"
)

const sparkChars = " .:-=+*#%@"

// trendWindow smooths the repeats sparkline.
const trendWindow = 3

// Summary aggregates a list of ended sessions.
type Summary struct {
	Sessions        int
	TotalDuration   time.Duration
	BestRepeats     int
	AvgRepeats      float64
	HighestCeiling  int
	Timer2Sequences int
	AvgSequenceWait float64
	LastEnded       time.Time
}

// SequenceSeconds is the scripted wait a session spent inside timer-2
// sequences.
func SequenceSeconds(s model.SessionStats) int {
	return s.Timer2WarnDelaySum + s.Timer2DelayAfter2Sum + s.Timer2BaseAfter3Sum + s.Timer2JitterSum
}

// Summarize computes totals and averages over sessions.
func Summarize(sessions []model.SessionStats) Summary {
	var sum Summary
	if len(sessions) == 0 {
		return sum
	}
	var repeats, waits int
	for _, s := range sessions {
		sum.Sessions++
		sum.TotalDuration += s.Duration()
		repeats += s.Timer1MaxRepeatsReached
		if s.Timer1MaxRepeatsReached > sum.BestRepeats {
			sum.BestRepeats = s.Timer1MaxRepeatsReached
		}
		if s.Timer1FinalMaxRepeats > sum.HighestCeiling {
			sum.HighestCeiling = s.Timer1FinalMaxRepeats
		}
		sum.Timer2Sequences += s.Timer2SequenceCount
		waits += SequenceSeconds(s)
		if s.EndedAt.After(sum.LastEnded) {
			sum.LastEnded = s.EndedAt
		}
	}
	sum.AvgRepeats = float64(repeats) / float64(sum.Sessions)
	if sum.Timer2Sequences > 0 {
		sum.AvgSequenceWait = float64(waits) / float64(sum.Timer2Sequences)
	}
	return sum
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(min(i+1, window))
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RepeatsTrend is the smoothed sparkline of max repeats reached, limited to
// the newest width sessions.
func RepeatsTrend(sessions []model.SessionStats, width int) string {
	if width > 0 && len(sessions) > width {
		sessions = sessions[len(sessions)-width:]
	}
	values := make([]float64, len(sessions))
	for i, s := range sessions {
		values[i] = float64(s.Timer1MaxRepeatsReached)
	}
	return Sparkline(MovingAverage(values, trendWindow))
}

// RenderSummary prints a summary block for sessions.
func RenderSummary(w io.Writer, sessions []model.SessionStats, width int) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	sum := Summarize(sessions)
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", sum.Sessions),
		fmt.Sprintf("Time played: %s", FormatDuration(sum.TotalDuration)),
		fmt.Sprintf("Best repeats: %d", sum.BestRepeats),
		fmt.Sprintf("Avg repeats: %.2f", sum.AvgRepeats),
		fmt.Sprintf("Highest ceiling: %d", sum.HighestCeiling),
		fmt.Sprintf("Timer 2 sequences: %s", humanize.Comma(int64(sum.Timer2Sequences))),
		fmt.Sprintf("Avg sequence wait: %.1fs", sum.AvgSequenceWait),
	}
	if width <= 0 {
		width = TerminalWidth()
	}
	label := "Repeats trend: "
	if trend := RepeatsTrend(sessions, width-len(label)); trend != "" {
		lines = append(lines, label+trend)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// SessionHeaders are the columns of the session table.
var SessionHeaders = []string{"Ended", "Duration", "Timer 1", "Repeats", "Ceiling", "Timer 2", "Sequences", "Wait (s)"}

// SessionRow formats one session for tables, newest-relative to now.
func SessionRow(s model.SessionStats, now time.Time) []string {
	timer2 := "-"
	if s.Timer2Enabled {
		timer2 = formatRange(s.Config.Timer2Range)
	}
	return []string{
		humanize.RelTime(s.EndedAt, now, "ago", "from now"),
		FormatDuration(s.Duration()),
		formatRange(s.Config.Timer1Range),
		fmt.Sprintf("%d", s.Timer1MaxRepeatsReached),
		fmt.Sprintf("%d/%d", s.Config.Timer1MaxRepeats, s.Timer1FinalMaxRepeats),
		timer2,
		fmt.Sprintf("%d", s.Timer2SequenceCount),
		fmt.Sprintf("%d", SequenceSeconds(s)),
	}
}

// RenderSessionTable prints one row per session, newest last.
func RenderSessionTable(w io.Writer, sessions []model.SessionStats, now time.Time) error {
	if len(sessions) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Sessions"); err != nil {
		return err
	}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, SessionRow(s, now))
	}
	rightAlign := map[int]bool{1: true, 3: true, 4: true, 6: true, 7: true}
	for _, line := range formatTable(SessionHeaders, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// FormatDuration renders d as h:mm:ss or m:ss.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatRange(r model.TimeRange) string {
	if r.MinSeconds == r.MaxSeconds {
		return fmt.Sprintf("%ds", r.MinSeconds)
	}
	return fmt.Sprintf("%d-%ds", r.MinSeconds, r.MaxSeconds)
}

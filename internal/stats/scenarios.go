package stats

import (
	"fmt"
	"io"

	"github.com/verte-zerg/endure/internal/model"
)

// RenderScenarios prints the timer-2 scenario set.
func RenderScenarios(w io.Writer, scenarios []model.Scenario) error {
	if len(scenarios) == 0 {
		_, err := fmt.Fprintln(w, "No scenarios configured.")
		return err
	}
	headers := []string{"Name", "Warn cue", "After go (s)", "Base wait (s)", "Jitter (s)", "Total (s)"}
	rows := make([][]string, 0, len(scenarios))
	for _, sc := range scenarios {
		total := fmt.Sprintf("%d", sc.DelayAfterSecond+sc.BaseWait)
		if sc.JitterMax > 0 {
			total = fmt.Sprintf("%d-%d", sc.DelayAfterSecond+sc.BaseWait, sc.DelayAfterSecond+sc.BaseWait+sc.JitterMax)
		}
		rows = append(rows, []string{
			sc.Name,
			sc.WarnCue,
			fmt.Sprintf("%d", sc.DelayAfterSecond),
			fmt.Sprintf("%d", sc.BaseWait),
			fmt.Sprintf("0-%d", sc.JitterMax),
			total,
		})
	}
	for _, line := range formatTable(headers, rows, map[int]bool{2: true, 3: true, 4: true, 5: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

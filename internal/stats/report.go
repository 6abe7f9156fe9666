// Package stats contains statistics calculations and reporting.
package stats

import (
	"context"

	"github.com/verte-zerg/endure/internal/model"
)

// SessionLister reads stored sessions.
type SessionLister interface {
	ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionStats, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions []model.SessionStats
	Summary  Summary
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, st SessionLister, cfg model.StatsConfig) (Report, error) {
	sessions, err := st.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}
	return Report{
		Sessions: sessions,
		Summary:  Summarize(sessions),
	}, nil
}

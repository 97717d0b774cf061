package model

import (
	"math"
	"time"
)

type Stats struct {
	PendingDrafts  int `json:"pending_drafts"`
	SentToday      int `json:"sent_today"`
	TotalProcessed int `json:"total_processed"`
	ApprovalRate   int `json:"approval_rate"`
}

// ComputeStats derives dashboard counters from an account's drafts.
// startOfDay bounds SentToday; edited replies count as sent.
func ComputeStats(drafts []*Draft, startOfDay time.Time) Stats {
	var stats Stats
	approved := 0
	for _, d := range drafts {
		stats.TotalProcessed++
		switch d.Status {
		case DraftStatusPending:
			stats.PendingDrafts++
		case DraftStatusSent, DraftStatusEdited:
			approved++
			if d.ResolvedAt != nil && !d.ResolvedAt.Before(startOfDay) {
				stats.SentToday++
			}
		}
	}
	if stats.TotalProcessed > 0 {
		stats.ApprovalRate = int(math.Round(float64(approved) / float64(stats.TotalProcessed) * 100))
	}
	return stats
}

// PeriodSince maps a listing period to its lower bound. Unknown periods return nil.
func PeriodSince(period string, now time.Time) *time.Time {
	var d time.Duration
	switch period {
	case "day":
		d = 24 * time.Hour
	case "week":
		d = 7 * 24 * time.Hour
	case "month":
		d = 30 * 24 * time.Hour
	default:
		return nil
	}
	since := now.Add(-d)
	return &since
}

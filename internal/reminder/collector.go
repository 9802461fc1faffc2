// Package reminder watches the review calendar: it collects
// assessments whose reminder window has opened or whose review date has
// passed, and delivers webhook notifications for them.
package reminder

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/plannetic/compliance-cli/internal/model"
	"github.com/plannetic/compliance-cli/internal/schedule"
	"github.com/plannetic/compliance-cli/internal/store"
)

// ReviewItem is one subject's pending review.
type ReviewItem struct {
	SubjectID    string           `json:"subject_id"`
	RecordType   model.RecordType `json:"record_type"`
	Tier         model.RiskTier   `json:"tier"`
	NextReviewAt time.Time        `json:"next_review_at"`
}

// Snapshot is the state of the review calendar at a point in time.
type Snapshot struct {
	AsOf     time.Time    `json:"as_of"`
	LeadDays int          `json:"lead_days"`
	Overdue  []ReviewItem `json:"overdue"`
	Upcoming []ReviewItem `json:"upcoming"`
}

// Collector builds review snapshots from the store.
type Collector struct {
	store store.Store
	sched schedule.Config
}

// NewCollector creates a Collector using the schedule's reminder lead
// time to bound the upcoming window.
func NewCollector(s store.Store, sched schedule.Config) *Collector {
	return &Collector{store: s, sched: sched}
}

// Collect returns the reviews overdue at asOf plus those whose reminder
// date has passed but whose review is not yet due.
func (c *Collector) Collect(ctx context.Context, asOf time.Time) (*Snapshot, error) {
	horizon := asOf.AddDate(0, 0, c.sched.ReminderDaysBefore)
	due, err := c.store.ListDueReviews(ctx, horizon)
	if err != nil {
		return nil, eris.Wrap(err, "reminder: collect due reviews")
	}

	snap := &Snapshot{AsOf: asOf, LeadDays: c.sched.ReminderDaysBefore}
	for _, a := range due {
		item := ReviewItem{
			SubjectID:    a.SubjectID,
			RecordType:   a.Type,
			Tier:         a.Tier,
			NextReviewAt: a.NextReviewAt,
		}
		switch {
		case schedule.Due(a.NextReviewAt, asOf):
			snap.Overdue = append(snap.Overdue, item)
		case schedule.WithinReminderWindow(a.NextReviewAt, asOf, c.sched):
			snap.Upcoming = append(snap.Upcoming, item)
		}
	}
	return snap, nil
}

// Package schedule derives review dates from a risk tier and a
// configurable per-tier interval.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/plannetic/compliance-cli/internal/model"
)

// Config maps risk tiers to whole-year review intervals, plus the
// reminder lead time used for notification triggers.
type Config struct {
	YearsLow           int `yaml:"years_low" mapstructure:"years_low"`
	YearsMedium        int `yaml:"years_medium" mapstructure:"years_medium"`
	YearsHigh          int `yaml:"years_high" mapstructure:"years_high"`
	ReminderDaysBefore int `yaml:"reminder_days_before" mapstructure:"reminder_days_before"`
}

// DefaultConfig returns the standard review cycle: high-risk clients
// annually, medium every two years, low every three, with a 30-day
// reminder window.
func DefaultConfig() Config {
	return Config{
		YearsLow:           3,
		YearsMedium:        2,
		YearsHigh:          1,
		ReminderDaysBefore: 30,
	}
}

// Years returns the review interval for a tier. An unrecognized tier
// falls back to the high-risk interval, the shortest cycle.
func (c Config) Years(tier model.RiskTier) int {
	switch tier {
	case model.TierLow:
		return c.YearsLow
	case model.TierMedium:
		return c.YearsMedium
	case model.TierHigh:
		return c.YearsHigh
	default:
		return c.YearsHigh
	}
}

// Validate checks that all intervals are non-negative so a next review
// date can never precede the completion date.
func (c Config) Validate() error {
	var errs []string
	if c.YearsLow < 0 {
		errs = append(errs, "years_low must be >= 0")
	}
	if c.YearsMedium < 0 {
		errs = append(errs, "years_medium must be >= 0")
	}
	if c.YearsHigh < 0 {
		errs = append(errs, "years_high must be >= 0")
	}
	if c.ReminderDaysBefore < 0 {
		errs = append(errs, "reminder_days_before must be >= 0")
	}
	if len(errs) > 0 {
		return eris.Errorf("schedule: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NextReview computes the next review date as completedOn plus the
// tier's whole-year interval. Day and month are preserved; a Feb-29
// completion in a non-leap target year normalizes per time.AddDate.
func NextReview(tier model.RiskTier, completedOn time.Time, cfg Config) time.Time {
	return completedOn.AddDate(cfg.Years(tier), 0, 0)
}

// Reminder returns the notification trigger date for a review. It is
// derived on demand, never stored as authoritative state.
func Reminder(nextReview time.Time, cfg Config) time.Time {
	return nextReview.AddDate(0, 0, -cfg.ReminderDaysBefore)
}

// Due reports whether a review is due at or before asOf.
func Due(nextReview, asOf time.Time) bool {
	return !nextReview.After(asOf)
}

// WithinReminderWindow reports whether asOf has reached the reminder
// date but the review itself is not yet due.
func WithinReminderWindow(nextReview, asOf time.Time, cfg Config) bool {
	return !asOf.Before(Reminder(nextReview, cfg)) && nextReview.After(asOf)
}

// Describe renders a human-readable summary of the cycle for a tier,
// used by the CLI.
func Describe(tier model.RiskTier, cfg Config) string {
	years := cfg.Years(tier)
	if years == 1 {
		return fmt.Sprintf("%s risk: annual review", tier)
	}
	return fmt.Sprintf("%s risk: review every %d years", tier, years)
}

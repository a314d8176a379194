package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/dmitrijs2005/toastit/internal/timex"
)

// Reminder fires either Offset before an entry's reference time or at an
// absolute instant.
type Reminder struct {
	Offset timex.Duration `json:"offset,omitzero"`
	At     time.Time      `json:"at,omitzero"`
}

// Trigger returns the instant the reminder fires for reference time ref.
// Offset reminders need a reference; ok is false without one.
func (r Reminder) Trigger(ref time.Time) (time.Time, bool) {
	if !r.At.IsZero() {
		return r.At, true
	}
	if ref.IsZero() {
		return time.Time{}, false
	}
	return ref.Add(-r.Offset.Duration), true
}

func (r Reminder) String() string {
	if !r.At.IsZero() {
		return "at " + r.At.Format(time.DateTime)
	}
	return timex.FormatWindow(r.Offset.Duration) + " before"
}

// ParseReminder reads "10m", "1d2h" (offsets) or "@2006-01-02 15:04" (absolute, local time).
func ParseReminder(s string) (Reminder, error) {
	s = strings.TrimSpace(s)
	if at, ok := strings.CutPrefix(s, "@"); ok {
		t, err := ParseTime(at)
		if err != nil {
			return Reminder{}, err
		}
		return Reminder{At: t}, nil
	}
	d, err := timex.ParseDuration(s)
	if err != nil {
		return Reminder{}, fmt.Errorf("%w: reminder %q: %w", common.ErrInvalidInput, s, err)
	}
	return Reminder{Offset: timex.Duration{Duration: d}}, nil
}

var timeLayouts = []string{
	"2006-01-02 15:04",
	time.DateTime,
	time.DateOnly,
	time.RFC3339,
}

// ParseTime parses the date layouts accepted on the command line, in local time.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: time %q", common.ErrInvalidInput, s)
}

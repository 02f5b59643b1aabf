package util

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Standard five-field expressions plus descriptors such as "@daily" or "@every 2h".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NextCronTime returns the next occurrence strictly after from, in UTC.
func NextCronTime(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule.Next(from.UTC()), nil
}

func ValidateCronExpr(cronExpr string) error {
	if _, err := cronParser.Parse(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// NextReminderTime computes when a reminder is next due. A one-shot reminder
// (empty recurrence) is due at scheduledAt; a recurring one is due at the
// first occurrence at or after max(scheduledAt, now).
func NextReminderTime(scheduledAt time.Time, recurrence string, now time.Time) (time.Time, error) {
	if recurrence == "" {
		return scheduledAt.UTC(), nil
	}
	from := scheduledAt
	if now.After(from) {
		from = now
	}
	// Next is exclusive; step back so an occurrence exactly at from counts.
	return NextCronTime(recurrence, from.Add(-time.Second))
}

package access

import (
	"fmt"
	"time"

	"lomda/models"
)

// Lesson drip modes.
const (
	DripOffset = "OFFSET" // unlocks N days after enrollment
	DripDate   = "DATE"   // unlocks on a fixed calendar date
)

// Availability is the drip scheduler's verdict for one lesson.
type Availability struct {
	IsAvailable bool
	AvailableAt *time.Time
	Reason      string
}

// ComputeLessonAvailability decides whether a dripped lesson is open yet.
// Lessons without drip configuration are always available.
func ComputeLessonAvailability(lesson *models.Lesson, enrollDate, now time.Time) Availability {
	if lesson == nil || lesson.DripMode == "" {
		return Availability{IsAvailable: true}
	}

	var availableAt time.Time
	switch lesson.DripMode {
	case DripOffset:
		availableAt = enrollDate.AddDate(0, 0, lesson.DripOffsetDays)
	case DripDate:
		if lesson.DripUnlockAt == nil {
			return Availability{IsAvailable: true}
		}
		availableAt = *lesson.DripUnlockAt
	default:
		return Availability{IsAvailable: true}
	}

	if now.Before(availableAt) {
		return Availability{
			IsAvailable: false,
			AvailableAt: &availableAt,
			Reason:      "drip_scheduled",
		}
	}
	return Availability{IsAvailable: true, AvailableAt: &availableAt}
}

// FormatAvailabilityCountdown renders a human label for when a dripped
// lesson opens. Pure: recomputed from its arguments on every call.
func FormatAvailabilityCountdown(availableAt, now time.Time) string {
	remaining := availableAt.Sub(now)
	if remaining <= 0 {
		return "available now"
	}

	days := int(remaining.Hours()) / 24
	hours := int(remaining.Hours()) % 24
	minutes := int(remaining.Minutes()) % 60

	switch {
	case days > 1:
		return fmt.Sprintf("in %d days", days)
	case days == 1:
		return "in 1 day"
	case hours > 1:
		return fmt.Sprintf("in %d hours", hours)
	case hours == 1:
		return "in 1 hour"
	case minutes > 1:
		return fmt.Sprintf("in %d minutes", minutes)
	default:
		return "in less than a minute"
	}
}

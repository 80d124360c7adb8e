// Package analytics records publish attempts and reports success rates per
// organization, platform and day.
package analytics

import (
	"regexp"
	"strings"
	"time"

	"github.com/eringen/rescuepost/publisher"
)

// Attempt is the outcome of publishing one post to one platform.
type Attempt struct {
	ID          int64              `json:"-"`
	PostID      string             `json:"post_id"`
	OrgID       string             `json:"org_id"`
	Platform    publisher.Platform `json:"platform"`
	Success     bool               `json:"success"`
	Error       string             `json:"error,omitempty"`
	ExternalID  string             `json:"external_id,omitempty"`
	AttemptedAt time.Time          `json:"attempted_at"`
	Duration    time.Duration      `json:"duration"`
}

// Stats holds aggregated attempt data for a period.
type Stats struct {
	Period        string          `json:"period"`
	TotalAttempts int             `json:"total_attempts"`
	Successes     int             `json:"successes"`
	Failures      int             `json:"failures"`
	SuccessRate   float64         `json:"success_rate"`
	AvgDurationMs int             `json:"avg_duration_ms"`
	PostsTouched  int             `json:"posts_touched"`
	ByPlatform    []PlatformStat  `json:"by_platform"`
	TopErrors     []DimensionStat `json:"top_errors"`
	Daily         []DailyAttempts `json:"daily"`
}

// PlatformStat is the attempt breakdown for one platform.
type PlatformStat struct {
	Platform    publisher.Platform `json:"platform"`
	Attempts    int                `json:"attempts"`
	Successes   int                `json:"successes"`
	SuccessRate float64            `json:"success_rate"`
}

// DimensionStat is a name/count pair.
type DimensionStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DailyAttempts is the attempt count per bucket (hour, day or month).
type DailyAttempts struct {
	Date      string `json:"date"`
	Attempts  int    `json:"attempts"`
	Successes int    `json:"successes"`
}

// SuccessRate returns successes/total as a fraction, 0 when total is 0.
func SuccessRate(successes, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(successes) / float64(total)
}

var reErrorNoise = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}|\d+`)

// CleanError reduces an error message to a grouping key: IDs and numbers
// are masked and the text is capped at 120 bytes.
func CleanError(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return ""
	}
	msg = reErrorNoise.ReplaceAllString(msg, "N")
	if len(msg) > 120 {
		msg = msg[:120]
	}
	return msg
}

// TruncateDate returns the date truncated to the specified period.
func TruncateDate(t time.Time, period string) time.Time {
	switch period {
	case "day":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case "week":
		wd := int(t.Weekday())
		if wd == 0 {
			wd = 7
		}
		return time.Date(t.Year(), t.Month(), t.Day()-wd+1, 0, 0, 0, 0, t.Location())
	case "month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return t
	}
}

package analytics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Handler handles analytics HTTP requests.
type Handler struct {
	store *Store
	log   *zap.Logger
	now   func() time.Time
}

// NewHandler creates a new analytics handler.
func NewHandler(store *Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: store, log: log, now: time.Now}
}

// StatsResponse is the JSON response for the stats endpoint.
type StatsResponse struct {
	Stats      *Stats `json:"stats"`
	Org        string `json:"org,omitempty"`
	PeriodDays int    `json:"period_days"`
	Hourly     bool   `json:"hourly"`
	Monthly    bool   `json:"monthly"`
}

// GetStats returns attempt statistics as JSON. The organization comes from
// the :org path parameter or the org query parameter; neither means all.
func (h *Handler) GetStats(c echo.Context) error {
	_, days, hourly, monthly := parsePeriod(c.QueryParam("period"))
	org := c.Param("org")
	if org == "" {
		org = c.QueryParam("org")
	}

	from, to := calcTimeRange(h.now().UTC(), days, hourly)
	bucket := BucketDay
	switch {
	case hourly:
		bucket = BucketHour
	case monthly:
		bucket = BucketMonth
	}

	stats, err := h.store.GetStats(c.Request().Context(), org, from, to, bucket)
	if err != nil {
		h.log.Error("get stats failed", zap.String("org", org), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if hourly {
		stats.Daily = fillHourlyData(stats.Daily, from)
	}

	return c.JSON(http.StatusOK, StatsResponse{
		Stats:      stats,
		Org:        org,
		PeriodDays: days,
		Hourly:     hourly,
		Monthly:    monthly,
	})
}

// GetAttempts returns the attempt log of one post.
func (h *Handler) GetAttempts(c echo.Context) error {
	attempts, err := h.store.ListAttempts(c.Request().Context(), c.Param("id"))
	if err != nil {
		h.log.Error("list attempts failed", zap.String("post_id", c.Param("id")), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if attempts == nil {
		attempts = []Attempt{}
	}
	return c.JSON(http.StatusOK, attempts)
}

// parsePeriod parses the period query parameter
func parsePeriod(period string) (string, int, bool, bool) {
	switch period {
	case "today":
		return period, 1, true, false
	case "month":
		return period, 30, false, false
	case "year":
		return period, 365, false, true
	case "week":
		return period, 7, false, false
	default:
		return "week", 7, false, false
	}
}

// calcTimeRange returns the from/to times for the given period.
func calcTimeRange(now time.Time, days int, hourly bool) (time.Time, time.Time) {
	if hourly {
		from := now.Truncate(time.Hour).Add(-23 * time.Hour)
		return from, now
	}
	from := TruncateDate(now.AddDate(0, 0, -days), "day")
	to := TruncateDate(now, "day").AddDate(0, 0, 1)
	return from, to
}

// fillHourlyData ensures all 24 hourly slots are present, filling gaps with zero.
func fillHourlyData(sparse []DailyAttempts, from time.Time) []DailyAttempts {
	byHour := make(map[string]DailyAttempts, len(sparse))
	for _, v := range sparse {
		byHour[v.Date] = v
	}

	result := make([]DailyAttempts, 24)
	for i := 0; i < 24; i++ {
		label := fmt.Sprintf("%02d:00", from.Add(time.Duration(i)*time.Hour).Hour())
		d := byHour[label]
		d.Date = label
		result[i] = d
	}
	return result
}

// RegisterRoutes registers the admin analytics endpoints behind authMiddleware.
func (h *Handler) RegisterRoutes(e *echo.Echo, authMiddleware echo.MiddlewareFunc) {
	admin := e.Group("/admin/analytics")
	admin.Use(authMiddleware)
	admin.GET("/api/stats", h.GetStats)
	admin.GET("/api/posts/:id/attempts", h.GetAttempts)
}

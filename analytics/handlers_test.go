package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/rescuepost/publisher"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		period  string
		days    int
		hourly  bool
		monthly bool
	}{
		{"today", "today", 1, true, false},
		{"week", "week", 7, false, false},
		{"month", "month", 30, false, false},
		{"year", "year", 365, false, true},
		{"", "week", 7, false, false},
		{"bogus", "week", 7, false, false},
	}
	for _, tt := range tests {
		p, d, h, m := parsePeriod(tt.in)
		if p != tt.period || d != tt.days || h != tt.hourly || m != tt.monthly {
			t.Errorf("parsePeriod(%q) = %q,%d,%v,%v", tt.in, p, d, h, m)
		}
	}
}

func TestCalcTimeRange(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	from, to := calcTimeRange(now, 7, false)
	if want := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC); !from.Equal(want) {
		t.Errorf("from = %v, want %v", from, want)
	}
	if want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC); !to.Equal(want) {
		t.Errorf("to = %v, want %v", to, want)
	}

	from, to = calcTimeRange(now, 1, true)
	if want := time.Date(2026, 3, 9, 16, 0, 0, 0, time.UTC); !from.Equal(want) {
		t.Errorf("hourly from = %v, want %v", from, want)
	}
	if !to.Equal(now) {
		t.Errorf("hourly to = %v, want now", to)
	}
}

func TestFillHourlyData(t *testing.T) {
	from := time.Date(2026, 3, 9, 16, 0, 0, 0, time.UTC)
	got := fillHourlyData([]DailyAttempts{{Date: "18:00", Attempts: 3, Successes: 2}}, from)
	if len(got) != 24 {
		t.Fatalf("len = %d, want 24", len(got))
	}
	if got[0].Date != "16:00" || got[0].Attempts != 0 {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[2].Date != "18:00" || got[2].Attempts != 3 || got[2].Successes != 2 {
		t.Errorf("got[2] = %+v", got[2])
	}
	if got[23].Date != "15:00" {
		t.Errorf("got[23] = %+v", got[23])
	}
}

func TestGetStatsHandler(t *testing.T) {
	s := setupTestStore(t)
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	record(t, s, Attempt{PostID: "p", OrgID: "paws", Platform: publisher.Instagram, Success: true, AttemptedAt: now.Add(-time.Hour)})

	h := NewHandler(s, nil)
	h.now = func() time.Time { return now }

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/analytics/api/stats?period=today&org=paws", nil)
	rec := httptest.NewRecorder()
	if err := h.GetStats(e.NewContext(req, rec)); err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Hourly || resp.Org != "paws" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Stats.TotalAttempts != 1 {
		t.Errorf("TotalAttempts = %d, want 1", resp.Stats.TotalAttempts)
	}
	if len(resp.Stats.Daily) != 24 {
		t.Errorf("hourly buckets = %d, want 24", len(resp.Stats.Daily))
	}
}

func TestGetAttemptsHandler(t *testing.T) {
	s := setupTestStore(t)
	if err := s.RecordAttempt(context.Background(), &Attempt{PostID: "p9", OrgID: "o", Platform: publisher.LinkedIn}); err != nil {
		t.Fatal(err)
	}
	h := NewHandler(s, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("p9")
	if err := h.GetAttempts(c); err != nil {
		t.Fatalf("GetAttempts: %v", err)
	}
	var got []Attempt
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Platform != publisher.LinkedIn {
		t.Errorf("got = %+v", got)
	}
}

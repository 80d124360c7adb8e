package publisher

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		input string
		want  Platform
		ok    bool
	}{
		{"facebook", Facebook, true},
		{"FB", Facebook, true},
		{" Instagram ", Instagram, true},
		{"x", Twitter, true},
		{"twitter", Twitter, true},
		{"LinkedIn", LinkedIn, true},
		{"myspace", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := ParsePlatform(tt.input)
		if tt.ok && err != nil {
			t.Errorf("ParsePlatform(%q) error: %v", tt.input, err)
			continue
		}
		if !tt.ok {
			if !errors.Is(err, ErrUnknownPlatform) {
				t.Errorf("ParsePlatform(%q) error = %v, want ErrUnknownPlatform", tt.input, err)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePlatform(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParsePlatformsDedupes(t *testing.T) {
	got, err := ParsePlatforms([]string{"twitter", "", "x", "facebook"})
	if err != nil {
		t.Fatalf("ParsePlatforms error: %v", err)
	}
	if len(got) != 2 || got[0] != Twitter || got[1] != Facebook {
		t.Errorf("ParsePlatforms = %v, want [twitter facebook]", got)
	}
}

func TestPlatformsReturnsCopy(t *testing.T) {
	p := Platforms()
	p[0] = "changed"
	if Platforms()[0] != Facebook {
		t.Error("Platforms should return a copy")
	}
}

func TestSimulatedAlwaysSucceeds(t *testing.T) {
	s := NewSimulated(WithFailureRate(0), WithSeed(1))
	for i := 0; i < 50; i++ {
		res, err := s.Publish(context.Background(), Request{PostID: "p1", Platform: Twitter})
		if err != nil {
			t.Fatalf("attempt %d failed: %v", i, err)
		}
		if !strings.HasPrefix(res.ExternalID, "twitter_") {
			t.Errorf("ExternalID = %q, want twitter_ prefix", res.ExternalID)
		}
		if res.PublishedAt.IsZero() {
			t.Error("PublishedAt should be set")
		}
	}
}

func TestSimulatedAlwaysFails(t *testing.T) {
	s := NewSimulated(WithFailureRate(1), WithSeed(1))
	_, err := s.Publish(context.Background(), Request{PostID: "p1", Platform: Facebook})
	if !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("error = %v, want ErrPublishFailed", err)
	}
}

func TestSimulatedFailureRateRoughlyHonoured(t *testing.T) {
	s := NewSimulated(WithSeed(42))
	failures := 0
	const n = 2000
	for i := 0; i < n; i++ {
		if _, err := s.Publish(context.Background(), Request{Platform: Instagram}); err != nil {
			failures++
		}
	}
	rate := float64(failures) / n
	if rate < 0.05 || rate > 0.15 {
		t.Errorf("failure rate = %.3f, want about %.2f", rate, DefaultFailureRate)
	}
}

func TestSimulatedRespectsContext(t *testing.T) {
	s := NewSimulated(WithLatency(time.Second), WithFailureRate(0))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Publish(ctx, Request{Platform: LinkedIn})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
}

func TestFuncAdapter(t *testing.T) {
	var called bool
	var p Publisher = Func(func(ctx context.Context, req Request) (Result, error) {
		called = true
		return Result{Platform: req.Platform}, nil
	})
	if _, err := p.Publish(context.Background(), Request{Platform: Twitter}); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("func not called")
	}
}

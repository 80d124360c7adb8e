package postfmt

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/eringen/rescuepost/publisher"
)

func TestLimit(t *testing.T) {
	tests := []struct {
		platform publisher.Platform
		want     int
	}{
		{publisher.Twitter, 280},
		{publisher.Instagram, 2200},
		{publisher.LinkedIn, 3000},
		{publisher.Facebook, 63206},
		{"myspace", 0},
	}
	for _, tt := range tests {
		if got := Limit(tt.platform); got != tt.want {
			t.Errorf("Limit(%q) = %d, want %d", tt.platform, got, tt.want)
		}
	}
}

func TestStrictestLimit(t *testing.T) {
	got := StrictestLimit([]publisher.Platform{publisher.Facebook, publisher.Twitter, publisher.Instagram})
	if got != 280 {
		t.Errorf("StrictestLimit = %d, want 280", got)
	}
	if got := StrictestLimit(nil); got != 0 {
		t.Errorf("StrictestLimit(nil) = %d, want 0", got)
	}
}

func TestValidateEmpty(t *testing.T) {
	if err := Validate("   ", nil, []publisher.Platform{publisher.Twitter}); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("Validate blank = %v, want ErrEmptyContent", err)
	}
}

func TestValidateReportsStrictestPlatform(t *testing.T) {
	content := strings.Repeat("a", 2500)
	err := Validate(content, nil, []publisher.Platform{publisher.Facebook, publisher.Instagram, publisher.Twitter})
	var le *LengthError
	if !errors.As(err, &le) {
		t.Fatalf("Validate error = %v, want *LengthError", err)
	}
	if le.Platform != publisher.Twitter || le.Limit != 280 || le.Length != 2500 {
		t.Errorf("LengthError = %+v, want twitter/280/2500", le)
	}
}

func TestValidateCountsHashtags(t *testing.T) {
	content := strings.Repeat("a", 275)
	if err := Validate(content, nil, []publisher.Platform{publisher.Twitter}); err != nil {
		t.Fatalf("275 chars should fit twitter: %v", err)
	}
	if err := Validate(content, []string{"#adopt"}, []publisher.Platform{publisher.Twitter}); err == nil {
		t.Error("content plus hashtags should exceed twitter limit")
	}
}

func TestValidateCountsRunes(t *testing.T) {
	content := strings.Repeat("🐾", 280)
	if err := Validate(content, nil, []publisher.Platform{publisher.Twitter}); err != nil {
		t.Errorf("280 runes should fit twitter: %v", err)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"hello world", 6, "hello…"},
		{"abc", 0, "abc"},
		{"abc", 1, "…"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestExtractHashtags(t *testing.T) {
	got := ExtractHashtags("Meet Luna! #AdoptDontShop #rescue and #adoptdontshop again. Email a#b")
	want := []string{"#AdoptDontShop", "#rescue"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ExtractHashtags = %v, want %v", got, want)
	}
}

func TestNormalizeHashtags(t *testing.T) {
	got := NormalizeHashtags([]string{"adopt", "#Adopt", " foster care ", "", "#", "bad-tag", "#cats"})
	want := []string{"#adopt", "#fostercare", "#cats"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("NormalizeHashtags = %v, want %v", got, want)
	}
}

func TestValidHashtag(t *testing.T) {
	if !ValidHashtag("#rescue_dogs") {
		t.Error("#rescue_dogs should be valid")
	}
	for _, bad := range []string{"rescue", "#", "#two words", "#dash-tag"} {
		if ValidHashtag(bad) {
			t.Errorf("%q should be invalid", bad)
		}
	}
}

func TestCompose(t *testing.T) {
	tests := []struct {
		content  string
		hashtags []string
		want     string
	}{
		{"Adopt Max", nil, "Adopt Max"},
		{"Adopt Max", []string{"adopt", "#dogs"}, "Adopt Max\n\n#adopt #dogs"},
		{"Adopt Max #adopt", []string{"#Adopt", "#dogs"}, "Adopt Max #adopt\n\n#dogs"},
		{"", []string{"#dogs"}, "#dogs"},
		{"Adopt Max\n\n", []string{"#dogs"}, "Adopt Max\n\n#dogs"},
	}
	for _, tt := range tests {
		if got := Compose(tt.content, tt.hashtags); got != tt.want {
			t.Errorf("Compose(%q, %v) = %q, want %q", tt.content, tt.hashtags, got, tt.want)
		}
	}
}

func TestFormatInlineEscapes(t *testing.T) {
	got := FormatInline(`<script>alert("x")</script>`)
	if strings.Contains(got, "<script>") {
		t.Errorf("FormatInline did not escape: %q", got)
	}
}

func TestFormatInlineLinksAndHashtags(t *testing.T) {
	got := FormatInline("Visit https://example.org/adopt today #adopt")
	if !strings.Contains(got, `<a href="https://example.org/adopt" target="_blank" rel="noopener noreferrer">https://example.org/adopt</a>`) {
		t.Errorf("missing link: %q", got)
	}
	if !strings.Contains(got, `<span class="hashtag">#adopt</span>`) {
		t.Errorf("missing hashtag span: %q", got)
	}
}

func TestFormatInlineDoesNotTouchLinkBodies(t *testing.T) {
	got := FormatInline("https://example.org/#frag")
	if strings.Contains(got, "hashtag") {
		t.Errorf("hashtag inside URL should not be formatted: %q", got)
	}
}

func TestFormatInlineEmphasis(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"**urgent** foster needed", "<strong>urgent</strong> foster needed"},
		{"a _very_ good boy", "a <em>very</em> good boy"},
		{"snake_case_name", "snake_case_name"},
	}
	for _, tt := range tests {
		if got := FormatInline(tt.in); got != tt.want {
			t.Errorf("FormatInline(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderParagraphs(t *testing.T) {
	var buf bytes.Buffer
	if err := Render("Line one\nLine two\n\nSecond para").Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	want := "<p>Line one<br/>Line two</p><p>Second para</p>"
	if buf.String() != want {
		t.Errorf("Render = %q, want %q", buf.String(), want)
	}
}

func TestSafeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://example.org", "https://example.org"},
		{"/o/paws/", "/o/paws/"},
		{"//evil.example", ""},
		{"javascript:alert(1)", ""},
		{"mailto:hi@example.org", "mailto:hi@example.org"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SafeURL(tt.in); got != tt.want {
			t.Errorf("SafeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

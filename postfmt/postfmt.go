// Package postfmt knows the shape of a social post: per-platform length
// limits, hashtag handling and rendering post text as safe HTML.
package postfmt

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/eringen/rescuepost/publisher"
)

// Character limits per platform.
var limits = map[publisher.Platform]int{
	publisher.Twitter:   280,
	publisher.Instagram: 2200,
	publisher.LinkedIn:  3000,
	publisher.Facebook:  63206,
}

// Limit returns the maximum post length for p, or 0 if p is unknown.
func Limit(p publisher.Platform) int {
	return limits[p]
}

// StrictestLimit returns the smallest limit among platforms, or 0 for none.
func StrictestLimit(platforms []publisher.Platform) int {
	min := 0
	for _, p := range platforms {
		if l := Limit(p); l > 0 && (min == 0 || l < min) {
			min = l
		}
	}
	return min
}

// ErrEmptyContent is returned by Validate for blank posts.
var ErrEmptyContent = errors.New("post content is empty")

// LengthError reports a post that does not fit a platform.
type LengthError struct {
	Platform publisher.Platform
	Length   int
	Limit    int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("post is %d characters, %s allows %d", e.Length, e.Platform, e.Limit)
}

// Length counts characters the way platforms do: runes of the composed post.
func Length(content string, hashtags []string) int {
	return utf8.RuneCountInString(Compose(content, hashtags))
}

// Validate checks that the composed post is non-empty and fits every platform.
// Platforms are checked in ascending limit order so the first error is the
// most restrictive one.
func Validate(content string, hashtags []string, platforms []publisher.Platform) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	n := Length(content, hashtags)
	sorted := append([]publisher.Platform(nil), platforms...)
	sort.SliceStable(sorted, func(i, j int) bool { return Limit(sorted[i]) < Limit(sorted[j]) })
	for _, p := range sorted {
		if l := Limit(p); l > 0 && n > l {
			return &LengthError{Platform: p, Length: n, Limit: l}
		}
	}
	return nil
}

// Truncate shortens s to at most max runes, ending with an ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	if max == 1 {
		return "…"
	}
	return strings.TrimRight(string(r[:max-1]), " ") + "…"
}

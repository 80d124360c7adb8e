// Package publisher sends posts to social platforms.
//
// The Publisher interface is what the publishing pipeline calls once per
// platform for every publish attempt. Simulated is the implementation shipped
// with rescuepost: it never talks to a real platform and fails a configurable
// fraction of attempts so the retry path gets exercised.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Platform identifies a social network a post can be published to.
type Platform string

const (
	Facebook  Platform = "facebook"
	Instagram Platform = "instagram"
	Twitter   Platform = "twitter"
	LinkedIn  Platform = "linkedin"
)

var allPlatforms = []Platform{Facebook, Instagram, Twitter, LinkedIn}

// Platforms returns every supported platform in display order.
func Platforms() []Platform {
	out := make([]Platform, len(allPlatforms))
	copy(out, allPlatforms)
	return out
}

// ErrUnknownPlatform is returned by ParsePlatform for unsupported names.
var ErrUnknownPlatform = errors.New("unknown platform")

// ErrPublishFailed is wrapped by every error a Publisher returns when the
// platform rejected or dropped the post.
var ErrPublishFailed = errors.New("publish failed")

// ParsePlatform converts a user-supplied name ("Twitter", " x ") to a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "facebook", "fb":
		return Facebook, nil
	case "instagram", "ig":
		return Instagram, nil
	case "twitter", "x":
		return Twitter, nil
	case "linkedin":
		return LinkedIn, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
}

// ParsePlatforms parses a list of names, dropping blanks and duplicates.
func ParsePlatforms(names []string) ([]Platform, error) {
	seen := make(map[Platform]struct{}, len(names))
	var out []Platform
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		p, err := ParsePlatform(n)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// Request is a single platform publish.
type Request struct {
	PostID    string
	OrgID     string
	Platform  Platform
	Content   string
	MediaURLs []string
}

// Result describes a successful publish.
type Result struct {
	Platform    Platform
	ExternalID  string
	PublishedAt time.Time
}

// Publisher publishes one post to one platform.
type Publisher interface {
	Publish(ctx context.Context, req Request) (Result, error)
}

// Func adapts a function to the Publisher interface.
type Func func(ctx context.Context, req Request) (Result, error)

// Publish calls f.
func (f Func) Publish(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

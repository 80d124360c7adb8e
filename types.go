package rescuepost

import (
	"fmt"
	"strings"
	"time"

	"github.com/eringen/rescuepost/postfmt"
	"github.com/eringen/rescuepost/publisher"
)

// PostStatus is the lifecycle state of a Post.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusScheduled PostStatus = "scheduled"
	StatusPublished PostStatus = "published"
	StatusFailed    PostStatus = "failed"
)

// Statuses lists every PostStatus in lifecycle order.
var Statuses = []PostStatus{StatusDraft, StatusScheduled, StatusPublished, StatusFailed}

// ParseStatus parses a status name. The empty string is accepted and means
// "any status" in filters.
func ParseStatus(s string) (PostStatus, error) {
	st := PostStatus(strings.ToLower(strings.TrimSpace(s)))
	if st == "" {
		return "", nil
	}
	for _, v := range Statuses {
		if v == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

// Post is a social media post owned by an organization.
type Post struct {
	ID          string                        `json:"id"`
	OrgID       string                        `json:"org_id"`
	Title       string                        `json:"title,omitempty"`
	Content     string                        `json:"content"`
	Platforms   []publisher.Platform          `json:"platforms"`
	Hashtags    []string                      `json:"hashtags"`
	MediaURLs   []string                      `json:"media_urls"`
	Status      PostStatus                    `json:"status"`
	ScheduledAt time.Time                     `json:"scheduled_at,omitzero"`
	PublishedAt time.Time                     `json:"published_at,omitzero"`
	Error       string                        `json:"error,omitempty"`
	RetryCount  int                           `json:"retry_count"`
	Recurrence  string                        `json:"recurrence,omitempty"`
	AIGenerated bool                          `json:"ai_generated"`
	ExternalIDs map[publisher.Platform]string `json:"external_ids,omitempty"`
	CreatedAt   time.Time                     `json:"created_at"`
	UpdatedAt   time.Time                     `json:"updated_at"`
}

// FullText is the content with hashtags appended, as sent to platforms.
func (p Post) FullText() string {
	return postfmt.Compose(p.Content, p.Hashtags)
}

// Link is the public permalink path of a published post.
func (p Post) Link() string {
	return "/o/" + p.OrgID + "/#post-" + p.ID
}

// Organization is a rescue organization. Posts are always scoped by one.
type Organization struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description"`
	URL         string    `json:"url,omitempty" yaml:"url"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// Media is an uploaded image attachable to posts.
type Media struct {
	Filename     string    `json:"filename"`
	OrgID        string    `json:"org_id"`
	OriginalName string    `json:"original_name"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Size         int       `json:"size"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// URL is the public path of the media file.
func (m Media) URL() string {
	return "/public/" + uploadsSubdir + "/" + m.Filename
}

// PostFilter narrows ListPosts. Zero fields match everything.
type PostFilter struct {
	Status   PostStatus
	Platform publisher.Platform
}

// StatusCounts holds the number of posts per status.
type StatusCounts map[PostStatus]int

// Total is the sum over all statuses.
func (c StatusCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}

package rescuepost

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/eringen/rescuepost/publisher"
)

// Slugify converts a name to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// FilterEmpty trims each string and drops the empty ones.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SplitTags splits user input like "#dogs, cats adopt" on commas and spaces.
func SplitTags(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t' || r == '\r'
	})
}

// SplitLines splits a textarea value into its non-empty lines.
func SplitLines(s string) []string {
	return FilterEmpty(strings.Split(s, "\n"))
}

// JoinTags joins tags with a space, the way they are typed in the editor.
func JoinTags(tags []string) string {
	return strings.Join(tags, " ")
}

// JoinPlatforms joins platform names with ", ".
func JoinPlatforms(ps []publisher.Platform) string {
	return strings.Join(platformsToStrings(ps), ", ")
}

// PathEscape escapes a string for use in a URL path.
func PathEscape(s string) string {
	return url.PathEscape(s)
}

// Excerpt shortens s to at most n runes on a word boundary, adding "…".
func Excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " .,;:") + "…"
}

// FormatLocal formats t for the admin UI; the zero time renders as "".
func FormatLocal(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("Jan 2, 2006 15:04")
}

// datetimeLocalLayout is the value format of <input type="datetime-local">.
const datetimeLocalLayout = "2006-01-02T15:04"

// FormatDatetimeLocal formats t as a datetime-local input value.
func FormatDatetimeLocal(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(datetimeLocalLayout)
}

// ParseScheduleTime accepts RFC 3339 or a datetime-local value in the
// server's time zone. An empty string returns the zero time.
func ParseScheduleTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(datetimeLocalLayout, s, time.Local)
}

// WebsiteJsonLD returns a JSON-LD string for a WebSite schema.
func WebsiteJsonLD(cfg Config) string {
	data := map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "WebSite",
		"name":        cfg.Name,
		"url":         BuildURL(cfg.URL),
		"description": cfg.Description,
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// OrganizationJsonLD returns a JSON-LD string for an animal shelter's feed page.
func OrganizationJsonLD(org Organization, cfg Config) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "AnimalShelter",
		"name":     org.Name,
		"url":      BuildURL(cfg.URL, "o", org.ID),
	}
	if org.Description != "" {
		data["description"] = org.Description
	}
	if org.URL != "" {
		data["sameAs"] = org.URL
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

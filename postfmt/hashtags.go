package postfmt

import (
	"regexp"
	"strings"
)

var (
	reHashtag = regexp.MustCompile(`(^|[^\w&#])#(\w+)`)
	reTagBody = regexp.MustCompile(`^\w+$`)
)

// ExtractHashtags returns the hashtags that appear in content, in order of
// first appearance, deduplicated case-insensitively.
func ExtractHashtags(content string) []string {
	var tags []string
	for _, m := range reHashtag.FindAllStringSubmatch(content, -1) {
		tags = append(tags, "#"+m[2])
	}
	return NormalizeHashtags(tags)
}

// NormalizeHashtags trims, adds a leading '#', strips inner spaces and
// drops empty, invalid and duplicate tags (case-insensitive, first kept).
func NormalizeHashtags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		t = strings.TrimLeft(t, "#")
		t = strings.Join(strings.Fields(t), "")
		if t == "" || !reTagBody.MatchString(t) {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, "#"+t)
	}
	return out
}

// ValidHashtag reports whether tag is a single well-formed "#word".
func ValidHashtag(tag string) bool {
	return strings.HasPrefix(tag, "#") && reTagBody.MatchString(tag[1:])
}

// Compose appends hashtags that content does not already contain, separated
// from the body by a blank line.
func Compose(content string, hashtags []string) string {
	content = strings.TrimRight(content, " \n\t")
	present := make(map[string]struct{})
	for _, t := range ExtractHashtags(content) {
		present[strings.ToLower(t)] = struct{}{}
	}
	var missing []string
	for _, t := range NormalizeHashtags(hashtags) {
		if _, ok := present[strings.ToLower(t)]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return content
	}
	if content == "" {
		return strings.Join(missing, " ")
	}
	return content + "\n\n" + strings.Join(missing, " ")
}

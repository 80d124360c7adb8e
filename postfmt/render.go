package postfmt

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/a-h/templ"
)

var (
	reBold   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reItalic = regexp.MustCompile(`(^|[\s(])_([^_]+)_`)
	reURL    = regexp.MustCompile(`https?://[^\s<]+[^\s<.,:;!?)"']`)
)

// Render returns a templ.Component that writes content as HTML paragraphs.
func Render(content string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		RenderHTML(&buf, content)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// RenderHTML writes content to buf. Blank lines separate paragraphs, single
// newlines become <br>. Text is escaped before any markup is added.
func RenderHTML(buf *bytes.Buffer, content string) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i := range lines {
			lines[i] = FormatInline(lines[i])
		}
		buf.WriteString("<p>")
		buf.WriteString(strings.Join(lines, "<br/>"))
		buf.WriteString("</p>")
	}
}

// FormatInline escapes s and adds links for URLs and hashtags plus
// **bold** and _italic_ emphasis.
func FormatInline(s string) string {
	escaped := html.EscapeString(s)
	escaped = reURL.ReplaceAllStringFunc(escaped, func(m string) string {
		href := SafeURL(m)
		if href == "" {
			return m
		}
		return `<a href="` + href + `" target="_blank" rel="noopener noreferrer">` + m + `</a>`
	})
	escaped = ApplyOutsideTags(escaped, func(seg string) string {
		seg = reHashtag.ReplaceAllStringFunc(seg, func(m string) string {
			sub := reHashtag.FindStringSubmatch(m)
			return sub[1] + `<span class="hashtag">#` + sub[2] + `</span>`
		})
		seg = reBold.ReplaceAllString(seg, "<strong>$1</strong>")
		seg = reItalic.ReplaceAllString(seg, "$1<em>$2</em>")
		return seg
	})
	return escaped
}

// ApplyOutsideTags applies fn only to text outside HTML tags and outside
// <a>…</a> bodies, so formatting never touches generated links.
func ApplyOutsideTags(s string, fn func(string) string) string {
	var buf strings.Builder
	inAnchor := false
	for len(s) > 0 {
		lt := strings.Index(s, "<")
		if lt < 0 {
			if inAnchor {
				buf.WriteString(s)
			} else {
				buf.WriteString(fn(s))
			}
			break
		}
		if lt > 0 {
			if inAnchor {
				buf.WriteString(s[:lt])
			} else {
				buf.WriteString(fn(s[:lt]))
			}
		}
		gt := strings.Index(s[lt:], ">")
		if gt < 0 {
			buf.WriteString(s[lt:])
			break
		}
		tag := s[lt : lt+gt+1]
		switch {
		case strings.HasPrefix(tag, "<a "):
			inAnchor = true
		case tag == "</a>":
			inAnchor = false
		}
		buf.WriteString(tag)
		s = s[lt+gt+1:]
	}
	return buf.String()
}

// SafeURL validates a URL for an href attribute. Only http, https, mailto and
// tel schemes and site-relative paths are allowed; anything else yields "".
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") && !strings.HasPrefix(val, "//") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}

// Package views is the default set of pages for rescuepost. Every page is a
// templ.Component, so it plugs into rescuepost.ViewFuncs next to any
// generated templ component.
package views

import (
	"context"
	"encoding/json"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/eringen/rescuepost"
)

// Funcs returns the default ViewFuncs.
func Funcs() rescuepost.ViewFuncs {
	return rescuepost.ViewFuncs{
		Index:          Index,
		OrgFeed:        OrgFeed,
		AdminLogin:     AdminLogin,
		AdminDashboard: AdminDashboard,
		AdminEditor:    AdminEditor,
		AdminMedia:     AdminMedia,
		NotFound:       NotFound,
		ServerError:    ServerError,
	}
}

// markup writes HTML and keeps the first write error. Text and attribute
// values go through templ's escaping, URLs through templ.URL.
type markup struct {
	ctx context.Context
	w   io.Writer
	err error
}

// component adapts a markup writer to templ.Component.
func component(fn func(m *markup)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		m := &markup{ctx: ctx, w: w}
		fn(m)
		return m.err
	})
}

func (m *markup) raw(ss ...string) {
	for _, s := range ss {
		if m.err != nil {
			return
		}
		_, m.err = io.WriteString(m.w, s)
	}
}

func (m *markup) text(s string) {
	m.raw(templ.EscapeString(s))
}

func (m *markup) num(n int) {
	m.raw(strconv.Itoa(n))
}

func (m *markup) url(s string) {
	m.text(string(templ.URL(s)))
}

// attr writes ` name="value"`.
func (m *markup) attr(name, value string) {
	m.raw(" ", name, `="`)
	m.text(value)
	m.raw(`"`)
}

// flag writes a boolean attribute when on is set.
func (m *markup) flag(name string, on bool) {
	if on {
		m.raw(" ", name)
	}
}

func (m *markup) render(c templ.Component) {
	if m.err != nil {
		return
	}
	m.err = c.Render(m.ctx, m.w)
}

// csrfField is the hidden token input every admin form carries.
func (m *markup) csrfField(token string) {
	m.raw(`<input type="hidden" name="_csrf"`)
	m.attr("value", token)
	m.raw(">")
}

// head is the data of the shared page header.
type head struct {
	rescuepost.PageMeta
	SiteName string
	CSRF     string
	FeedURL  string
	JSONLD   string
	Admin    bool
}

// layout renders body between the shared header and footer.
func layout(h head, body templ.Component) templ.Component {
	return component(func(m *markup) {
		m.raw("<!doctype html>\n<html lang=\"en\">\n<head>\n",
			`<meta charset="utf-8">`, "\n",
			`<meta name="viewport" content="width=device-width, initial-scale=1">`, "\n",
			"<title>")
		m.text(h.Title)
		m.raw("</title>\n")
		if h.Description != "" {
			m.raw(`<meta name="description"`)
			m.attr("content", h.Description)
			m.raw(">\n", `<meta property="og:description"`)
			m.attr("content", h.Description)
			m.raw(">\n")
		}
		if h.URL != "" {
			m.raw(`<link rel="canonical" href="`)
			m.url(h.URL)
			m.raw(`">`, "\n", `<meta property="og:url"`)
			m.attr("content", h.URL)
			m.raw(">\n")
		}
		m.raw(`<meta property="og:title"`)
		m.attr("content", h.Title)
		m.raw(">\n")
		if h.OGType != "" {
			m.raw(`<meta property="og:type"`)
			m.attr("content", h.OGType)
			m.raw(">\n")
		}
		if h.SiteName != "" {
			m.raw(`<meta property="og:site_name"`)
			m.attr("content", h.SiteName)
			m.raw(">\n")
		}
		if h.CSRF != "" {
			m.raw(`<meta name="csrf-token"`)
			m.attr("content", h.CSRF)
			m.raw(">\n")
		}
		if h.FeedURL != "" {
			m.raw(`<link rel="alternate" type="application/rss+xml" title="RSS" href="`)
			m.url(h.FeedURL)
			m.raw("\">\n")
		}
		if h.JSONLD != "" {
			m.render(templ.JSONScript("", json.RawMessage(h.JSONLD)).WithType("application/ld+json"))
		}
		m.raw(`<link rel="icon" href="/favicon.svg" type="image/svg+xml">`, "\n",
			`<link rel="stylesheet" href="/public/style.css">`, "\n",
			"</head>\n<body>\n")
		m.render(body)
		if h.Admin {
			m.raw(`<script src="/public/dashboard.js"></script>`, "\n")
		}
		m.raw("</body>\n</html>\n")
	})
}

// NotFound is the 404 page.
func NotFound() templ.Component {
	return layout(head{PageMeta: rescuepost.PageMeta{Title: "Not found"}}, component(func(m *markup) {
		m.raw("<main>\n<h1>Page not found</h1>\n",
			`<p><a href="/">Back to the start</a></p>`, "\n</main>\n")
	}))
}

// ServerError is the 500 page.
func ServerError() templ.Component {
	return layout(head{PageMeta: rescuepost.PageMeta{Title: "Something went wrong"}}, component(func(m *markup) {
		m.raw("<main>\n<h1>Something went wrong</h1>\n",
			"<p>Please try again in a moment.</p>\n</main>\n")
	}))
}

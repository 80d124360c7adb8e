package views

import (
	"github.com/a-h/templ"

	"github.com/eringen/rescuepost"
	"github.com/eringen/rescuepost/postfmt"
)

// Index lists the organizations with a public feed.
func Index(orgs []rescuepost.Organization, cfg rescuepost.Config) templ.Component {
	h := head{
		PageMeta: rescuepost.PageMeta{
			Title:       cfg.Name,
			Description: cfg.Description,
			URL:         rescuepost.BuildURL(cfg.URL),
			OGType:      "website",
		},
		SiteName: cfg.Name,
		JSONLD:   rescuepost.WebsiteJsonLD(cfg),
	}
	return layout(h, component(func(m *markup) {
		m.raw(`<header class="site"><h1>`)
		m.text(cfg.Name)
		m.raw("</h1></header>\n<main>\n")
		if cfg.Description != "" {
			m.raw("<p>")
			m.text(cfg.Description)
			m.raw("</p>\n")
		}
		m.raw(`<ul class="orgs">`, "\n")
		for _, o := range orgs {
			m.raw(`<li><h2><a href="`)
			m.url("/o/" + rescuepost.PathEscape(o.ID) + "/")
			m.raw(`">`)
			m.text(o.Name)
			m.raw("</a></h2>")
			if o.Description != "" {
				m.raw("<p>")
				m.text(o.Description)
				m.raw("</p>")
			}
			if o.URL != "" {
				m.raw(`<p><a href="`)
				m.url(o.URL)
				m.raw(`" rel="noopener">`)
				m.text(o.URL)
				m.raw("</a></p>")
			}
			m.raw("</li>\n")
		}
		if len(orgs) == 0 {
			m.raw("<li>No organizations yet.</li>\n")
		}
		m.raw("</ul>\n</main>\n")
	}))
}

// OrgFeed shows an organization's published posts.
func OrgFeed(org rescuepost.Organization, posts []rescuepost.Post, cfg rescuepost.Config) templ.Component {
	feedURL := rescuepost.BuildURL(cfg.URL, "o", org.ID)
	h := head{
		PageMeta: rescuepost.PageMeta{
			Title:       org.Name + " | " + cfg.Name,
			Description: org.Description,
			URL:         feedURL,
			OGType:      "website",
		},
		SiteName: cfg.Name,
		FeedURL:  feedURL + "feed.xml",
		JSONLD:   rescuepost.OrganizationJsonLD(org, cfg),
	}
	return layout(h, component(func(m *markup) {
		m.raw(`<header class="site"><h1>`)
		m.text(org.Name)
		m.raw(`</h1> <a href="`)
		m.url("/o/" + rescuepost.PathEscape(org.ID) + "/feed.xml")
		m.raw("\">RSS</a></header>\n<main>\n")
		if org.Description != "" {
			m.raw("<p>")
			m.text(org.Description)
			m.raw("</p>\n")
		}
		m.raw(`<ul class="feed">`, "\n")
		for _, p := range posts {
			m.render(feedItem(p))
		}
		if len(posts) == 0 {
			m.raw("<li>Nothing published yet.</li>\n")
		}
		m.raw("</ul>\n</main>\n")
	}))
}

func feedItem(p rescuepost.Post) templ.Component {
	return component(func(m *markup) {
		m.raw("<li")
		m.attr("id", "post-"+p.ID)
		m.raw(">")
		if p.Title != "" {
			m.raw("<h2>")
			m.text(p.Title)
			m.raw("</h2>")
		}
		m.render(postfmt.Render(p.Content))
		for _, u := range p.MediaURLs {
			m.raw(`<img src="`)
			m.url(u)
			m.raw(`" alt="" loading="lazy">`)
		}
		if len(p.Hashtags) > 0 {
			m.raw("<p>")
			for _, tag := range p.Hashtags {
				m.raw(`<span class="tag">`)
				m.text(tag)
				m.raw("</span> ")
			}
			m.raw("</p>")
		}
		m.raw(`<p class="meta">Posted `)
		m.text(rescuepost.FormatLocal(p.PublishedAt))
		m.raw(" on ")
		m.text(rescuepost.JoinPlatforms(p.Platforms))
		m.raw("</p></li>\n")
	})
}

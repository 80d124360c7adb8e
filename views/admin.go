package views

import (
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/rescuepost"
	"github.com/eringen/rescuepost/publisher"
)

// orgQuery is the ?org= suffix of admin links.
func orgQuery(org string) string {
	return "?org=" + url.QueryEscape(org)
}

// AdminLogin is the password form.
func AdminLogin(showError bool, csrfToken string) templ.Component {
	h := head{PageMeta: rescuepost.PageMeta{Title: "Sign in"}, CSRF: csrfToken, Admin: true}
	return layout(h, component(func(m *markup) {
		m.raw("<main>\n<h1>Sign in</h1>\n")
		if showError {
			m.raw(`<p class="message">Wrong password.</p>`, "\n")
		}
		m.raw(`<form method="post" action="/admin/login/">`)
		m.csrfField(csrfToken)
		m.raw(`<label for="password">Password</label>`,
			`<input id="password" type="password" name="password" autofocus required>`,
			`<button class="primary" type="submit">Sign in</button>`,
			"</form>\n</main>\n")
	}))
}

// AdminDashboard lists an organization's posts with their lifecycle actions.
func AdminDashboard(d rescuepost.DashboardData) templ.Component {
	h := head{PageMeta: rescuepost.PageMeta{Title: "Dashboard | " + d.Org.Name}, CSRF: d.CSRFToken, Admin: true}
	return layout(h, component(func(m *markup) {
		m.render(dashboardHeader(d))
		m.raw("<main>\n")
		if d.Message != "" {
			m.raw(`<p class="message">`)
			m.text(d.Message)
			m.raw("</p>\n")
		}
		if len(d.Orgs) == 0 {
			m.raw("<p>No organizations configured. Add one with <code>rescuepost orgs add</code>.</p>\n</main>\n")
			return
		}

		m.raw(`<div class="counts">`)
		for _, s := range rescuepost.Statuses {
			m.raw("<div><strong>")
			m.num(d.Counts[s])
			m.raw("</strong><span")
			m.attr("class", StatusClass(s))
			m.raw(">")
			m.text(string(s))
			m.raw("</span></div>")
		}
		m.raw("</div>\n")

		if len(d.Upcoming) > 0 {
			m.raw("<h2>Up next</h2>\n<ul>\n")
			for _, p := range d.Upcoming {
				m.raw("<li>")
				m.text(rescuepost.FormatLocal(p.ScheduledAt))
				m.raw(": ")
				m.text(rescuepost.Excerpt(p.Content, 80))
				if p.Recurrence != "" {
					m.raw(" <em>(repeats ")
					m.text(p.Recurrence)
					m.raw(")</em>")
				}
				m.raw("</li>\n")
			}
			m.raw("</ul>\n")
		}

		m.render(dashboardFilter(d))

		m.raw(`<table class="posts">`, "\n",
			"<thead><tr><th>Post</th><th>Platforms</th><th>Status</th><th>When</th><th></th></tr></thead>\n<tbody>\n")
		for _, p := range d.Posts {
			m.render(postRow(p, d.CSRFToken))
		}
		if len(d.Posts) == 0 {
			m.raw(`<tr><td colspan="5">No posts match.</td></tr>`, "\n")
		}
		m.raw("</tbody>\n</table>\n</main>\n")
	}))
}

func dashboardHeader(d rescuepost.DashboardData) templ.Component {
	return component(func(m *markup) {
		q := orgQuery(d.Org.ID)
		m.raw(`<header class="site">`, "\n<h1>Posts</h1>\n",
			`<form method="get" action="/admin/"><select name="org" onchange="this.form.submit()">`)
		for _, o := range d.Orgs {
			m.raw("<option")
			m.attr("value", o.ID)
			m.flag("selected", o.ID == d.Org.ID)
			m.raw(">")
			m.text(o.Name)
			m.raw("</option>")
		}
		m.raw("</select></form>\n<nav>")
		for _, link := range []struct{ href, label string }{
			{"/admin/post/new/" + q, "New post"},
			{"/admin/media/" + q, "Media"},
			{"/admin/analytics/api/stats" + q, "Stats"},
			{"/o/" + rescuepost.PathEscape(d.Org.ID) + "/", "Public feed"},
		} {
			m.raw(` <a href="`)
			m.url(link.href)
			m.raw(`">`)
			m.text(link.label)
			m.raw("</a>")
		}
		m.raw("</nav>\n", `<form method="post" action="/admin/logout/">`)
		m.csrfField(d.CSRFToken)
		m.raw(`<button type="submit">Sign out</button></form>`, "\n</header>\n")
	})
}

func dashboardFilter(d rescuepost.DashboardData) templ.Component {
	return component(func(m *markup) {
		m.raw(`<form method="get" action="/admin/">`, `<input type="hidden" name="org"`)
		m.attr("value", d.Org.ID)
		m.raw(">", `<select name="status"><option value="">All statuses</option>`)
		for _, s := range rescuepost.Statuses {
			m.raw("<option")
			m.attr("value", string(s))
			m.flag("selected", s == d.Filter.Status)
			m.raw(">")
			m.text(string(s))
			m.raw("</option>")
		}
		m.raw("</select>", `<select name="platform"><option value="">All platforms</option>`)
		for _, p := range publisher.Platforms() {
			m.raw("<option")
			m.attr("value", string(p))
			m.flag("selected", p == d.Filter.Platform)
			m.raw(">")
			m.text(PlatformLabel(p))
			m.raw("</option>")
		}
		m.raw("</select>", `<button type="submit">Filter</button></form>`, "\n")
	})
}

// postAction is a one-button form posting to /admin/post/{id}/{action}/.
func postAction(m *markup, id, action, csrf, label string) {
	m.raw(`<form method="post" action="`)
	m.url("/admin/post/" + rescuepost.PathEscape(id) + "/" + action + "/")
	m.raw(`">`)
	m.csrfField(csrf)
	m.raw(`<button type="submit">`)
	m.text(label)
	m.raw("</button></form>")
}

func postRow(p rescuepost.Post, csrf string) templ.Component {
	return component(func(m *markup) {
		postPath := "/admin/post/" + rescuepost.PathEscape(p.ID) + "/"
		m.raw(`<tr><td><a href="`)
		m.url(postPath)
		m.raw(`">`)
		if p.Title != "" {
			m.text(p.Title)
		} else {
			m.text(rescuepost.Excerpt(p.Content, 60))
		}
		m.raw("</a>")
		if p.AIGenerated {
			m.raw(` <span class="pill">AI</span>`)
		}
		if p.Error != "" {
			m.raw(`<div class="error">`)
			m.text(p.Error)
			m.raw("</div>")
		}
		m.raw("</td><td>")
		m.text(rescuepost.JoinPlatforms(p.Platforms))
		m.raw("</td><td><span")
		m.attr("class", StatusClass(p.Status))
		m.raw(">")
		m.text(string(p.Status))
		m.raw("</span>")
		if p.RetryCount > 0 {
			m.raw(" (")
			m.num(p.RetryCount)
			m.raw(" failed)")
		}
		m.raw("</td><td>")
		if p.Status == rescuepost.StatusPublished {
			m.text(rescuepost.FormatLocal(p.PublishedAt))
		} else {
			m.text(rescuepost.FormatLocal(p.ScheduledAt))
		}
		m.raw(`</td><td class="actions">`)
		if p.Status != rescuepost.StatusPublished {
			postAction(m, p.ID, "publish", csrf, "Publish now")
			m.raw(`<form method="post" action="`)
			m.url(postPath + "schedule/")
			m.raw(`">`)
			m.csrfField(csrf)
			m.raw(`<input type="datetime-local" name="scheduled_at"`)
			m.attr("value", rescuepost.FormatDatetimeLocal(p.ScheduledAt))
			m.raw(` required><button type="submit">Schedule</button></form>`)
		}
		if p.Status == rescuepost.StatusScheduled {
			postAction(m, p.ID, "unschedule", csrf, "Unschedule")
		}
		postAction(m, p.ID, "duplicate", csrf, "Duplicate")
		m.raw(`<form method="post" action="`)
		m.url(postPath)
		m.raw(`">`)
		m.csrfField(csrf)
		m.raw(`<input type="hidden" name="_method" value="DELETE">`,
			`<button type="submit" data-confirm="Delete this post?">Delete</button></form>`,
			"</td></tr>\n")
	})
}

// AdminEditor is the create/edit form for a post.
func AdminEditor(d rescuepost.PostFormData) templ.Component {
	title := "New post"
	if d.Post.ID != "" {
		title = "Edit post"
	}
	h := head{PageMeta: rescuepost.PageMeta{Title: title}, CSRF: d.CSRFToken, Admin: true}
	return layout(h, component(func(m *markup) {
		p := d.Post
		m.raw(`<header class="site"><h1>`)
		m.text(title)
		m.raw(`</h1> <a href="`)
		m.url("/admin/" + orgQuery(d.OrgID))
		m.raw("\">Back</a></header>\n<main>\n")
		if p.Error != "" {
			m.raw(`<p class="message">Last attempt failed: `)
			m.text(p.Error)
			m.raw("</p>\n")
		}
		m.raw(`<form class="editor" method="post" action="/admin/save/" data-post-form>`, "\n")
		m.csrfField(d.CSRFToken)
		m.raw(`<input type="hidden" name="id"`)
		m.attr("value", p.ID)
		m.raw(`><input type="hidden" name="org"`)
		m.attr("value", d.OrgID)
		m.raw(">\n")
		if d.AIEnabled {
			m.raw(aiFieldset)
		}
		m.raw(`<label for="title">Label (internal)</label><input id="title" type="text" name="title"`)
		m.attr("value", p.Title)
		m.raw(">\n<label>Platforms</label>\n")
		for _, pl := range d.Platforms {
			m.raw(`<label><input type="checkbox" name="platforms"`)
			m.attr("value", string(pl))
			m.flag("checked", HasPlatform(p, pl))
			m.raw("> ")
			m.text(PlatformLabel(pl))
			m.raw("</label>\n")
		}
		m.raw(`<label for="content">Content</label><textarea id="content" name="content" required>`)
		m.text(p.Content)
		m.raw("</textarea><span data-char-count></span>\n",
			`<label for="hashtags">Hashtags</label><input id="hashtags" type="text" name="hashtags"`)
		m.attr("value", rescuepost.JoinTags(p.Hashtags))
		m.raw(` placeholder="#adoptdontshop #rescuedog">`, "\n",
			`<label for="media_urls">Media URLs (one per line)</label><textarea id="media_urls" name="media_urls">`)
		for _, u := range p.MediaURLs {
			m.text(u)
			m.raw("\n")
		}
		m.raw("</textarea>\n", `<label for="scheduled_at">Schedule for</label><input id="scheduled_at" type="datetime-local" name="scheduled_at"`)
		m.attr("value", rescuepost.FormatDatetimeLocal(p.ScheduledAt))
		m.raw(">\n", `<label for="recurrence">Repeat (cron, optional)</label><input id="recurrence" type="text" name="recurrence"`)
		m.attr("value", p.Recurrence)
		m.raw(` placeholder="0 10 * * 6">`, "\n", `<label><input type="checkbox" name="ai_generated" value="1"`)
		m.flag("checked", p.AIGenerated)
		m.raw("> AI generated</label>\n",
			`<p><button class="primary" type="submit">Save</button></p>`, "\n</form>\n</main>\n")
	}))
}

var aiFieldset = strings.Join([]string{
	"<fieldset>",
	"<legend>Draft with AI</legend>",
	`<label for="topic">Topic</label><input id="topic" type="text" name="topic" placeholder="Adoption event this weekend">`,
	`<label for="animal_name">Animal name</label><input id="animal_name" type="text" name="animal_name">`,
	`<label for="animal_type">Animal type</label><input id="animal_type" type="text" name="animal_type" placeholder="dog, cat, rabbit">`,
	`<label for="tone">Tone</label><select id="tone" name="tone">`,
	`<option value="warm">Warm</option><option value="urgent">Urgent</option>`,
	`<option value="playful">Playful</option><option value="informative">Informative</option>`,
	"</select>",
	`<label for="call_to_action">Call to action</label><input id="call_to_action" type="text" name="call_to_action" placeholder="Apply to adopt on our website">`,
	`<p><button type="button" data-generate>Draft with AI</button></p>`,
	"</fieldset>",
	"",
}, "\n")

// AdminMedia lists an organization's uploads with an upload form.
func AdminMedia(org string, media []rescuepost.Media, csrfToken string) templ.Component {
	h := head{PageMeta: rescuepost.PageMeta{Title: "Media"}, CSRF: csrfToken, Admin: true}
	return layout(h, component(func(m *markup) {
		m.raw(`<header class="site"><h1>Media</h1> <a href="`)
		m.url("/admin/" + orgQuery(org))
		m.raw("\">Back</a></header>\n<main>\n",
			`<form method="post" action="/admin/media/upload/" enctype="multipart/form-data">`)
		m.csrfField(csrfToken)
		m.raw(`<input type="hidden" name="org"`)
		m.attr("value", org)
		m.raw(`><input type="file" name="image" accept="image/*" required>`,
			`<button class="primary" type="submit">Upload</button></form>`, "\n",
			`<div class="media-grid">`, "\n")
		for _, md := range media {
			m.raw(`<figure><img src="`)
			m.url(md.URL())
			m.raw(`"`)
			m.attr("alt", md.OriginalName)
			m.raw(` loading="lazy"><figcaption>`)
			m.text(md.OriginalName)
			m.raw(" (")
			m.num(md.Width)
			m.raw("×")
			m.num(md.Height)
			m.raw(")<br><code>")
			m.text(md.URL())
			m.raw(`</code></figcaption><form method="post" action="`)
			m.url("/admin/media/" + rescuepost.PathEscape(md.Filename) + "/" + orgQuery(org))
			m.raw(`">`)
			m.csrfField(csrfToken)
			m.raw(`<input type="hidden" name="_method" value="DELETE">`,
				`<button type="submit" data-confirm="Delete this image?">Delete</button></form></figure>`, "\n")
		}
		if len(media) == 0 {
			m.raw("<p>No uploads yet.</p>\n")
		}
		m.raw("</div>\n</main>\n")
	}))
}

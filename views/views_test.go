package views

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/rescuepost"
	"github.com/eringen/rescuepost/publisher"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

var (
	testCfg  = rescuepost.Config{Name: "Rescue Posts", URL: "https://rescue.example"}
	testOrg  = rescuepost.Organization{ID: "happy-paws", Name: "Happy Paws", Description: "Dogs & cats"}
	testPost = rescuepost.Post{
		ID:          "p1",
		OrgID:       "happy-paws",
		Content:     "Meet Luna <3 https://example.org/luna",
		Platforms:   []publisher.Platform{publisher.Twitter, publisher.Instagram},
		Hashtags:    []string{"#adoptme"},
		Status:      rescuepost.StatusScheduled,
		ScheduledAt: time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC),
		Recurrence:  "0 10 * * 6",
	}
)

func TestPublicPages(t *testing.T) {
	out := render(t, Index([]rescuepost.Organization{testOrg}, testCfg))
	assert.Contains(t, out, `href="/o/happy-paws/"`)
	assert.Contains(t, out, "Dogs &amp; cats")
	assert.Contains(t, out, `<script type="application/ld+json">`)
	assert.Contains(t, out, `"@type":"WebSite"`)

	out = render(t, OrgFeed(testOrg, []rescuepost.Post{testPost}, testCfg))
	assert.Contains(t, out, "Meet Luna &lt;3")
	assert.Contains(t, out, `<a href="https://example.org/luna"`)
	assert.Contains(t, out, "https://rescue.example/o/happy-paws/feed.xml")
	assert.Contains(t, out, "AnimalShelter")

	out = render(t, OrgFeed(testOrg, nil, testCfg))
	assert.Contains(t, out, "Nothing published yet.")
}

func TestAdminDashboard(t *testing.T) {
	d := rescuepost.DashboardData{
		Orgs:      []rescuepost.Organization{testOrg},
		Org:       testOrg,
		Posts:     []rescuepost.Post{testPost},
		Counts:    rescuepost.StatusCounts{rescuepost.StatusScheduled: 1},
		Upcoming:  []rescuepost.Post{testPost},
		Filter:    rescuepost.PostFilter{Status: rescuepost.StatusScheduled},
		Message:   "saved",
		CSRFToken: "tok",
	}
	out := render(t, AdminDashboard(d))
	assert.Contains(t, out, `<p class="message">saved</p>`)
	assert.Contains(t, out, `action="/admin/post/p1/unschedule/"`)
	assert.Contains(t, out, `<option value="scheduled" selected>`)
	assert.Contains(t, out, "repeats 0 10 * * 6")
	assert.Contains(t, out, `<meta name="csrf-token" content="tok">`)
	assert.Contains(t, out, "/public/dashboard.js")

	out = render(t, AdminDashboard(rescuepost.DashboardData{}))
	assert.Contains(t, out, "No organizations configured.")
}

func TestAdminEditor(t *testing.T) {
	out := render(t, AdminEditor(rescuepost.PostFormData{
		Post:      testPost,
		OrgID:     "happy-paws",
		Platforms: publisher.Platforms(),
		CSRFToken: "tok",
		AIEnabled: true,
	}))
	assert.Contains(t, out, "Edit post")
	assert.Contains(t, out, `value="twitter" checked`)
	assert.NotContains(t, out, `value="facebook" checked`)
	assert.Contains(t, out, "data-generate")
	assert.Contains(t, out, "#adoptme")

	out = render(t, AdminEditor(rescuepost.PostFormData{OrgID: "happy-paws", Platforms: publisher.Platforms()}))
	assert.Contains(t, out, "New post")
	assert.NotContains(t, out, "data-generate")
}

func TestAdminMediaAndErrors(t *testing.T) {
	out := render(t, AdminMedia("happy-paws", []rescuepost.Media{{Filename: "happy-paws-luna.jpg", OriginalName: "luna.jpg", Width: 800, Height: 600}}, "tok"))
	assert.Contains(t, out, "/public/uploads/happy-paws-luna.jpg")
	assert.Contains(t, out, `action="/admin/media/happy-paws-luna.jpg/?org=happy-paws"`)

	assert.Contains(t, render(t, AdminLogin(true, "tok")), "Wrong password.")
	assert.Contains(t, render(t, NotFound()), "Page not found")
	assert.Contains(t, render(t, ServerError()), "Something went wrong")
}

func TestEscaping(t *testing.T) {
	org := rescuepost.Organization{
		ID:   "happy-paws",
		Name: `<script>alert("hi")</script>`,
		URL:  "javascript:alert(1)",
	}
	out := render(t, Index([]rescuepost.Organization{org}, testCfg))
	assert.NotContains(t, out, "<script>alert")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.NotContains(t, out, `href="javascript:`)
	assert.Contains(t, out, "about:invalid#TemplFailedSanitizationURL")

	p := testPost
	p.Title = `"><img src=x>`
	out = render(t, AdminEditor(rescuepost.PostFormData{Post: p, OrgID: "happy-paws", Platforms: publisher.Platforms()}))
	assert.Contains(t, out, `value="&#34;&gt;&lt;img src=x&gt;"`)
	assert.Contains(t, out, "Meet Luna &lt;3")
}

func TestRenderHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	assert.ErrorIs(t, NotFound().Render(ctx, &buf), context.Canceled)
	assert.Zero(t, buf.Len())
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "pill status-failed", StatusClass(rescuepost.StatusFailed))
	assert.Equal(t, "X / Twitter", PlatformLabel(publisher.Twitter))
	assert.True(t, HasPlatform(testPost, publisher.Instagram))
	assert.False(t, HasPlatform(testPost, publisher.LinkedIn))
}

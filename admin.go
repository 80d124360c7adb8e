package rescuepost

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/rescuepost/publisher"
)

// DashboardData is everything the admin dashboard shows for one organization.
type DashboardData struct {
	Orgs      []Organization
	Org       Organization
	Posts     []Post
	Counts    StatusCounts
	Upcoming  []Post
	Filter    PostFilter
	Message   string
	CSRFToken string
	AIEnabled bool
}

// PostFormData feeds the post editor.
type PostFormData struct {
	Post      Post
	OrgID     string
	Platforms []publisher.Platform
	CSRFToken string
	AIEnabled bool
}

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(false, CsrfToken(c)))
	}
	return a.renderAdminDashboard(c, c.QueryParam("org"), c.QueryParam("msg"))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1 {
		if err := setAdminSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	a.loginLimiter.Record(ip)
	a.Log.Warn("admin login failed", zap.String("ip", ip))
	return Render(c, a.Views.AdminLogin(true, CsrfToken(c)))
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

// handleAdminPost renders the editor for a post, or an empty editor when
// id is "new".
func (a *App) handleAdminPost(c echo.Context) error {
	data := PostFormData{
		OrgID:     c.QueryParam("org"),
		Platforms: publisher.Platforms(),
		CSRFToken: CsrfToken(c),
		AIEnabled: a.Generator != nil,
	}
	if id := c.Param("id"); id != "new" {
		post, err := a.Store.FindPost(c.Request().Context(), id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return c.NoContent(http.StatusNotFound)
			}
			return err
		}
		data.Post = post
		data.OrgID = post.OrgID
	}
	return Render(c, a.Views.AdminEditor(data))
}

// postFromForm reads the editor form.
func postFromForm(c echo.Context) (Post, error) {
	if err := c.Request().ParseForm(); err != nil {
		return Post{}, err
	}
	form := c.Request().Form
	platforms, err := publisher.ParsePlatforms(form["platforms"])
	if err != nil {
		return Post{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	at, err := ParseScheduleTime(form.Get("scheduled_at"))
	if err != nil {
		return Post{}, fmt.Errorf("%w: invalid schedule time", ErrValidation)
	}
	return Post{
		ID:          strings.TrimSpace(form.Get("id")),
		OrgID:       strings.TrimSpace(form.Get("org")),
		Title:       form.Get("title"),
		Content:     form.Get("content"),
		Platforms:   platforms,
		Hashtags:    SplitTags(form.Get("hashtags")),
		MediaURLs:   SplitLines(form.Get("media_urls")),
		Recurrence:  form.Get("recurrence"),
		ScheduledAt: at,
		AIGenerated: form.Get("ai_generated") != "",
	}, nil
}

func (a *App) handleAdminSave(c echo.Context) error {
	in, err := postFromForm(c)
	if err != nil {
		return a.adminResult(c, in.OrgID, err, "")
	}
	ctx := c.Request().Context()
	if in.ID == "" {
		_, err = a.Pipeline.CreatePost(ctx, in)
		return a.adminResult(c, in.OrgID, err, "created")
	}
	p, err := a.Pipeline.UpdatePost(ctx, in)
	if err != nil {
		return a.adminResult(c, in.OrgID, err, "")
	}
	if !in.ScheduledAt.IsZero() && !(p.Status == StatusScheduled && p.ScheduledAt.Equal(in.ScheduledAt)) {
		_, err = a.Pipeline.SchedulePost(ctx, p.OrgID, p.ID, in.ScheduledAt)
	}
	return a.adminResult(c, p.OrgID, err, "saved")
}

func (a *App) handleAdminDelete(c echo.Context) error {
	p, err := a.Store.FindPost(c.Request().Context(), c.Param("id"))
	if err != nil {
		return a.adminResult(c, c.QueryParam("org"), err, "")
	}
	err = a.Pipeline.DeletePost(c.Request().Context(), p.OrgID, p.ID)
	return a.adminResult(c, p.OrgID, err, "deleted")
}

// handleAdminAction runs one of the lifecycle actions on a post.
func (a *App) handleAdminAction(action string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		p, err := a.Store.FindPost(ctx, c.Param("id"))
		if err != nil {
			return a.adminResult(c, c.FormValue("org"), err, "")
		}
		var msg string
		switch action {
		case "duplicate":
			_, err = a.Pipeline.DuplicatePost(ctx, p.OrgID, p.ID)
			msg = "duplicated"
		case "schedule":
			at, perr := ParseScheduleTime(c.FormValue("scheduled_at"))
			switch {
			case perr != nil:
				err = fmt.Errorf("%w: invalid schedule time", ErrValidation)
			case at.IsZero():
				err = fmt.Errorf("%w: schedule time is required", ErrValidation)
			default:
				_, err = a.Pipeline.SchedulePost(ctx, p.OrgID, p.ID, at)
			}
			msg = "scheduled"
		case "unschedule":
			_, err = a.Pipeline.UnschedulePost(ctx, p.OrgID, p.ID)
			msg = "moved to drafts"
		case "publish":
			_, err = a.Pipeline.PublishNow(ctx, p.OrgID, p.ID)
			msg = "published"
		}
		return a.adminResult(c, p.OrgID, err, msg)
	}
}

func (a *App) handleAdminGenerate(c echo.Context) error {
	if err := c.Request().ParseForm(); err != nil {
		return err
	}
	form := c.Request().Form
	out, err := a.generatePost(c, form.Get("org"), generatePayload{
		Topic:        form.Get("topic"),
		AnimalName:   form.Get("animal_name"),
		AnimalType:   form.Get("animal_type"),
		Tone:         form.Get("tone"),
		CallToAction: form.Get("call_to_action"),
		Platforms:    form["platforms"],
	})
	if err != nil {
		return a.generateFail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// adminResult re-renders the dashboard after an action. Errors the user can
// act on are shown as the dashboard message; anything else is returned.
func (a *App) adminResult(c echo.Context, org string, err error, okMsg string) error {
	if err == nil {
		return a.renderAdminDashboard(c, org, okMsg)
	}
	if apiStatus(err) == http.StatusInternalServerError {
		return err
	}
	return a.renderAdminDashboard(c, org, err.Error())
}

func (a *App) dashboardData(ctx context.Context, orgID string, f PostFilter) (DashboardData, error) {
	orgs, err := a.Store.ListOrganizations(ctx)
	if err != nil {
		return DashboardData{}, err
	}
	d := DashboardData{Orgs: orgs, Filter: f, AIEnabled: a.Generator != nil}
	if len(orgs) == 0 {
		return d, nil
	}
	d.Org = orgs[0]
	for _, o := range orgs {
		if o.ID == orgID {
			d.Org = o
			break
		}
	}
	if d.Posts, err = a.Pipeline.ListPosts(ctx, d.Org.ID, f); err != nil {
		return DashboardData{}, err
	}
	if d.Counts, err = a.Pipeline.Stats(ctx, d.Org.ID); err != nil {
		return DashboardData{}, err
	}
	if d.Upcoming, err = a.Pipeline.Upcoming(ctx, d.Org.ID, 5); err != nil {
		return DashboardData{}, err
	}
	return d, nil
}

func (a *App) renderAdminDashboard(c echo.Context, org, msg string) error {
	var f PostFilter
	f.Status, _ = ParseStatus(c.QueryParam("status"))
	if name := c.QueryParam("platform"); name != "" {
		f.Platform, _ = publisher.ParsePlatform(name)
	}
	d, err := a.dashboardData(c.Request().Context(), org, f)
	if err != nil {
		return err
	}
	d.Message = msg
	d.CSRFToken = CsrfToken(c)
	return Render(c, a.Views.AdminDashboard(d))
}

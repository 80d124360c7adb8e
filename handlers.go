package rescuepost

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (a *App) handleIndex(c echo.Context) error {
	orgs, err := a.Cache.Organizations(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, a.Views.Index(orgs, a.Config))
}

func (a *App) handleOrgFeed(c echo.Context) error {
	ctx := c.Request().Context()
	org, err := a.Cache.Organization(ctx, c.Param("org"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		}
		return err
	}
	posts, err := a.Cache.Published(ctx, org.ID)
	if err != nil {
		return err
	}
	return Render(c, a.Views.OrgFeed(org, posts, a.Config))
}

func (a *App) handleOrgRSS(c echo.Context) error {
	ctx := c.Request().Context()
	org, err := a.Cache.Organization(ctx, c.Param("org"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.ErrNotFound
		}
		return err
	}
	posts, err := a.Cache.Published(ctx, org.ID)
	if err != nil {
		return err
	}
	return a.renderRSS(c, org, posts)
}

func (a *App) handleSitemap(c echo.Context) error {
	ctx := c.Request().Context()
	orgs, err := a.Cache.Organizations(ctx)
	if err != nil {
		return err
	}
	feeds := make([]orgFeed, 0, len(orgs))
	for _, o := range orgs {
		posts, err := a.Cache.Published(ctx, o.ID)
		if err != nil {
			return err
		}
		f := orgFeed{Org: o}
		if len(posts) > 0 {
			f.Last = posts[0].PublishedAt.Format("2006-01-02")
		}
		feeds = append(feeds, f)
	}
	return a.renderSitemap(c, feeds)
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

func (a *App) handleRobots(c echo.Context) error {
	var b strings.Builder
	b.WriteString("User-agent: *\nAllow: /\nDisallow: /admin/\nDisallow: /api/\n")
	b.WriteString("Sitemap: " + a.Config.URL + "/sitemap.xml\n")
	return c.String(http.StatusOK, b.String())
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if isAPIPath(c.Request().URL.Path) {
		msg := http.StatusText(code)
		if ok && code < 500 {
			if s, isStr := he.Message.(string); isStr {
				msg = s
			}
		}
		if code >= 500 {
			a.Log.Error("api error", zap.String("uri", c.Request().RequestURI), zap.Error(err))
		}
		_ = c.JSON(code, apiError{Error: msg})
		return
	}
	if code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	if code >= 500 {
		a.Log.Error("server error", zap.String("uri", c.Request().RequestURI), zap.Error(err))
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

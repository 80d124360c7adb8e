package rescuepost

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/rescuepost/contentgen"
	"github.com/eringen/rescuepost/postfmt"
	"github.com/eringen/rescuepost/publisher"
)

type apiError struct {
	Error string `json:"error"`
}

// postPayload is the JSON body for creating and updating posts.
type postPayload struct {
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Platforms   []string   `json:"platforms"`
	Hashtags    []string   `json:"hashtags"`
	MediaURLs   []string   `json:"media_urls"`
	Recurrence  string     `json:"recurrence"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	AIGenerated bool       `json:"ai_generated"`
}

func (p postPayload) post(org string) (Post, error) {
	platforms, err := publisher.ParsePlatforms(p.Platforms)
	if err != nil {
		return Post{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	out := Post{
		OrgID:       org,
		Title:       p.Title,
		Content:     p.Content,
		Platforms:   platforms,
		Hashtags:    p.Hashtags,
		MediaURLs:   p.MediaURLs,
		Recurrence:  p.Recurrence,
		AIGenerated: p.AIGenerated,
	}
	if p.ScheduledAt != nil {
		out.ScheduledAt = *p.ScheduledAt
	}
	return out, nil
}

type schedulePayload struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

type generatePayload struct {
	Topic        string   `json:"topic"`
	AnimalName   string   `json:"animal_name"`
	AnimalType   string   `json:"animal_type"`
	Tone         string   `json:"tone"`
	CallToAction string   `json:"call_to_action"`
	Platforms    []string `json:"platforms"`
	MaxHashtags  int      `json:"max_hashtags"`
}

type hashtagsPayload struct {
	Content string `json:"content"`
	Count   int    `json:"count"`
}

type improvePayload struct {
	Content     string `json:"content"`
	Platform    string `json:"platform"`
	Instruction string `json:"instruction"`
}

type statsResponse struct {
	Org    string       `json:"org"`
	Counts StatusCounts `json:"counts"`
	Total  int          `json:"total"`
}

// apiStatus maps domain errors to HTTP status codes.
func apiStatus(err error) int {
	var lenErr *postfmt.LengthError
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrScheduleInPast),
		errors.Is(err, publisher.ErrUnknownPlatform),
		errors.Is(err, postfmt.ErrEmptyContent),
		errors.As(err, &lenErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrPublishInProgress):
		return http.StatusConflict
	case errors.Is(err, contentgen.ErrNoAPIKey):
		return http.StatusServiceUnavailable
	case errors.Is(err, publisher.ErrPublishFailed),
		errors.Is(err, contentgen.ErrInvalidResponse),
		errors.Is(err, contentgen.ErrEmptyCompletion),
		contentgen.IsTransient(err):
		return http.StatusBadGateway
	}
	var apiErr *contentgen.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// apiFail writes err as a JSON error. Server errors are logged and hidden.
func (a *App) apiFail(c echo.Context, err error) error {
	code := apiStatus(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		a.Log.Error("api request failed",
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err))
		msg = http.StatusText(code)
	}
	return c.JSON(code, apiError{Error: msg})
}

func (a *App) registerAPIRoutes() {
	g := a.Echo.Group("/api/orgs/:org", a.apiAuth(), a.apiOrg)
	g.GET("/posts", a.apiListPosts)
	g.POST("/posts", a.apiCreatePost)
	g.GET("/posts/:id", a.apiGetPost)
	g.PUT("/posts/:id", a.apiUpdatePost)
	g.DELETE("/posts/:id", a.apiDeletePost)
	g.POST("/posts/:id/duplicate", a.apiDuplicatePost)
	g.POST("/posts/:id/schedule", a.apiSchedulePost)
	g.POST("/posts/:id/unschedule", a.apiUnschedulePost)
	g.POST("/posts/:id/publish", a.apiPublishPost)
	g.GET("/stats", a.apiStats)
	g.GET("/upcoming", a.apiUpcoming)
	g.POST("/generate", a.apiGenerate)
	g.POST("/generate/hashtags", a.apiGenerateHashtags)
	g.POST("/generate/improve", a.apiImprove)
}

// apiOrg rejects requests for unknown organizations.
func (a *App) apiOrg(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := a.Store.GetOrganization(c.Request().Context(), c.Param("org")); err != nil {
			return a.apiFail(c, err)
		}
		return next(c)
	}
}

func (a *App) apiListPosts(c echo.Context) error {
	status, err := ParseStatus(c.QueryParam("status"))
	if err != nil {
		return a.apiFail(c, err)
	}
	f := PostFilter{Status: status}
	if name := c.QueryParam("platform"); name != "" {
		p, err := publisher.ParsePlatform(name)
		if err != nil {
			return a.apiFail(c, err)
		}
		f.Platform = p
	}
	posts, err := a.Pipeline.ListPosts(c.Request().Context(), c.Param("org"), f)
	if err != nil {
		return a.apiFail(c, err)
	}
	if posts == nil {
		posts = []Post{}
	}
	return c.JSON(http.StatusOK, posts)
}

func (a *App) apiCreatePost(c echo.Context) error {
	var body postPayload
	if err := c.Bind(&body); err != nil {
		return a.apiFail(c, fmt.Errorf("%w: %v", ErrValidation, err))
	}
	in, err := body.post(c.Param("org"))
	if err != nil {
		return a.apiFail(c, err)
	}
	p, err := a.Pipeline.CreatePost(c.Request().Context(), in)
	if err != nil {
		return a.apiFail(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (a *App) apiGetPost(c echo.Context) error {
	p, err := a.Pipeline.GetPost(c.Request().Context(), c.Param("org"), c.Param("id"))
	if err != nil {
		return a.apiFail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (a *App) apiUpdatePost(c echo.Context) error {
	var body postPayload
	if err := c.Bind(&body); err != nil {
		return a.apiFail(c, fmt.Errorf("%w: %v", ErrValidation, err))
	}
	in, err := body.post(c.Param("org"))
	if err != nil {
		return a.apiFail(c, err)
	}
	in.ID = c.Param("id")
	p, err := a.Pipeline.UpdatePost(c.Request().Context(), in)
	if err != nil {
		return a.apiFail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (a *App) apiDeletePost(c echo.Context) error {
	if err := a.Pipeline.DeletePost(c.Request().Context(), c.Param("org"), c.Param("id")); err != nil {
		return a.apiFail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) apiDuplicatePost(c echo.Context) error {
	p, err := a.Pipeline.DuplicatePost(c.Request().Context(), c.Param("org"), c.Param("id"))
	if err != nil {
		return a.apiFail(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (a *App) apiSchedulePost(c echo.Context) error {
	var body schedulePayload
	if err := c.Bind(&body); err != nil {
		return a.apiFail(c, fmt.Errorf("%w: %v", ErrValidation, err))
	}
	if body.ScheduledAt.IsZero() {
		return a.apiFail(c, fmt.Errorf("%w: scheduled_at is required", ErrValidation))
	}
	p, err := a.Pipeline.SchedulePost(c.Request().Context(), c.Param("org"), c.Param("id"), body.ScheduledAt)
	if err != nil {
		return a.apiFail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (a *App) apiUnschedulePost(c echo.Context) error {
	p, err := a.Pipeline.UnschedulePost(c.Request().Context(), c.Param("org"), c.Param("id"))
	if err != nil {
		return a.apiFail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// apiPublishPost answers 502 with the updated post when a platform failed.
func (a *App) apiPublishPost(c echo.Context) error {
	p, err := a.Pipeline.PublishNow(c.Request().Context(), c.Param("org"), c.Param("id"))
	if errors.Is(err, publisher.ErrPublishFailed) && p.ID != "" {
		return c.JSON(http.StatusBadGateway, struct {
			Error string `json:"error"`
			Post  Post   `json:"post"`
		}{err.Error(), p})
	}
	if err != nil {
		return a.apiFail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (a *App) apiStats(c echo.Context) error {
	org := c.Param("org")
	counts, err := a.Pipeline.Stats(c.Request().Context(), org)
	if err != nil {
		return a.apiFail(c, err)
	}
	return c.JSON(http.StatusOK, statsResponse{Org: org, Counts: counts, Total: counts.Total()})
}

func (a *App) apiUpcoming(c echo.Context) error {
	limit := 10
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 100 {
			return a.apiFail(c, fmt.Errorf("%w: limit must be between 1 and 100", ErrValidation))
		}
		limit = n
	}
	posts, err := a.Pipeline.Upcoming(c.Request().Context(), c.Param("org"), limit)
	if err != nil {
		return a.apiFail(c, err)
	}
	if posts == nil {
		posts = []Post{}
	}
	return c.JSON(http.StatusOK, posts)
}

// generator returns the content generator, or an error when AI is off or
// the caller is over its rate limit.
func (a *App) generator(c echo.Context) (*contentgen.Generator, error) {
	if a.Generator == nil {
		return nil, contentgen.ErrNoAPIKey
	}
	if !a.generateLimiter.Allow(c.RealIP()) {
		return nil, errRateLimited
	}
	return a.Generator, nil
}

var errRateLimited = errors.New("rescuepost: too many generation requests")

func (a *App) generateFail(c echo.Context, err error) error {
	if errors.Is(err, errRateLimited) {
		return c.JSON(http.StatusTooManyRequests, apiError{Error: err.Error()})
	}
	return a.apiFail(c, err)
}

// generatePost runs a generation request for org.
func (a *App) generatePost(c echo.Context, org string, body generatePayload) (*contentgen.GeneratedPost, error) {
	if strings.TrimSpace(body.Topic) == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrValidation)
	}
	platforms, err := publisher.ParsePlatforms(body.Platforms)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	o, err := a.Store.GetOrganization(c.Request().Context(), org)
	if err != nil {
		return nil, err
	}
	g, err := a.generator(c)
	if err != nil {
		return nil, err
	}
	return g.GeneratePost(c.Request().Context(), contentgen.PostRequest{
		OrgName:      o.Name,
		Topic:        body.Topic,
		AnimalName:   body.AnimalName,
		AnimalType:   body.AnimalType,
		Tone:         body.Tone,
		CallToAction: body.CallToAction,
		Platforms:    platforms,
		MaxHashtags:  body.MaxHashtags,
	})
}

func (a *App) apiGenerate(c echo.Context) error {
	var body generatePayload
	if err := c.Bind(&body); err != nil {
		return a.apiFail(c, fmt.Errorf("%w: %v", ErrValidation, err))
	}
	out, err := a.generatePost(c, c.Param("org"), body)
	if err != nil {
		return a.generateFail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (a *App) apiGenerateHashtags(c echo.Context) error {
	var body hashtagsPayload
	if err := c.Bind(&body); err != nil {
		return a.apiFail(c, fmt.Errorf("%w: %v", ErrValidation, err))
	}
	if strings.TrimSpace(body.Content) == "" {
		return a.apiFail(c, postfmt.ErrEmptyContent)
	}
	g, err := a.generator(c)
	if err != nil {
		return a.generateFail(c, err)
	}
	tags, err := g.GenerateHashtags(c.Request().Context(), body.Content, body.Count)
	if err != nil {
		return a.apiFail(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"hashtags": tags})
}

func (a *App) apiImprove(c echo.Context) error {
	var body improvePayload
	if err := c.Bind(&body); err != nil {
		return a.apiFail(c, fmt.Errorf("%w: %v", ErrValidation, err))
	}
	if strings.TrimSpace(body.Content) == "" {
		return a.apiFail(c, postfmt.ErrEmptyContent)
	}
	platform, err := publisher.ParsePlatform(body.Platform)
	if err != nil {
		return a.apiFail(c, err)
	}
	g, err := a.generator(c)
	if err != nil {
		return a.generateFail(c, err)
	}
	content, err := g.ImproveContent(c.Request().Context(), body.Content, platform, body.Instruction)
	if err != nil {
		return a.apiFail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"content": content})
}

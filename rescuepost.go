// Package rescuepost schedules and publishes social media posts for animal
// rescue organizations. It is built with Go, Echo and templ.
//
// Posts move through draft, scheduled, published and failed. A Pipeline
// owns those transitions and publishes due posts through a
// publisher.Publisher; content can be drafted by an LLM through contentgen.
// The App wires the pipeline to an admin dashboard, a JSON API and a public
// feed per organization. Templates are supplied through ViewFuncs.
package rescuepost

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eringen/rescuepost/analytics"
	"github.com/eringen/rescuepost/contentgen"
	"github.com/eringen/rescuepost/publisher"
)

// ViewFuncs holds the templ components the handlers render. Callers own
// all markup; the views package provides a default set.
type ViewFuncs struct {
	Index          func(orgs []Organization, cfg Config) templ.Component
	OrgFeed        func(org Organization, posts []Post, cfg Config) templ.Component
	AdminLogin     func(showError bool, csrfToken string) templ.Component
	AdminDashboard func(d DashboardData) templ.Component
	AdminEditor    func(d PostFormData) templ.Component
	AdminMedia     func(org string, media []Media, csrfToken string) templ.Component
	NotFound       func() templ.Component
	ServerError    func() templ.Component
}

// App is the central rescuepost application. It wires together the store,
// pipeline, content generator, handlers, middleware and templates.
type App struct {
	Config    Config
	Echo      *echo.Echo
	Store     *Store
	Cache     *FeedCache
	Pipeline  *Pipeline
	Generator *contentgen.Generator // nil when no AI backend is configured
	Views     ViewFuncs
	Log       *zap.Logger

	loginLimiter    *RateLimiter
	generateLimiter *RateLimiter
	analyticsStore  *analytics.Store
	stopCleanup     func()
	publisher       publisher.Publisher
	completer       contentgen.Completer
	customRoutes    []func(*App)
	staticDir       string
	now             func() time.Time
	initialized     bool
}

// New creates a new App with the given configuration and view functions.
func New(cfg Config, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		Log:       zap.NewNop(),
		staticDir: "public",
		now:       time.Now,
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Init opens the databases, seeds organizations from the config and wires
// the pipeline, middleware and routes. It does not start background work
// or serve HTTP, which makes it usable from one-shot CLI commands.
func (a *App) Init(ctx context.Context) error {
	if a.initialized {
		return nil
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("rescuepost: init store: %w", err)
	}
	a.Store = store

	for _, o := range a.Config.Organizations {
		if o.Name == "" {
			o.Name = o.ID
		}
		if err := a.Store.SaveOrganization(ctx, o); err != nil {
			return fmt.Errorf("rescuepost: seed organization %s: %w", o.ID, err)
		}
	}

	a.Cache = NewFeedCache(a.Store, a.Config.FeedCacheTTL)
	a.loginLimiter = NewRateLimiter(5, time.Minute)
	a.generateLimiter = NewRateLimiter(20, time.Minute)

	pipelineOpts := []PipelineOption{
		WithPipelineLogger(a.Log.Named("pipeline")),
		WithPipelineClock(a.now),
		WithRetryPolicy(a.Config.Publishing.MaxRetries, a.Config.Publishing.RetryDelay),
		WithPublishTimeout(a.Config.Publishing.Timeout),
		WithChangeHook(a.Cache.Invalidate),
	}
	if a.Config.AnalyticsEnabled {
		as, err := analytics.NewStore(a.Config.AnalyticsDatabasePath)
		if err != nil {
			return fmt.Errorf("rescuepost: init analytics: %w", err)
		}
		a.analyticsStore = as
		pipelineOpts = append(pipelineOpts, WithAttemptRecorder(as))
	}

	if a.publisher == nil {
		a.publisher = publisher.NewSimulated(
			publisher.WithFailureRate(a.Config.Publishing.FailureRate),
			publisher.WithLatency(a.Config.Publishing.Latency),
		)
	}
	a.Pipeline = NewPipeline(a.Store, a.publisher, pipelineOpts...)

	if err := a.initGenerator(ctx); err != nil {
		return err
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.initialized = true
	return nil
}

func (a *App) initGenerator(ctx context.Context) error {
	llm := a.completer
	if llm == nil && a.Config.AI.Enabled() {
		switch a.Config.AI.Provider {
		case "gemini":
			gc, err := contentgen.NewGeminiClient(ctx, a.Config.AI.APIKey, a.Config.AI.Model)
			if err != nil {
				return fmt.Errorf("rescuepost: init gemini: %w", err)
			}
			llm = gc
		default:
			llm = contentgen.NewOpenAIClient(contentgen.OpenAIConfig{
				APIKey:  a.Config.AI.APIKey,
				BaseURL: a.Config.AI.BaseURL,
				Model:   a.Config.AI.Model,
				Timeout: a.Config.AI.Timeout,
			})
		}
	}
	if llm == nil {
		a.Log.Info("content generation disabled: no AI API key configured")
		return nil
	}
	a.Generator = contentgen.NewGenerator(llm,
		contentgen.WithMaxRetries(a.Config.AI.MaxRetries),
		contentgen.WithRateLimit(rate.Limit(a.Config.AI.RequestsPerSecond), 1),
		contentgen.WithLogger(a.Log.Named("contentgen")),
	)
	return nil
}

// Start validates the config, initializes the app, starts the publishing
// pipeline and serves HTTP until ctx is cancelled, then shuts down
// gracefully.
func (a *App) Start(ctx context.Context) error {
	if err := a.Config.Validate(); err != nil {
		return err
	}
	if err := a.Init(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		a.Pipeline.Wait()
	}()

	if err := a.Pipeline.Start(runCtx, a.Config.Publishing.PollInterval); err != nil {
		return fmt.Errorf("rescuepost: start pipeline: %w", err)
	}
	if a.analyticsStore != nil {
		a.stopCleanup = a.analyticsStore.StartCleanupScheduler(a.Config.AnalyticsRetentionDays, 24*time.Hour, a.Log.Named("analytics"))
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("server listening", zap.String("addr", a.Config.Addr), zap.String("url", a.Config.URL))
		errCh <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.Log.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("rescuepost: shutdown: %w", err)
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Framework assets are served under /public/ ahead of the static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/dashboard.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.GET("/public/style.css", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))

	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	// Public routes
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/", a.handleIndex)
	e.GET("/o/:org/", a.handleOrgFeed)
	e.GET("/o/:org/feed.xml", a.handleOrgRSS)

	// Admin routes
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)
	admin := e.Group("/admin", adminOnly)
	admin.GET("/post/:id/", a.handleAdminPost)
	admin.POST("/save/", a.handleAdminSave)
	admin.DELETE("/post/:id/", a.handleAdminDelete)
	for _, action := range []string{"duplicate", "schedule", "unschedule", "publish"} {
		admin.POST("/post/:id/"+action+"/", a.handleAdminAction(action))
	}
	admin.POST("/generate/", a.handleAdminGenerate)
	admin.GET("/media/", a.handleMediaList)
	admin.POST("/media/upload/", a.handleMediaUpload)
	admin.DELETE("/media/:filename/", a.handleMediaDelete)

	if a.analyticsStore != nil {
		analytics.NewHandler(a.analyticsStore, a.Log.Named("analytics")).RegisterRoutes(e, adminOnly)
	}

	a.registerAPIRoutes()
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.stopCleanup != nil {
		a.stopCleanup()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Close()
	}
	if a.generateLimiter != nil {
		a.generateLimiter.Close()
	}
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.analyticsStore != nil {
		errs = append(errs, a.analyticsStore.Close())
	}
	return errors.Join(errs...)
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package rescuepost

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eringen/rescuepost/contentgen"
	"github.com/eringen/rescuepost/publisher"
)

// Config holds all configuration for a rescuepost server.
type Config struct {
	Name        string `yaml:"name"`        // Site name (default "Rescue Posts")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS and meta tags

	Addr         string `yaml:"addr"`          // Listen address (default ":3000")
	DatabasePath string `yaml:"database_path"` // SQLite path (default "data/rescuepost.db")

	AnalyticsEnabled       bool   `yaml:"analytics_enabled"`        // Record publish attempts (default true when loaded from file)
	AnalyticsDatabasePath  string `yaml:"analytics_database_path"`  // default "data/analytics.db"
	AnalyticsRetentionDays int    `yaml:"analytics_retention_days"` // default 365

	AdminPassword string `yaml:"admin_password"` // Required to serve: admin login password
	SessionSecret string `yaml:"session_secret"` // Required to serve: session encryption secret
	CookieSecure  bool   `yaml:"cookie_secure"`  // Set true for HTTPS
	APIToken      string `yaml:"api_token"`      // Bearer token for /api/; the API is disabled when empty

	FeedCacheTTL time.Duration `yaml:"feed_cache_ttl"` // Published feed cache TTL (default 5m)

	Organizations []Organization `yaml:"organizations"` // Seeded on startup

	Publishing PublishingConfig `yaml:"publishing"`
	AI         AIConfig         `yaml:"ai"`
}

// PublishingConfig controls the publish pipeline.
type PublishingConfig struct {
	MaxRetries   int           `yaml:"max_retries"`   // Failures before a post is marked failed (default 3)
	RetryDelay   time.Duration `yaml:"retry_delay"`   // Base delay for re-queueing a failed scheduled post (default 1m)
	PollInterval time.Duration `yaml:"poll_interval"` // Safety poll for due posts; 0 uses the default 1m, negative disables
	Timeout      time.Duration `yaml:"timeout"`       // Per-attempt deadline (default 30s)
	FailureRate  float64       `yaml:"failure_rate"`  // Simulated publisher failure rate (default 0.1, negative never fails)
	Latency      time.Duration `yaml:"latency"`       // Simulated publisher latency
}

// AIConfig selects and configures the content generation backend.
type AIConfig struct {
	Provider          string        `yaml:"provider"` // "openai" (default) or "gemini"
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url"` // OpenAI-compatible endpoint
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// Enabled reports whether an API key is configured.
func (c AIConfig) Enabled() bool {
	return c.APIKey != ""
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "Rescue Posts"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/rescuepost.db"
	}
	if c.AnalyticsDatabasePath == "" {
		c.AnalyticsDatabasePath = "data/analytics.db"
	}
	if c.AnalyticsRetentionDays <= 0 {
		c.AnalyticsRetentionDays = 365
	}
	if c.FeedCacheTTL == 0 {
		c.FeedCacheTTL = 5 * time.Minute
	}
	if c.Publishing.MaxRetries <= 0 {
		c.Publishing.MaxRetries = 3
	}
	if c.Publishing.RetryDelay <= 0 {
		c.Publishing.RetryDelay = time.Minute
	}
	if c.Publishing.PollInterval == 0 {
		c.Publishing.PollInterval = time.Minute
	}
	if c.Publishing.Timeout <= 0 {
		c.Publishing.Timeout = 30 * time.Second
	}
	if c.Publishing.FailureRate == 0 {
		c.Publishing.FailureRate = publisher.DefaultFailureRate
	}
	if c.AI.Provider == "" {
		c.AI.Provider = "openai"
	}
	if c.AI.MaxRetries <= 0 {
		c.AI.MaxRetries = contentgen.DefaultMaxRetries
	}
	if c.AI.RequestsPerSecond <= 0 {
		c.AI.RequestsPerSecond = 2
	}
}

// maxPublishRetries bounds publishing.max_retries.
const maxPublishRetries = 20

// Validate checks the settings needed to serve HTTP.
func (c *Config) Validate() error {
	var errs []error
	if c.AdminPassword == "" {
		errs = append(errs, errors.New("admin_password is required"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("session_secret is required"))
	}
	switch c.AI.Provider {
	case "", "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("ai.provider %q is not supported", c.AI.Provider))
	}
	if c.Publishing.FailureRate > 1 {
		errs = append(errs, fmt.Errorf("publishing.failure_rate %v is above 1", c.Publishing.FailureRate))
	}
	if c.Publishing.MaxRetries > maxPublishRetries {
		errs = append(errs, fmt.Errorf("publishing.max_retries %d is above %d", c.Publishing.MaxRetries, maxPublishRetries))
	}
	for _, o := range c.Organizations {
		if o.ID == "" || Slugify(o.ID) != o.ID {
			errs = append(errs, fmt.Errorf("organization id %q must be a slug", o.ID))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("rescuepost: invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// LoadConfig reads a YAML config file and applies RESCUEPOST_* environment
// overrides. An empty path skips the file. Analytics defaults to enabled.
func LoadConfig(path string) (Config, error) {
	cfg := Config{AnalyticsEnabled: true}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("rescuepost: read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("rescuepost: parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("RESCUEPOST_NAME", &c.Name)
	str("RESCUEPOST_URL", &c.URL)
	str("RESCUEPOST_ADDR", &c.Addr)
	str("RESCUEPOST_DB", &c.DatabasePath)
	str("RESCUEPOST_ANALYTICS_DB", &c.AnalyticsDatabasePath)
	str("RESCUEPOST_ADMIN_PASSWORD", &c.AdminPassword)
	str("RESCUEPOST_SESSION_SECRET", &c.SessionSecret)
	str("RESCUEPOST_API_TOKEN", &c.APIToken)
	str("RESCUEPOST_AI_PROVIDER", &c.AI.Provider)
	str("RESCUEPOST_AI_MODEL", &c.AI.Model)
	str("RESCUEPOST_AI_BASE_URL", &c.AI.BaseURL)
	str("RESCUEPOST_AI_API_KEY", &c.AI.APIKey)
	if c.AI.APIKey == "" {
		switch c.AI.Provider {
		case "gemini":
			str("GEMINI_API_KEY", &c.AI.APIKey)
		default:
			str("OPENAI_API_KEY", &c.AI.APIKey)
		}
	}

	boolean := func(key string, dst *bool) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("rescuepost: %s: %w", key, err)
		}
		*dst = b
		return nil
	}
	if err := boolean("RESCUEPOST_COOKIE_SECURE", &c.CookieSecure); err != nil {
		return err
	}
	if err := boolean("RESCUEPOST_ANALYTICS", &c.AnalyticsEnabled); err != nil {
		return err
	}
	if v := os.Getenv("RESCUEPOST_FAILURE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("rescuepost: RESCUEPOST_FAILURE_RATE: %w", err)
		}
		c.Publishing.FailureRate = f
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for static assets and uploads (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithLogger sets the application logger (default no-op).
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}

// WithPublisher replaces the simulated platform publisher.
func WithPublisher(p publisher.Publisher) Option {
	return func(a *App) {
		a.publisher = p
	}
}

// WithCompleter sets the chat model used for content generation instead of
// building one from Config.AI.
func WithCompleter(c contentgen.Completer) Option {
	return func(a *App) {
		a.completer = c
	}
}

// WithClock replaces time.Now for the pipeline and scheduler.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

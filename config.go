package ments

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/eringen/ments/mailer"
)

// MinSessionSecretLength is the minimum session secret size accepted by Load.
const MinSessionSecretLength = 32

// SiteConfig holds all configuration for a ments site.
type SiteConfig struct {
	Name        string `env:"SITE_NAME"`        // Site name (default "ments.")
	URL         string `env:"SITE_URL"`         // Canonical URL (default "http://localhost:3000")
	Description string `env:"SITE_DESCRIPTION"` // Site description for RSS and meta tags
	Author      string `env:"SITE_AUTHOR"`      // Author name for JSON-LD

	Addr         string `env:"MENTS_ADDR"`    // Listen address (default ":3000")
	DatabasePath string `env:"MENTS_DB_PATH"` // SQLite path (default "data/ments.db")
	UploadsDir   string `env:"UPLOADS_DIR"`   // Image bucket directory (default "public/uploads")
	Env          string `env:"MENTS_ENV" envDefault:"development"`
	LogLevel     string `env:"MENTS_LOG_LEVEL" envDefault:"info"`

	SessionSecret    string `env:"SESSION_SECRET,required"`
	CookieSecure     bool   `env:"COOKIE_SECURE"`
	AdminEmailDomain string `env:"ADMIN_EMAIL_DOMAIN"` // signup restriction (default "ments.app")

	AWSRegion          string `env:"AWS_REGION"` // default "ap-south-1"
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	FromEmail          string `env:"AWS_SES_FROM_EMAIL"`

	NewsletterAsync          bool    `env:"NEWSLETTER_ASYNC" envDefault:"true"`
	NewsletterSendsPerSecond float64 `env:"NEWSLETTER_SENDS_PER_SECOND" envDefault:"20"`

	RedisURL string `env:"REDIS_URL"` // optional; enables shared view de-duplication

	PostCacheTTL time.Duration `env:"POST_CACHE_TTL"` // default 5m
}

// LoadConfig parses the environment into a SiteConfig and applies defaults.
func LoadConfig() (SiteConfig, error) {
	var cfg SiteConfig
	if err := env.Parse(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return SiteConfig{}, err
	}
	return cfg, nil
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "ments."
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/ments.db"
	}
	if c.UploadsDir == "" {
		c.UploadsDir = "public/uploads"
	}
	if c.AdminEmailDomain == "" {
		c.AdminEmailDomain = "ments.app"
	}
	c.AdminEmailDomain = strings.ToLower(strings.TrimPrefix(c.AdminEmailDomain, "@"))
	if c.AWSRegion == "" {
		c.AWSRegion = "ap-south-1"
	}
	if c.FromEmail == "" {
		c.FromEmail = "newsletter@" + c.AdminEmailDomain
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
}

func (c SiteConfig) validate() error {
	if len(c.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes long, got %d; "+
			"generate one with: openssl rand -base64 32", MinSessionSecretLength, len(c.SessionSecret))
	}
	return nil
}

// IsDevelopment reports whether the site runs in development mode.
func (c SiteConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// SESEnabled reports whether AWS credentials are configured.
func (c SiteConfig) SESEnabled() bool {
	return c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != ""
}

// UseRedis reports whether a Redis URL is configured.
func (c SiteConfig) UseRedis() bool {
	return c.RedisURL != ""
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithTransport overrides the mail transport chosen from the config.
func WithTransport(t mailer.Transport) Option {
	return func(a *App) {
		a.transport = t
	}
}

// WithLogger sets the structured logger used by background services.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

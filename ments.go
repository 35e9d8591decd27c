// Package ments is a blog with an admin back office and a newsletter
// broadcaster, built with Go, Echo and templ.
//
// Users provide their own templ templates via the ViewFuncs struct, and
// ments handles the handler logic, middleware, persistence and newsletter
// delivery.
package ments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/microcosm-cc/bluemonday"

	"github.com/eringen/ments/mailer"
	"github.com/eringen/ments/newsletter"
)

// ViewFuncs holds user-provided templ components that the app calls when
// rendering pages.
type ViewFuncs struct {
	Home            func(d HomeData) templ.Component
	HomePartial     func(d HomeData) templ.Component
	Post            func(d PostData) templ.Component
	Unsubscribe     func(d UnsubscribeData) templ.Component
	AdminLogin      func(d AuthData) templ.Component
	AdminSignup     func(d AuthData) templ.Component
	AdminDashboard  func(d DashboardData) templ.Component
	AdminEditor     func(d EditorData) templ.Component
	AdminNewsletter func(d NewsletterData) templ.Component
	AdminImages     func(d ImagesData) templ.Component
	NotFound        func() templ.Component
	ServerError     func() templ.Component
}

// HomeData feeds the blog index.
type HomeData struct {
	Site           SiteConfig
	Meta           PageMeta
	Posts          []Post
	Tags           []string
	Categories     []Category
	ActiveTag      string
	ActiveCategory string
	CSRFToken      string
}

// PostData feeds a single post page. Body is sanitized HTML.
type PostData struct {
	Site      SiteConfig
	Meta      PageMeta
	Post      Post
	Body      string
	Related   []Post
	Liked     bool
	JSONLD    string
	CSRFToken string
}

// Unsubscribe outcomes shown on the unsubscribe page.
const (
	UnsubscribeNotFound            = "not_found"
	UnsubscribeAlreadyUnsubscribed = "already_unsubscribed"
	UnsubscribeDone                = "unsubscribed"
)

// UnsubscribeData feeds the unsubscribe page. Status is empty until the
// reader confirms.
type UnsubscribeData struct {
	Site      SiteConfig
	Email     string
	Status    string
	CSRFToken string
}

// AuthData feeds the login and signup forms.
type AuthData struct {
	Site      SiteConfig
	Email     string
	Error     string
	Notice    string
	Domain    string
	CSRFToken string
}

// DashboardData feeds the admin post table.
type DashboardData struct {
	Site              SiteConfig
	Admin             Admin
	Posts             []Post
	ActiveSubscribers int
	Message           string
	CSRFToken         string
}

// EditorData feeds the post editor.
type EditorData struct {
	Site       SiteConfig
	Post       Post
	Categories []Category
	Errors     []string
	CSRFToken  string
}

// NewsletterData feeds the subscriber and broadcast page.
type NewsletterData struct {
	Site        SiteConfig
	Subscribers []Subscriber
	Logs        []SendLog
	Posts       []Post
	ActiveCount int
	Message     string
	Async       bool
	CSRFToken   string
}

// ImagesData feeds the image bucket browser.
type ImagesData struct {
	Images    []Image
	BaseURL   string
	CSRFToken string
}

// App is the central ments application. It wires together the store,
// cache, newsletter service, handlers, middleware and user-provided
// templates.
type App struct {
	Config     SiteConfig
	Echo       *echo.Echo
	Store      *Store
	Cache      *PostCache
	Views      ViewFuncs
	Sessions   AdminSession
	Images     *ImageStore
	Tracker    ViewTracker
	Newsletter *newsletter.Service
	Dispatcher *newsletter.Dispatcher

	transport        mailer.Transport
	logger           *slog.Logger
	sanitizer        *bluemonday.Policy
	loginLimiter     *IPLimiter
	subscribeLimiter *IPLimiter
	signupLimiter    *IPLimiter
	customRoutes     []func(*App)
	staticDir        string
	stopBackground   context.CancelFunc
	initialized      bool
}

// New creates a new App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		staticDir: "public",
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Init opens the database and builds the services, middleware and routes.
// Start calls it; tests call it directly to serve requests without a
// listener.
func (a *App) Init(ctx context.Context) error {
	if a.initialized {
		return nil
	}
	if err := a.Config.validate(); err != nil {
		return fmt.Errorf("ments: %w", err)
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("ments: init store: %w", err)
	}
	a.Store = store
	a.Cache = NewPostCache(a.Store, a.Config.PostCacheTTL)
	a.Images = &ImageStore{Dir: a.Config.UploadsDir, BaseURL: "/uploads/", Records: a.Store}
	if a.Sessions == nil {
		a.Sessions = CookieSession{Admins: a.Store}
	}
	a.loginLimiter = NewIPLimiter(5, time.Minute)
	a.subscribeLimiter = NewIPLimiter(10, time.Minute)
	a.signupLimiter = NewIPLimiter(5, time.Hour)
	a.sanitizer = articlePolicy()

	if a.transport == nil {
		a.transport, err = a.newTransport(ctx)
		if err != nil {
			return fmt.Errorf("ments: init mail transport: %w", err)
		}
	}
	a.Tracker = a.newViewTracker(ctx)

	a.Newsletter = newsletter.NewService(newsletter.Config{
		Subscribers:    a.Store,
		Logs:           a.Store,
		Transport:      a.transport,
		Site:           newsletter.Site{Name: a.Config.Name, URL: a.Config.URL, From: a.Config.FromEmail},
		SendsPerSecond: a.Config.NewsletterSendsPerSecond,
		Logger:         a.logger.With("component", "newsletter"),
	})

	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopBackground = cancel
	if a.Config.NewsletterAsync {
		a.Dispatcher = newsletter.NewDispatcher(a.Store, a.Newsletter,
			a.logger.With("component", "dispatcher"), newsletter.DefaultDispatcherConfig())
		if err := a.Dispatcher.Start(bgCtx); err != nil {
			return fmt.Errorf("ments: start dispatcher: %w", err)
		}
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.initialized = true
	return nil
}

// Start initializes the app and serves HTTP until ctx is cancelled, then
// shuts the server down gracefully.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Echo.Start(a.Config.Addr)
	}()
	a.logger.Info("server started", "addr", a.Config.Addr, "env", a.Config.Env)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.logger.Info("shutting down server")
	return a.Echo.Shutdown(shutdownCtx)
}

func (a *App) newTransport(ctx context.Context) (mailer.Transport, error) {
	if !a.Config.SESEnabled() {
		a.logger.Warn("AWS credentials not set, emails will be logged instead of sent")
		return mailer.LogTransport{Logger: a.logger.With("component", "mailer")}, nil
	}
	return mailer.NewSES(ctx, mailer.SESConfig{
		Region:          a.Config.AWSRegion,
		AccessKeyID:     a.Config.AWSAccessKeyID,
		SecretAccessKey: a.Config.AWSSecretAccessKey,
		From:            a.Config.FromEmail,
	})
}

func (a *App) newViewTracker(ctx context.Context) ViewTracker {
	if a.Config.UseRedis() {
		t, err := NewRedisViewTracker(ctx, a.Config.RedisURL, "ments:views:", ViewWindow)
		if err == nil {
			return t
		}
		a.logger.Warn("redis unavailable, counting views in memory", "error", err)
	}
	return NewMemoryViewTracker(ViewWindow)
}

// articlePolicy allows the markup and inline styles the Article theme
// emits and nothing else.
func articlePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("style").Globally()
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code")
	p.AllowAttrs("target").Matching(bluemonday.Paragraph).OnElements("a")
	p.AllowElements("figure", "figcaption")
	return p
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.staticDir)
	e.Static("/uploads", a.Config.UploadsDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	// Public routes
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/blog", handleBlogRedirect)
	e.GET("/", a.handleHome)
	e.GET("/blog/:slug/", a.handlePost)
	e.GET("/unsubscribe", a.handleUnsubscribePage)
	e.POST("/unsubscribe", a.handleUnsubscribe)
	e.POST("/api/subscribe", a.handleSubscribe)
	e.POST("/api/posts/:slug/like", a.handleLike)
	e.POST("/api/posts/:slug/unlike", a.handleUnlike)

	// Auth
	e.GET("/admin/login/", a.handleLoginPage)
	e.POST("/admin/login/", a.handleLogin)
	e.GET("/admin/signup/", a.handleSignupPage)
	e.POST("/admin/signup/", a.handleSignup)
	e.GET("/admin/verify/", a.handleVerify)
	e.POST("/admin/logout/", a.handleLogout)

	// Back office
	admin := e.Group("/admin", a.requireAdmin)
	admin.GET("/", a.handleDashboard)
	admin.POST("/posts/:id/toggle/", a.handleTogglePost)
	admin.DELETE("/posts/:id/", a.handleDeletePost)
	admin.GET("/editor/", a.handleEditor)
	admin.GET("/editor/:id/", a.handleEditor)
	admin.POST("/editor/", a.handleSavePost)
	admin.POST("/preview/", a.handlePreview)
	admin.GET("/images/", a.handleImageList)
	admin.POST("/images/upload/", a.handleImageUpload)
	admin.DELETE("/images/:filename/", a.handleImageDelete)
	admin.GET("/newsletter/", a.handleNewsletterPage)
	admin.POST("/subscribers/", a.handleAddSubscribers)
	admin.POST("/subscribers/import/", a.handleImportSubscribers)
	admin.GET("/subscribers/export/", a.handleExportSubscribers)
	admin.POST("/subscribers/:id/toggle/", a.handleToggleSubscriber)
	admin.DELETE("/subscribers/:id/", a.handleDeleteSubscriber)
	admin.POST("/subscribers/delete/", a.handleBulkDeleteSubscribers)

	// Newsletter API
	api := e.Group("/api", a.requireAdmin)
	api.POST("/send-custom-newsletter", a.handleSendCustomNewsletter)
	api.POST("/send-newsletter", a.handleSendPostNewsletter)
	api.GET("/newsletter-jobs/:id", a.handleNewsletterJob)
}

// Close stops background work and releases resources. Call this when the
// app is shutting down.
func (a *App) Close() error {
	if a.stopBackground != nil {
		a.stopBackground()
	}
	if a.Dispatcher != nil {
		a.Dispatcher.Stop()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Close()
	}
	if a.signupLimiter != nil {
		a.signupLimiter.Close()
	}
	if a.subscribeLimiter != nil {
		a.subscribeLimiter.Close()
	}
	var errs []error
	if a.Tracker != nil {
		errs = append(errs, a.Tracker.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

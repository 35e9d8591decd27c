package ments

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/ments/markdown"
)

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func (a *App) handleHome(c echo.Context) error {
	ctx := c.Request().Context()
	filter := PostFilter{Tag: c.QueryParam("tag"), Category: c.QueryParam("category")}
	posts, err := a.Cache.ListPosts(ctx, filter)
	if err != nil {
		return err
	}
	tags, err := a.Cache.ListTags(ctx)
	if err != nil {
		return err
	}
	cats, err := a.Store.ListCategories(ctx)
	if err != nil {
		return err
	}
	data := HomeData{
		Site: a.Config,
		Meta: PageMeta{
			Title:       a.Config.Name,
			Description: a.Config.Description,
			URL:         BuildURL(a.Config.URL),
			OGType:      "website",
		},
		Posts:          posts,
		Tags:           tags,
		Categories:     cats,
		ActiveTag:      filter.Tag,
		ActiveCategory: filter.Category,
		CSRFToken:      CsrfToken(c),
	}
	if isHTMX(c) {
		return Render(c, a.Views.HomePartial(data))
	}
	return Render(c, a.Views.Home(data))
}

func (a *App) handlePost(c echo.Context) error {
	ctx := c.Request().Context()
	post, err := a.Cache.GetPost(ctx, c.Param("slug"))
	if errors.Is(err, ErrNotFound) {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	}
	if err != nil {
		return err
	}

	req := c.Request()
	if ua := req.UserAgent(); !IsBot(ua) {
		visitor := VisitorID(a.Config.SessionSecret, c.RealIP(), ua)
		first, err := a.Tracker.FirstView(ctx, post.ID, visitor)
		if err != nil {
			c.Logger().Warnf("view tracking: %v", err)
		}
		if first {
			if views, err := a.Store.IncrementViews(ctx, post.ID); err == nil {
				post.Views = views
			} else {
				c.Logger().Errorf("increment views for %s: %v", post.Slug, err)
			}
		}
	}

	posts, err := a.Cache.ListPosts(ctx, PostFilter{})
	if err != nil {
		return err
	}
	return Render(c, a.Views.Post(PostData{
		Site: a.Config,
		Meta: PageMeta{
			Title:       post.Title,
			Description: post.Excerpt,
			URL:         BuildURL(a.Config.URL, "blog", post.Slug),
			OGType:      "article",
			Image:       post.FeaturedImage,
		},
		Post:      post,
		Body:      a.sanitizer.Sanitize(markdown.Render(post.Content, markdown.Article)),
		Related:   FilterRelatedPosts(post, posts),
		Liked:     likedPosts(c)[post.Slug],
		JSONLD:    BlogPostingJsonLD(post, a.Config),
		CSRFToken: CsrfToken(c),
	}))
}

type likeResponse struct {
	Likes int  `json:"likes"`
	Liked bool `json:"liked"`
}

func (a *App) handleLike(c echo.Context) error {
	return a.adjustLike(c, true)
}

func (a *App) handleUnlike(c echo.Context) error {
	return a.adjustLike(c, false)
}

// adjustLike applies a like or unlike once per reader. Repeating the same
// action reports the current count without touching it.
func (a *App) adjustLike(c echo.Context, like bool) error {
	ctx := c.Request().Context()
	slug := c.Param("slug")
	if likedPosts(c)[slug] == like {
		post, err := a.Store.GetPublishedPost(ctx, slug)
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorBody("Post not found"))
		}
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, likeResponse{Likes: post.Likes, Liked: like})
	}

	delta := -1
	if like {
		delta = 1
	}
	likes, err := a.Store.AdjustLikes(ctx, slug, delta)
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorBody("Post not found"))
	}
	if err != nil {
		return err
	}
	if err := setLiked(c, slug, like); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, likeResponse{Likes: likes, Liked: like})
}

type subscribeRequest struct {
	Email string `json:"email" form:"email"`
}

func (a *App) handleSubscribe(c echo.Context) error {
	if !a.subscribeLimiter.Allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, errorBody("Too many requests. Try again later."))
	}
	var req subscribeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid request"))
	}
	sub, err := a.Store.Subscribe(c.Request().Context(), req.Email, SourceWebsite)
	switch {
	case errors.Is(err, ErrInvalidEmail):
		return c.JSON(http.StatusBadRequest, errorBody("Please enter a valid email address"))
	case errors.Is(err, ErrDuplicate):
		return c.JSON(http.StatusConflict, errorBody("already subscribed"))
	case err != nil:
		c.Logger().Errorf("subscribe: %v", err)
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to subscribe"))
	}
	msg := "Thanks for subscribing!"
	if sub.Reactivated {
		msg = "Welcome back! You're subscribed again."
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":     true,
		"reactivated": sub.Reactivated,
		"message":     msg,
	})
}

func (a *App) handleUnsubscribePage(c echo.Context) error {
	return Render(c, a.Views.Unsubscribe(UnsubscribeData{
		Site:      a.Config,
		Email:     strings.TrimSpace(c.QueryParam("email")),
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleUnsubscribe(c echo.Context) error {
	email := strings.TrimSpace(c.FormValue("email"))
	status := UnsubscribeDone
	err := a.Store.Unsubscribe(c.Request().Context(), email)
	switch {
	case errors.Is(err, ErrNotFound):
		status = UnsubscribeNotFound
	case errors.Is(err, ErrAlreadyUnsubscribed):
		status = UnsubscribeAlreadyUnsubscribed
	case err != nil:
		return err
	}
	return Render(c, a.Views.Unsubscribe(UnsubscribeData{
		Site:      a.Config,
		Email:     email,
		Status:    status,
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Cache.ListPosts(c.Request().Context(), PostFilter{})
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Cache.ListPosts(c.Request().Context(), PostFilter{})
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func handleBlogRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/")
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

func (a *App) handleRobots(c echo.Context) error {
	body := "User-agent: *\nDisallow: /admin/\nDisallow: /api/\n\nSitemap: " + a.Config.URL + "/sitemap.xml\n"
	return c.String(http.StatusOK, body)
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
	api := strings.HasPrefix(c.Request().URL.Path, "/api/")
	switch {
	case code == http.StatusNotFound && !api:
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	case code >= 500:
		c.Logger().Errorf("server error: %v", err)
		if api {
			_ = c.JSON(code, errorBody("Internal server error"))
			return
		}
		_ = RenderStatus(c, code, a.Views.ServerError())
	default:
		a.Echo.DefaultHTTPErrorHandler(err, c)
	}
}

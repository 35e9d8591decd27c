package ments

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/ments/markdown"
)

func (a *App) handleDashboard(c echo.Context) error {
	return a.renderDashboard(c, c.QueryParam("msg"))
}

func (a *App) renderDashboard(c echo.Context, msg string) error {
	ctx := c.Request().Context()
	posts, err := a.Store.ListAllPosts(ctx)
	if err != nil {
		return err
	}
	active, err := a.Store.CountActiveSubscribers(ctx)
	if err != nil {
		return err
	}
	admin, _ := a.Sessions.CurrentAdmin(c)
	return Render(c, a.Views.AdminDashboard(DashboardData{
		Site:              a.Config,
		Admin:             admin,
		Posts:             posts,
		ActiveSubscribers: active,
		Message:           msg,
		CSRFToken:         CsrfToken(c),
	}))
}

func paramID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (a *App) handleTogglePost(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	post, err := a.Store.TogglePostStatus(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}
	a.Cache.Invalidate()
	msg := "Post moved to drafts"
	if post.Published() {
		msg = "Post published"
	}
	return a.renderDashboard(c, msg)
}

func (a *App) handleDeletePost(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := a.Store.DeletePost(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.ErrNotFound
		}
		return err
	}
	a.Cache.Invalidate()
	return a.renderDashboard(c, "Post deleted")
}

func (a *App) handleEditor(c echo.Context) error {
	post := Post{Status: StatusDraft}
	if c.Param("id") != "" {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		post, err = a.Store.GetPost(c.Request().Context(), id)
		if errors.Is(err, ErrNotFound) {
			return echo.ErrNotFound
		}
		if err != nil {
			return err
		}
	}
	return a.renderEditor(c, http.StatusOK, post, nil)
}

func (a *App) renderEditor(c echo.Context, code int, post Post, errs []string) error {
	cats, err := a.Store.ListCategories(c.Request().Context())
	if err != nil {
		return err
	}
	return RenderStatus(c, code, a.Views.AdminEditor(EditorData{
		Site:       a.Config,
		Post:       post,
		Categories: cats,
		Errors:     errs,
		CSRFToken:  CsrfToken(c),
	}))
}

// postFromForm reads the editor form. The submit button named "action"
// chooses between saving a draft and publishing.
func postFromForm(c echo.Context) Post {
	id, _ := strconv.ParseInt(c.FormValue("id"), 10, 64)
	title := strings.TrimSpace(c.FormValue("title"))
	slug := Slugify(c.FormValue("slug"))
	if slug == "" {
		slug = Slugify(title)
	}
	status := StatusDraft
	if c.FormValue("action") == "publish" {
		status = StatusPublished
	}
	return Post{
		ID:            id,
		Title:         title,
		Slug:          slug,
		Content:       c.FormValue("content"),
		Excerpt:       strings.TrimSpace(c.FormValue("excerpt")),
		FeaturedImage: strings.TrimSpace(c.FormValue("featured_image")),
		Category:      strings.TrimSpace(c.FormValue("category")),
		Tags:          SplitTags(c.FormValue("tags")),
		Status:        status,
	}
}

func validatePost(p Post) []string {
	var errs []string
	if p.Title == "" {
		errs = append(errs, "Title is required")
	}
	if strings.TrimSpace(p.Content) == "" {
		errs = append(errs, "Content is required")
	}
	if p.Title != "" && p.Slug == "" {
		errs = append(errs, "Slug must contain letters or numbers")
	}
	return errs
}

func (a *App) handleSavePost(c echo.Context) error {
	ctx := c.Request().Context()
	post := postFromForm(c)

	if errs := validatePost(post); len(errs) > 0 {
		return a.renderEditor(c, http.StatusBadRequest, post, errs)
	}

	// An upload is only kept once the post referencing it is stored.
	uploaded := ""
	if fh, err := c.FormFile("featured_image_file"); err == nil {
		img, err := a.Images.SaveUpload(ctx, fh)
		if err != nil {
			return a.renderEditor(c, http.StatusBadRequest, post, []string{err.Error()})
		}
		uploaded = img.Filename
		post.FeaturedImage = a.Images.URL(img.Filename)
	}

	var err error
	if post.ID == 0 {
		if admin, ok := a.Sessions.CurrentAdmin(c); ok {
			post.AuthorID = admin.ID
		}
		post.ID, err = a.Store.CreatePost(ctx, post)
	} else {
		err = a.Store.UpdatePost(ctx, post)
	}
	if err != nil && uploaded != "" {
		if derr := a.Images.Delete(ctx, uploaded); derr != nil {
			c.Logger().Errorf("removing unused upload %s: %v", uploaded, derr)
		}
		post.FeaturedImage = strings.TrimSpace(c.FormValue("featured_image"))
	}
	switch {
	case errors.Is(err, ErrDuplicate):
		return a.renderEditor(c, http.StatusConflict, post, []string{"A post with this slug already exists"})
	case errors.Is(err, ErrNotFound):
		return echo.ErrNotFound
	case err != nil:
		return err
	}
	a.Cache.Invalidate()

	msg := "Draft saved"
	if post.Published() {
		msg = "Post published"
	}
	return c.Redirect(http.StatusSeeOther, "/admin/?msg="+strings.ReplaceAll(msg, " ", "+"))
}

// handlePreview renders editor content for the preview pane. An optional
// theme field previews the content as it will look elsewhere, e.g. "email".
func (a *App) handlePreview(c echo.Context) error {
	theme, ok := markdown.Themes[c.FormValue("theme")]
	if !ok {
		theme = markdown.Preview
	}
	html := markdown.Render(c.FormValue("content"), theme)
	return Render(c, templ.Raw(a.sanitizer.Sanitize(html)))
}

package ments

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

const maxCSVSize = 2 << 20

func (a *App) handleNewsletterPage(c echo.Context) error {
	return a.renderNewsletter(c, http.StatusOK, c.QueryParam("msg"))
}

func (a *App) renderNewsletter(c echo.Context, code int, msg string) error {
	ctx := c.Request().Context()
	subs, err := a.Store.ListSubscribers(ctx)
	if err != nil {
		return err
	}
	logs, err := a.Store.ListSendLogs(ctx, 50)
	if err != nil {
		return err
	}
	posts, err := a.Cache.ListPosts(ctx, PostFilter{})
	if err != nil {
		return err
	}
	active := 0
	for _, s := range subs {
		if s.Active {
			active++
		}
	}
	return RenderStatus(c, code, a.Views.AdminNewsletter(NewsletterData{
		Site:        a.Config,
		Subscribers: subs,
		Logs:        logs,
		Posts:       posts,
		ActiveCount: active,
		Message:     msg,
		Async:       a.Dispatcher != nil,
		CSRFToken:   CsrfToken(c),
	}))
}

func bulkMessage(res BulkResult) string {
	msg := fmt.Sprintf("Added %d subscribers", res.Added)
	if res.Skipped > 0 {
		msg += fmt.Sprintf(", %d already subscribed", res.Skipped)
	}
	if res.Invalid > 0 {
		msg += fmt.Sprintf(", %d invalid", res.Invalid)
	}
	return msg
}

func (a *App) addSubscribers(c echo.Context, text, source string) error {
	emails := ParseEmails(text)
	if len(emails) == 0 {
		return a.renderNewsletter(c, http.StatusBadRequest, "No valid email addresses found")
	}
	res, err := a.Store.AddSubscribers(c.Request().Context(), emails, source)
	if err != nil {
		return err
	}
	return a.renderNewsletter(c, http.StatusOK, bulkMessage(res))
}

func (a *App) handleAddSubscribers(c echo.Context) error {
	return a.addSubscribers(c, c.FormValue("emails"), SourceManual)
}

func (a *App) handleImportSubscribers(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return a.renderNewsletter(c, http.StatusBadRequest, "Choose a CSV file to import")
	}
	if fh.Size > maxCSVSize {
		return a.renderNewsletter(c, http.StatusBadRequest, "CSV file too large (max 2MB)")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxCSVSize))
	if err != nil {
		return err
	}
	return a.addSubscribers(c, string(data), SourceCSVImport)
}

func (a *App) handleExportSubscribers(c echo.Context) error {
	subs, err := a.Store.ListSubscribers(c.Request().Context())
	if err != nil {
		return err
	}
	name := "subscribers-" + time.Now().UTC().Format("2006-01-02") + ".csv"
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	_ = w.Write([]string{"email", "active", "source", "subscribed_at"})
	for _, s := range subs {
		_ = w.Write([]string{s.Email, strconv.FormatBool(s.Active), s.Source, s.SubscribedAt.UTC().Format(time.RFC3339)})
	}
	w.Flush()
	return w.Error()
}

func (a *App) handleToggleSubscriber(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	sub, err := a.Store.ToggleSubscriber(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}
	state := "deactivated"
	if sub.Active {
		state = "activated"
	}
	return a.renderNewsletter(c, http.StatusOK, sub.Email+" "+state)
}

func (a *App) handleDeleteSubscriber(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	n, err := a.Store.DeleteSubscribers(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if n == 0 {
		return echo.ErrNotFound
	}
	return a.renderNewsletter(c, http.StatusOK, "Subscriber deleted")
}

func (a *App) handleBulkDeleteSubscribers(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return err
	}
	var ids []int64
	for _, raw := range form["ids"] {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return a.renderNewsletter(c, http.StatusBadRequest, "Select at least one subscriber")
	}
	n, err := a.Store.DeleteSubscribers(c.Request().Context(), ids...)
	if err != nil {
		return err
	}
	return a.renderNewsletter(c, http.StatusOK, fmt.Sprintf("Deleted %d subscribers", n))
}

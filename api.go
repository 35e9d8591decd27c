package ments

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/ments/newsletter"
)

type customNewsletterRequest struct {
	Subject string `json:"subject" form:"subject"`
	Content string `json:"content" form:"content"`
}

type postNewsletterRequest struct {
	BlogID        int64  `json:"blogId" form:"blogId"`
	Title         string `json:"title" form:"title"`
	Slug          string `json:"slug" form:"slug"`
	Excerpt       string `json:"excerpt" form:"excerpt"`
	FeaturedImage string `json:"featuredImage" form:"featuredImage"`
	Content       string `json:"content" form:"content"`
}

type newsletterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count"`
	Failed  int    `json:"failed,omitempty"`
	JobID   string `json:"jobId,omitempty"`
}

func (a *App) handleSendCustomNewsletter(c echo.Context) error {
	var req customNewsletterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid request body"))
	}
	return a.sendNewsletter(c, newsletter.CustomMessage(req.Subject, req.Content))
}

func (a *App) handleSendPostNewsletter(c echo.Context) error {
	var req postNewsletterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid request body"))
	}
	return a.sendNewsletter(c, newsletter.PostMessage(newsletter.Post{
		ID:            req.BlogID,
		Title:         req.Title,
		Slug:          req.Slug,
		Excerpt:       req.Excerpt,
		FeaturedImage: req.FeaturedImage,
		Content:       req.Content,
	}))
}

// sendNewsletter queues msg on the dispatcher, or broadcasts it inline
// when async delivery is disabled.
func (a *App) sendNewsletter(c echo.Context, msg newsletter.Message) error {
	ctx := c.Request().Context()
	if err := msg.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}

	if a.Dispatcher == nil {
		res, err := a.Newsletter.Broadcast(ctx, msg)
		if err != nil {
			return a.newsletterError(c, err)
		}
		if res.Sent+res.Failed == 0 {
			return c.JSON(http.StatusOK, newsletterResponse{Success: true, Message: "No subscribers to notify"})
		}
		return c.JSON(http.StatusOK, newsletterResponse{
			Success: true,
			Message: fmt.Sprintf("Newsletter sent to %d subscribers", res.Sent),
			Count:   res.Sent,
			Failed:  res.Failed,
		})
	}

	count, err := a.Newsletter.ActiveCount(ctx)
	if err != nil {
		return a.newsletterError(c, err)
	}
	if count == 0 {
		return c.JSON(http.StatusOK, newsletterResponse{Success: true, Message: "No subscribers to notify"})
	}
	job, err := a.Dispatcher.Enqueue(ctx, msg)
	if err != nil {
		return a.newsletterError(c, err)
	}
	return c.JSON(http.StatusAccepted, newsletterResponse{
		Success: true,
		Message: fmt.Sprintf("Newsletter queued for %d subscribers", count),
		Count:   count,
		JobID:   job.ID,
	})
}

func (a *App) newsletterError(c echo.Context, err error) error {
	var ve *newsletter.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, errorBody(ve.Error()))
	}
	a.logger.ErrorContext(c.Request().Context(), "newsletter request failed", "error", err)
	return c.JSON(http.StatusInternalServerError, errorBody("Failed to send newsletter"))
}

func (a *App) handleNewsletterJob(c echo.Context) error {
	if a.Dispatcher == nil {
		return c.JSON(http.StatusNotFound, errorBody("Async delivery is disabled"))
	}
	job, err := a.Dispatcher.Job(c.Request().Context(), c.Param("id"))
	if errors.Is(err, newsletter.ErrJobNotFound) {
		return c.JSON(http.StatusNotFound, errorBody("Job not found"))
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

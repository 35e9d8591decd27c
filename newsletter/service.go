// Package newsletter renders newsletters and broadcasts them to active
// subscribers one email at a time.
package newsletter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/eringen/ments/mailer"
)

// DefaultSendsPerSecond paces broadcasts at roughly one email every 50ms.
const DefaultSendsPerSecond = 20

// SubscriberSource lists the addresses of active subscribers in a stable
// order.
type SubscriberSource interface {
	ActiveEmails(ctx context.Context) ([]string, error)
}

// SendLog is the audit record written once per broadcast.
type SendLog struct {
	PostID int64 // 0 for custom newsletters
	Title  string
	Sent   int
	Failed int
	SentAt time.Time
}

// LogWriter persists send logs.
type LogWriter interface {
	WriteSendLog(ctx context.Context, entry SendLog) error
}

// Pacer blocks until the next send may start.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Result summarises one broadcast.
type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Config wires a Service.
type Config struct {
	Subscribers SubscriberSource
	Logs        LogWriter
	Transport   mailer.Transport
	Site        Site

	// Pacer gates every send. When nil, a token bucket allowing
	// SendsPerSecond sends is used; a negative SendsPerSecond disables
	// pacing.
	Pacer          Pacer
	SendsPerSecond float64

	Logger *slog.Logger
}

// Service broadcasts newsletters.
type Service struct {
	subscribers SubscriberSource
	logs        LogWriter
	transport   mailer.Transport
	pacer       Pacer
	site        Site
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a Service from cfg.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	pacer := cfg.Pacer
	if pacer == nil && cfg.SendsPerSecond >= 0 {
		sps := cfg.SendsPerSecond
		if sps == 0 {
			sps = DefaultSendsPerSecond
		}
		pacer = rate.NewLimiter(rate.Limit(sps), 1)
	}
	return &Service{
		subscribers: cfg.Subscribers,
		logs:        cfg.Logs,
		transport:   cfg.Transport,
		pacer:       pacer,
		site:        cfg.Site,
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// ActiveCount returns the number of subscribers a broadcast would reach.
func (s *Service) ActiveCount(ctx context.Context) (int, error) {
	emails, err := s.subscribers.ActiveEmails(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: fetch subscribers: %w", ErrDependency, err)
	}
	return len(emails), nil
}

// Broadcast sends msg to every active subscriber. Per-recipient failures
// are counted, never returned. A send log is written once the loop ends,
// including when ctx is cancelled part way, in which case the partial
// result is returned together with the context error.
func (s *Service) Broadcast(ctx context.Context, msg Message) (Result, error) {
	if err := msg.Validate(); err != nil {
		return Result{}, err
	}
	emails, err := s.subscribers.ActiveEmails(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: fetch subscribers: %w", ErrDependency, err)
	}
	if len(emails) == 0 {
		s.logger.Info("newsletter has no recipients", "subject", msg.Subject)
		return Result{}, nil
	}

	p := prepare(msg, s.site, s.now())
	s.logger.Info("newsletter broadcast started",
		"kind", msg.Kind,
		"subject", msg.Subject,
		"recipients", len(emails))

	var res Result
	var stopErr error
	for _, to := range emails {
		if s.pacer != nil {
			if err := s.pacer.Wait(ctx); err != nil {
				stopErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}
		email, err := p.email(to)
		if err == nil {
			err = s.transport.Send(ctx, email)
		}
		if err != nil {
			res.Failed++
			s.logger.Warn("newsletter send failed", "to", to, "error", err)
			continue
		}
		res.Sent++
	}

	s.writeLog(context.WithoutCancel(ctx), SendLog{
		PostID: msg.Post.ID,
		Title:  msg.LogTitle(),
		Sent:   res.Sent,
		Failed: res.Failed,
		SentAt: s.now().UTC(),
	})
	s.logger.Info("newsletter broadcast finished",
		"subject", msg.Subject,
		"sent", res.Sent,
		"failed", res.Failed)

	if stopErr != nil {
		return res, fmt.Errorf("broadcast stopped after %d of %d recipients: %w",
			res.Sent+res.Failed, len(emails), stopErr)
	}
	return res, nil
}

func (s *Service) writeLog(ctx context.Context, entry SendLog) {
	if s.logs == nil {
		return
	}
	if err := s.logs.WriteSendLog(ctx, entry); err != nil {
		s.logger.Error("failed to write newsletter log",
			"title", entry.Title,
			"sent", entry.Sent,
			"failed", entry.Failed,
			"error", err)
	}
}

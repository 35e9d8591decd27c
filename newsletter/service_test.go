package newsletter

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/ments/mailer"
)

type fakeSubscribers struct {
	emails []string
	err    error
	calls  int
}

func (f *fakeSubscribers) ActiveEmails(context.Context) ([]string, error) {
	f.calls++
	return f.emails, f.err
}

type fakeLogs struct {
	mu      sync.Mutex
	entries []SendLog
	err     error
}

func (f *fakeLogs) WriteSendLog(_ context.Context, entry SendLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

type fakeTransport struct {
	mu     sync.Mutex
	sent   []mailer.Email
	fail   map[string]bool
	onSend func()
}

func (f *fakeTransport) Send(_ context.Context, msg mailer.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onSend != nil {
		f.onSend()
	}
	if f.fail[msg.To] {
		return mailer.ErrDelivery
	}
	f.sent = append(f.sent, msg)
	return nil
}

type countingPacer struct{ waits int }

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return ctx.Err()
}

var testSite = Site{Name: "ments.", URL: "https://ments.app", From: "news@ments.app"}

func newTestService(subs SubscriberSource, logs LogWriter, transport mailer.Transport) *Service {
	return NewService(Config{
		Subscribers:    subs,
		Logs:           logs,
		Transport:      transport,
		Site:           testSite,
		SendsPerSecond: -1,
	})
}

func TestBroadcastNoSubscribers(t *testing.T) {
	transport := &fakeTransport{}
	logs := &fakeLogs{}
	svc := newTestService(&fakeSubscribers{}, logs, transport)

	res, err := svc.Broadcast(context.Background(), CustomMessage("Hi", "Body"))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, transport.sent)
	assert.Empty(t, logs.entries)
}

func TestBroadcastCountsFailures(t *testing.T) {
	subs := &fakeSubscribers{emails: []string{"a@x.io", "b@x.io", "c@x.io"}}
	transport := &fakeTransport{fail: map[string]bool{"b@x.io": true}}
	logs := &fakeLogs{}
	svc := newTestService(subs, logs, transport)

	res, err := svc.Broadcast(context.Background(), CustomMessage("Weekly", "**news**"))
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 2, Failed: 1}, res)

	require.Len(t, logs.entries, 1)
	assert.Equal(t, 2, logs.entries[0].Sent)
	assert.Equal(t, 1, logs.entries[0].Failed)
	assert.Equal(t, "Weekly", logs.entries[0].Title)
	assert.Zero(t, logs.entries[0].PostID)

	require.Len(t, transport.sent, 2)
	assert.Equal(t, "a@x.io", transport.sent[0].To)
	assert.Equal(t, "c@x.io", transport.sent[1].To)
}

func TestBroadcastValidation(t *testing.T) {
	tests := []struct {
		name   string
		msg    Message
		fields []string
	}{
		{"missing subject", CustomMessage("  ", "body"), []string{"subject"}},
		{"missing content", CustomMessage("Subject", ""), []string{"content"}},
		{"missing both", CustomMessage("", ""), []string{"subject", "content"}},
		{"post missing title", PostMessage(Post{Slug: "s"}), []string{"title"}},
		{"post missing slug", PostMessage(Post{Title: "T"}), []string{"slug"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := &fakeSubscribers{emails: []string{"a@x.io"}}
			transport := &fakeTransport{}
			svc := newTestService(subs, &fakeLogs{}, transport)

			_, err := svc.Broadcast(context.Background(), tt.msg)
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.fields, verr.Fields)
			assert.Zero(t, subs.calls, "subscribers must not be fetched")
			assert.Empty(t, transport.sent)
		})
	}
}

func TestBroadcastSubscriberFetchError(t *testing.T) {
	subs := &fakeSubscribers{err: errors.New("db locked")}
	logs := &fakeLogs{}
	svc := newTestService(subs, logs, &fakeTransport{})

	_, err := svc.Broadcast(context.Background(), CustomMessage("Hi", "Body"))
	assert.ErrorIs(t, err, ErrDependency)
	assert.Empty(t, logs.entries)
}

func TestBroadcastLogFailureIsSwallowed(t *testing.T) {
	subs := &fakeSubscribers{emails: []string{"a@x.io"}}
	svc := newTestService(subs, &fakeLogs{err: errors.New("disk full")}, &fakeTransport{})

	res, err := svc.Broadcast(context.Background(), CustomMessage("Hi", "Body"))
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 1}, res)
}

func TestBroadcastPostEmail(t *testing.T) {
	subs := &fakeSubscribers{emails: []string{"reader+1@example.com"}}
	transport := &fakeTransport{}
	logs := &fakeLogs{}
	svc := newTestService(subs, logs, transport)

	msg := PostMessage(Post{
		ID:            7,
		Title:         "Go Tips",
		Slug:          "go-tips",
		Excerpt:       "Short intro",
		FeaturedImage: "https://ments.app/uploads/cover.jpg",
		Content:       "# Heading\n\nSome **bold** text",
	})
	res, err := svc.Broadcast(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 1}, res)

	require.Len(t, transport.sent, 1)
	email := transport.sent[0]
	assert.Equal(t, "📝 Go Tips", email.Subject)
	assert.Equal(t, "news@ments.app", email.From)
	assert.Contains(t, email.HTML, "https://ments.app/unsubscribe?email=reader%2B1%40example.com")
	assert.Contains(t, email.HTML, "https://ments.app/blog/go-tips")
	assert.Contains(t, email.HTML, "<strong")
	assert.Contains(t, email.HTML, "https://ments.app/uploads/cover.jpg")
	assert.Contains(t, email.Text, "Some bold text")
	assert.Contains(t, email.Text, "Read online: https://ments.app/blog/go-tips")
	assert.NotContains(t, email.Text, "**")

	require.Len(t, logs.entries, 1)
	assert.Equal(t, int64(7), logs.entries[0].PostID)
	assert.Equal(t, "Go Tips", logs.entries[0].Title)
}

func TestBroadcastUploadedImagesAreAbsolute(t *testing.T) {
	subs := &fakeSubscribers{emails: []string{"a@x.io"}}
	transport := &fakeTransport{}
	svc := newTestService(subs, &fakeLogs{}, transport)

	_, err := svc.Broadcast(context.Background(), PostMessage(Post{
		Title:         "Shots",
		Slug:          "shots",
		FeaturedImage: "/uploads/cover-1234.jpg",
		Content:       "![shot](/uploads/shot-99.jpg)\n\n[about](/about)",
	}))
	require.NoError(t, err)
	require.Len(t, transport.sent, 1)
	html := transport.sent[0].HTML
	assert.Contains(t, html, `src="https://ments.app/uploads/cover-1234.jpg"`)
	assert.Contains(t, html, `src="https://ments.app/uploads/shot-99.jpg"`)
	assert.Contains(t, html, `href="https://ments.app/about"`)
	assert.NotContains(t, html, `src="/uploads/`)

	_, err = svc.Broadcast(context.Background(), CustomMessage("News", "![shot](/uploads/shot-99.jpg)"))
	require.NoError(t, err)
	require.Len(t, transport.sent, 2)
	assert.Contains(t, transport.sent[1].HTML, `src="https://ments.app/uploads/shot-99.jpg"`)
}

func TestBroadcastCustomEmailEscapesSubject(t *testing.T) {
	subs := &fakeSubscribers{emails: []string{"a@x.io"}}
	transport := &fakeTransport{}
	svc := newTestService(subs, &fakeLogs{}, transport)

	_, err := svc.Broadcast(context.Background(), CustomMessage("<b>News</b>", "hello"))
	require.NoError(t, err)
	require.Len(t, transport.sent, 1)
	assert.Contains(t, transport.sent[0].HTML, "&lt;b&gt;News&lt;/b&gt;")
	assert.Contains(t, transport.sent[0].Text, "Unsubscribe: https://ments.app/unsubscribe?email=a%40x.io")
}

func TestBroadcastPacesEverySend(t *testing.T) {
	subs := &fakeSubscribers{emails: []string{"a@x.io", "b@x.io", "c@x.io"}}
	pacer := &countingPacer{}
	svc := NewService(Config{
		Subscribers: subs,
		Logs:        &fakeLogs{},
		Transport:   &fakeTransport{},
		Site:        testSite,
		Pacer:       pacer,
	})

	_, err := svc.Broadcast(context.Background(), CustomMessage("Hi", "Body"))
	require.NoError(t, err)
	assert.Equal(t, 3, pacer.waits)
}

func TestBroadcastCancelLogsPartialCounts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subs := &fakeSubscribers{emails: []string{"a@x.io", "b@x.io", "c@x.io"}}
	transport := &fakeTransport{onSend: cancel}
	logs := &fakeLogs{}
	svc := newTestService(subs, logs, transport)

	res, err := svc.Broadcast(ctx, CustomMessage("Hi", "Body"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Result{Sent: 1}, res)
	require.Len(t, logs.entries, 1)
	assert.Equal(t, 1, logs.entries[0].Sent)
}

func TestActiveCount(t *testing.T) {
	svc := newTestService(&fakeSubscribers{emails: []string{"a@x.io", "b@x.io"}}, nil, &fakeTransport{})
	n, err := svc.ActiveCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

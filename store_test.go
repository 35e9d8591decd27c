package ments

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/ments/newsletter"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createPost(t *testing.T, s *Store, p Post) Post {
	t.Helper()
	if p.Content == "" {
		p.Content = "Body of " + p.Title
	}
	id, err := s.CreatePost(context.Background(), p)
	require.NoError(t, err)
	got, err := s.GetPost(context.Background(), id)
	require.NoError(t, err)
	return got
}

func TestNewStoreSeedsCategories(t *testing.T) {
	s := newTestStore(t)
	cats, err := s.ListCategories(context.Background())
	require.NoError(t, err)
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Design", "Life", "Productivity", "Technology"}, names)
}

func TestCreateAndGetPost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := createPost(t, s, Post{
		Title:    "Hello World",
		Slug:     "hello-world",
		Excerpt:  "First post",
		Category: "Technology",
		Tags:     []string{"Go", " web "},
		Status:   StatusPublished,
	})
	assert.True(t, p.Published())
	require.NotNil(t, p.PublishedAt)
	assert.Equal(t, []string{"go", "web"}, p.Tags)
	assert.Equal(t, "/blog/hello-world/", p.Link())

	got, err := s.GetPublishedPost(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "First post", got.Excerpt)
}

func TestDraftIsNotPublic(t *testing.T) {
	s := newTestStore(t)
	createPost(t, s, Post{Title: "Draft", Slug: "draft"})

	_, err := s.GetPublishedPost(context.Background(), "draft")
	assert.ErrorIs(t, err, ErrNotFound)

	posts, err := s.ListPublished(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestCreatePostDuplicateSlug(t *testing.T) {
	s := newTestStore(t)
	createPost(t, s, Post{Title: "One", Slug: "same"})

	_, err := s.CreatePost(context.Background(), Post{Title: "Two", Slug: "same", Content: "x"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestTogglePostStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := createPost(t, s, Post{Title: "Toggle", Slug: "toggle"})
	require.Nil(t, p.PublishedAt)

	published, err := s.TogglePostStatus(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)
	assert.False(t, published.UpdatedAt.Before(p.UpdatedAt))

	draft, err := s.TogglePostStatus(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, draft.Status)
	assert.Nil(t, draft.PublishedAt)

	_, err = s.TogglePostStatus(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePostKeepsPublishedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := createPost(t, s, Post{Title: "Live", Slug: "live", Status: StatusPublished})

	p.Title = "Live (edited)"
	require.NoError(t, s.UpdatePost(ctx, p))
	got, err := s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Live (edited)", got.Title)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, got.PublishedAt.Equal(*p.PublishedAt))

	got.Status = StatusDraft
	require.NoError(t, s.UpdatePost(ctx, got))
	got, err = s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PublishedAt)
}

func TestDeletePost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := createPost(t, s, Post{Title: "Gone", Slug: "gone"})

	require.NoError(t, s.DeletePost(ctx, p.ID))
	_, err := s.GetPost(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeletePost(ctx, p.ID), ErrNotFound)
}

func TestListTags(t *testing.T) {
	s := newTestStore(t)
	createPost(t, s, Post{Title: "A", Slug: "a", Tags: []string{"go", "web"}, Status: StatusPublished})
	createPost(t, s, Post{Title: "B", Slug: "b", Tags: []string{"Go", "sql"}, Status: StatusPublished})
	createPost(t, s, Post{Title: "C", Slug: "c", Tags: []string{"secret"}})

	tags, err := s.ListTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "sql", "web"}, tags)
}

func TestCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := createPost(t, s, Post{Title: "Counted", Slug: "counted", Status: StatusPublished})

	views, err := s.IncrementViews(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, views)
	views, err = s.IncrementViews(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, views)

	likes, err := s.AdjustLikes(ctx, "counted", -1)
	require.NoError(t, err)
	assert.Equal(t, 0, likes, "unlike never goes below zero")
	likes, err = s.AdjustLikes(ctx, "counted", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, likes)

	_, err = s.AdjustLikes(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountersIgnoreDrafts(t *testing.T) {
	s := newTestStore(t)
	p := createPost(t, s, Post{Title: "Draft", Slug: "draft"})

	_, err := s.IncrementViews(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubscribe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "  Reader@Example.com ", SourceWebsite)
	require.NoError(t, err)
	assert.False(t, sub.Reactivated)
	assert.Equal(t, "reader@example.com", sub.Email)
	assert.True(t, sub.Active)

	_, err = s.Subscribe(ctx, "reader@example.com", SourceWebsite)
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = s.Subscribe(ctx, "not-an-email", SourceWebsite)
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestSubscribeReactivates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Subscribe(ctx, "back@example.com", SourceWebsite)
	require.NoError(t, err)
	require.NoError(t, s.Unsubscribe(ctx, "back@example.com"))

	sub, err := s.Subscribe(ctx, "back@example.com", SourceWebsite)
	require.NoError(t, err)
	assert.True(t, sub.Active)
	assert.True(t, sub.Reactivated)

	n, err := s.CountActiveSubscribers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUnsubscribe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Subscribe(ctx, "leaving@example.com", SourceWebsite)
	require.NoError(t, err)

	require.NoError(t, s.Unsubscribe(ctx, "LEAVING@example.com"))
	assert.ErrorIs(t, s.Unsubscribe(ctx, "leaving@example.com"), ErrAlreadyUnsubscribed)
	assert.ErrorIs(t, s.Unsubscribe(ctx, "stranger@example.com"), ErrNotFound)

	emails, err := s.ActiveEmails(ctx)
	require.NoError(t, err)
	assert.Empty(t, emails)
}

func TestAddSubscribers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Subscribe(ctx, "existing@example.com", SourceWebsite)
	require.NoError(t, err)

	res, err := s.AddSubscribers(ctx, []string{
		"one@example.com", "existing@example.com", "two@example.com", "bogus", "ONE@example.com",
	}, SourceManual)
	require.NoError(t, err)
	assert.Equal(t, BulkResult{Added: 2, Skipped: 2, Invalid: 1}, res)

	subs, err := s.ListSubscribers(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	sources := map[string]string{}
	for _, sub := range subs {
		sources[sub.Email] = sub.Source
	}
	assert.Equal(t, SourceManual, sources["one@example.com"])
	assert.Equal(t, SourceWebsite, sources["existing@example.com"])
}

func TestActiveEmailsInInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, e := range []string{"c@example.com", "a@example.com", "b@example.com"} {
		_, err := s.Subscribe(ctx, e, SourceWebsite)
		require.NoError(t, err)
	}
	a, err := s.GetSubscriberByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	toggled, err := s.ToggleSubscriber(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Active)

	emails, err := s.ActiveEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c@example.com", "b@example.com"}, emails)
}

func TestDeleteSubscribers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	var ids []int64
	for _, e := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		sub, err := s.Subscribe(ctx, e, SourceWebsite)
		require.NoError(t, err)
		ids = append(ids, sub.ID)
	}

	n, err := s.DeleteSubscribers(ctx, ids[0], ids[2], 9999)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteSubscribers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	emails, err := s.ActiveEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b@example.com"}, emails)
}

func TestSendLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteSendLog(ctx, newsletter.SendLog{Title: "Custom", Sent: 2, Failed: 1}))
	require.NoError(t, s.WriteSendLog(ctx, newsletter.SendLog{PostID: 7, Title: "Post", Sent: 3}))

	logs, err := s.ListSendLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	byTitle := map[string]SendLog{}
	for _, l := range logs {
		byTitle[l.Title] = l
	}
	custom := byTitle["Custom"]
	assert.Nil(t, custom.PostID)
	assert.Equal(t, 2, custom.RecipientsCount)
	assert.Equal(t, 1, custom.FailedCount)
	assert.False(t, custom.SentAt.IsZero())

	post := byTitle["Post"]
	require.NotNil(t, post.PostID)
	assert.Equal(t, int64(7), *post.PostID)
}

func TestJobStoreLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := newsletter.Job{
		ID:        "job-1",
		Message:   newsletter.PostMessage(newsletter.Post{ID: 3, Title: "Go Tips", Slug: "go-tips", Content: "**hi**"}),
		Status:    newsletter.JobQueued,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, newsletter.JobQueued, got.Status)
	assert.Equal(t, newsletter.KindPost, got.Message.Kind)
	assert.Equal(t, "go-tips", got.Message.Post.Slug)
	assert.Nil(t, got.FinishedAt)

	queued, err := s.ListQueuedJobs(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 1)

	require.NoError(t, s.MarkJobRunning(ctx, "job-1"))
	assert.ErrorIs(t, s.MarkJobRunning(ctx, "job-1"), newsletter.ErrJobNotFound, "only queued jobs can start")

	n, err := s.FailRunningJobs(ctx, newsletter.InterruptedReason)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, newsletter.JobFailed, got.Status)
	assert.Equal(t, newsletter.InterruptedReason, got.Error)
	assert.NotNil(t, got.FinishedAt)

	_, err = s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, newsletter.ErrJobNotFound)
}

func TestFinishJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, newsletter.Job{
		ID:        "job-2",
		Message:   newsletter.CustomMessage("Hello", "Body"),
		Status:    newsletter.JobQueued,
		CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, s.MarkJobRunning(ctx, "job-2"))
	require.NoError(t, s.FinishJob(ctx, "job-2", newsletter.JobDone, newsletter.Result{Sent: 4, Failed: 1}, ""))

	got, err := s.GetJob(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, newsletter.JobDone, got.Status)
	assert.Equal(t, 4, got.Sent)
	assert.Equal(t, 1, got.Failed)

	queued, err := s.ListQueuedJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestAdmins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	admin, err := s.CreateAdmin(ctx, "editor@ments.app", "hash", "token-1")
	require.NoError(t, err)
	assert.False(t, admin.Verified)

	_, err = s.CreateAdmin(ctx, "editor@ments.app", "hash", "token-2")
	assert.ErrorIs(t, err, ErrDuplicate)

	verified, err := s.VerifyAdmin(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, verified.Verified)

	_, err = s.VerifyAdmin(ctx, "token-1")
	assert.ErrorIs(t, err, ErrNotFound, "tokens are single use")
	_, err = s.VerifyAdmin(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetAdminByEmail(ctx, "editor@ments.app")
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.Empty(t, got.VerifyToken)
}

func TestResetUnverifiedAdmin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ResetUnverifiedAdmin(ctx, "ghost@ments.app", "hash", "token")
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := s.CreateAdmin(ctx, "pending@ments.app", "old-hash", "token-1")
	require.NoError(t, err)

	reset, err := s.ResetUnverifiedAdmin(ctx, "pending@ments.app", "new-hash", "token-2")
	require.NoError(t, err)
	assert.Equal(t, created.ID, reset.ID)
	assert.Equal(t, "token-2", reset.VerifyToken)

	_, err = s.VerifyAdmin(ctx, "token-1")
	assert.ErrorIs(t, err, ErrNotFound, "the old token is replaced")
	verified, err := s.VerifyAdmin(ctx, "token-2")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", verified.PasswordHash)

	_, err = s.ResetUnverifiedAdmin(ctx, "pending@ments.app", "hash", "token-3")
	assert.ErrorIs(t, err, ErrDuplicate, "verified accounts cannot be reset")
}

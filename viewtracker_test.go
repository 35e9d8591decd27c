package ments

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryViewTrackerCountsOncePerWindow(t *testing.T) {
	tracker := NewMemoryViewTracker(time.Hour)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := tracker.FirstView(ctx, 1, "visitor-a")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := tracker.FirstView(ctx, 1, "visitor-a")
	require.NoError(t, err)
	assert.False(t, again, "same visitor within window")

	other, _ := tracker.FirstView(ctx, 2, "visitor-a")
	assert.True(t, other, "different post")

	otherVisitor, _ := tracker.FirstView(ctx, 1, "visitor-b")
	assert.True(t, otherVisitor, "different visitor")

	now = now.Add(2 * time.Hour)
	expired, _ := tracker.FirstView(ctx, 1, "visitor-a")
	assert.True(t, expired, "window elapsed")
}

func TestIsBot(t *testing.T) {
	tests := []struct {
		ua   string
		want bool
	}{
		{"", true},
		{"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", true},
		{"Mozilla/5.0 (compatible; bingbot/2.0; +http://www.bing.com/bingbot.htm)", true},
		{"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36", false},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsBot(tt.ua), tt.ua)
	}
}

func TestVisitorIDIsStableAndOpaque(t *testing.T) {
	a := VisitorID("secret", "203.0.113.5", "UA")
	assert.Equal(t, a, VisitorID("secret", "203.0.113.5", "UA"))
	assert.NotEqual(t, a, VisitorID("secret", "203.0.113.6", "UA"))
	assert.NotContains(t, a, "203.0.113.5")
	assert.Len(t, a, 16)
}

func TestRedisViewTracker(t *testing.T) {
	url := os.Getenv("MENTS_TEST_REDIS_URL")
	if url == "" {
		t.Skip("Skipping Redis tests: MENTS_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	tracker, err := NewRedisViewTracker(ctx, url, "ments-test:", time.Minute)
	require.NoError(t, err)
	defer tracker.Close()

	visitor := VisitorID("test", time.Now().String(), "ua")
	first, err := tracker.FirstView(ctx, 42, visitor)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := tracker.FirstView(ctx, 42, visitor)
	require.NoError(t, err)
	assert.False(t, again)
}

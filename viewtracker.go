package ments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mileusna/useragent"
	"github.com/redis/go-redis/v9"
)

// ViewWindow is how long a visitor's view of a post is remembered.
const ViewWindow = 24 * time.Hour

// ViewTracker decides whether a post view is the first from a visitor
// within the tracking window.
type ViewTracker interface {
	FirstView(ctx context.Context, postID int64, visitor string) (bool, error)
	Close() error
}

// VisitorID derives an anonymous visitor key from the client IP and
// User-Agent. The raw IP is never stored.
func VisitorID(secret, ip, userAgent string) string {
	h := sha256.New()
	h.Write([]byte(secret + "|" + ip + "|" + userAgent))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

var botMarkers = []string{"bot", "crawler", "spider", "slurp", "preview", "headless"}

// IsBot reports whether a User-Agent belongs to a crawler or is missing.
func IsBot(userAgent string) bool {
	if strings.TrimSpace(userAgent) == "" {
		return true
	}
	if useragent.Parse(userAgent).Bot {
		return true
	}
	lower := strings.ToLower(userAgent)
	for _, m := range botMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// MemoryViewTracker keeps view markers in process memory.
type MemoryViewTracker struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	window  time.Duration
	inserts int
	now     func() time.Time
}

// NewMemoryViewTracker creates a tracker remembering views for window.
func NewMemoryViewTracker(window time.Duration) *MemoryViewTracker {
	return &MemoryViewTracker{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// FirstView records the view and reports whether it is new.
func (t *MemoryViewTracker) FirstView(_ context.Context, postID int64, visitor string) (bool, error) {
	key := viewKey(postID, visitor)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if expires, ok := t.seen[key]; ok && now.Before(expires) {
		return false, nil
	}
	t.seen[key] = now.Add(t.window)
	t.inserts++
	if t.inserts%1000 == 0 {
		for k, expires := range t.seen {
			if !now.Before(expires) {
				delete(t.seen, k)
			}
		}
	}
	return true, nil
}

// Close is a no-op.
func (t *MemoryViewTracker) Close() error { return nil }

// RedisViewTracker shares view markers between instances through Redis.
type RedisViewTracker struct {
	client *redis.Client
	prefix string
	window time.Duration
}

// NewRedisViewTracker connects to the Redis server at url.
func NewRedisViewTracker(ctx context.Context, url, prefix string, window time.Duration) (*RedisViewTracker, error) {
	if url == "" {
		return nil, errors.New("redis URL is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisViewTracker{client: client, prefix: prefix, window: window}, nil
}

// FirstView sets the marker only if absent and reports whether it did.
func (t *RedisViewTracker) FirstView(ctx context.Context, postID int64, visitor string) (bool, error) {
	ok, err := t.client.SetNX(ctx, t.prefix+viewKey(postID, visitor), 1, t.window).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Close closes the Redis client.
func (t *RedisViewTracker) Close() error {
	return t.client.Close()
}

func viewKey(postID int64, visitor string) string {
	return "view:" + strconv.FormatInt(postID, 10) + ":" + visitor
}

package newsletter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnsubscribeURL(t *testing.T) {
	site := Site{URL: "https://ments.app"}
	tests := []struct {
		email string
		want  string
	}{
		{"a@b.co", "https://ments.app/unsubscribe?email=a%40b.co"},
		{"first.last+tag@b.co", "https://ments.app/unsubscribe?email=first.last%2Btag%40b.co"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, site.UnsubscribeURL(tt.email))
	}
}

func TestPostMessageSubjectPrefix(t *testing.T) {
	msg := PostMessage(Post{Title: "  Hello  ", Slug: "hello"})
	assert.Equal(t, "📝 Hello", msg.Subject)
	assert.Equal(t, "Hello", msg.LogTitle())
	assert.NoError(t, msg.Validate())
}

func TestCustomMessageLogTitle(t *testing.T) {
	msg := CustomMessage("Monthly digest", "body")
	assert.Equal(t, "Monthly digest", msg.LogTitle())
	assert.Equal(t, KindCustom, msg.Kind)
}

func TestPrepareTrimsSiteURL(t *testing.T) {
	p := prepare(PostMessage(Post{Title: "T", Slug: "t"}), Site{URL: "https://ments.app/"}, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "March 4, 2025", p.date)
	assert.Contains(t, p.text, "Read online: https://ments.app/blog/t")
}

func TestPostTextFallsBackToExcerpt(t *testing.T) {
	p := prepare(PostMessage(Post{Title: "T", Slug: "t", Excerpt: "the **gist**"}), Site{URL: "https://ments.app"}, time.Now())
	assert.Contains(t, p.text, "the gist")
	assert.Empty(t, p.body)
}

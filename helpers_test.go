package ments

import (
	"reflect"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello-world"},
		{"Café au lait!", "cafe-au-lait"},
		{"  Go 1.24: What's New?  ", "go-1-24-what-s-new"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseEmails(t *testing.T) {
	text := "alice@example.com, Bob@Example.org\nnot-an-email;carol@test.io alice@example.com"
	got := ParseEmails(text)
	want := []string{"alice@example.com", "bob@example.org", "carol@test.io"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseEmails = %v, want %v", got, want)
	}
	if got := ParseEmails("nothing here"); len(got) != 0 {
		t.Fatalf("expected no emails, got %v", got)
	}
}

func TestValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "first.last+tag@example.com"}
	invalid := []string{"", "plain", "a@b", "a @b.co", "@b.co"}
	for _, e := range valid {
		if !ValidEmail(e) {
			t.Errorf("ValidEmail(%q) = false, want true", e)
		}
	}
	for _, e := range invalid {
		if ValidEmail(e) {
			t.Errorf("ValidEmail(%q) = true, want false", e)
		}
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base string
		segs []string
		want string
	}{
		{"https://ments.app", nil, "https://ments.app"},
		{"https://ments.app", []string{"blog", "hello"}, "https://ments.app/blog/hello/"},
		{"https://ments.app/sub", []string{"feed.xml"}, "https://ments.app/sub/feed.xml/"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.segs...); got != tt.want {
			t.Errorf("BuildURL(%q, %v) = %q, want %q", tt.base, tt.segs, got, tt.want)
		}
	}
}

func TestSplitTags(t *testing.T) {
	got := SplitTags("go, web ,, , sql")
	want := []string{"go", "web", "sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitTags = %v, want %v", got, want)
	}
}

func TestFilterRelatedPosts(t *testing.T) {
	current := Post{Slug: "a", Category: "Technology", Tags: []string{"Go"}}
	posts := []Post{
		current,
		{Slug: "b", Category: "Technology"},
		{Slug: "c", Category: "Life", Tags: []string{"go"}},
		{Slug: "d", Category: "Design", Tags: []string{"css"}},
	}
	var slugs []string
	for _, p := range FilterRelatedPosts(current, posts) {
		slugs = append(slugs, p.Slug)
	}
	if want := []string{"b", "c"}; !reflect.DeepEqual(slugs, want) {
		t.Fatalf("related = %v, want %v", slugs, want)
	}
}

func TestBlogPostingJsonLD(t *testing.T) {
	cfg := SiteConfig{Name: "ments.", URL: "https://ments.app", Author: "Ada"}
	ld := BlogPostingJsonLD(Post{Title: "Hello", Slug: "hello", Tags: []string{"go"}}, cfg)
	for _, want := range []string{`"@type":"BlogPosting"`, `"headline":"Hello"`, "https://ments.app/blog/hello/"} {
		if !strings.Contains(ld, want) {
			t.Errorf("JSON-LD missing %s: %s", want, ld)
		}
	}
}

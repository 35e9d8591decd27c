package views

import (
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/eringen/ments"
)

var funcs = template.FuncMap{
	"pathEscape":  url.PathEscape,
	"queryEscape": url.QueryEscape,
	"joinTags":    ments.JoinTags,
	"formatDate":  FormatDate,
	"tagClass":    TagClass,
	"readingTime": ReadingTime,
	"trustedHTML": func(s string) template.HTML { return template.HTML(s) },
	"jsonLD":      func(s string) template.JS { return template.JS(s) },
	"websiteLD":   func(cfg ments.SiteConfig) template.JS { return template.JS(ments.WebsiteJsonLD(cfg)) },
	"lower":       strings.ToLower,
	"deref": func(t *time.Time) time.Time {
		if t == nil {
			return time.Time{}
		}
		return *t
	},
}

// FormatDate renders a date the way the blog lists show it. The zero time
// renders as a dash.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("Jan 2, 2006")
}

// TagClass returns CSS classes for a tag pill, with active variant.
func TagClass(active bool) string {
	base := "tag"
	if active {
		base += " tag-active"
	}
	return base
}

// ReadingTime estimates minutes to read markdown at 200 words per minute.
func ReadingTime(md string) int {
	words := len(strings.Fields(md))
	minutes := (words + 199) / 200
	if minutes < 1 {
		return 1
	}
	return minutes
}

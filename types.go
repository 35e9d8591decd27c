package ments

import "time"

// Post status values.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Subscriber sources.
const (
	SourceWebsite   = "website"
	SourceManual    = "manual"
	SourceCSVImport = "csv_import"
)

// Post is the core content type stored in SQLite and rendered by the views.
type Post struct {
	ID            int64
	Title         string
	Slug          string
	Content       string // markdown
	Excerpt       string
	FeaturedImage string
	Category      string
	Tags          []string
	Status        string
	AuthorID      int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PublishedAt   *time.Time
	Views         int
	Likes         int
}

// Published reports whether the post is publicly visible.
func (p Post) Published() bool {
	return p.Status == StatusPublished
}

// Link is the site-relative address of the post.
func (p Post) Link() string {
	return "/blog/" + p.Slug + "/"
}

// Date returns the publication date, or the creation date for drafts.
func (p Post) Date() time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}

// Subscriber is a newsletter recipient.
type Subscriber struct {
	ID           int64
	Email        string
	Active       bool
	Source       string
	SubscribedAt time.Time

	// Reactivated is set by Subscribe when an inactive address was
	// re-enabled rather than inserted.
	Reactivated bool
}

// SendLog is one row of newsletter history.
type SendLog struct {
	ID              int64
	PostID          *int64
	Title           string
	RecipientsCount int
	FailedCount     int
	SentAt          time.Time
}

// Admin is a back-office account.
type Admin struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
	Verified     bool
	VerifyToken  string
	CreatedAt    time.Time
}

// Category groups posts on the home page.
type Category struct {
	ID   int64
	Name string
	Slug string
}

// Image is an uploaded file in the image bucket.
type Image struct {
	Filename     string
	OriginalName string
	Width        int
	Height       int
	Size         int
	UploadedAt   time.Time
}

// BulkResult reports the outcome of adding many subscribers at once.
type BulkResult struct {
	Added   int
	Skipped int
	Invalid int
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
}

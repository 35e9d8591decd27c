package newsletter

import (
	"net/url"
	"strings"
	"time"

	"github.com/eringen/ments/mailer"
	"github.com/eringen/ments/markdown"
)

// Kind distinguishes free-form newsletters from post announcements.
type Kind string

const (
	KindCustom Kind = "custom"
	KindPost   Kind = "post"
)

// PostSubjectPrefix is prepended to the title of a post announcement.
const PostSubjectPrefix = "📝 "

// Post is the part of a blog post needed to email it in full.
type Post struct {
	ID            int64  `json:"id,omitempty"`
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	Excerpt       string `json:"excerpt,omitempty"`
	FeaturedImage string `json:"featuredImage,omitempty"`
	Content       string `json:"content,omitempty"`
}

// Message is a newsletter ready for broadcast.
type Message struct {
	Kind    Kind   `json:"kind"`
	Subject string `json:"subject"`
	Content string `json:"content"` // markdown
	Post    Post   `json:"post"`
}

// CustomMessage builds a free-form newsletter.
func CustomMessage(subject, content string) Message {
	return Message{
		Kind:    KindCustom,
		Subject: strings.TrimSpace(subject),
		Content: content,
	}
}

// PostMessage builds an announcement that carries the whole post.
func PostMessage(p Post) Message {
	p.Title = strings.TrimSpace(p.Title)
	p.Slug = strings.TrimSpace(p.Slug)
	return Message{
		Kind:    KindPost,
		Subject: PostSubjectPrefix + p.Title,
		Content: p.Content,
		Post:    p,
	}
}

// Validate reports missing required fields as a *ValidationError.
func (m Message) Validate() error {
	switch m.Kind {
	case KindPost:
		var missing []string
		if m.Post.Title == "" {
			missing = append(missing, "title")
		}
		if m.Post.Slug == "" {
			missing = append(missing, "slug")
		}
		if len(missing) > 0 {
			return &ValidationError{Fields: missing, Message: "Title and slug are required"}
		}
	default:
		var missing []string
		if strings.TrimSpace(m.Subject) == "" {
			missing = append(missing, "subject")
		}
		if strings.TrimSpace(m.Content) == "" {
			missing = append(missing, "content")
		}
		if len(missing) > 0 {
			return &ValidationError{Fields: missing, Message: "Subject and content are required"}
		}
	}
	return nil
}

// LogTitle is the title recorded in the send log.
func (m Message) LogTitle() string {
	if m.Kind == KindPost {
		return m.Post.Title
	}
	return m.Subject
}

// Site describes the sending site. URL has no trailing slash.
type Site struct {
	Name string
	URL  string
	From string
}

// UnsubscribeURL returns the per-recipient opt-out link.
func (s Site) UnsubscribeURL(email string) string {
	return s.URL + "/unsubscribe?email=" + url.QueryEscape(email)
}

// PostURL returns the public address of the post with slug.
func (s Site) PostURL(slug string) string {
	return s.URL + "/blog/" + slug
}

// prepared holds the recipient-independent parts of a message, rendered
// once per broadcast.
type prepared struct {
	msg  Message
	site Site
	body string
	text string
	date string
}

func prepare(m Message, site Site, now time.Time) prepared {
	site.URL = strings.TrimRight(site.URL, "/")
	p := prepared{msg: m, site: site, date: now.Format("January 2, 2006")}
	// Mail clients cannot resolve root-relative upload paths.
	p.msg.Post.FeaturedImage = markdown.AbsoluteURL(site.URL, m.Post.FeaturedImage)
	switch m.Kind {
	case KindPost:
		theme := markdown.PostEmail
		theme.BaseURL = site.URL
		p.body = markdown.Render(m.Content, theme)
		source := m.Content
		if strings.TrimSpace(source) == "" {
			source = m.Post.Excerpt
		}
		p.text = postText(m.Post.Title, markdown.Strip(source), site.PostURL(m.Post.Slug), site)
	default:
		theme := markdown.Email
		theme.BaseURL = site.URL
		p.body = markdown.Render(m.Content, theme)
		p.text = customText(m.Subject, markdown.Strip(m.Content), site)
	}
	return p
}

func (p prepared) email(to string) (mailer.Email, error) {
	html, err := renderHTML(p, to)
	if err != nil {
		return mailer.Email{}, err
	}
	return mailer.Email{
		From:    p.site.From,
		To:      to,
		Subject: p.msg.Subject,
		HTML:    html,
		Text:    p.text + "\n\nUnsubscribe: " + p.site.UnsubscribeURL(to),
	}, nil
}

const rule = "────────────────────────────────────────"

func customText(subject, content string, site Site) string {
	var b strings.Builder
	b.WriteString(siteName(site) + "\n\n")
	b.WriteString(subject + "\n")
	b.WriteString(underline(subject) + "\n\n")
	b.WriteString(content + "\n\n")
	b.WriteString(rule + "\n\n")
	b.WriteString("Visit our blog: " + site.URL)
	return b.String()
}

func postText(title, content, postURL string, site Site) string {
	var b strings.Builder
	b.WriteString(siteName(site) + "\n\n")
	b.WriteString(title + "\n")
	b.WriteString(underline(title) + "\n\n")
	b.WriteString(content + "\n\n")
	b.WriteString(rule + "\n\n")
	b.WriteString("Read online: " + postURL + "\n\n")
	b.WriteString("Visit our blog: " + site.URL)
	return b.String()
}

func underline(s string) string {
	n := len([]rune(s))
	if n > 60 {
		n = 60
	}
	return strings.Repeat("─", n)
}

func siteName(site Site) string {
	if site.Name == "" {
		return "ments."
	}
	return site.Name
}

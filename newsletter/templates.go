package newsletter

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var emailTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type emailData struct {
	SiteName       string
	SiteURL        string
	UnsubscribeURL string
	Year           string
	Date           string

	Subject       string
	Title         string
	Excerpt       string
	FeaturedImage string
	PostURL       string
	Body          template.HTML
}

func renderHTML(p prepared, to string) (string, error) {
	data := emailData{
		SiteName:       siteName(p.site),
		SiteURL:        p.site.URL,
		UnsubscribeURL: p.site.UnsubscribeURL(to),
		Year:           strconv.Itoa(time.Now().Year()),
		Date:           p.date,
		Subject:        p.msg.Subject,
		// Body is produced by the markdown renderer, which escapes code and
		// only emits links and images with safe schemes.
		Body: template.HTML(p.body),
	}
	name := "custom.html"
	if p.msg.Kind == KindPost {
		name = "post.html"
		data.Title = p.msg.Post.Title
		data.Excerpt = p.msg.Post.Excerpt
		data.FeaturedImage = p.msg.Post.FeaturedImage
		data.PostURL = p.site.PostURL(p.msg.Post.Slug)
	}
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Package views holds the default ments pages. Each page is an embedded
// html/template exposed as a templ.Component through ments.ViewFuncs.
package views

import (
	"context"
	"embed"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/ments"
)

//go:embed templates/*.html
var files embed.FS

var pageNames = []string{
	"home", "post", "unsubscribe",
	"login", "signup", "dashboard", "editor", "newsletter", "images",
	"notfound", "servererror",
}

var pages = parsePages()

func parsePages() map[string]*template.Template {
	base := template.Must(template.New("").Funcs(funcs).ParseFS(files, "templates/layout.html", "templates/partials.html"))
	out := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t := template.Must(base.Clone())
		out[name] = template.Must(t.ParseFS(files, "templates/"+name+".html"))
	}
	return out
}

// view is what every template receives. Data is the page-specific struct.
type view struct {
	Site  ments.SiteConfig
	Meta  ments.PageMeta
	Title string
	CSRF  string
	Admin bool
	Data  any
}

func component(page, tmpl string, v view) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return pages[page].ExecuteTemplate(w, tmpl, v)
	})
}

func pageMeta(site ments.SiteConfig, title string) ments.PageMeta {
	return ments.PageMeta{Title: title, Description: site.Description, URL: site.URL, OGType: "website"}
}

// New returns the default page set. site fills the error pages, which
// receive no data of their own.
func New(site ments.SiteConfig) ments.ViewFuncs {
	return ments.ViewFuncs{
		Home: func(d ments.HomeData) templ.Component {
			return component("home", "layout", view{Site: d.Site, Meta: d.Meta, CSRF: d.CSRFToken, Data: d})
		},
		HomePartial: func(d ments.HomeData) templ.Component {
			return component("home", "blog", view{Site: d.Site, Meta: d.Meta, CSRF: d.CSRFToken, Data: d})
		},
		Post: func(d ments.PostData) templ.Component {
			return component("post", "layout", view{Site: d.Site, Meta: d.Meta, Title: d.Post.Title, CSRF: d.CSRFToken, Data: d})
		},
		Unsubscribe: func(d ments.UnsubscribeData) templ.Component {
			return component("unsubscribe", "layout", view{Site: d.Site, Meta: pageMeta(d.Site, "Unsubscribe"), Title: "Unsubscribe", CSRF: d.CSRFToken, Data: d})
		},
		AdminLogin: func(d ments.AuthData) templ.Component {
			return component("login", "layout", view{Site: d.Site, Meta: pageMeta(d.Site, "Sign in"), Title: "Sign in", CSRF: d.CSRFToken, Data: d})
		},
		AdminSignup: func(d ments.AuthData) templ.Component {
			return component("signup", "layout", view{Site: d.Site, Meta: pageMeta(d.Site, "Sign up"), Title: "Sign up", CSRF: d.CSRFToken, Data: d})
		},
		AdminDashboard: func(d ments.DashboardData) templ.Component {
			return component("dashboard", "layout", view{Site: d.Site, Meta: pageMeta(d.Site, "Dashboard"), Title: "Dashboard", CSRF: d.CSRFToken, Admin: true, Data: d})
		},
		AdminEditor: func(d ments.EditorData) templ.Component {
			title := "New post"
			if d.Post.ID != 0 {
				title = "Edit " + d.Post.Title
			}
			return component("editor", "layout", view{Site: d.Site, Meta: pageMeta(d.Site, title), Title: title, CSRF: d.CSRFToken, Admin: true, Data: d})
		},
		AdminNewsletter: func(d ments.NewsletterData) templ.Component {
			return component("newsletter", "layout", view{Site: d.Site, Meta: pageMeta(d.Site, "Newsletter"), Title: "Newsletter", CSRF: d.CSRFToken, Admin: true, Data: d})
		},
		AdminImages: func(d ments.ImagesData) templ.Component {
			return component("images", "content", view{CSRF: d.CSRFToken, Admin: true, Data: d})
		},
		NotFound: func() templ.Component {
			return component("notfound", "layout", view{Site: site, Title: "Not found"})
		},
		ServerError: func() templ.Component {
			return component("servererror", "layout", view{Site: site, Title: "Something went wrong"})
		},
	}
}

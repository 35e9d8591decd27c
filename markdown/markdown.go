// Package markdown converts post markdown to HTML with inline presentation.
//
// One fixed sequence of substitutions is shared by every surface that shows
// post content (the public article page, the editor preview and newsletter
// emails). Surfaces differ only by the Theme they pass in.
package markdown

import (
	"context"
	"html"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

var (
	reCodeBlock  = regexp.MustCompile("(?s)```(\\w+)?\\n(.*?)```")
	reH3         = regexp.MustCompile(`(?m)^### (.*)$`)
	reH2         = regexp.MustCompile(`(?m)^## (.*)$`)
	reH1         = regexp.MustCompile(`(?m)^# (.*)$`)
	reBoldItalic = regexp.MustCompile(`\*\*\*([^\n]+?)\*\*\*`)
	reBold       = regexp.MustCompile(`\*\*([^\n]+?)\*\*`)
	reItalic     = regexp.MustCompile(`\*([^*\n]+)\*`)
	reImg        = regexp.MustCompile(`!\[([^\]\n]*)\]\(([^)\s]*)\)`)
	reLink       = regexp.MustCompile(`\[([^\]\n]*)\]\(([^)\s]*)\)`)
	reInlineCode = regexp.MustCompile("`([^`\n]+)`")
	reQuote      = regexp.MustCompile(`(?m)^> (.*)$`)
	reListItem   = regexp.MustCompile(`(?m)^- (.*)$`)
	reRule       = regexp.MustCompile(`(?m)^---$`)
	reBlankRun   = regexp.MustCompile(`\n\n+`)
)

// Render converts md to HTML styled with theme. Empty or whitespace-only
// input yields an empty string. Render never fails: syntax it does not
// recognise is passed through as text.
func Render(md string, theme Theme) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	out := strings.ReplaceAll(md, "\r\n", "\n")

	// Code is swapped for placeholders so that no later rule can touch it.
	var blocks []string
	out = reCodeBlock.ReplaceAllStringFunc(out, func(m string) string {
		match := reCodeBlock.FindStringSubmatch(m)
		blocks = append(blocks, codeBlock(match[1], match[2], theme))
		return placeholder("CB", len(blocks)-1)
	})
	var spans []string
	out = reInlineCode.ReplaceAllStringFunc(out, func(m string) string {
		match := reInlineCode.FindStringSubmatch(m)
		spans = append(spans, "<code"+attr(theme.Code)+">"+html.EscapeString(match[1])+"</code>")
		return placeholder("IC", len(spans)-1)
	})

	out = reH3.ReplaceAllString(out, "<h3"+attr(theme.H3)+">$1</h3>")
	out = reH2.ReplaceAllString(out, "<h2"+attr(theme.H2)+">$1</h2>")
	out = reH1.ReplaceAllString(out, "<h1"+attr(theme.H1)+">$1</h1>")

	out = reBoldItalic.ReplaceAllString(out, "<strong"+attr(theme.Strong)+"><em>$1</em></strong>")
	out = reBold.ReplaceAllString(out, "<strong"+attr(theme.Strong)+">$1</strong>")
	out = reItalic.ReplaceAllString(out, "<em"+attr(theme.Em)+">$1</em>")

	out = reImg.ReplaceAllStringFunc(out, func(m string) string {
		match := reImg.FindStringSubmatch(m)
		return image(match[1], match[2], theme)
	})
	out = reLink.ReplaceAllStringFunc(out, func(m string) string {
		match := reLink.FindStringSubmatch(m)
		return link(match[1], match[2], theme)
	})

	for i, span := range spans {
		out = strings.Replace(out, placeholder("IC", i), span, 1)
	}

	out = reQuote.ReplaceAllStringFunc(out, func(m string) string {
		inner := reQuote.FindStringSubmatch(m)[1]
		if theme.QuoteText != "" {
			inner = "<p" + attr(theme.QuoteText) + ">" + inner + "</p>"
		}
		return "<blockquote" + attr(theme.Blockquote) + ">" + inner + "</blockquote>"
	})
	// List items are emitted without a <ul> container; browsers and mail
	// clients render orphan items acceptably and existing posts rely on it.
	out = reListItem.ReplaceAllString(out, "<li"+attr(theme.ListItem)+">$1</li>")
	out = reRule.ReplaceAllString(out, "<hr"+attr(theme.Rule)+" />")

	if theme.BlockParagraphs {
		out = blockParagraphs(out, theme)
	} else {
		out = joinedParagraphs(out, theme)
	}

	for i, block := range blocks {
		out = strings.Replace(out, placeholder("CB", i), block, 1)
	}
	return out
}

// joinedParagraphs turns every blank line into a paragraph break and every
// remaining newline into <br />, then wraps the whole document in one
// paragraph.
func joinedParagraphs(s string, theme Theme) string {
	open := "<p" + attr(theme.Paragraph) + ">"
	s = strings.ReplaceAll(s, "\n\n", "</p>"+open)
	s = strings.ReplaceAll(s, "\n", "<br />")
	return open + s + "</p>"
}

// blockParagraphs wraps each blank-line-separated block in a paragraph,
// leaving blocks that already start with a block-level element alone.
func blockParagraphs(s string, theme Theme) string {
	var b strings.Builder
	for _, block := range reBlankRun.Split(s, -1) {
		if strings.TrimSpace(block) == "" {
			continue
		}
		if startsWithBlockElement(block) {
			b.WriteString(block)
			continue
		}
		b.WriteString("<p" + attr(theme.Paragraph) + ">")
		b.WriteString(strings.ReplaceAll(block, "\n", "<br />"))
		b.WriteString("</p>")
	}
	return b.String()
}

func startsWithBlockElement(block string) bool {
	for _, prefix := range []string{"<h", "<pre", "<div", "<blockquote", "<figure", "<li", "<hr", "\x00CB"} {
		if strings.HasPrefix(block, prefix) {
			return true
		}
	}
	return false
}

func codeBlock(lang, code string, theme Theme) string {
	class := ""
	if lang != "" {
		class = ` class="language-` + html.EscapeString(lang) + `"`
	}
	pre := "<pre" + attr(theme.CodeBlock) + "><code" + class + ">" + html.EscapeString(code) + "</code></pre>"
	if theme.CodeWrap != "" {
		return "<div" + attr(theme.CodeWrap) + ">" + pre + "</div>"
	}
	return pre
}

func image(alt, src string, theme Theme) string {
	safe := theme.resolve(SafeURL(src))
	if safe == "" {
		return alt
	}
	alt = html.EscapeString(html.UnescapeString(alt))
	img := `<img src="` + safe + `" alt="` + alt + `"` + attr(theme.Image) + ` />`
	if theme.Figure == "" {
		return img
	}
	caption := ""
	if alt != "" {
		caption = "<figcaption" + attr(theme.Caption) + ">" + alt + "</figcaption>"
	}
	return "<figure" + attr(theme.Figure) + ">" + img + caption + "</figure>"
}

func link(text, href string, theme Theme) string {
	safe := theme.resolve(SafeURL(href))
	if safe == "" {
		return text
	}
	extra := ""
	if theme.ExternalLinks {
		extra = ` target="_blank" rel="noopener"`
	}
	return `<a href="` + safe + `"` + attr(theme.Link) + extra + `>` + text + `</a>`
}

func attr(style string) string {
	if style == "" {
		return ""
	}
	return ` style="` + style + `"`
}

func placeholder(kind string, i int) string {
	return "\x00" + kind + strconv.Itoa(i) + "\x00"
}

// AbsoluteURL prefixes a root-relative u with base. Other values, including
// protocol-relative "//host" URLs, are returned unchanged.
func AbsoluteURL(base, u string) string {
	if base == "" || !strings.HasPrefix(u, "/") || strings.HasPrefix(u, "//") {
		return u
	}
	return strings.TrimRight(base, "/") + u
}

// SafeURL validates and sanitizes a URL for use in HTML attributes. It
// returns "" for schemes other than http, https, mailto and tel.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}

// Component returns a templ.Component that renders md with theme.
func Component(md string, theme Theme) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, Render(md, theme))
		return err
	})
}

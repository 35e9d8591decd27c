package markdown

import "html"

// Theme holds the inline styles applied to each element Render produces.
// An empty style omits the style attribute.
type Theme struct {
	Name string

	Paragraph  string
	H1         string
	H2         string
	H3         string
	Strong     string
	Em         string
	Link       string
	Image      string
	Figure     string // when set, images are wrapped in <figure> with a caption
	Caption    string
	Code       string
	CodeBlock  string
	CodeWrap   string // when set, code blocks are wrapped in a <div>
	Blockquote string
	QuoteText  string // when set, quote text is wrapped in a <p>
	ListItem   string
	Rule       string

	// BaseURL, when set, is prefixed to root-relative link and image URLs.
	BaseURL string

	// ExternalLinks opens links in a new tab.
	ExternalLinks bool
	// BlockParagraphs wraps each text block in its own paragraph and leaves
	// block-level elements unwrapped. Otherwise the whole document is one
	// paragraph split at blank lines.
	BlockParagraphs bool
}

func (t Theme) resolve(safe string) string {
	if safe == "" || t.BaseURL == "" {
		return safe
	}
	return AbsoluteURL(html.EscapeString(t.BaseURL), safe)
}

// Article is used on the public blog post page.
var Article = Theme{
	Name:            "article",
	Paragraph:       "color:#000;line-height:1.9;margin-bottom:24px;font-size:18px",
	H1:              "font-size:34px;font-weight:700;color:#000;margin:40px 0 20px;line-height:1.3",
	H2:              "font-size:28px;font-weight:700;color:#000;margin:40px 0 20px;line-height:1.3",
	H3:              "font-size:22px;font-weight:600;color:#000;margin:32px 0 16px;line-height:1.3",
	Link:            "color:#2563eb;text-decoration:underline;text-underline-offset:2px",
	Image:           "width:100%;border-radius:12px;box-shadow:0 4px 12px rgba(0,0,0,0.1)",
	Figure:          "margin:32px 0",
	Caption:         "text-align:center;font-size:14px;color:#555;margin-top:12px",
	Code:            "background:#f3f4f6;color:#e11d48;padding:3px 8px;border-radius:6px;font-size:14px;font-family:monospace",
	CodeBlock:       "background:#1f2937;color:#f3f4f6;padding:20px;border-radius:12px;overflow-x:auto;margin:24px 0;font-size:14px;line-height:1.6",
	Blockquote:      "border-left:4px solid #000;padding:16px 24px;margin:24px 0;background:#f9fafb;border-radius:0 12px 12px 0;font-style:italic;color:#000;font-size:18px",
	ListItem:        "margin-left:24px;margin-bottom:12px;line-height:1.7;color:#000",
	Rule:            "border:none;border-top:2px solid #e5e7eb;margin:40px 0",
	ExternalLinks:   true,
	BlockParagraphs: true,
}

// Preview is used by the admin editor's live preview.
var Preview = Theme{
	Name:       "preview",
	Paragraph:  "margin-bottom:16px;line-height:1.7;color:#000",
	H1:         "font-size:30px;font-weight:700;margin:32px 0 16px;color:#000",
	H2:         "font-size:24px;font-weight:700;margin:32px 0 16px;color:#000",
	H3:         "font-size:20px;font-weight:600;margin:24px 0 12px;color:#000",
	Link:       "color:#2563eb;text-decoration:underline",
	Image:      "max-width:100%;border-radius:8px;margin:16px 0",
	Code:       "background:#f3f4f6;padding:2px 6px;border-radius:4px;font-size:14px;color:#000",
	CodeBlock:  "background:#1f2937;color:#f3f4f6;padding:16px;border-radius:8px;overflow-x:auto;margin:16px 0",
	Blockquote: "border-left:4px solid #000;padding-left:16px;margin:16px 0;color:#000;font-style:italic",
	ListItem:   "margin-left:20px;margin-bottom:8px;color:#000",
	Rule:       "border:none;border-top:2px solid #e5e7eb;margin:32px 0",
}

// Email is used for free-form newsletter bodies.
var Email = Theme{
	Name:       "email",
	Paragraph:  "margin-bottom:16px;line-height:1.7;color:#374151;",
	H1:         "font-size:28px;font-weight:700;color:#000;margin:32px 0 16px;",
	H2:         "font-size:24px;font-weight:700;color:#000;margin:28px 0 14px;",
	H3:         "font-size:20px;font-weight:600;color:#000;margin:24px 0 12px;",
	Link:       "color:#2563eb;text-decoration:underline;",
	Image:      "max-width:100%;height:auto;border-radius:8px;margin:16px 0;display:block;",
	Code:       "background:#f3f4f6;padding:2px 6px;border-radius:4px;font-size:14px;",
	CodeBlock:  "background:#1e293b;color:#e2e8f0;padding:16px;border-radius:8px;margin:16px 0;white-space:pre-wrap;",
	Blockquote: "border-left:4px solid #e5e7eb;padding-left:16px;margin:16px 0;color:#4b5563;font-style:italic;",
	ListItem:   "margin-left:20px;margin-bottom:8px;",
	Rule:       "border:none;border-top:2px solid #e5e7eb;margin:24px 0;",
}

// PostEmail is used when a whole blog post is sent as a newsletter.
var PostEmail = Theme{
	Name:       "post-email",
	Paragraph:  "margin:0 0 20px;color:#374151;font-size:16px;line-height:1.8;",
	H1:         "font-size:28px;font-weight:800;color:#18181b;margin:40px 0 20px;line-height:1.2;",
	H2:         "font-size:24px;font-weight:700;color:#18181b;margin:36px 0 18px;line-height:1.3;",
	H3:         "font-size:20px;font-weight:700;color:#18181b;margin:32px 0 16px;line-height:1.4;",
	Strong:     "font-weight:700;",
	Em:         "font-style:italic;",
	Link:       "color:#2563eb;text-decoration:underline;font-weight:500;",
	Image:      "max-width:100%;height:auto;border-radius:12px;margin:24px 0;display:block;",
	Code:       "background:#f1f5f9;color:#0f172a;padding:3px 8px;border-radius:4px;font-family:'Consolas',monospace;font-size:14px;",
	CodeBlock:  "margin:0;color:#e2e8f0;font-family:'Consolas','Monaco',monospace;font-size:14px;line-height:1.6;white-space:pre-wrap;",
	CodeWrap:   "background:#1e293b;border-radius:8px;padding:20px;margin:24px 0;overflow-x:auto;",
	Blockquote: "border-left:4px solid #3b82f6;background:#eff6ff;padding:16px 20px;margin:24px 0;border-radius:0 8px 8px 0;",
	QuoteText:  "margin:0;color:#1e40af;font-style:italic;line-height:1.7;",
	ListItem:   "margin-left:24px;margin-bottom:10px;color:#374151;line-height:1.7;padding-left:8px;",
	Rule:       "border:none;border-top:2px solid #e5e7eb;margin:32px 0;",
}

// Themes lists the built-in themes by name.
var Themes = map[string]Theme{
	Article.Name:   Article,
	Preview.Name:   Preview,
	Email.Name:     Email,
	PostEmail.Name: PostEmail,
}

// Plain has no styling at all.
var Plain = Theme{Name: "plain"}

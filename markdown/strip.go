package markdown

import (
	"regexp"
	"strings"
)

var (
	reStripCode   = regexp.MustCompile("(?s)```.*?```")
	reStripImg    = regexp.MustCompile(`!\[[^\]\n]*\]\([^)\n]*\)`)
	reStripBold   = regexp.MustCompile(`\*\*([^\n]*?)\*\*`)
	reStripItalic = regexp.MustCompile(`\*([^*\n]*)\*`)
	reStripLink   = regexp.MustCompile(`\[([^\]\n]*)\]\(([^)\n]*)\)`)
	reStripTick   = regexp.MustCompile("`([^`\n]*)`")
	reStripHeader = regexp.MustCompile(`(?m)^#+\s`)
	reStripQuote  = regexp.MustCompile(`(?m)^>\s`)
	reStripBullet = regexp.MustCompile(`(?m)^-\s`)
)

// Strip removes markdown syntax from md, producing the plain-text body
// used as the text/plain alternative of newsletter emails. Links keep their
// target in parentheses; code blocks and images become short markers.
func Strip(md string) string {
	s := strings.ReplaceAll(md, "\r\n", "\n")
	s = reStripCode.ReplaceAllString(s, "[Code Block]")
	s = reStripImg.ReplaceAllString(s, "[Image]")
	s = reStripBold.ReplaceAllString(s, "$1")
	s = reStripItalic.ReplaceAllString(s, "$1")
	s = reStripLink.ReplaceAllString(s, "$1 ($2)")
	s = reStripTick.ReplaceAllString(s, "$1")
	s = reStripHeader.ReplaceAllString(s, "")
	s = reStripQuote.ReplaceAllString(s, "» ")
	s = reStripBullet.ReplaceAllString(s, "• ")
	return strings.TrimSpace(s)
}

package notify

import (
	"html"
	"regexp"
	"strings"
)

var (
	headingRe  = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	boldRe     = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	bracketEsc = strings.NewReplacer("[", "\\[", "]", "\\]")
)

// ToTelegramMarkdown reduces body to the markdown subset Telegram's
// "Markdown" parse mode accepts: no ATX headings (stripped to plain
// lines), "**bold**" rewritten to "*bold*", and square brackets escaped
// so they are never mistaken for a link label.
func ToTelegramMarkdown(body string) string {
	out := headingRe.ReplaceAllString(body, "")
	out = boldRe.ReplaceAllString(out, "*$1*")
	out = bracketEsc.Replace(out)
	return out
}

// ToPlainText strips all markdown decoration, used for Telegram's
// parse-error retry path and for Pushover, which has no markdown mode.
func ToPlainText(body string) string {
	out := headingRe.ReplaceAllString(body, "")
	out = boldRe.ReplaceAllString(out, "$1")
	out = strings.NewReplacer("*", "", "_", "", "`", "", "[", "", "]", "").Replace(out)
	return out
}

const emailCSS = `
body{font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;line-height:1.5;color:#1a1a1a;background:#f7f7f8;padding:16px}
h1,h2,h3{color:#0f172a}
.report{background:#fff;border-radius:8px;padding:24px;max-width:720px;margin:0 auto;box-shadow:0 1px 3px rgba(0,0,0,.1)}
strong{color:#0f172a}
hr{border:none;border-top:1px solid #e5e7eb;margin:16px 0}
`

// ToHTMLEmail flattens markdown into a self-contained HTML document with
// an embedded CSS theme, good enough for mail clients that strip
// external stylesheets.
func ToHTMLEmail(body string) string {
	escaped := html.EscapeString(body)
	escaped = regexp.MustCompile(`(?m)^### (.+)$`).ReplaceAllString(escaped, "<h3>$1</h3>")
	escaped = regexp.MustCompile(`(?m)^## (.+)$`).ReplaceAllString(escaped, "<h2>$1</h2>")
	escaped = regexp.MustCompile(`(?m)^# (.+)$`).ReplaceAllString(escaped, "<h1>$1</h1>")
	escaped = regexp.MustCompile(`\*\*([^*]+)\*\*`).ReplaceAllString(escaped, "<strong>$1</strong>")
	escaped = strings.ReplaceAll(escaped, "\n---\n", "<hr/>")
	escaped = strings.ReplaceAll(escaped, "\n", "<br/>\n")

	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><style>")
	b.WriteString(emailCSS)
	b.WriteString("</style></head><body><div class=\"report\">")
	b.WriteString(escaped)
	b.WriteString("</div></body></html>")
	return b.String()
}

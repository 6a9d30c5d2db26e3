package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToTelegramMarkdown(t *testing.T) {
	out := ToTelegramMarkdown("### Title\n**bold** text [link]")
	assert.NotContains(t, out, "### ")
	assert.Contains(t, out, "*bold*")
	assert.Contains(t, out, "\\[link\\]")
}

func TestToPlainText(t *testing.T) {
	out := ToPlainText("## Heading\n**bold** and `code`")
	assert.NotContains(t, out, "#")
	assert.NotContains(t, out, "*")
	assert.NotContains(t, out, "`")
}

func TestToHTMLEmail(t *testing.T) {
	out := ToHTMLEmail("### Title\n**bold**\n---\nplain")
	assert.True(t, strings.Contains(out, "<h3>Title</h3>"))
	assert.True(t, strings.Contains(out, "<strong>bold</strong>"))
	assert.True(t, strings.Contains(out, "<style>"))
}

package messaging

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// contentPolicy keeps basic emphasis and links; every other tag is stripped.
var contentPolicy = newContentPolicy()

func newContentPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "i", "em", "strong", "a")
	p.AllowAttrs("href", "target").OnElements("a")
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("mailto", "http", "https")
	return p
}

func Sanitize(content string) string {
	return strings.TrimSpace(contentPolicy.Sanitize(content))
}

// kotatsu/engine/decorators.go
package engine

import (
	"html"
	"regexp"
	"strings"
)

var crosslinkPattern = regexp.MustCompile(`>>(\d+)`)

// RenderBody transforms a raw submission body into its stored HTML form.
// The pipeline is fixed: escape, restore quote markers, decorate, convert
// line breaks. The same input always yields the same output; bodies are
// rendered once at save time and never recomputed.
func RenderBody(body string) string {
	s := html.EscapeString(body)
	// Escaping turns the quote markers the decorators key on into entities;
	// restore them. "<" stays escaped, so the output remains inert.
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "\r", "")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		greentext := strings.HasPrefix(line, ">") && !strings.HasPrefix(line, ">>")
		line = crosslinkPattern.ReplaceAllString(line, `<a class="crosslink" href="#p$1">&gt;&gt;$1</a>`)
		if greentext {
			line = `<span class="greentext">` + line + `</span>`
		}
		lines[i] = line
	}
	return strings.Join(lines, "<br/>")
}

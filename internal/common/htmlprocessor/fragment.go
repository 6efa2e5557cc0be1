package htmlprocessor

import (
	"strings"

	"golang.org/x/net/html"
)

// skippedElements are elements whose text content never renders.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// ExtractText converts an HTML fragment to the plain text a visitor would
// see. WordPress REST "rendered" fields arrive as markup: entity-encoded
// titles, excerpts wrapped in paragraph tags. Entities are decoded by the
// parser. Text nodes are joined with single spaces and whitespace runs
// collapse.
func ExtractText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		// Unparseable input degrades to the raw text, tags intact
		return collapseWhitespace(fragment)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[strings.ToLower(n.Data)] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return collapseWhitespace(sb.String())
}

// collapseWhitespace trims leading/trailing whitespace and collapses
// internal whitespace sequences to single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

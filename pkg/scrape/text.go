package scrape

import (
	"strings"

	"golang.org/x/net/html"
)

// htmlToText strips markup from scraped bodies and normalizes whitespace,
// keeping paragraph breaks. Plain text passes through with only whitespace
// normalization.
func htmlToText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return normalizeText(s)
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return normalizeText(s)
	}
	var buf strings.Builder
	extractText(doc, &buf)
	return normalizeText(buf.String())
}

func extractText(node *html.Node, buf *strings.Builder) {
	switch node.Type {
	case html.TextNode:
		buf.WriteString(node.Data)
	case html.ElementNode:
		switch node.Data {
		case "script", "style", "head":
			return
		case "br":
			buf.WriteString("\n")
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		extractText(child, buf)
	}
	if node.Type == html.ElementNode {
		switch node.Data {
		case "p", "div", "li", "blockquote", "pre", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
			buf.WriteString("\n\n")
		}
	}
}

// normalizeText collapses runs of spaces inside lines and runs of blank
// lines into a single paragraph break.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

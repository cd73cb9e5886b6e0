package wikitext

import (
	"strings"

	"golang.org/x/net/html"
)

// plainText flattens the block tree under root: blocks are separated by a
// blank line and list items by a newline.
func plainText(root *html.Node) string {
	var blocks []string
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		var block string
		switch c.Data {
		case "ul", "ol":
			var items []string
			for li := c.FirstChild; li != nil; li = li.NextSibling {
				if item := strings.TrimSpace(textContent(li)); item != "" {
					items = append(items, item)
				}
			}
			block = strings.Join(items, "\n")
		default:
			block = strings.TrimSpace(textContent(c))
		}
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

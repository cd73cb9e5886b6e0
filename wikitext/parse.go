package wikitext

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dhamidi/wikidump/dump"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	refPattern      = regexp.MustCompile(`(?is)<ref[^>]*/>|<ref(\s[^>]*)?>.*?</ref\s*>`)
	headingPattern  = regexp.MustCompile(`^(={1,6})\s*(.+?)\s*(={1,6})\s*$`)
	redirectPattern = regexp.MustCompile(`(?i)^#redirect\b`)
)

// dropped namespaces; links into them do not render.
var hiddenNamespaces = map[string]bool{
	"category": true,
	"file":     true,
	"image":    true,
}

// preprocess removes what never renders: character references are decoded
// first, then comments, references and templates are cut out.
func (m *Markup) preprocess(text string) (string, error) {
	text = html.UnescapeString(text)
	text = stripComments(text)
	text = refPattern.ReplaceAllString(text, "")
	return stripTemplates(text, m.maxDepth)
}

func stripComments(s string) string {
	var sb strings.Builder
	for {
		i := strings.Index(s, "<!--")
		if i < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		sb.WriteString(s[:i])
		end := strings.Index(s[i+4:], "-->")
		if end < 0 {
			return sb.String()
		}
		s = s[i+4+end+3:]
	}
}

// stripTemplates removes {{...}} including nested templates and template
// parameters. An unclosed template swallows the rest of the text.
func stripTemplates(s string, maxDepth int) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	var sb strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "{{"):
			depth++
			if depth > maxDepth {
				return "", fmt.Errorf("templates nest deeper than %d", maxDepth)
			}
			i++
		case depth > 0 && strings.HasPrefix(s[i:], "}}"):
			depth--
			i++
		case depth == 0:
			sb.WriteByte(s[i])
		}
	}
	return sb.String(), nil
}

type blockParser struct {
	m       *Markup
	root    *xhtml.Node
	para    *xhtml.Node
	list    *xhtml.Node
	inTable bool
}

func (p *blockParser) line(line string) {
	trimmed := strings.TrimSpace(line)

	if p.inTable {
		if strings.HasPrefix(trimmed, "|}") {
			p.inTable = false
		}
		return
	}

	switch {
	case trimmed == "":
		p.closeBlocks()
	case strings.HasPrefix(trimmed, "{|"):
		p.closeBlocks()
		p.inTable = true
	case strings.HasPrefix(trimmed, "----"):
		p.closeBlocks()
		p.root.AppendChild(element("hr"))
	case headingPattern.MatchString(trimmed):
		p.closeBlocks()
		sub := headingPattern.FindStringSubmatch(trimmed)
		level := min(len(sub[1]), len(sub[3]))
		h := element(fmt.Sprintf("h%d", level))
		p.inline(h, sub[2])
		p.root.AppendChild(h)
	case (trimmed[0] == '*' || trimmed[0] == '#') && !redirectPattern.MatchString(trimmed):
		p.listItem(trimmed)
	default:
		p.list = nil
		text := strings.TrimLeft(trimmed, ":;")
		if p.para != nil {
			appendText(p.para, "\n")
			p.inline(p.para, text)
			return
		}
		// a line that renders to nothing does not open a paragraph
		para := element("p")
		p.inline(para, text)
		if para.FirstChild != nil {
			p.para = para
			p.root.AppendChild(para)
		}
	}
}

func (p *blockParser) closeBlocks() {
	p.para = nil
	p.list = nil
}

func (p *blockParser) listItem(line string) {
	p.para = nil
	tag := "ul"
	if line[0] == '#' {
		tag = "ol"
	}
	if p.list == nil || p.list.Data != tag {
		p.list = element(tag)
		p.root.AppendChild(p.list)
	}
	li := element("li")
	p.inline(li, strings.TrimSpace(strings.TrimLeft(line, "*#:;")))
	p.list.AppendChild(li)
}

// inline appends the nodes for one line of running text to parent.
// Emphasis that is still open at the end of the line is closed there.
func (p *blockParser) inline(parent *xhtml.Node, s string) {
	in := inlineParser{m: p.m, stack: []*xhtml.Node{parent}}
	in.parse(s)
}

type inlineParser struct {
	m     *Markup
	stack []*xhtml.Node
}

func (in *inlineParser) top() *xhtml.Node {
	return in.stack[len(in.stack)-1]
}

func (in *inlineParser) parse(s string) {
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			appendText(in.top(), text.String())
			text.Reset()
		}
	}

	for i := 0; i < len(s); {
		rest := s[i:]
		switch {
		case strings.HasPrefix(rest, "'''''"):
			flush()
			if in.top().Data == "i" {
				in.toggle("i")
				in.toggle("b")
			} else {
				in.toggle("b")
				in.toggle("i")
			}
			i += 5
		case strings.HasPrefix(rest, "'''"):
			flush()
			in.toggle("b")
			i += 3
		case strings.HasPrefix(rest, "''"):
			flush()
			in.toggle("i")
			i += 2
		case strings.HasPrefix(rest, "[["):
			n, ok := in.link(rest, flush)
			if !ok {
				text.WriteString("[[")
				i += 2
				continue
			}
			i += n
		case strings.HasPrefix(rest, "[http://"), strings.HasPrefix(rest, "[https://"), strings.HasPrefix(rest, "[//"):
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				text.WriteByte('[')
				i++
				continue
			}
			flush()
			in.externalLink(rest[1:end])
			i += end + 1
		case rest[0] == '<':
			n, br := skipTag(rest)
			if n == 0 {
				text.WriteByte('<')
				i++
				continue
			}
			if br {
				flush()
				in.top().AppendChild(element("br"))
			}
			i += n
		default:
			_, size := utf8.DecodeRuneInString(rest)
			text.WriteString(rest[:size])
			i += size
		}
	}
	flush()
}

// toggle opens the emphasis element tag or closes it when it is open.
// Elements opened after it are closed and reopened around the close.
func (in *inlineParser) toggle(tag string) {
	at := -1
	for i := len(in.stack) - 1; i > 0; i-- {
		if in.stack[i].Data == tag {
			at = i
			break
		}
	}
	if at < 0 {
		e := element(tag)
		in.top().AppendChild(e)
		in.stack = append(in.stack, e)
		return
	}
	reopen := in.stack[at+1:]
	in.stack = in.stack[:at]
	for _, e := range reopen {
		n := element(e.Data)
		in.top().AppendChild(n)
		in.stack = append(in.stack, n)
	}
}

// link handles an internal link at the start of s and returns the number of
// bytes consumed. Trailing lowercase letters become part of the label.
func (in *inlineParser) link(s string, flush func()) (int, bool) {
	end := matchingBrackets(s)
	if end < 0 {
		return 0, false
	}
	inner := s[2:end]
	n := end + 2

	target, label, hasLabel := strings.Cut(inner, "|")
	target = strings.TrimSpace(target)
	if ns, _, ok := strings.Cut(target, ":"); ok && hiddenNamespaces[strings.ToLower(strings.TrimSpace(ns))] {
		return n, true
	}
	target = strings.TrimPrefix(target, ":")
	if !hasLabel {
		label = target
	}
	if i := strings.LastIndexByte(label, '|'); i >= 0 {
		label = label[i+1:]
	}
	trail := 0
	for trail < len(s)-n && s[n+trail] >= 'a' && s[n+trail] <= 'z' {
		trail++
	}
	label += s[n : n+trail]

	flush()
	a := element("a")
	a.Attr = []xhtml.Attribute{{Key: "href", Val: in.m.linkPrefix + articlePath(target)}}
	appendText(a, strings.ReplaceAll(label, "''", ""))
	in.top().AppendChild(a)
	return n + trail, true
}

func (in *inlineParser) externalLink(inner string) {
	href, label, _ := strings.Cut(inner, " ")
	label = strings.TrimSpace(label)
	if label == "" {
		label = href
	}
	a := element("a")
	a.Attr = []xhtml.Attribute{
		{Key: "class", Val: "external"},
		{Key: "href", Val: href},
	}
	appendText(a, label)
	in.top().AppendChild(a)
}

// matchingBrackets returns the index of the "]]" closing the "[[" that s
// starts with, or -1.
func matchingBrackets(s string) int {
	depth := 0
	for i := 0; i+1 < len(s); i++ {
		switch s[i : i+2] {
		case "[[":
			depth++
			i++
		case "]]":
			depth--
			if depth == 0 {
				return i
			}
			i++
		}
	}
	return -1
}

// skipTag measures an HTML tag at the start of s. It returns 0 for a '<'
// that does not start a tag.
func skipTag(s string) (n int, br bool) {
	if len(s) < 3 || !(s[1] == '/' || isASCIILetter(s[1])) {
		return 0, false
	}
	end := strings.IndexByte(s, '>')
	if end < 0 {
		return 0, false
	}
	name := strings.TrimLeft(s[1:end], "/")
	if i := strings.IndexFunc(name, func(r rune) bool { return unicode.IsSpace(r) || r == '/' }); i >= 0 {
		name = name[:i]
	}
	return end + 1, strings.EqualFold(name, "br")
}

func isASCIILetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// articlePath is the link path of a title: normalized, with the first
// letter in upper case.
func articlePath(title string) string {
	title = dump.NormalizeTitle(title)
	r, size := utf8.DecodeRuneInString(title)
	if size == 0 {
		return title
	}
	return string(unicode.ToUpper(r)) + title[size:]
}

func element(tag string) *xhtml.Node {
	return &xhtml.Node{Type: xhtml.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

func appendText(parent *xhtml.Node, s string) {
	if last := parent.LastChild; last != nil && last.Type == xhtml.TextNode {
		last.Data += s
		return
	}
	parent.AppendChild(&xhtml.Node{Type: xhtml.TextNode, Data: s})
}

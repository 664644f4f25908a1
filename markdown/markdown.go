// Package markdown turns HTML into markdown for notes and documents. RAG
// answers sometimes arrive as HTML fragments and imported documents are
// usually saved web pages; both are stored as markdown.
package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	htmlTagRe    = regexp.MustCompile(`(?i)</?(p|div|br|h[1-6]|ul|ol|li|table|tr|td|th|pre|code|strong|em|b|i|a|span|blockquote|html|body)\b[^>]*>`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// Elements dropped before conversion.
var dropped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Aside:    true,
	atom.Form:     true,
	atom.Iframe:   true,
	atom.Button:   true,
}

// Result is a converted document.
type Result struct {
	Title    string
	Markdown string
}

// Converter converts HTML to GitHub-flavoured markdown.
type Converter struct {
	conv *md.Converter
}

// NewConverter creates a converter.
func NewConverter() *Converter {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return &Converter{conv: conv}
}

// LooksLikeHTML reports whether s contains common HTML markup.
func LooksLikeHTML(s string) bool {
	return htmlTagRe.MatchString(s)
}

// Normalize returns s as markdown: HTML is converted, anything else is
// returned trimmed. A conversion failure returns s unchanged.
func (c *Converter) Normalize(s string) string {
	if !LooksLikeHTML(s) {
		return strings.TrimSpace(s)
	}
	res, err := c.Convert([]byte(s))
	if err != nil || res.Markdown == "" {
		return strings.TrimSpace(s)
	}
	return res.Markdown
}

// Convert parses a page or fragment, keeps its main content and converts
// it. The title comes from <title>, else from the first level-one heading.
func (c *Converter) Convert(content []byte) (*Result, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := textOf(find(doc, atom.Title))
	prune(doc)

	root := find(doc, atom.Main)
	if root == nil {
		root = find(doc, atom.Article)
	}
	if root == nil {
		root = find(doc, atom.Body)
	}
	if root == nil {
		root = doc
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	out, err := c.conv.ConvertString(buf.String())
	if err != nil {
		return nil, fmt.Errorf("convert html: %w", err)
	}
	out = tidy(out)

	if title == "" {
		title = firstHeading(out)
	}
	return &Result{Title: title, Markdown: out}, nil
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// prune removes page chrome in place.
func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && dropped[c.DataAtom] {
			n.RemoveChild(c)
		} else {
			prune(c)
		}
		c = next
	}
}

func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = blankLinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s)
}

func firstHeading(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

package fetcher

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// renderMarkdown converts the selected nodes to markdown. The output keeps
// headings, paragraphs, lists, links, emphasis, code and quotes; anything
// else contributes its text only.
func renderMarkdown(sel *goquery.Selection, pageURL string) string {
	base, _ := url.Parse(pageURL)
	r := &mdRenderer{base: base}
	for _, n := range sel.Nodes {
		r.node(n)
	}
	return strings.TrimSpace(r.out.String())
}

type mdRenderer struct {
	out    strings.Builder
	base   *url.URL
	lists  []listState
	quote  int
	inPre  bool
	spaced bool // last written rune was whitespace or start of line
}

type listState struct {
	ordered bool
	next    int
}

func (r *mdRenderer) node(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		r.text(n.Data)
		return
	case html.ElementNode:
	case html.DocumentNode:
		r.children(n)
		return
	default:
		return
	}

	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		r.block()
		r.write(strings.Repeat("#", level) + " ")
		r.children(n)
		r.block()
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Main, atom.Header,
		atom.Footer, atom.Aside, atom.Nav, atom.Figure, atom.Figcaption,
		atom.Dl, atom.Dt, atom.Dd, atom.Form, atom.Fieldset, atom.Details, atom.Summary:
		r.block()
		r.children(n)
		r.block()
	case atom.Br:
		r.newline()
	case atom.Hr:
		r.block()
		r.write("---")
		r.block()
	case atom.Ul, atom.Ol:
		r.block()
		r.lists = append(r.lists, listState{ordered: n.DataAtom == atom.Ol, next: startIndex(n)})
		r.children(n)
		r.lists = r.lists[:len(r.lists)-1]
		r.block()
	case atom.Li:
		r.listItem(n)
	case atom.Blockquote:
		r.block()
		r.quote++
		r.children(n)
		r.quote--
		r.block()
	case atom.Pre:
		r.pre(n)
	case atom.Code:
		if r.inPre {
			r.children(n)
			return
		}
		r.write("`" + strings.TrimSpace(textOf(n)) + "`")
	case atom.Strong, atom.B:
		r.wrap(n, "**")
	case atom.Em, atom.I:
		r.wrap(n, "*")
	case atom.A:
		r.link(n)
	case atom.Img:
		r.image(n)
	case atom.Table:
		r.table(n)
	default:
		r.children(n)
	}
}

func (r *mdRenderer) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.node(c)
	}
}

func (r *mdRenderer) text(s string) {
	if r.inPre {
		r.write(s)
		return
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s != "" && !r.spaced {
			r.write(" ")
		}
		return
	}
	if isSpace(s[0]) && !r.spaced {
		r.write(" ")
	}
	r.write(strings.Join(fields, " "))
	if isSpace(s[len(s)-1]) {
		r.write(" ")
	}
}

func (r *mdRenderer) wrap(n *html.Node, marker string) {
	inner := collapseWhitespace(textOf(n))
	if inner == "" {
		return
	}
	r.write(marker + inner + marker)
}

func (r *mdRenderer) link(n *html.Node) {
	label := collapseWhitespace(textOf(n))
	href := r.resolve(attr(n, "href"))
	switch {
	case label == "":
		return
	case href == "" || strings.HasPrefix(href, "javascript:"):
		r.write(label)
	default:
		r.write("[" + label + "](" + href + ")")
	}
}

func (r *mdRenderer) image(n *html.Node) {
	src := r.resolve(attr(n, "src"))
	if src == "" {
		return
	}
	r.write("![" + collapseWhitespace(attr(n, "alt")) + "](" + src + ")")
}

func (r *mdRenderer) listItem(n *html.Node) {
	r.newline()
	depth := len(r.lists)
	marker := "- "
	if depth > 0 {
		top := &r.lists[depth-1]
		if top.ordered {
			marker = strconv.Itoa(top.next) + ". "
			top.next++
		}
	}
	if depth > 1 {
		r.write(strings.Repeat("  ", depth-1))
	}
	r.write(marker)
	r.children(n)
	r.newline()
}

func (r *mdRenderer) pre(n *html.Node) {
	r.block()
	lang := ""
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Code {
			lang = codeLanguage(attr(c, "class"))
			break
		}
	}
	r.write("```" + lang + "\n")
	r.inPre = true
	r.children(n)
	r.inPre = false
	if !strings.HasSuffix(r.out.String(), "\n") {
		r.write("\n")
	}
	r.write("```")
	r.block()
}

func (r *mdRenderer) table(n *html.Node) {
	r.block()
	rows := findAll(n, atom.Tr)
	for i, row := range rows {
		var cells []string
		for c := row.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
				cells = append(cells, strings.ReplaceAll(collapseWhitespace(textOf(c)), "|", `\|`))
			}
		}
		if len(cells) == 0 {
			continue
		}
		r.write("| " + strings.Join(cells, " | ") + " |")
		r.newline()
		if i == 0 {
			r.write("|" + strings.Repeat(" --- |", len(cells)))
			r.newline()
		}
	}
	r.block()
}

func (r *mdRenderer) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || r.base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return r.base.ResolveReference(u).String()
}

// block ends the current line and leaves one blank line before the next block.
func (r *mdRenderer) block() {
	s := r.out.String()
	if s == "" {
		return
	}
	switch {
	case strings.HasSuffix(s, "\n\n"):
	case strings.HasSuffix(s, "\n"):
		r.out.WriteString("\n")
	default:
		r.out.WriteString("\n\n")
	}
	r.spaced = true
}

func (r *mdRenderer) newline() {
	s := r.out.String()
	if s == "" || strings.HasSuffix(s, "\n") {
		return
	}
	r.out.WriteString("\n")
	r.spaced = true
}

func (r *mdRenderer) write(s string) {
	if s == "" {
		return
	}
	if r.atLineStart() && !r.inPre {
		s = strings.TrimLeft(s, " ")
		if s == "" {
			return
		}
		if r.quote > 0 {
			r.out.WriteString(strings.Repeat("> ", r.quote))
		}
	}
	r.out.WriteString(s)
	r.spaced = isSpace(s[len(s)-1])
}

func (r *mdRenderer) atLineStart() bool {
	s := r.out.String()
	return s == "" || strings.HasSuffix(s, "\n")
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func startIndex(n *html.Node) int {
	if v, err := strconv.Atoi(attr(n, "start")); err == nil {
		return v
	}
	return 1
}

func codeLanguage(class string) string {
	for _, c := range strings.Fields(class) {
		if lang, ok := strings.CutPrefix(c, "language-"); ok {
			return lang
		}
	}
	return ""
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r' || b == '\f'
}

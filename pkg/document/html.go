package document

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLFormat implements Format for saved web pages and HTML novels. The main
// content is isolated with readability before text extraction.
type HTMLFormat struct{}

func init() {
	Register(&HTMLFormat{})
}

func (f *HTMLFormat) Name() string         { return "HTML" }
func (f *HTMLFormat) Extensions() []string { return []string{".html", ".htm", ".xhtml"} }

func (f *HTMLFormat) Extract(_ context.Context, path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	decoded, err := Decode(data)
	if err != nil {
		return "", "", err
	}

	abs, _ := filepath.Abs(path)
	return extractHTML(decoded, &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)})
}

// extractHTML returns the title and text of an HTML page. The title is empty
// when readability could not find an article.
func extractHTML(decoded string, pageURL *url.URL) (string, string, error) {
	article, err := readability.FromReader(strings.NewReader(decoded), pageURL)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		text, terr := htmlToText(article.Content)
		if terr == nil && strings.TrimSpace(text) != "" {
			return article.Title, text, nil
		}
	}

	// Readability gives up on pages without an obvious article body, such as
	// a chapter that is nothing but paragraphs. Fall back to the whole page.
	text, err := htmlToText(decoded)
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}
	return "", text, nil
}

// blockElements end a paragraph in the extracted text.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Section: true, atom.Article: true, atom.Tr: true,
	atom.Hr: true, atom.Pre: true,
}

// skipElements never contribute text. Ruby annotations are dropped so the
// base text is not duplicated.
var skipElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Head: true, atom.Rt: true,
	atom.Rp: true, atom.Noscript: true, atom.Template: true,
}

// htmlToText flattens markup to text, separating block elements with blank
// lines so the segmenter sees paragraphs.
func htmlToText(s string) (string, error) {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return "", err
	}

	var out bytes.Buffer
	// space records whitespace seen since the last written word.
	space := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			words := strings.Fields(n.Data)
			if len(words) == 0 {
				space = space || n.Data != ""
			} else {
				lead, _ := utf8.DecodeRuneInString(n.Data)
				if out.Len() > 0 && !endsWithSpace(out.Bytes()) && (space || unicode.IsSpace(lead)) {
					out.WriteByte(' ')
				}
				out.WriteString(strings.Join(words, " "))
				last, _ := utf8.DecodeLastRuneInString(n.Data)
				space = unicode.IsSpace(last)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.DataAtom] && out.Len() > 0 {
			if !bytes.HasSuffix(out.Bytes(), []byte("\n\n")) {
				out.WriteString("\n\n")
			}
			space = false
		}
	}
	walk(doc)
	return out.String(), nil
}

func endsWithSpace(b []byte) bool {
	last := b[len(b)-1]
	return last == ' ' || last == '\n'
}

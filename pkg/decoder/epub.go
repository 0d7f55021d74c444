package decoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/japaniel/readerer/pkg/readerer"
	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// EPUBFormat reads the spine documents of EPUB files.
type EPUBFormat struct{}

func (f *EPUBFormat) Name() string         { return "EPUB" }
func (f *EPUBFormat) Extensions() []string { return []string{".epub"} }

// Open reads the package document; each spine item becomes one part.
func (f *EPUBFormat) Open(data []byte) (*Container, error) {
	rc, err := epub.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %w", err)
	}
	if len(rc.Rootfiles) == 0 {
		return nil, fmt.Errorf("no rootfiles found in epub")
	}

	book := rc.Rootfiles[0]
	c := &Container{Title: book.Metadata.Title}
	for _, ref := range book.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		item := ref.Item
		c.Parts = append(c.Parts, func(ctx context.Context) (string, error) {
			r, err := item.Open()
			if err != nil {
				return "", fmt.Errorf("open spine item: %w", err)
			}
			defer r.Close()
			raw, err := io.ReadAll(r)
			if err != nil {
				return "", fmt.Errorf("read spine item: %w", err)
			}
			return ExtractHTMLText(raw), nil
		})
	}
	if len(c.Parts) == 0 {
		return nil, fmt.Errorf("epub spine is empty")
	}
	return c, nil
}

// blockAtoms end a line in the extracted text.
var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Tr: true, atom.Section: true, atom.Pre: true,
}

// ExtractHTMLText returns the text of the body of an (X)HTML document with
// ruby annotations removed. Block elements end with a newline.
func ExtractHTMLText(raw []byte) string {
	doc, err := html.Parse(bytes.NewReader(readerer.SanitizeRuby(raw)))
	if err != nil {
		return ""
	}

	root := findBody(doc)
	if root == nil {
		root = doc
	}

	var out strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			out.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style || n.DataAtom == atom.Head {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockAtoms[n.DataAtom] {
			out.WriteString("\n")
		}
	}
	walk(root)
	return collapseBlankLines(out.String())
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// collapseBlankLines trims every line and drops empty ones.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

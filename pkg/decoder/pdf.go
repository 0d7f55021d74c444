package decoder

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFFormat reads the text layer of PDF files.
type PDFFormat struct{}

func (f *PDFFormat) Name() string         { return "PDF" }
func (f *PDFFormat) Extensions() []string { return []string{".pdf"} }

// Open parses the cross-reference table once to count pages. Every part opens
// its own reader over data because pdf.Reader is not safe for concurrent use.
func (f *PDFFormat) Open(data []byte) (c *Container, err error) {
	// The pdf package panics on some malformed input.
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	c = &Container{Title: pdfTitle(r)}
	for i := 1; i <= r.NumPage(); i++ {
		page := i
		c.Parts = append(c.Parts, func(ctx context.Context) (string, error) {
			return extractPDFPage(data, page)
		})
	}
	return c, nil
}

func pdfTitle(r *pdf.Reader) string {
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return ""
	}
	return info.Key("Title").Text()
}

func extractPDFPage(data []byte, page int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf page %d: %v", page, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	p := r.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	text, err = p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", page, err)
	}
	return strings.TrimSpace(text), nil
}

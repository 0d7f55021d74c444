// Package decoder turns uploaded PDF and EPUB files and fetched web pages
// into plain Document Text.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrUnsupportedFormat is returned for file extensions no Format handles.
	ErrUnsupportedFormat = errors.New("unsupported file type, please upload a PDF or EPUB file")
	// ErrDecode wraps every failure to read a supported file.
	ErrDecode = errors.New("could not decode document")
)

// PartSeparator joins pages and chapters in the decoded text.
const PartSeparator = "\n\n"

// Document is a decoded document.
type Document struct {
	Title  string
	Format string
	URL    string
	Text   string
}

// Part extracts the text of one page or chapter.
type Part func(ctx context.Context) (string, error)

// Container is an opened document whose parts have not been extracted yet.
// Parts are independent, so callers may extract them concurrently.
type Container struct {
	Title string
	Parts []Part
}

// Format defines a document format.
type Format interface {
	Name() string
	Extensions() []string
	Open(data []byte) (*Container, error)
}

// Registry selects a Format by file extension.
type Registry struct {
	formats []Format
}

// NewRegistry returns a registry with the given formats.
func NewRegistry(formats ...Format) *Registry {
	return &Registry{formats: formats}
}

// Default returns a registry with the PDF and EPUB formats.
func Default() *Registry {
	return NewRegistry(&PDFFormat{}, &EPUBFormat{})
}

// Register adds a format to the registry.
func (r *Registry) Register(f Format) {
	r.formats = append(r.formats, f)
}

// Lookup returns the format registered for filename's extension.
func (r *Registry) Lookup(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, f := range r.formats {
		for _, e := range f.Extensions() {
			if ext == e {
				return f, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// SupportedFormats returns registered format names with their extensions.
func (r *Registry) SupportedFormats() []string {
	var out []string
	for _, f := range r.formats {
		out = append(out, f.Name()+" ("+strings.Join(f.Extensions(), ", ")+")")
	}
	return out
}

// Open looks up the format of filename and opens data with it.
func (r *Registry) Open(filename string, data []byte) (Format, *Container, error) {
	f, err := r.Lookup(filename)
	if err != nil {
		return nil, nil, err
	}
	c, err := f.Open(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrDecode, f.Name(), err)
	}
	if c.Title == "" {
		c.Title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	return f, c, nil
}

// Decode extracts the text of every part in order.
func (r *Registry) Decode(ctx context.Context, filename string, data []byte) (Document, error) {
	f, c, err := r.Open(filename, data)
	if err != nil {
		return Document{}, err
	}
	parts := make([]string, len(c.Parts))
	for i, p := range c.Parts {
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}
		text, err := p(ctx)
		if err != nil {
			return Document{}, fmt.Errorf("%w: %s part %d: %v", ErrDecode, f.Name(), i+1, err)
		}
		parts[i] = text
	}
	return Assemble(c.Title, f.Name(), parts), nil
}

// Assemble joins extracted parts into a Document. The text is NFC-normalized
// so that offsets stay stable for composed and decomposed input alike.
func Assemble(title, format string, parts []string) Document {
	return Document{
		Title:  strings.TrimSpace(title),
		Format: format,
		Text:   norm.NFC.String(strings.Join(parts, PartSeparator)),
	}
}

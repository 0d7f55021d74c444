package db

import "time"

// Definition is a cached language-model answer for a word in a language.
type Definition struct {
	ID         int64
	Word       string
	Language   string
	Definition string
	Hits       int
	UpdatedAt  time.Time
}

// Source is a provenance record for a loaded document.
type Source struct {
	ID          int64
	SourceType  string
	Title       string
	URL         string
	ContentHash string
	Language    string
	TextLength  int
	AddedAt     time.Time
}

// Source types.
const (
	SourcePDF     = "pdf"
	SourceEPUB    = "epub"
	SourceArticle = "website_article"
)

// Package server exposes a reader session over a JSON HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/japaniel/readerer/pkg/config"
	"github.com/japaniel/readerer/pkg/readerer"
	"github.com/japaniel/readerer/pkg/server/middleware"
	"github.com/japaniel/readerer/pkg/session"
	"github.com/japaniel/readerer/pkg/vocab"
)

// DefaultMaxUploadBytes caps uploads when Options leaves it unset.
const DefaultMaxUploadBytes int64 = 50 << 20

// Options configures a Server.
type Options struct {
	Logger         *slog.Logger
	CORS           config.CORSConfig
	MaxUploadBytes int64
	Version        string
	// Cache is pinged by /health. nil reports the cache as disabled.
	Cache Pinger
	// LLMConfigured is reported by /health.
	LLMConfigured bool
}

// Server serves one reader session.
type Server struct {
	sess          *session.Session
	log           *slog.Logger
	cors          config.CORSConfig
	maxUpload     int64
	version       string
	cache         Pinger
	llmConfigured bool
}

// New returns a Server for sess.
func New(sess *session.Session, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	limit := opts.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	return &Server{
		sess:          sess,
		log:           log.With("component", "server"),
		cors:          opts.CORS,
		maxUpload:     limit,
		version:       opts.Version,
		cache:         opts.Cache,
		llmConfigured: opts.LLMConfigured,
	}
}

// Handler returns the routed API with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /live", s.live)
	mux.HandleFunc("GET /health", s.health)

	mux.HandleFunc("POST /api/documents", s.uploadDocument)
	mux.HandleFunc("POST /api/documents/url", s.loadURL)
	mux.HandleFunc("GET /api/document", s.document)
	mux.HandleFunc("GET /api/segments", s.segments)
	mux.HandleFunc("POST /api/lookup", s.lookup)
	mux.HandleFunc("GET /api/vocabulary", s.vocabulary)
	mux.HandleFunc("POST /api/vocabulary", s.confirm)
	mux.HandleFunc("DELETE /api/vocabulary/{word}", s.removeWord)
	mux.HandleFunc("GET /api/vocabulary/export", s.exportVocabulary)

	return middleware.Chain(
		middleware.RequestID,
		middleware.Logger(s.log),
		middleware.Recovery(s.log),
		middleware.CORS(s.cors),
	)(mux)
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, err)
			return
		}
		s.writeError(w, r, fmt.Errorf("%w: multipart field \"file\" is required", errBadRequest))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	info, err := s.sess.LoadFile(r.Context(), header.Filename, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

type urlRequest struct {
	URL string `json:"url"`
}

func (s *Server) loadURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, r, fmt.Errorf("%w: url is required", errBadRequest))
		return
	}
	info, err := s.sess.LoadURL(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) document(w http.ResponseWriter, r *http.Request) {
	info, err := s.sess.Info()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// segmentDTO is a Segment with its derived fields spelled out for clients.
type segmentDTO struct {
	Text      string `json:"text"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Kind      string `json:"kind"`
	CleanWord string `json:"cleanWord,omitempty"`
	Clickable bool   `json:"clickable"`
}

type segmentsResponse struct {
	Generation uint64       `json:"generation"`
	From       int          `json:"from"`
	Total      int          `json:"total"`
	Segments   []segmentDTO `json:"segments"`
}

func (s *Server) segments(w http.ResponseWriter, r *http.Request) {
	from, err := queryInt(r, "from")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	gen := s.sess.Generation()
	segs, total, err := s.sess.Segments(from, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]segmentDTO, 0, len(segs))
	for _, seg := range segs {
		out = append(out, toSegmentDTO(seg))
	}
	writeJSON(w, http.StatusOK, segmentsResponse{
		Generation: gen,
		From:       max(from, 0),
		Total:      total,
		Segments:   out,
	})
}

func toSegmentDTO(seg readerer.Segment) segmentDTO {
	return segmentDTO{
		Text:      seg.Text,
		Start:     seg.Start,
		End:       seg.End(),
		Kind:      seg.Kind.String(),
		CleanWord: seg.CleanWord(),
		Clickable: seg.Clickable(),
	}
}

type lookupRequest struct {
	Word   string `json:"word"`
	Offset int    `json:"offset"`
}

// lookup defines a word. Without a word the segment under offset is used.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if !s.decode(w, r, &req) {
		return
	}

	var (
		sel session.Selection
		err error
	)
	if strings.TrimSpace(req.Word) == "" {
		sel, err = s.sess.LookupAt(r.Context(), req.Offset)
	} else {
		sel, err = s.sess.Lookup(r.Context(), req.Word, req.Offset)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

type vocabularyResponse struct {
	Count   int           `json:"count"`
	Entries []vocab.Entry `json:"entries"`
}

func (s *Server) vocabulary(w http.ResponseWriter, r *http.Request) {
	entries := s.sess.Vocabulary()
	if entries == nil {
		entries = []vocab.Entry{}
	}
	writeJSON(w, http.StatusOK, vocabularyResponse{Count: len(entries), Entries: entries})
}

type confirmResponse struct {
	Entry vocab.Entry `json:"entry"`
	Added bool        `json:"added"`
	Count int         `json:"count"`
}

func (s *Server) confirm(w http.ResponseWriter, r *http.Request) {
	var sel session.Selection
	if !s.decode(w, r, &sel) {
		return
	}
	entry, added, err := s.sess.Confirm(sel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, confirmResponse{Entry: entry, Added: added, Count: s.sess.VocabularyCount()})
}

type removeResponse struct {
	Removed bool `json:"removed"`
	Count   int  `json:"count"`
}

func (s *Server) removeWord(w http.ResponseWriter, r *http.Request) {
	word := r.PathValue("word")
	if strings.TrimSpace(word) == "" {
		s.writeError(w, r, session.ErrEmptyWord)
		return
	}
	removed := s.sess.Remove(word)
	writeJSON(w, http.StatusOK, removeResponse{Removed: removed, Count: s.sess.VocabularyCount()})
}

func (s *Server) exportVocabulary(w http.ResponseWriter, r *http.Request) {
	file, ok := s.sess.ExportVocabularyCSV()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Body)
}

// decode reads a JSON body of at most 1MB into v and writes a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, err)
			return false
		}
		s.writeError(w, r, fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err))
		return false
	}
	return true
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return n, nil
}

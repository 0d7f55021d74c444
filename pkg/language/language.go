// Package language asks a language model which language a document is in and
// what a word means.
package language

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// DefaultLanguage is used whenever detection is impossible.
const DefaultLanguage = "English"

// SampleRunes is how much of a document is sent for language detection.
const SampleRunes = 1000

// maxLanguageLen rejects answers that are sentences rather than language names.
const maxLanguageLen = 30

var (
	// ErrDefinitionUnavailable wraps every failed definition lookup.
	ErrDefinitionUnavailable = errors.New("definition unavailable")
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("API key not configured.")
	// ErrDetectionFailed wraps every failed language detection.
	ErrDetectionFailed = errors.New("language detection failed")
)

// Service is the language-model collaborator of the reader.
type Service interface {
	// Detect names the language of sample. On failure it returns
	// DefaultLanguage together with an error wrapping ErrDetectionFailed.
	Detect(ctx context.Context, sample string) (string, error)
	// DetectLanguage never fails; it returns DefaultLanguage instead.
	DetectLanguage(ctx context.Context, sample string) string
	// LookupDefinition returns a short plain-text definition of word written in language.
	LookupDefinition(ctx context.Context, word, language string) (string, error)
}

// Completer sends a single prompt to a language model and returns its text answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLMService implements Service on top of a Completer.
type LLMService struct {
	completer  Completer
	log        *slog.Logger
	sampleSize int
}

// NewService returns a Service backed by c. A nil c behaves like a missing API key.
func NewService(c Completer, log *slog.Logger) *LLMService {
	if log == nil {
		log = slog.Default()
	}
	return &LLMService{completer: c, log: log.With("component", "language"), sampleSize: SampleRunes}
}

// WithSampleSize sets how many leading runes DetectLanguage sends.
func (s *LLMService) WithSampleSize(n int) *LLMService {
	if n > 0 {
		s.sampleSize = n
	}
	return s
}

// Sample returns the first n runes of text.
func Sample(text string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}

func (s *LLMService) DetectLanguage(ctx context.Context, sample string) string {
	language, err := s.Detect(ctx, sample)
	if err != nil {
		s.log.Warn("language detection fell back to default",
			slog.String("language", language), slog.String("error", err.Error()))
	}
	return language
}

func (s *LLMService) Detect(ctx context.Context, sample string) (string, error) {
	if s.completer == nil {
		return DefaultLanguage, fmt.Errorf("%w: %w", ErrDetectionFailed, ErrNotConfigured)
	}
	if strings.TrimSpace(sample) == "" {
		return DefaultLanguage, fmt.Errorf("%w: empty sample", ErrDetectionFailed)
	}

	answer, err := s.completer.Complete(ctx, detectPrompt(Sample(sample, s.sampleSize)))
	if err != nil {
		return DefaultLanguage, fmt.Errorf("%w: %w", ErrDetectionFailed, err)
	}
	language := strings.TrimSpace(answer)
	if language == "" || utf8.RuneCountInString(language) >= maxLanguageLen {
		return DefaultLanguage, fmt.Errorf("%w: unusable answer of %d bytes", ErrDetectionFailed, len(answer))
	}
	return language, nil
}

func (s *LLMService) LookupDefinition(ctx context.Context, word, language string) (string, error) {
	if s.completer == nil {
		return "", fmt.Errorf("%w: %w", ErrDefinitionUnavailable, ErrNotConfigured)
	}
	word = strings.TrimSpace(word)
	if word == "" {
		return "", fmt.Errorf("%w: empty word", ErrDefinitionUnavailable)
	}
	if language == "" {
		language = DefaultLanguage
	}

	answer, err := s.completer.Complete(ctx, definitionPrompt(word, language))
	if err != nil {
		return "", fmt.Errorf("%w: failed to get definition for %q: %w", ErrDefinitionUnavailable, word, err)
	}
	definition := CleanDefinition(answer)
	if definition == "" {
		return "", fmt.Errorf("%w: empty answer for %q", ErrDefinitionUnavailable, word)
	}
	return definition, nil
}

// CleanDefinition strips markdown emphasis and surrounding whitespace.
func CleanDefinition(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "*", ""))
}

// Package query implements the retrieval-augmented read path: retrieve the
// nearest chunks, synthesize an answer over them, and report the source
// documents the answer drew from.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docqa/backend/internal/metrics"
	"github.com/docqa/backend/internal/storage/models"
	"github.com/docqa/backend/internal/vector"
	"github.com/docqa/backend/pkg/faults"
	"github.com/docqa/backend/pkg/logger"
)

const emptyCorpusAnswer = "No documents have been uploaded yet. Upload documents first, then ask questions about their content."

// Generator synthesizes an answer to a question grounded in the given
// passages. The remote LLM client implements it; a nil Generator switches
// the engine to context-only answers.
type Generator interface {
	GenerateAnswer(ctx context.Context, question string, passages []string) (string, error)
}

type Answer struct {
	Answer      string                  `json:"answer"`
	Sources     []models.SourceDocument `json:"sources"`
	ContextOnly bool                    `json:"context_only,omitempty"`
}

type Engine struct {
	index         *vector.Manager
	generator     Generator
	defaultK      int
	maxK          int
	previewLength int
}

func NewEngine(index *vector.Manager, generator Generator, defaultK, maxK, previewLength int) *Engine {
	return &Engine{
		index:         index,
		generator:     generator,
		defaultK:      defaultK,
		maxK:          maxK,
		previewLength: previewLength,
	}
}

// DefaultK is the retrieval depth used when the caller does not set one.
func (e *Engine) DefaultK() int { return e.defaultK }

// MaxK is the upper bound on caller-chosen retrieval depth.
func (e *Engine) MaxK() int { return e.maxK }

// Answer runs the full pipeline for one question. k <= 0 selects the
// configured default depth; an empty index short-circuits to a fixed answer
// instead of failing.
func (e *Engine) Answer(ctx context.Context, question string, k int) (*Answer, error) {
	start := time.Now()
	answer, err := e.answer(ctx, question, k)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.QueryTotal.WithLabelValues(status).Inc()
	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	return answer, err
}

func (e *Engine) answer(ctx context.Context, question string, k int) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, faults.New(faults.ErrValidation, "question must not be empty")
	}
	if k <= 0 {
		k = e.defaultK
	}
	if k > e.maxK {
		return nil, faults.New(faults.ErrValidation, fmt.Sprintf("k must be at most %d, got %d", e.maxK, k))
	}

	if !e.index.Ready() {
		metrics.RetrievalResults.Observe(0)
		return &Answer{Answer: emptyCorpusAnswer, Sources: []models.SourceDocument{}}, nil
	}

	results, err := e.index.Search(ctx, question, k)
	if err != nil {
		return nil, err
	}
	metrics.RetrievalResults.Observe(float64(len(results)))
	if len(results) == 0 {
		return &Answer{Answer: emptyCorpusAnswer, Sources: []models.SourceDocument{}}, nil
	}

	passages := make([]string, len(results))
	for i, r := range results {
		passages[i] = r.Text
	}

	var text string
	contextOnly := e.generator == nil
	if contextOnly {
		text = e.contextOnlyAnswer(question, results)
	} else {
		text, err = e.generator.GenerateAnswer(ctx, question, passages)
		if err != nil {
			return nil, err
		}
	}

	logger.Debug("Query answered",
		zap.Int("retrieved", len(results)),
		zap.Bool("context_only", contextOnly),
	)
	return &Answer{
		Answer:      text,
		Sources:     e.sources(results),
		ContextOnly: contextOnly,
	}, nil
}

// Search exposes raw retrieval without synthesis.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, faults.New(faults.ErrValidation, "query must not be empty")
	}
	if k <= 0 {
		k = e.defaultK
	}
	if k > e.maxK {
		return nil, faults.New(faults.ErrValidation, fmt.Sprintf("k must be at most %d, got %d", e.maxK, k))
	}
	return e.index.Search(ctx, query, k)
}

// contextOnlyAnswer renders the retrieved chunks directly when no generator
// is configured, so the service stays useful without an LLM behind it.
func (e *Engine) contextOnlyAnswer(question string, results []models.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the indexed documents, here are the most relevant passages for %q:\n", question)
	for i, r := range results {
		fmt.Fprintf(&b, "\n[%d] %s:\n%s\n", i+1, r.Filename, strings.TrimSpace(r.Text))
	}
	return b.String()
}

// sources dedupes results by filename in first-seen (best score) order and
// truncates each preview to the configured length.
func (e *Engine) sources(results []models.SearchResult) []models.SourceDocument {
	seen := make(map[string]bool, len(results))
	sources := make([]models.SourceDocument, 0, len(results))
	for _, r := range results {
		if seen[r.Filename] {
			continue
		}
		seen[r.Filename] = true
		sources = append(sources, models.SourceDocument{
			DocID:    r.DocID,
			Filename: r.Filename,
			Content:  e.preview(r.Text),
		})
	}
	return sources
}

func (e *Engine) preview(text string) string {
	runes := []rune(text)
	if len(runes) <= e.previewLength {
		return text
	}
	return string(runes[:e.previewLength]) + "..."
}

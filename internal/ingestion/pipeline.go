// Package ingestion coordinates the document write path: store the upload,
// extract and chunk its text, index the chunks, and record the document in
// the catalog. Deletion re-derives the corpus and rebuilds the index.
package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docqa/backend/internal/catalog"
	"github.com/docqa/backend/internal/chunker"
	"github.com/docqa/backend/internal/extract"
	"github.com/docqa/backend/internal/metrics"
	"github.com/docqa/backend/internal/storage/models"
	"github.com/docqa/backend/internal/vector"
	"github.com/docqa/backend/pkg/faults"
	"github.com/docqa/backend/pkg/logger"
)

type Pipeline struct {
	mu sync.Mutex

	uploadsDir  string
	maxFileSize int64
	allowedExts map[string]bool

	splitter *chunker.Splitter
	index    *vector.Manager
	catalog  *catalog.Catalog
}

type Options struct {
	UploadsDir        string
	MaxFileSize       int64
	AllowedExtensions []string
}

func NewPipeline(opts Options, splitter *chunker.Splitter, index *vector.Manager, cat *catalog.Catalog) (*Pipeline, error) {
	if err := os.MkdirAll(opts.UploadsDir, 0755); err != nil {
		return nil, faults.Wrap(faults.ErrPersistence, fmt.Errorf("create uploads dir: %w", err))
	}

	allowed := make(map[string]bool, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}

	return &Pipeline{
		uploadsDir:  opts.UploadsDir,
		maxFileSize: opts.MaxFileSize,
		allowedExts: allowed,
		splitter:    splitter,
		index:       index,
		catalog:     cat,
	}, nil
}

// AddDocument ingests one uploaded file end to end. The catalog record is
// written last, so an interruption leaves at worst an unlisted stored file
// and orphaned vectors, both cleaned up by the next delete's rebuild.
func (p *Pipeline) AddDocument(ctx context.Context, filename string, content []byte) (models.DocumentRecord, error) {
	var zero models.DocumentRecord

	ext := strings.ToLower(filepath.Ext(filename))
	if !p.allowedExts[ext] {
		return zero, faults.New(faults.ErrValidation, fmt.Sprintf("unsupported file type %q", ext))
	}
	if int64(len(content)) > p.maxFileSize {
		return zero, faults.New(faults.ErrValidation,
			fmt.Sprintf("file too large: %d bytes, limit %d", len(content), p.maxFileSize))
	}
	if len(content) == 0 {
		return zero, faults.New(faults.ErrValidation, "empty file")
	}

	pages, err := extract.Blocks(filename, content)
	if err != nil {
		return zero, faults.Wrap(faults.ErrValidation, err)
	}
	if len(pages) == 0 {
		return zero, faults.New(faults.ErrValidation, "no extractable text in document")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	docID := uuid.New().String()
	storagePath := filepath.Join(p.uploadsDir, docID+"_"+filepath.Base(filename))
	if err := os.WriteFile(storagePath, content, 0644); err != nil {
		return zero, faults.Wrap(faults.ErrPersistence, fmt.Errorf("store upload: %w", err))
	}

	entries := p.chunkPages(docID, filename, pages)
	if len(entries) == 0 {
		os.Remove(storagePath)
		return zero, faults.New(faults.ErrValidation, "no extractable text in document")
	}

	if err := p.index.Add(ctx, entries); err != nil {
		os.Remove(storagePath)
		return zero, err
	}

	record := models.DocumentRecord{
		DocID:       docID,
		Filename:    filename,
		FileType:    extract.FileType(filename),
		FileSize:    int64(len(content)),
		ChunkCount:  len(entries),
		PageCount:   len(pages),
		CreatedAt:   time.Now().UTC(),
		StoragePath: storagePath,
	}
	if err := p.catalog.Put(record); err != nil {
		os.Remove(storagePath)
		return zero, err
	}

	metrics.DocumentsIngested.Inc()
	logger.Info("Document ingested",
		zap.String("doc_id", docID),
		zap.String("filename", filename),
		zap.Int("chunks", len(entries)),
		zap.Int("pages", len(pages)),
	)
	return record, nil
}

// RemoveDocument deletes the document and rebuilds the index from what
// remains. Returns false when the document id is unknown.
func (p *Pipeline) RemoveDocument(ctx context.Context, docID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, ok := p.catalog.Get(docID)
	if !ok {
		return false, nil
	}

	if _, err := p.catalog.Remove(docID); err != nil {
		return false, err
	}
	if record.StoragePath != "" {
		if err := os.Remove(record.StoragePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove stored upload",
				zap.String("doc_id", docID),
				zap.Error(err),
			)
		}
	}

	entries, err := p.deriveEntries()
	if err != nil {
		return false, err
	}
	if _, err := p.index.Rebuild(ctx, entries, p.catalog.DocIDs()); err != nil {
		return false, err
	}

	metrics.DocumentsDeleted.Inc()
	logger.Info("Document deleted",
		zap.String("doc_id", docID),
		zap.String("filename", record.Filename),
		zap.Int("remaining", p.catalog.Count()),
	)
	return true, nil
}

// RebuildIndex reconstructs the index from the stored uploads of every
// cataloged document. Used at the API level to recover from drift.
func (p *Pipeline) RebuildIndex(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := p.deriveEntries()
	if err != nil {
		return 0, err
	}
	return p.index.Rebuild(ctx, entries, p.catalog.DocIDs())
}

func (p *Pipeline) chunkPages(docID, filename string, pages []string) []models.VectorEntry {
	var entries []models.VectorEntry
	for _, page := range pages {
		for _, text := range p.splitter.Split(page) {
			entries = append(entries, models.VectorEntry{
				DocID:    docID,
				Filename: filename,
				Text:     text,
			})
		}
	}
	return entries
}

// deriveEntries re-extracts and re-chunks every cataloged document from its
// stored upload. A document whose upload is gone or unreadable is skipped
// with a warning, dropping its vectors from the rebuilt index.
func (p *Pipeline) deriveEntries() ([]models.VectorEntry, error) {
	var entries []models.VectorEntry
	for _, record := range p.catalog.List() {
		content, err := os.ReadFile(record.StoragePath)
		if err != nil {
			logger.Warn("Skipping document with missing stored upload",
				zap.String("doc_id", record.DocID),
				zap.String("path", record.StoragePath),
				zap.Error(err),
			)
			continue
		}
		pages, err := extract.Blocks(record.Filename, content)
		if err != nil {
			logger.Warn("Skipping document that no longer extracts",
				zap.String("doc_id", record.DocID),
				zap.Error(err),
			)
			continue
		}
		entries = append(entries, p.chunkPages(record.DocID, record.Filename, pages)...)
	}
	return entries, nil
}

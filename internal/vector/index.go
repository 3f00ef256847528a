// Package vector owns the persistent flat vector index: the single in-memory
// handle, its on-disk blob, and the add/search/rebuild lifecycle. Similarity
// is brute-force cosine, which is exact and fast enough for corpora that fit
// the full-rebuild-on-delete design.
package vector

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/docqa/backend/internal/metrics"
	"github.com/docqa/backend/internal/storage/models"
	"github.com/docqa/backend/pkg/faults"
	"github.com/docqa/backend/pkg/logger"
)

type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

const indexFile = "index.gob"

// snapshot is the on-disk format: vectors and their entry side-table travel
// in one self-describing blob so they can never diverge.
type snapshot struct {
	Dim     int
	Vectors [][]float32
	Entries []models.VectorEntry
}

type Manager struct {
	mu       sync.RWMutex
	embedder Embedder
	dir      string

	dim     int
	vectors [][]float32
	entries []models.VectorEntry
}

// NewManager loads the index blob from dir if one exists. A missing blob
// means an empty corpus; an unreadable one is logged and treated the same,
// since the catalog-driven rebuild can always reconstruct it.
func NewManager(dir string, embedder Embedder) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, faults.Wrap(faults.ErrPersistence, fmt.Errorf("create vector store dir: %w", err))
	}

	m := &Manager{embedder: embedder, dir: dir}
	if err := m.load(); err != nil {
		logger.Warn("Failed to load vector index, starting empty", zap.Error(err))
		m.dim, m.vectors, m.entries = 0, nil, nil
	}
	if len(m.entries) > 0 {
		logger.Info("Vector index loaded", zap.Int("entries", len(m.entries)))
	}
	metrics.IndexEntries.Set(float64(len(m.entries)))
	return m, nil
}

func (m *Manager) indexPath() string {
	return filepath.Join(m.dir, indexFile)
}

func (m *Manager) load() error {
	f, err := os.Open(m.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("decode index blob: %w", err)
	}
	if len(snap.Vectors) != len(snap.Entries) {
		return fmt.Errorf("index blob corrupt: %d vectors, %d entries", len(snap.Vectors), len(snap.Entries))
	}

	m.dim = snap.Dim
	m.vectors = snap.Vectors
	m.entries = snap.Entries
	return nil
}

// Ready reports whether the index holds any entries.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries) > 0
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Add embeds the entries' text and appends them to the index, persisting the
// new blob before the in-memory state is committed. The first add bootstraps
// the index.
func (m *Manager) Add(ctx context.Context, entries []models.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	vectors, err := m.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return faults.Wrap(faults.ErrEmbedding, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dim := m.dim
	if dim == 0 {
		dim = len(vectors[0])
	}
	for _, v := range vectors {
		if len(v) != dim {
			return faults.New(faults.ErrEmbedding,
				fmt.Sprintf("vector dimension mismatch: got %d, index has %d", len(v), dim))
		}
	}

	newVectors := append(append([][]float32{}, m.vectors...), vectors...)
	newEntries := append(append([]models.VectorEntry{}, m.entries...), entries...)

	if err := m.persist(snapshot{Dim: dim, Vectors: newVectors, Entries: newEntries}); err != nil {
		return err
	}

	m.dim, m.vectors, m.entries = dim, newVectors, newEntries
	metrics.IndexEntries.Set(float64(len(m.entries)))

	logger.Info("Vector entries indexed",
		zap.Int("added", len(entries)),
		zap.Int("total", len(m.entries)),
	)
	return nil
}

// Search returns the k entries nearest to the query by cosine similarity,
// higher score first. An empty index yields an empty result, not an error.
func (m *Manager) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	if k < 1 {
		return nil, faults.New(faults.ErrValidation, fmt.Sprintf("k must be >= 1, got %d", k))
	}
	if !m.Ready() {
		return nil, nil
	}

	queryVec, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, faults.Wrap(faults.ErrEmbedding, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]models.SearchResult, len(m.entries))
	for i, e := range m.entries {
		results[i] = models.SearchResult{
			DocID:    e.DocID,
			Filename: e.Filename,
			Text:     e.Text,
			Score:    cosine(m.vectors[i], queryVec),
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Rebuild discards the index and reconstructs it from entries. Entries whose
// doc id is not in validDocIDs are pruned first (tolerated consistency
// violation from an interrupted ingestion). An empty entry set tears the
// blob down entirely. Returns the number of pruned entries.
func (m *Manager) Rebuild(ctx context.Context, entries []models.VectorEntry, validDocIDs map[string]bool) (int, error) {
	kept := make([]models.VectorEntry, 0, len(entries))
	pruned := 0
	for _, e := range entries {
		if !validDocIDs[e.DocID] {
			pruned++
			continue
		}
		kept = append(kept, e)
	}
	if pruned > 0 {
		logger.Warn("Pruned vector entries referencing unknown documents",
			zap.Int("pruned", pruned),
		)
	}

	if len(kept) == 0 {
		m.mu.Lock()
		defer m.mu.Unlock()
		if err := m.teardown(); err != nil {
			return pruned, err
		}
		m.dim, m.vectors, m.entries = 0, nil, nil
		metrics.IndexEntries.Set(0)
		metrics.IndexRebuilds.Inc()
		logger.Info("Vector index torn down, no documents remain")
		return pruned, nil
	}

	texts := make([]string, len(kept))
	for i, e := range kept {
		texts[i] = e.Text
	}
	vectors, err := m.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return pruned, faults.Wrap(faults.ErrEmbedding, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dim := len(vectors[0])
	if err := m.persist(snapshot{Dim: dim, Vectors: vectors, Entries: kept}); err != nil {
		return pruned, err
	}

	m.dim, m.vectors, m.entries = dim, vectors, kept
	metrics.IndexEntries.Set(float64(len(m.entries)))
	metrics.IndexRebuilds.Inc()

	logger.Info("Vector index rebuilt", zap.Int("entries", len(kept)))
	return pruned, nil
}

// persist writes the snapshot next to the live blob and renames it into
// place, so a crash never leaves a truncated index on disk.
func (m *Manager) persist(snap snapshot) error {
	tmp, err := os.CreateTemp(m.dir, indexFile+".tmp-*")
	if err != nil {
		return faults.Wrap(faults.ErrPersistence, fmt.Errorf("create temp index: %w", err))
	}
	tmpName := tmp.Name()

	if err := gob.NewEncoder(tmp).Encode(&snap); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return faults.Wrap(faults.ErrPersistence, fmt.Errorf("encode index blob: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return faults.Wrap(faults.ErrPersistence, fmt.Errorf("close temp index: %w", err))
	}
	if err := os.Rename(tmpName, m.indexPath()); err != nil {
		os.Remove(tmpName)
		return faults.Wrap(faults.ErrPersistence, fmt.Errorf("swap index blob: %w", err))
	}
	return nil
}

func (m *Manager) teardown() error {
	if err := os.Remove(m.indexPath()); err != nil && !os.IsNotExist(err) {
		return faults.Wrap(faults.ErrPersistence, fmt.Errorf("remove index blob: %w", err))
	}
	return nil
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

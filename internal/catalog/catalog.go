// Package catalog is the authoritative doc_id → DocumentRecord mapping,
// persisted as a JSON side-table next to the vector index blob.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/docqa/backend/internal/storage/models"
	"github.com/docqa/backend/pkg/faults"
)

const catalogFile = "documents.json"

type Catalog struct {
	mu      sync.RWMutex
	path    string
	records map[string]models.DocumentRecord
}

// Open loads the catalog file from dir, starting empty if none exists.
func Open(dir string) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, faults.Wrap(faults.ErrPersistence, fmt.Errorf("create catalog dir: %w", err))
	}

	c := &Catalog{
		path:    filepath.Join(dir, catalogFile),
		records: make(map[string]models.DocumentRecord),
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, faults.Wrap(faults.ErrPersistence, fmt.Errorf("read catalog: %w", err))
	}
	if err := json.Unmarshal(data, &c.records); err != nil {
		return nil, faults.Wrap(faults.ErrPersistence, fmt.Errorf("decode catalog: %w", err))
	}
	return c, nil
}

// Put stores the record and persists the catalog. On a persistence failure
// the in-memory state is rolled back so memory never claims more than disk.
func (c *Catalog) Put(record models.DocumentRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, existed := c.records[record.DocID]
	c.records[record.DocID] = record

	if err := c.save(); err != nil {
		if existed {
			c.records[record.DocID] = prev
		} else {
			delete(c.records, record.DocID)
		}
		return err
	}
	return nil
}

func (c *Catalog) Get(docID string) (models.DocumentRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	record, ok := c.records[docID]
	return record, ok
}

// Remove deletes the record if present, reporting whether it existed.
func (c *Catalog) Remove(docID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.records[docID]
	if !ok {
		return false, nil
	}
	delete(c.records, docID)

	if err := c.save(); err != nil {
		c.records[docID] = prev
		return false, err
	}
	return true, nil
}

// List returns all records in a stable order (created_at, then doc id).
func (c *Catalog) List() []models.DocumentRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	records := make([]models.DocumentRecord, 0, len(c.records))
	for _, record := range c.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].DocID < records[j].DocID
	})
	return records
}

func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// DocIDs returns the set of known document ids.
func (c *Catalog) DocIDs() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make(map[string]bool, len(c.records))
	for id := range c.records {
		ids[id] = true
	}
	return ids
}

func (c *Catalog) save() error {
	data, err := json.MarshalIndent(c.records, "", "  ")
	if err != nil {
		return faults.Wrap(faults.ErrPersistence, fmt.Errorf("encode catalog: %w", err))
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, catalogFile+".tmp-*")
	if err != nil {
		return faults.Wrap(faults.ErrPersistence, fmt.Errorf("create temp catalog: %w", err))
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return faults.Wrap(faults.ErrPersistence, fmt.Errorf("write catalog: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return faults.Wrap(faults.ErrPersistence, fmt.Errorf("close temp catalog: %w", err))
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return faults.Wrap(faults.ErrPersistence, fmt.Errorf("swap catalog: %w", err))
	}
	return nil
}

package models

import "time"

// DocumentRecord is the catalog's authoritative metadata for one ingested
// document. It is created only after the document's chunks are indexed, so
// its existence implies index completeness.
type DocumentRecord struct {
	DocID       string    `json:"doc_id"`
	Filename    string    `json:"filename"`
	FileType    string    `json:"file_type"`
	FileSize    int64     `json:"file_size"`
	ChunkCount  int       `json:"chunk_count"`
	PageCount   int       `json:"page_count"`
	CreatedAt   time.Time `json:"created_at"`
	StoragePath string    `json:"storage_path"`
}

// VectorEntry is the per-vector metadata stored inside the index blob. The
// vector itself lives in a parallel slice owned by the index manager.
type VectorEntry struct {
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// SearchResult is one ranked hit from the vector index.
type SearchResult struct {
	DocID    string  `json:"doc_id"`
	Filename string  `json:"filename"`
	Text     string  `json:"content"`
	Score    float32 `json:"score"`
}

// SourceDocument is a deduplicated, preview-truncated citation returned
// alongside an answer.
type SourceDocument struct {
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Sources   []string  `json:"sources"`
}

// Conversation is mutated only by appending messages.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ConversationMetadata struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c *Conversation) Metadata() ConversationMetadata {
	return ConversationMetadata{
		ID:           c.ID,
		Title:        c.Title,
		MessageCount: len(c.Messages),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

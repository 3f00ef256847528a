// Package conversation persists chat histories, one JSON file per
// conversation.
package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docqa/backend/internal/metrics"
	"github.com/docqa/backend/internal/storage/models"
	"github.com/docqa/backend/pkg/faults"
	"github.com/docqa/backend/pkg/logger"
)

const autoTitleLength = 50

type Store struct {
	mu  sync.Mutex
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, faults.Wrap(faults.ErrPersistence, fmt.Errorf("create conversations dir: %w", err))
	}
	return &Store{dir: dir}, nil
}

// Create starts a new conversation. An empty title is filled in later from
// the first user message.
func (s *Store) Create(title string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:        uuid.New().String(),
		Title:     strings.TrimSpace(title),
		Messages:  []models.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(conv); err != nil {
		return nil, err
	}

	metrics.ConversationsCreated.Inc()
	logger.Info("Conversation created", zap.String("conversation_id", conv.ID))
	return conv, nil
}

// Get returns the conversation, or nil when the id is unknown.
func (s *Store) Get(id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

// AppendMessage adds a message and returns the updated conversation, or nil
// when the id is unknown. The first user message titles an untitled
// conversation.
func (s *Store) AppendMessage(id, role, content string, sources []string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.load(id)
	if err != nil || conv == nil {
		return nil, err
	}

	now := time.Now().UTC()
	conv.Messages = append(conv.Messages, models.Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: now,
		Sources:   sources,
	})
	conv.UpdatedAt = now

	if conv.Title == "" && role == models.RoleUser {
		conv.Title = autoTitle(content)
	}

	if err := s.save(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// List returns metadata for every conversation, most recently updated first.
func (s *Store) List() ([]models.ConversationMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, faults.Wrap(faults.ErrPersistence, fmt.Errorf("list conversations: %w", err))
	}

	metas := make([]models.ConversationMetadata, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		conv, err := s.load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			logger.Warn("Skipping unreadable conversation file",
				zap.String("file", entry.Name()),
				zap.Error(err),
			)
			continue
		}
		if conv != nil {
			metas = append(metas, conv.Metadata())
		}
	}

	sort.Slice(metas, func(i, j int) bool {
		if !metas[i].UpdatedAt.Equal(metas[j].UpdatedAt) {
			return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
		}
		return metas[i].ID < metas[j].ID
	})
	return metas, nil
}

// Count returns the number of stored conversations.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			count++
		}
	}
	return count
}

// Delete removes the conversation, reporting whether it existed.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, faults.Wrap(faults.ErrPersistence, fmt.Errorf("delete conversation: %w", err))
	}
	return true, nil
}

// Export renders the conversation as "json" or "markdown". Unknown ids
// return nil bytes; exporting is read-only and repeatable.
func (s *Store) Export(id, format string) ([]byte, error) {
	s.mu.Lock()
	conv, err := s.load(id)
	s.mu.Unlock()
	if err != nil || conv == nil {
		return nil, err
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(conv, "", "  ")
		if err != nil {
			return nil, faults.Wrap(faults.ErrPersistence, fmt.Errorf("encode export: %w", err))
		}
		return data, nil
	case "markdown":
		return exportMarkdown(conv), nil
	default:
		return nil, faults.New(faults.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func exportMarkdown(conv *models.Conversation) []byte {
	var b strings.Builder

	title := conv.Title
	if title == "" {
		title = "Untitled conversation"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Created: %s\n\n", conv.CreatedAt.Format(time.RFC3339))

	for _, msg := range conv.Messages {
		role := "User"
		if msg.Role == models.RoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "## %s (%s)\n\n%s\n\n", role, msg.Timestamp.Format(time.RFC3339), msg.Content)
		if len(msg.Sources) > 0 {
			b.WriteString("Sources: " + strings.Join(msg.Sources, ", ") + "\n\n")
		}
	}
	return []byte(b.String())
}

func autoTitle(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= autoTitleLength {
		return content
	}
	return string(runes[:autoTitleLength]) + "..."
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) load(id string) (*models.Conversation, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, faults.Wrap(faults.ErrPersistence, fmt.Errorf("read conversation: %w", err))
	}

	var conv models.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, faults.Wrap(faults.ErrPersistence, fmt.Errorf("decode conversation: %w", err))
	}
	return &conv, nil
}

func (s *Store) save(conv *models.Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return faults.Wrap(faults.ErrPersistence, fmt.Errorf("encode conversation: %w", err))
	}

	tmp, err := os.CreateTemp(s.dir, conv.ID+".json.tmp-*")
	if err != nil {
		return faults.Wrap(faults.ErrPersistence, fmt.Errorf("create temp conversation: %w", err))
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return faults.Wrap(faults.ErrPersistence, fmt.Errorf("write conversation: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return faults.Wrap(faults.ErrPersistence, fmt.Errorf("close temp conversation: %w", err))
	}
	if err := os.Rename(tmpName, s.path(conv.ID)); err != nil {
		os.Remove(tmpName)
		return faults.Wrap(faults.ErrPersistence, fmt.Errorf("swap conversation: %w", err))
	}
	return nil
}

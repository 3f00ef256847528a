package conversation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docqa/backend/internal/storage/models"
	"github.com/docqa/backend/pkg/faults"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newStore(t)

	conv, err := s.Create("Project kickoff")
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "Project kickoff", conv.Title)
	assert.Empty(t, conv.Messages)

	got, err := s.Get(conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, conv.ID, got.ID)

	missing, err := s.Get("no-such-id")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAppendMessage(t *testing.T) {
	s := newStore(t)
	conv, err := s.Create("Chat")
	require.NoError(t, err)

	updated, err := s.AppendMessage(conv.ID, models.RoleUser, "hello", nil)
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.Len(t, updated.Messages, 1)
	assert.Equal(t, models.RoleUser, updated.Messages[0].Role)
	assert.Equal(t, "hello", updated.Messages[0].Content)

	updated, err = s.AppendMessage(conv.ID, models.RoleAssistant, "hi there", []string{"doc.txt"})
	require.NoError(t, err)
	require.Len(t, updated.Messages, 2)
	assert.Equal(t, []string{"doc.txt"}, updated.Messages[1].Sources)

	unknown, err := s.AppendMessage("no-such-id", models.RoleUser, "hello", nil)
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestAutoTitleFromFirstUserMessage(t *testing.T) {
	s := newStore(t)
	conv, err := s.Create("")
	require.NoError(t, err)

	long := strings.Repeat("why does the index rebuild on every delete ", 3)
	updated, err := s.AppendMessage(conv.ID, models.RoleUser, long, nil)
	require.NoError(t, err)
	assert.Equal(t, string([]rune(strings.TrimSpace(long))[:autoTitleLength])+"...", updated.Title)

	// Later messages never retitle.
	updated, err = s.AppendMessage(conv.ID, models.RoleUser, "different question", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(updated.Title, "..."))
}

func TestListOrder(t *testing.T) {
	s := newStore(t)

	first, err := s.Create("first")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := s.Create("second")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	// Touching the first conversation moves it to the front.
	_, err = s.AppendMessage(first.ID, models.RoleUser, "bump", nil)
	require.NoError(t, err)

	metas, err := s.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, first.ID, metas[0].ID)
	assert.Equal(t, second.ID, metas[1].ID)
	assert.Equal(t, 1, metas[0].MessageCount)
}

func TestDelete(t *testing.T) {
	s := newStore(t)
	conv, err := s.Create("doomed")
	require.NoError(t, err)

	deleted, err := s.Delete(conv.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err := s.Get(conv.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err = s.Delete(conv.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestExportJSON(t *testing.T) {
	s := newStore(t)
	conv, err := s.Create("export me")
	require.NoError(t, err)
	_, err = s.AppendMessage(conv.ID, models.RoleUser, "question", nil)
	require.NoError(t, err)

	data, err := s.Export(conv.ID, "json")
	require.NoError(t, err)

	var decoded models.Conversation
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, conv.ID, decoded.ID)
	require.Len(t, decoded.Messages, 1)

	// Exporting is read-only, so a second export is identical.
	again, err := s.Export(conv.ID, "json")
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestExportMarkdown(t *testing.T) {
	s := newStore(t)
	conv, err := s.Create("notes")
	require.NoError(t, err)
	_, err = s.AppendMessage(conv.ID, models.RoleUser, "what is in the report?", nil)
	require.NoError(t, err)
	_, err = s.AppendMessage(conv.ID, models.RoleAssistant, "the quarterly figures", []string{"report.pdf"})
	require.NoError(t, err)

	data, err := s.Export(conv.ID, "markdown")
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "# notes")
	assert.Contains(t, text, "## User")
	assert.Contains(t, text, "## Assistant")
	assert.Contains(t, text, "what is in the report?")
	assert.Contains(t, text, "Sources: report.pdf")
}

func TestExportValidation(t *testing.T) {
	s := newStore(t)
	conv, err := s.Create("x")
	require.NoError(t, err)

	_, err = s.Export(conv.ID, "xml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrValidation))

	data, err := s.Export("no-such-id", "json")
	require.NoError(t, err)
	assert.Nil(t, data)
}

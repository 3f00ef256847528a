package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docqa/backend/internal/llm"
	"github.com/docqa/backend/internal/storage/models"
	"github.com/docqa/backend/internal/vector"
	"github.com/docqa/backend/pkg/faults"
)

type stubGenerator struct {
	answer   string
	err      error
	question string
	passages []string
}

func (s *stubGenerator) GenerateAnswer(_ context.Context, question string, passages []string) (string, error) {
	s.question = question
	s.passages = passages
	return s.answer, s.err
}

func seededIndex(t *testing.T, entries ...models.VectorEntry) *vector.Manager {
	t.Helper()
	m, err := vector.NewManager(t.TempDir(), llm.NewLocalEmbedder(64))
	require.NoError(t, err)
	if len(entries) > 0 {
		require.NoError(t, m.Add(context.Background(), entries))
	}
	return m
}

func TestAnswerEmptyIndex(t *testing.T) {
	engine := NewEngine(seededIndex(t), &stubGenerator{answer: "unused"}, 5, 20, 200)

	answer, err := engine.Answer(context.Background(), "anything?", 0)
	require.NoError(t, err)
	assert.Equal(t, emptyCorpusAnswer, answer.Answer)
	assert.Empty(t, answer.Sources)
}

func TestAnswerWithGenerator(t *testing.T) {
	index := seededIndex(t,
		models.VectorEntry{DocID: "d1", Filename: "bread.txt", Text: "sourdough needs wild yeast and patience"},
		models.VectorEntry{DocID: "d1", Filename: "bread.txt", Text: "knead the dough and let it proof"},
	)
	gen := &stubGenerator{answer: "You need wild yeast."}
	engine := NewEngine(index, gen, 5, 20, 200)

	answer, err := engine.Answer(context.Background(), "what does sourdough need?", 0)
	require.NoError(t, err)
	assert.Equal(t, "You need wild yeast.", answer.Answer)
	assert.False(t, answer.ContextOnly)
	assert.Equal(t, "what does sourdough need?", gen.question)
	assert.NotEmpty(t, gen.passages)

	// Two chunks from the same file collapse into one source.
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "bread.txt", answer.Sources[0].Filename)
}

func TestAnswerContextOnly(t *testing.T) {
	index := seededIndex(t,
		models.VectorEntry{DocID: "d1", Filename: "notes.txt", Text: "the meeting is on thursday"},
	)
	engine := NewEngine(index, nil, 5, 20, 200)

	answer, err := engine.Answer(context.Background(), "when is the meeting?", 0)
	require.NoError(t, err)
	assert.True(t, answer.ContextOnly)
	assert.Contains(t, answer.Answer, "notes.txt")
	assert.Contains(t, answer.Answer, "the meeting is on thursday")
}

func TestAnswerGeneratorFailure(t *testing.T) {
	index := seededIndex(t,
		models.VectorEntry{DocID: "d1", Filename: "a.txt", Text: "some content"},
	)
	gen := &stubGenerator{err: faults.New(faults.ErrGeneration, "model unavailable")}
	engine := NewEngine(index, gen, 5, 20, 200)

	_, err := engine.Answer(context.Background(), "question?", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrGeneration))
}

func TestAnswerValidation(t *testing.T) {
	engine := NewEngine(seededIndex(t), nil, 5, 20, 200)

	_, err := engine.Answer(context.Background(), "   ", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrValidation))

	_, err = engine.Answer(context.Background(), "fine question", 21)
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrValidation))
}

func TestSourcePreviewTruncation(t *testing.T) {
	long := strings.Repeat("lorem ipsum dolor sit amet ", 20)
	index := seededIndex(t,
		models.VectorEntry{DocID: "d1", Filename: "long.txt", Text: long},
	)
	engine := NewEngine(index, nil, 5, 20, 50)

	answer, err := engine.Answer(context.Background(), "lorem ipsum", 0)
	require.NoError(t, err)
	require.Len(t, answer.Sources, 1)
	assert.Len(t, []rune(answer.Sources[0].Content), 53)
	assert.True(t, strings.HasSuffix(answer.Sources[0].Content, "..."))
}

func TestSearchPassthrough(t *testing.T) {
	index := seededIndex(t,
		models.VectorEntry{DocID: "d1", Filename: "a.txt", Text: "red apples in autumn"},
		models.VectorEntry{DocID: "d2", Filename: "b.txt", Text: "blue whales in the ocean"},
	)
	engine := NewEngine(index, nil, 5, 20, 200)

	results, err := engine.Search(context.Background(), "apples", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].DocID)

	_, err = engine.Search(context.Background(), "", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrValidation))
}

package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docqa/backend/internal/catalog"
	"github.com/docqa/backend/internal/chunker"
	"github.com/docqa/backend/internal/conversation"
	"github.com/docqa/backend/internal/ingestion"
	"github.com/docqa/backend/internal/llm"
	"github.com/docqa/backend/internal/query"
	"github.com/docqa/backend/internal/vector"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	root := t.TempDir()

	index, err := vector.NewManager(filepath.Join(root, "vector_store"), llm.NewLocalEmbedder(64))
	require.NoError(t, err)
	cat, err := catalog.Open(filepath.Join(root, "vector_store"))
	require.NoError(t, err)
	splitter, err := chunker.NewSplitter(100, 20)
	require.NoError(t, err)
	pipeline, err := ingestion.NewPipeline(ingestion.Options{
		UploadsDir:        filepath.Join(root, "uploads"),
		MaxFileSize:       1024 * 1024,
		AllowedExtensions: []string{".txt", ".md"},
	}, splitter, index, cat)
	require.NoError(t, err)
	engine := query.NewEngine(index, nil, 5, 20, 200)
	conversations, err := conversation.NewStore(filepath.Join(root, "conversations"))
	require.NoError(t, err)

	documentHandler := NewDocumentHandler(pipeline, cat, engine)
	chatHandler := NewChatHandler(engine, conversations)
	conversationHandler := NewConversationHandler(conversations)
	healthHandler := NewHealthHandler("test", cat, index, conversations)

	app := fiber.New()
	api := app.Group("/api/v1")
	api.Post("/documents", documentHandler.UploadDocument)
	api.Get("/documents", documentHandler.ListDocuments)
	api.Get("/documents/search", documentHandler.SearchDocuments)
	api.Get("/documents/:id", documentHandler.GetDocument)
	api.Delete("/documents/:id", documentHandler.DeleteDocument)
	api.Post("/chat/query", chatHandler.HandleQuery)
	api.Post("/conversations", conversationHandler.CreateConversation)
	api.Get("/conversations", conversationHandler.ListConversations)
	api.Get("/conversations/:id", conversationHandler.GetConversation)
	api.Delete("/conversations/:id", conversationHandler.DeleteConversation)
	api.Get("/conversations/:id/export", conversationHandler.ExportConversation)
	api.Get("/health", healthHandler.Health)
	return app
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded
}

func TestUploadAndListDocuments(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(uploadRequest(t, "notes.txt", "the annual report covers revenue and growth"), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	doc := body["document"].(map[string]interface{})
	assert.NotEmpty(t, doc["doc_id"])
	assert.Equal(t, "notes.txt", doc["filename"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil), -1)
	require.NoError(t, err)
	body = decodeBody(t, resp)
	assert.Equal(t, float64(1), body["total"])
}

func TestUploadRejectsBadType(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(uploadRequest(t, "binary.exe", "MZ"), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadRequiresFile(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetAndDeleteDocument(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(uploadRequest(t, "doc.txt", "some indexed content"), -1)
	require.NoError(t, err)
	docID := decodeBody(t, resp)["document"].(map[string]interface{})["doc_id"].(string)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+docID, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+docID, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+docID, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+docID, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchDocuments(t *testing.T) {
	app := newTestApp(t)

	_, err := app.Test(uploadRequest(t, "a.txt", "gardening requires patience and good soil"), -1)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/documents/search?q=gardening&k=3", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["total"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/documents/search", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/documents/search?q=x&k=bad", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatQuery(t *testing.T) {
	app := newTestApp(t)

	// Empty corpus still answers.
	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/chat/query",
		map[string]interface{}{"question": "anything?"}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body["answer"], "No documents")

	_, err = app.Test(uploadRequest(t, "facts.txt", "the warehouse is located in rotterdam"), -1)
	require.NoError(t, err)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/chat/query",
		map[string]interface{}{"question": "where is the warehouse?"}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Contains(t, body["answer"], "rotterdam")
	assert.Equal(t, true, body["context_only"])
	require.Len(t, body["sources"], 1)
}

func TestChatQueryValidation(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/chat/query",
		map[string]interface{}{"k": 5}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/chat/query",
		map[string]interface{}{"question": "q", "k": 25}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatQueryRecordsConversation(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/conversations",
		map[string]interface{}{}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	convID := decodeBody(t, resp)["id"].(string)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/chat/query",
		map[string]interface{}{"question": "what is in the docs?", "conversation_id": convID}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+convID, nil), -1)
	require.NoError(t, err)
	body := decodeBody(t, resp)
	messages := body["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "assistant", messages[1].(map[string]interface{})["role"])
	// First user message titles the conversation.
	assert.Equal(t, "what is in the docs?", body["title"])
}

func TestChatQueryUnknownConversation(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/chat/query",
		map[string]interface{}{"question": "q?", "conversation_id": "nope"}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConversationLifecycle(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/conversations",
		map[string]interface{}{"title": "planning"}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	convID := decodeBody(t, resp)["id"].(string)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, float64(1), decodeBody(t, resp)["total"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+convID+"/export?format=markdown", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# planning"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+convID+"/export?format=xml", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/conversations/"+convID, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+convID, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["index_ready"])
	assert.Equal(t, float64(0), body["document_count"])
	assert.Equal(t, float64(0), body["conversation_count"])
}

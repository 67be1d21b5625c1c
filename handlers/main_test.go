// kotatsu/handlers/main_test.go
package handlers

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"path/filepath"
	"testing"
	"time"

	"kotatsu/attachment"
	"kotatsu/database"
	"kotatsu/engine"
	"kotatsu/models"
)

// MockApplication holds dependencies for handler tests.
type MockApplication struct {
	engine          *engine.Engine
	rateLimiter     *models.RateLimiter
	logger          *slog.Logger
	fileDir         string
	modPasswordHash []byte
}

func (a *MockApplication) Engine() *engine.Engine           { return a.engine }
func (a *MockApplication) RateLimiter() *models.RateLimiter { return a.rateLimiter }
func (a *MockApplication) Logger() *slog.Logger             { return a.logger }
func (a *MockApplication) FileDir() string                  { return a.fileDir }
func (a *MockApplication) ModPasswordHash() []byte          { return a.modPasswordHash }

// setupTestApp creates a full application stack against a test database.
func setupTestApp(t *testing.T) *MockApplication {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db") +
		"?_journal_mode=WAL&_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"
	dbService, err := database.InitDB(dbPath, logger)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() { dbService.DB.Close() })

	fileDir := filepath.Join(dir, "files")
	files := attachment.NewStore(&attachment.LocalStore{BaseDir: fileDir}, nil, time.Second, logger)
	eng := engine.New(dbService, files, logger)

	err = eng.CreateBoard(&models.Board{
		Label:                "b",
		Name:                 "Testing",
		AttachmentCategories: []models.AttachmentCategory{models.CategoryImage},
	})
	if err != nil {
		t.Fatalf("Failed to create test board: %v", err)
	}

	return &MockApplication{
		engine:      eng,
		rateLimiter: models.NewRateLimiter(time.Millisecond, 1000, time.Hour, 24*time.Hour),
		logger:      logger,
		fileDir:     fileDir,
	}
}

// multipartForm builds a multipart body from string fields.
func multipartForm(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("Failed to write form field %q: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

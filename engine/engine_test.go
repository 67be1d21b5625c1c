// kotatsu/engine/engine_test.go
package engine

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"kotatsu/attachment"
	"kotatsu/database"
	"kotatsu/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEngine builds an engine against a fresh SQLite database and a
// local-only file store, both in temp dirs.
func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db") +
		"?_journal_mode=WAL&_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"
	db, err := database.InitDB(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.DB.Close() })

	fileDir := filepath.Join(dir, "files")
	files := attachment.NewStore(&attachment.LocalStore{BaseDir: fileDir}, nil, time.Second, logger)
	return New(db, files, logger), fileDir
}

func createTestBoard(t *testing.T, e *Engine, label string, threadLimit, bumpLimit int) {
	t.Helper()
	err := e.CreateBoard(&models.Board{
		Label: label,
		Name:  "Testing",
		AttachmentCategories: []models.AttachmentCategory{
			models.CategoryImage, models.CategoryVideo,
		},
		ThreadLimit: threadLimit,
		BumpLimit:   bumpLimit,
	})
	require.NoError(t, err)
}

func threadForm(board, body string) *models.ThreadForm {
	return &models.ThreadForm{BoardLabel: board, Body: body, IP: "203.0.113.1"}
}

func replyForm(board string, thread int64, body string) *models.PostForm {
	return &models.PostForm{BoardLabel: board, ThreadNumber: thread, Body: body, IP: "203.0.113.1"}
}

func pngUpload(t *testing.T, width, height int) *models.FileUpload {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return &models.FileUpload{Filename: "pic.png", ContentType: "image/png", Data: buf.Bytes()}
}

func TestPostNumbersAreSequentialPerBoard(t *testing.T) {
	e, _ := newTestEngine(t)
	createTestBoard(t, e, "b", 100, 300)
	createTestBoard(t, e, "a", 100, 300)

	ctx := context.Background()
	thread, err := e.CreateThread(ctx, threadForm("b", "first"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), thread.Number())

	for want := int64(2); want <= 4; want++ {
		post, err := e.ReplyToThread(ctx, replyForm("b", thread.Number(), "reply"))
		require.NoError(t, err)
		assert.Equal(t, want, post.PostNumber)
	}

	other, err := e.CreateThread(ctx, threadForm("a", "elsewhere"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Number(), "boards number independently")
}

func TestPostNumbersUniqueUnderConcurrency(t *testing.T) {
	e, _ := newTestEngine(t)
	createTestBoard(t, e, "b", 100, 300)

	ctx := context.Background()
	thread, err := e.CreateThread(ctx, threadForm("b", "op"))
	require.NoError(t, err)

	const workers = 4
	const perWorker = 5

	var wg sync.WaitGroup
	results := make(chan int64, workers*perWorker)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				post, err := e.ReplyToThread(ctx, replyForm("b", thread.Number(), "race"))
				assert.NoError(t, err)
				if err == nil {
					results <- post.PostNumber
				}
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for number := range results {
		assert.False(t, seen[number], "post number %d issued twice", number)
		seen[number] = true
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestRejectedSubmissionSpendsNoNumber(t *testing.T) {
	e, _ := newTestEngine(t)
	createTestBoard(t, e, "b", 100, 300)
	ctx := context.Background()

	thread, err := e.CreateThread(ctx, threadForm("b", "op"))
	require.NoError(t, err)

	// Empty submission is rejected before any write.
	_, err = e.ReplyToThread(ctx, replyForm("b", thread.Number(), ""))
	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)

	post, err := e.ReplyToThread(ctx, replyForm("b", thread.Number(), "ok"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), post.PostNumber, "rejection must not spend a number")
}

func TestSubmissionValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	createTestBoard(t, e, "b", 100, 300)
	ctx := context.Background()

	var validation *models.ValidationError

	_, err := e.CreateThread(ctx, threadForm("b", ""))
	assert.ErrorAs(t, err, &validation, "empty body and no file")

	long := make([]byte, 9000)
	for i := range long {
		long[i] = 'a'
	}
	_, err = e.CreateThread(ctx, threadForm("b", string(long)))
	assert.ErrorAs(t, err, &validation, "oversized body")

	form := threadForm("b", "hi")
	form.File = &models.FileUpload{Filename: "x.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}
	_, err = e.CreateThread(ctx, form)
	assert.ErrorAs(t, err, &validation, "category not allowed on board")

	var notFound *models.NotFoundError
	_, err = e.CreateThread(ctx, threadForm("nope", "hi"))
	assert.ErrorAs(t, err, &notFound, "unknown board")
}

func TestTripcodeAppliedToStoredPost(t *testing.T) {
	e, _ := newTestEngine(t)
	createTestBoard(t, e, "b", 100, 300)
	ctx := context.Background()

	form := threadForm("b", "hello")
	form.Name = "poster#secret"
	thread, err := e.CreateThread(ctx, form)
	require.NoError(t, err)

	assert.Equal(t, "poster", thread.Op.Name)
	require.NotEmpty(t, thread.Op.Tripcode)
	assert.Equal(t, "!", thread.Op.Tripcode[:1])

	// Same secret, same tripcode; the secret itself is never stored.
	form2 := threadForm("b", "again")
	form2.Name = "other#secret"
	thread2, err := e.CreateThread(ctx, form2)
	require.NoError(t, err)
	assert.Equal(t, thread.Op.Tripcode, thread2.Op.Tripcode)

	stored, err := e.GetPost("b", thread.Number())
	require.NoError(t, err)
	assert.NotContains(t, stored.Name, "secret")
	assert.Equal(t, thread.Op.Tripcode, stored.Tripcode)
}

func TestAttachmentBoundToPost(t *testing.T) {
	e, fileDir := newTestEngine(t)
	createTestBoard(t, e, "b", 100, 300)
	ctx := context.Background()

	form := threadForm("b", "")
	form.File = pngUpload(t, 600, 400)
	thread, err := e.CreateThread(ctx, form)
	require.NoError(t, err)

	att := thread.Op.Attachment
	require.NotNil(t, att)
	assert.Equal(t, models.CategoryImage, att.Category)
	assert.Equal(t, "pic.png", att.OriginalFilename)
	assert.NotEqual(t, "pic.png", att.Filename, "storage name is system generated")
	assert.Equal(t, 600, att.Metadata.Width)
	assert.Equal(t, 400, att.Metadata.Height)
	assert.Equal(t, 250, att.Metadata.ThumbWidth)
	assert.Equal(t, 167, att.Metadata.ThumbHeight)
	assert.NotEmpty(t, att.Metadata.Checksum)

	_, err = os.Stat(filepath.Join(fileDir, att.Folder, att.Filename))
	assert.NoError(t, err, "primary file on disk")
	_, err = os.Stat(filepath.Join(fileDir, att.Folder, "thumbs", att.ThumbnailFilename))
	assert.NoError(t, err, "thumbnail on disk")

	stored, err := e.GetPost("b", thread.Number())
	require.NoError(t, err)
	require.NotNil(t, stored.Attachment)
	assert.Equal(t, att.Filename, stored.Attachment.Filename)
}

func TestUnsupportedImageRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	createTestBoard(t, e, "b", 100, 300)

	form := threadForm("b", "")
	form.File = &models.FileUpload{Filename: "x.png", ContentType: "image/png", Data: []byte("not a png")}
	_, err := e.CreateThread(context.Background(), form)

	var unsupported *models.UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
}

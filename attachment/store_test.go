// kotatsu/attachment/store_test.go
package attachment

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kotatsu/models"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	dir := t.TempDir()
	return NewStore(&LocalStore{BaseDir: dir}, nil, time.Second, logger), dir
}

func pngUpload(t *testing.T, width, height int) *models.FileUpload {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return &models.FileUpload{Filename: "source.png", ContentType: "image/png", Data: buf.Bytes()}
}

func TestDetectCategory(t *testing.T) {
	testCases := []struct {
		contentType string
		expected    models.AttachmentCategory
	}{
		{"image/png", models.CategoryImage},
		{"image/webp", models.CategoryImage},
		{"video/webm", models.CategoryVideo},
		{"audio/ogg", models.CategoryAudio},
		{"application/pdf", models.CategoryDocument},
		{"text/plain", models.CategoryDocument},
	}
	for _, tc := range testCases {
		if got := DetectCategory(tc.contentType); got != tc.expected {
			t.Errorf("DetectCategory(%q) = %q, want %q", tc.contentType, got, tc.expected)
		}
	}
}

func TestThumbnailSize(t *testing.T) {
	testCases := []struct {
		name           string
		width, height  int
		wantW, wantH   int
	}{
		{"Fits Already", 200, 100, 200, 100},
		{"Exact Bound", 250, 250, 250, 250},
		{"Wide", 600, 400, 250, 167},
		{"Tall", 400, 600, 167, 250},
		{"Square", 1000, 1000, 250, 250},
		{"Extreme Ratio Rounds Up", 5000, 10, 250, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, h := thumbnailSize(tc.width, tc.height)
			if w != tc.wantW || h != tc.wantH {
				t.Errorf("thumbnailSize(%d, %d) = (%d, %d), want (%d, %d)",
					tc.width, tc.height, w, h, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestThumbnailExtension(t *testing.T) {
	testCases := []struct {
		source   string
		expected string
	}{
		{".jpg", ".jpg"},
		{".JPEG", ".jpg"},
		{".png", ".png"},
		{".gif", ".png"},
		{".webp", ".png"},
		{".webm", ".png"},
	}
	for _, tc := range testCases {
		if got := thumbnailExtension(tc.source); got != tc.expected {
			t.Errorf("thumbnailExtension(%q) = %q, want %q", tc.source, got, tc.expected)
		}
	}
}

func TestSaveImage(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	att, err := store.Save(ctx, "b", models.CategoryImage, pngUpload(t, 600, 400))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if att.OriginalFilename != "source.png" {
		t.Errorf("Expected original filename to be kept, got %q", att.OriginalFilename)
	}
	if att.Filename == "source.png" || filepath.Ext(att.Filename) != ".png" {
		t.Errorf("Expected generated .png storage name, got %q", att.Filename)
	}
	if att.Metadata.Width != 600 || att.Metadata.Height != 400 {
		t.Errorf("Expected 600x400 source dims, got %dx%d", att.Metadata.Width, att.Metadata.Height)
	}
	if att.Metadata.ThumbWidth != 250 || att.Metadata.ThumbHeight != 167 {
		t.Errorf("Expected 250x167 thumbnail dims, got %dx%d", att.Metadata.ThumbWidth, att.Metadata.ThumbHeight)
	}
	if att.Metadata.Checksum == "" {
		t.Error("Expected a checksum")
	}

	if _, err := os.Stat(filepath.Join(dir, "b", att.Filename)); err != nil {
		t.Errorf("Primary file missing: %v", err)
	}
	thumbPath := filepath.Join(dir, "b", "thumbs", att.ThumbnailFilename)
	f, err := os.Open(thumbPath)
	if err != nil {
		t.Fatalf("Thumbnail missing: %v", err)
	}
	defer f.Close()
	thumb, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Thumbnail is not a decodable png: %v", err)
	}
	if thumb.Bounds().Dx() != 250 || thumb.Bounds().Dy() != 167 {
		t.Errorf("Thumbnail is %dx%d on disk, want 250x167", thumb.Bounds().Dx(), thumb.Bounds().Dy())
	}
}

func TestSaveVideoUsesPlaceholderThumbnail(t *testing.T) {
	store, dir := newTestStore(t)

	upload := &models.FileUpload{
		Filename:    "clip.webm",
		ContentType: "video/webm",
		Data:        []byte("\x1a\x45\xdf\xa3 not really a video"),
	}
	att, err := store.Save(context.Background(), "b", models.CategoryVideo, upload)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if att.ThumbnailFilename == "" {
		t.Fatal("Expected a thumbnail for video uploads")
	}
	if filepath.Ext(att.ThumbnailFilename) != ".png" {
		t.Errorf("Expected .png thumbnail for video, got %q", att.ThumbnailFilename)
	}
	if att.Metadata.Width != 0 || att.Metadata.Height != 0 {
		t.Errorf("Video source dims should stay unset, got %dx%d", att.Metadata.Width, att.Metadata.Height)
	}
	if att.Metadata.ThumbWidth == 0 || att.Metadata.ThumbHeight == 0 {
		t.Error("Expected placeholder thumbnail dims to be recorded")
	}
	if _, err := os.Stat(filepath.Join(dir, "b", "thumbs", att.ThumbnailFilename)); err != nil {
		t.Errorf("Placeholder thumbnail missing: %v", err)
	}
}

func TestSaveRejectsUndecodableImage(t *testing.T) {
	store, _ := newTestStore(t)

	upload := &models.FileUpload{Filename: "x.png", ContentType: "image/png", Data: []byte("garbage")}
	_, err := store.Save(context.Background(), "b", models.CategoryImage, upload)

	var unsupported *models.UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Expected UnsupportedFormatError, got %v", err)
	}
}

func TestSaveDocumentSkipsThumbnail(t *testing.T) {
	store, dir := newTestStore(t)

	upload := &models.FileUpload{Filename: "doc.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
	att, err := store.Save(context.Background(), "b", models.CategoryDocument, upload)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if att.ThumbnailFilename != "" {
		t.Errorf("Documents must not get thumbnails, got %q", att.ThumbnailFilename)
	}
	if _, err := os.Stat(filepath.Join(dir, "b", att.Filename)); err != nil {
		t.Errorf("Primary file missing: %v", err)
	}
}

func TestDeleteRemovesAllPieces(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	att, err := store.Save(ctx, "b", models.CategoryImage, pngUpload(t, 64, 64))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Delete(ctx, att); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "b", att.Filename)); !os.IsNotExist(err) {
		t.Error("Primary file still present after delete")
	}
	if _, err := os.Stat(filepath.Join(dir, "b", "thumbs", att.ThumbnailFilename)); !os.IsNotExist(err) {
		t.Error("Thumbnail still present after delete")
	}

	// Deleting again is a no-op, not an error.
	if err := store.Delete(ctx, att); err != nil {
		t.Errorf("Second delete should be silent, got %v", err)
	}
}

// fakeRemote is a FileStore test double with scriptable failures.
type fakeRemote struct {
	saved      map[string]bool
	failSave   bool
	failDelete bool
}

func (f *fakeRemote) Save(_ context.Context, folder, filename string, _ []byte, _ string) (string, error) {
	if f.failSave {
		return "", errors.New("upload refused")
	}
	if f.saved == nil {
		f.saved = make(map[string]bool)
	}
	key := folder + "/" + filename
	f.saved[key] = true
	return "https://cdn.example/" + key, nil
}

func (f *fakeRemote) Delete(_ context.Context, folder, filename string) error {
	if f.failDelete {
		return errors.New("delete refused")
	}
	delete(f.saved, folder+"/"+filename)
	return nil
}

func TestSaveMirrorsToRemote(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	remote := &fakeRemote{}
	store := NewStore(&LocalStore{BaseDir: t.TempDir()}, remote, time.Second, logger)

	att, err := store.Save(context.Background(), "b", models.CategoryImage, pngUpload(t, 64, 64))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if att.RemoteURL == "" || att.RemoteThumbnailURL == "" {
		t.Errorf("Expected remote URLs to be recorded, got %q / %q", att.RemoteURL, att.RemoteThumbnailURL)
	}
	if len(remote.saved) != 2 {
		t.Errorf("Expected file and thumbnail mirrored, got %d objects", len(remote.saved))
	}
}

func TestSaveRemoteFailureCleansUpLocalFiles(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	dir := t.TempDir()
	store := NewStore(&LocalStore{BaseDir: dir}, &fakeRemote{failSave: true}, time.Second, logger)

	_, err := store.Save(context.Background(), "b", models.CategoryImage, pngUpload(t, 64, 64))
	var remoteErr *models.RemoteStorageError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteStorageError, got %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "b"))
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				t.Errorf("Local file %q left behind after remote failure", entry.Name())
			}
		}
	}
}

func TestDeleteReportsEveryFailedPiece(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	remote := &fakeRemote{}
	store := NewStore(&LocalStore{BaseDir: t.TempDir()}, remote, time.Second, logger)

	att, err := store.Save(context.Background(), "b", models.CategoryImage, pngUpload(t, 64, 64))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	remote.failDelete = true
	err = store.Delete(context.Background(), att)
	if err == nil {
		t.Fatal("Expected delete failures to be reported")
	}
	// Both the file and the thumbnail failures must be visible, not just the first.
	var remoteErr *models.RemoteStorageError
	if !errors.As(err, &remoteErr) {
		t.Errorf("Expected RemoteStorageError in the report, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "delete file "+att.Filename) ||
		!strings.Contains(msg, "delete thumbnail "+att.ThumbnailFilename) {
		t.Errorf("Report %q should name both the file and the thumbnail", msg)
	}
}

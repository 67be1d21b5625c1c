// kotatsu/attachment/store.go
package attachment

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	_ "image/gif" // register decoders for thumbnail derivation
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"kotatsu/config"
	"kotatsu/models"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

// Store persists uploaded files and their derived thumbnails. The primary
// copy always lands on the local filesystem; when a remote FileStore is
// configured the pieces are mirrored there and the shareable URLs recorded.
type Store struct {
	local         *LocalStore
	remote        FileStore
	remoteTimeout time.Duration
	logger        *slog.Logger
}

func NewStore(local *LocalStore, remote FileStore, remoteTimeout time.Duration, logger *slog.Logger) *Store {
	return &Store{
		local:         local,
		remote:        remote,
		remoteTimeout: remoteTimeout,
		logger:        logger,
	}
}

// BaseDir exposes the local root for static file serving.
func (st *Store) BaseDir() string {
	return st.local.BaseDir
}

// Save writes the upload (and, for image/video categories, a thumbnail) to
// storage and returns the attachment record with its metadata derived. The
// caller persists the record; if that fails it must call Delete so no files
// outlive their row.
func (st *Store) Save(ctx context.Context, folder string, category models.AttachmentCategory, upload *models.FileUpload) (*models.Attachment, error) {
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	filename := uuid.New().String() + ext
	sum := sha256.Sum256(upload.Data)

	att := &models.Attachment{
		ID:               uuid.New().String(),
		Category:         category,
		Folder:           folder,
		Filename:         filename,
		OriginalFilename: filepath.Base(upload.Filename),
		Metadata: models.AttachmentMetadata{
			Checksum: hex.EncodeToString(sum[:]),
		},
	}

	var thumbData []byte
	var thumbContentType string
	if category.HasThumbnail() {
		frame, err := st.sourceFrame(category, upload)
		if err != nil {
			return nil, err
		}
		if category == models.CategoryImage {
			att.Metadata.Width = frame.Bounds().Dx()
			att.Metadata.Height = frame.Bounds().Dy()
		}

		thumbWidth, thumbHeight := thumbnailSize(frame.Bounds().Dx(), frame.Bounds().Dy())
		att.Metadata.ThumbWidth = thumbWidth
		att.Metadata.ThumbHeight = thumbHeight

		thumbExt := thumbnailExtension(ext)
		att.ThumbnailFilename = strings.TrimSuffix(filename, ext) + thumbExt

		resized := imaging.Resize(frame, thumbWidth, thumbHeight, imaging.Lanczos)
		var buf bytes.Buffer
		if thumbExt == ".jpg" {
			err = imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(85))
			thumbContentType = "image/jpeg"
		} else {
			err = imaging.Encode(&buf, resized, imaging.PNG)
			thumbContentType = "image/png"
		}
		if err != nil {
			return nil, &models.StorageError{Op: "encode thumbnail", Err: err}
		}
		thumbData = buf.Bytes()
	}

	// Local write comes first; the database row is only inserted once the
	// files are durable.
	if _, err := st.local.Save(ctx, folder, filename, upload.Data, upload.ContentType); err != nil {
		return nil, &models.StorageError{Op: "write " + filename, Err: err}
	}
	if thumbData != nil {
		if _, err := st.local.Save(ctx, att.ThumbnailFolder(), att.ThumbnailFilename, thumbData, thumbContentType); err != nil {
			st.removeLocal(ctx, att)
			return nil, &models.StorageError{Op: "write thumbnail " + att.ThumbnailFilename, Err: err}
		}
	}

	if st.remote != nil {
		rctx, cancel := context.WithTimeout(ctx, st.remoteTimeout)
		defer cancel()

		url, err := st.remote.Save(rctx, folder, filename, upload.Data, upload.ContentType)
		if err != nil {
			st.removeLocal(ctx, att)
			return nil, &models.RemoteStorageError{Op: "upload " + filename, Err: err}
		}
		att.RemoteURL = url

		if thumbData != nil {
			thumbURL, err := st.remote.Save(rctx, att.ThumbnailFolder(), att.ThumbnailFilename, thumbData, thumbContentType)
			if err != nil {
				st.removeLocal(ctx, att)
				if derr := st.remote.Delete(rctx, folder, filename); derr != nil {
					st.logger.Warn("Failed to remove remote file after thumbnail upload failure", "filename", filename, "error", derr)
				}
				return nil, &models.RemoteStorageError{Op: "upload thumbnail " + att.ThumbnailFilename, Err: err}
			}
			att.RemoteThumbnailURL = thumbURL
		}
	}

	return att, nil
}

// Delete removes both the primary file and the thumbnail, locally and
// remotely. Every piece that fails to delete is reported; nothing fails
// silently.
func (st *Store) Delete(ctx context.Context, att *models.Attachment) error {
	var errs []error

	if err := st.local.Delete(ctx, att.Folder, att.Filename); err != nil {
		errs = append(errs, &models.StorageError{Op: "delete file " + att.Filename, Err: err})
	}
	if att.ThumbnailFilename != "" {
		if err := st.local.Delete(ctx, att.ThumbnailFolder(), att.ThumbnailFilename); err != nil {
			errs = append(errs, &models.StorageError{Op: "delete thumbnail " + att.ThumbnailFilename, Err: err})
		}
	}

	if st.remote != nil {
		rctx, cancel := context.WithTimeout(ctx, st.remoteTimeout)
		defer cancel()

		if att.RemoteURL != "" {
			if err := st.remote.Delete(rctx, att.Folder, att.Filename); err != nil {
				errs = append(errs, &models.RemoteStorageError{Op: "delete file " + att.Filename, Err: err})
			}
		}
		if att.RemoteThumbnailURL != "" {
			if err := st.remote.Delete(rctx, att.ThumbnailFolder(), att.ThumbnailFilename); err != nil {
				errs = append(errs, &models.RemoteStorageError{Op: "delete thumbnail " + att.ThumbnailFilename, Err: err})
			}
		}
	}

	return errors.Join(errs...)
}

// sourceFrame produces the raster frame a thumbnail is derived from. Images
// are decoded with orientation correction; video containers have no decoder
// here, so they get the bundled placeholder frame.
func (st *Store) sourceFrame(category models.AttachmentCategory, upload *models.FileUpload) (image.Image, error) {
	if category == models.CategoryVideo {
		frame, err := placeholderFrame()
		if err != nil {
			return nil, &models.StorageError{Op: "decode placeholder frame", Err: err}
		}
		return frame, nil
	}

	frame, err := imaging.Decode(bytes.NewReader(upload.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &models.UnsupportedFormatError{ContentType: upload.ContentType}
	}
	return frame, nil
}

// removeLocal is best-effort cleanup of partially written local files.
func (st *Store) removeLocal(ctx context.Context, att *models.Attachment) {
	if err := st.local.Delete(ctx, att.Folder, att.Filename); err != nil {
		st.logger.Warn("Failed to remove local file during cleanup", "filename", att.Filename, "error", err)
	}
	if att.ThumbnailFilename != "" {
		if err := st.local.Delete(ctx, att.ThumbnailFolder(), att.ThumbnailFilename); err != nil {
			st.logger.Warn("Failed to remove local thumbnail during cleanup", "filename", att.ThumbnailFilename, "error", err)
		}
	}
}

// thumbnailSize scales (width, height) to fit the thumbnail bounds while
// preserving aspect ratio. Ceiling rounding keeps the thumbnail from
// clipping below the true scaled size. Sources already inside the bounds
// keep their dimensions.
func thumbnailSize(width, height int) (int, int) {
	if width <= config.ThumbnailMaxWidth && height <= config.ThumbnailMaxHeight {
		return width, height
	}
	factor := math.Min(
		float64(config.ThumbnailMaxWidth)/float64(width),
		float64(config.ThumbnailMaxHeight)/float64(height),
	)
	return int(math.Ceil(float64(width) * factor)), int(math.Ceil(float64(height) * factor))
}

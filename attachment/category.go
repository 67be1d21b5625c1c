// kotatsu/attachment/category.go
package attachment

import (
	"strings"

	"kotatsu/models"
)

// DetectCategory classifies an upload by its sniffed content type.
func DetectCategory(contentType string) models.AttachmentCategory {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.CategoryImage
	case strings.HasPrefix(contentType, "video/"):
		return models.CategoryVideo
	case strings.HasPrefix(contentType, "audio/"):
		return models.CategoryAudio
	default:
		return models.CategoryDocument
	}
}

// thumbnailExtension picks the extension for a thumbnail derived from a file
// with the given source extension. Animated formats get a static raster
// frame, so their thumbnails use the default extension instead of their own.
func thumbnailExtension(sourceExt string) string {
	switch strings.ToLower(sourceExt) {
	case ".jpg", ".jpeg":
		return ".jpg"
	case ".png":
		return ".png"
	default:
		// gif, webp and everything else become a static png frame
		return ".png"
	}
}

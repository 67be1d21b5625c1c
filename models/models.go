// kotatsu/models/models.go
package models

import (
	"database/sql"
	"strings"
	"time"
)

// --- Core Data Models ---

// AttachmentCategory groups uploaded files by the kind of media they carry.
// The category decides whether a thumbnail is derived at save time.
type AttachmentCategory string

const (
	CategoryImage    AttachmentCategory = "IMAGE"
	CategoryVideo    AttachmentCategory = "VIDEO"
	CategoryAudio    AttachmentCategory = "AUDIO"
	CategoryDocument AttachmentCategory = "DOCUMENT"
	CategoryEmbed    AttachmentCategory = "EMBED"
)

// HasThumbnail reports whether attachments of this category get a thumbnail.
func (c AttachmentCategory) HasThumbnail() bool {
	return c == CategoryImage || c == CategoryVideo
}

// ParseCategories decodes the comma-separated form categories are stored in.
func ParseCategories(s string) []AttachmentCategory {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	categories := make([]AttachmentCategory, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			categories = append(categories, AttachmentCategory(p))
		}
	}
	return categories
}

// JoinCategories is the inverse of ParseCategories.
func JoinCategories(categories []AttachmentCategory) string {
	parts := make([]string, len(categories))
	for i, c := range categories {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

type Board struct {
	Label                string // unique, immutable slug
	Name                 string
	AttachmentCategories []AttachmentCategory
	ThreadLimit          int
	BumpLimit            int
	PostCounter          int64
	NSFW                 bool
	CreatedAt            time.Time
}

// AllowsCategory reports whether the board accepts attachments of the category.
func (b *Board) AllowsCategory(c AttachmentCategory) bool {
	for _, allowed := range b.AttachmentCategories {
		if allowed == c {
			return true
		}
	}
	return false
}

type Thread struct {
	ID         int64
	BoardLabel string
	Subject    string
	Locked     bool
	Stickied   bool
	CreatedAt  time.Time
	LastBumpAt time.Time
	Posts      []Post
	Op         Post
}

// Number returns the post number of the thread's original post, which is how
// threads are addressed externally.
func (t *Thread) Number() int64 {
	return t.Op.PostNumber
}

type Post struct {
	ID         int64
	ThreadID   int64
	BoardLabel string
	PostNumber int64 // per-board, assigned once at save time
	Name       string
	Tripcode   string
	Body       string
	IP         string // never exposed to unauthorized viewers
	CreatedAt  time.Time
	IsOp       bool
	Attachment *Attachment
}

type Attachment struct {
	ID                string // uuid
	PostID            int64
	Category          AttachmentCategory
	Folder            string
	Filename          string // system-generated storage key
	OriginalFilename  string // display metadata only
	ThumbnailFilename string
	RemoteURL         string
	RemoteThumbnailURL string
	Metadata          AttachmentMetadata
}

// ThumbnailFolder is the sibling sub-folder thumbnails live in.
func (a *Attachment) ThumbnailFolder() string {
	if a.ThumbnailFilename == "" {
		return ""
	}
	return a.Folder + "/thumbs"
}

// AttachmentMetadata is derived once at save time and never recomputed.
type AttachmentMetadata struct {
	Width       int
	Height      int
	ThumbWidth  int
	ThumbHeight int
	// Duration in seconds for timed media. Zero when the container does not
	// expose it without a codec.
	Duration int
	Checksum string
}

// --- Moderation Models ---

type BanStatus string

const (
	BanStatusWarning  BanStatus = "WARNING"
	BanStatusActive   BanStatus = "ACTIVE"
	BanStatusExpired  BanStatus = "EXPIRED"
	BanStatusUnbanned BanStatus = "UNBANNED"
)

type Ban struct {
	ID               int64
	IP               string
	Reason           string
	Status           BanStatus
	ValidFrom        time.Time
	ValidTo          sql.NullTime // null means indefinite for ACTIVE bans
	IssuedBy         string
	ResolvedBy       string
	ResolutionReason string
}

// --- Submission Forms ---

// FileUpload carries an uploaded file as resolved by the caller.
type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PostForm is a reply submission. The IP is resolved by the caller and passed
// in, never inferred by the engine.
type PostForm struct {
	BoardLabel   string
	ThreadNumber int64
	Name         string
	Body         string
	IP           string
	File         *FileUpload
}

// ThreadForm is a new-thread submission.
type ThreadForm struct {
	BoardLabel string
	Subject    string
	Name       string
	Body       string
	IP         string
	File       *FileUpload
}

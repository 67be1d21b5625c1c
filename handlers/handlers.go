// kotatsu/handlers/handlers.go

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"kotatsu/engine"
	"kotatsu/models"
)

// App is an interface that defines the dependencies our handlers need.
type App interface {
	Engine() *engine.Engine
	RateLimiter() *models.RateLimiter
	Logger() *slog.Logger
	FileDir() string
	ModPasswordHash() []byte
}

// respondJSON sends a JSON response with a given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}, app App) {
	response, err := json.Marshal(payload)
	if err != nil {
		app.Logger().Error("Failed to marshal JSON payload", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		if _, werr := w.Write([]byte(`{"error":"Failed to marshal JSON response"}`)); werr != nil {
			app.Logger().Error("Failed to write internal server error response", "error", werr)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		app.Logger().Error("Failed to write JSON response", "error", err)
	}
}

// respondError maps engine errors onto HTTP statuses. Unknown errors are
// logged and reported as a generic 500 so internals never leak.
func respondError(w http.ResponseWriter, app App, err error) {
	var (
		validation  *models.ValidationError
		banned      *models.BannedError
		notFound    *models.NotFoundError
		conflict    *models.ConflictError
		unsupported *models.UnsupportedFormatError
	)
	switch {
	case errors.As(err, &validation):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Reason}, app)
	case errors.As(err, &banned):
		payload := map[string]string{"error": err.Error()}
		if banned.Until != nil {
			payload["banned_until"] = banned.Until.Format(time.RFC3339)
		}
		respondJSON(w, http.StatusForbidden, payload, app)
	case errors.As(err, &notFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()}, app)
	case errors.As(err, &conflict):
		respondJSON(w, http.StatusConflict, map[string]string{"error": conflict.Reason}, app)
	case errors.As(err, &unsupported):
		respondJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": err.Error()}, app)
	default:
		app.Logger().Error("Request failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"}, app)
	}
}

// MakeHandler adapts a handler function taking the App interface to http.HandlerFunc.
func MakeHandler(app App, fn func(http.ResponseWriter, *http.Request, App)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, app)
	}
}

// --- JSON views ---
//
// Views are what the API exposes. Poster IPs never appear in them.

type attachmentView struct {
	Category         string `json:"category"`
	OriginalFilename string `json:"original_filename"`
	URL              string `json:"url"`
	ThumbnailURL     string `json:"thumbnail_url,omitempty"`
	Width            int    `json:"width,omitempty"`
	Height           int    `json:"height,omitempty"`
	ThumbWidth       int    `json:"thumb_width,omitempty"`
	ThumbHeight      int    `json:"thumb_height,omitempty"`
}

type postView struct {
	Number     int64           `json:"number"`
	Name       string          `json:"name"`
	Tripcode   string          `json:"tripcode,omitempty"`
	Body       string          `json:"body"`
	CreatedAt  time.Time       `json:"created_at"`
	Op         bool            `json:"op"`
	Attachment *attachmentView `json:"attachment,omitempty"`
}

type threadView struct {
	Number     int64      `json:"number"`
	Subject    string     `json:"subject,omitempty"`
	Locked     bool       `json:"locked"`
	Stickied   bool       `json:"stickied"`
	CreatedAt  time.Time  `json:"created_at"`
	LastBumpAt time.Time  `json:"last_bump_at"`
	Op         postView   `json:"op"`
	Posts      []postView `json:"posts,omitempty"`
}

func viewAttachment(a *models.Attachment) *attachmentView {
	if a == nil {
		return nil
	}
	v := &attachmentView{
		Category:         string(a.Category),
		OriginalFilename: a.OriginalFilename,
		URL:              "/files/" + a.Folder + "/" + a.Filename,
		Width:            a.Metadata.Width,
		Height:           a.Metadata.Height,
		ThumbWidth:       a.Metadata.ThumbWidth,
		ThumbHeight:      a.Metadata.ThumbHeight,
	}
	if a.RemoteURL != "" {
		v.URL = a.RemoteURL
	}
	if a.ThumbnailFilename != "" {
		v.ThumbnailURL = "/files/" + a.ThumbnailFolder() + "/" + a.ThumbnailFilename
		if a.RemoteThumbnailURL != "" {
			v.ThumbnailURL = a.RemoteThumbnailURL
		}
	}
	return v
}

func viewPost(p *models.Post) postView {
	return postView{
		Number:     p.PostNumber,
		Name:       p.Name,
		Tripcode:   p.Tripcode,
		Body:       p.Body,
		CreatedAt:  p.CreatedAt,
		Op:         p.IsOp,
		Attachment: viewAttachment(p.Attachment),
	}
}

func viewThread(t *models.Thread) threadView {
	v := threadView{
		Number:     t.Number(),
		Subject:    t.Subject,
		Locked:     t.Locked,
		Stickied:   t.Stickied,
		CreatedAt:  t.CreatedAt,
		LastBumpAt: t.LastBumpAt,
		Op:         viewPost(&t.Op),
	}
	for i := range t.Posts {
		v.Posts = append(v.Posts, viewPost(&t.Posts[i]))
	}
	return v
}

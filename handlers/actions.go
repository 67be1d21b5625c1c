// kotatsu/handlers/actions.go

package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"kotatsu/config"
	"kotatsu/models"
	"kotatsu/utils"

	"github.com/go-chi/chi/v5"
)

// HandlePost accepts a multipart submission and creates either a new thread
// or a reply, depending on whether the "thread" field names an existing
// thread number.
func HandlePost(w http.ResponseWriter, r *http.Request, app App) {
	// Leave headroom for the text fields on top of the file cap.
	if err := r.ParseMultipartForm(config.MaxFileSize + 1024*1024); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed multipart form"}, app)
		return
	}

	file, err := readUpload(r)
	if err != nil {
		respondError(w, app, err)
		return
	}

	ip := utils.ClientIP(r)
	boardLabel := r.FormValue("board")
	threadField := r.FormValue("thread")

	if threadField == "" {
		form := &models.ThreadForm{
			BoardLabel: boardLabel,
			Subject:    r.FormValue("subject"),
			Name:       r.FormValue("name"),
			Body:       r.FormValue("body"),
			IP:         ip,
			File:       file,
		}
		thread, err := app.Engine().CreateThread(r.Context(), form)
		if err != nil {
			respondError(w, app, err)
			return
		}
		respondJSON(w, http.StatusCreated, viewThread(thread), app)
		return
	}

	threadNumber, err := strconv.ParseInt(threadField, 10, 64)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid thread number"}, app)
		return
	}
	form := &models.PostForm{
		BoardLabel:   boardLabel,
		ThreadNumber: threadNumber,
		Name:         r.FormValue("name"),
		Body:         r.FormValue("body"),
		IP:           ip,
		File:         file,
	}
	post, err := app.Engine().ReplyToThread(r.Context(), form)
	if err != nil {
		respondError(w, app, err)
		return
	}
	respondJSON(w, http.StatusCreated, viewPost(post), app)
}

// readUpload extracts the optional "file" part of a multipart submission.
// Returns (nil, nil) when no file was sent.
func readUpload(r *http.Request) (*models.FileUpload, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, models.Validationf("invalid file upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, config.MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > config.MaxFileSize {
		return nil, models.Validationf("file exceeds %d bytes", config.MaxFileSize)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &models.FileUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

// HandleBoard returns board configuration.
func HandleBoard(w http.ResponseWriter, r *http.Request, app App) {
	board, err := app.Engine().Board(chi.URLParam(r, "board"))
	if err != nil {
		respondError(w, app, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"label":        board.Label,
		"name":         board.Name,
		"categories":   board.AttachmentCategories,
		"thread_limit": board.ThreadLimit,
		"bump_limit":   board.BumpLimit,
		"nsfw":         board.NSFW,
	}, app)
}

// HandleThreadList returns a board's threads, stickied first, then by bump
// recency.
func HandleThreadList(w http.ResponseWriter, r *http.Request, app App) {
	threads, err := app.Engine().Threads(chi.URLParam(r, "board"))
	if err != nil {
		respondError(w, app, err)
		return
	}
	views := make([]threadView, 0, len(threads))
	for i := range threads {
		views = append(views, viewThread(&threads[i]))
	}
	respondJSON(w, http.StatusOK, views, app)
}

// HandleThread returns a full thread with its posts in creation order.
func HandleThread(w http.ResponseWriter, r *http.Request, app App) {
	number, err := parseNumber(r)
	if err != nil {
		respondError(w, app, err)
		return
	}
	thread, err := app.Engine().Thread(chi.URLParam(r, "board"), number)
	if err != nil {
		respondError(w, app, err)
		return
	}
	respondJSON(w, http.StatusOK, viewThread(thread), app)
}

// HandlePostPreview returns a single post by board and number.
func HandlePostPreview(w http.ResponseWriter, r *http.Request, app App) {
	number, err := parseNumber(r)
	if err != nil {
		respondError(w, app, err)
		return
	}
	post, err := app.Engine().GetPost(chi.URLParam(r, "board"), number)
	if err != nil {
		respondError(w, app, err)
		return
	}
	respondJSON(w, http.StatusOK, viewPost(post), app)
}

func parseNumber(r *http.Request) (int64, error) {
	number, err := strconv.ParseInt(chi.URLParam(r, "number"), 10, 64)
	if err != nil {
		return 0, models.Validationf("invalid post number")
	}
	return number, nil
}

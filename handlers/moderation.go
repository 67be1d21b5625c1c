// kotatsu/handlers/moderation.go

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"kotatsu/models"
	"kotatsu/utils"
)

// HandleCreateBoard registers a new board from form values. Limits fall back
// to defaults when unset.
func HandleCreateBoard(w http.ResponseWriter, r *http.Request, app App) {
	threadLimit, _ := strconv.Atoi(r.FormValue("thread_limit"))
	bumpLimit, _ := strconv.Atoi(r.FormValue("bump_limit"))

	board := &models.Board{
		Label:                r.FormValue("label"),
		Name:                 r.FormValue("name"),
		AttachmentCategories: models.ParseCategories(r.FormValue("categories")),
		ThreadLimit:          threadLimit,
		BumpLimit:            bumpLimit,
		NSFW:                 r.FormValue("nsfw") == "true",
	}
	if err := app.Engine().CreateBoard(board); err != nil {
		respondError(w, app, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"label": board.Label}, app)
}

// HandleModDelete removes a post by board and number. Deleting an original
// post takes its whole thread down.
func HandleModDelete(w http.ResponseWriter, r *http.Request, app App) {
	number, err := strconv.ParseInt(r.FormValue("number"), 10, 64)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid post number"}, app)
		return
	}
	if err := app.Engine().DeletePost(r.Context(), r.FormValue("board"), number); err != nil {
		respondError(w, app, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"}, app)
}

// HandleToggleLock flips a thread's locked flag.
func HandleToggleLock(w http.ResponseWriter, r *http.Request, app App) {
	number, err := strconv.ParseInt(r.FormValue("number"), 10, 64)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid thread number"}, app)
		return
	}
	locked, err := app.Engine().ToggleLock(r.FormValue("board"), number)
	if err != nil {
		respondError(w, app, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"locked": locked}, app)
}

// HandleToggleSticky flips a thread's stickied flag.
func HandleToggleSticky(w http.ResponseWriter, r *http.Request, app App) {
	number, err := strconv.ParseInt(r.FormValue("number"), 10, 64)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid thread number"}, app)
		return
	}
	stickied, err := app.Engine().ToggleSticky(r.FormValue("board"), number)
	if err != nil {
		respondError(w, app, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"stickied": stickied}, app)
}

// HandleBan issues an ACTIVE ban against an IP. An empty duration means the
// ban is indefinite.
func HandleBan(w http.ResponseWriter, r *http.Request, app App) {
	var until *time.Time
	if d := r.FormValue("duration"); d != "" {
		duration, err := time.ParseDuration(d)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ban duration"}, app)
			return
		}
		t := utils.GetSQLTime().Add(duration)
		until = &t
	}

	ban, err := app.Engine().Ban(r.FormValue("ip"), r.FormValue("reason"), r.FormValue("issued_by"), until)
	if err != nil {
		respondError(w, app, err)
		return
	}
	respondJSON(w, http.StatusCreated, viewBan(ban), app)
}

// HandleWarn records a warning against an IP without blocking it.
func HandleWarn(w http.ResponseWriter, r *http.Request, app App) {
	ban, err := app.Engine().Warn(r.FormValue("ip"), r.FormValue("reason"), r.FormValue("issued_by"))
	if err != nil {
		respondError(w, app, err)
		return
	}
	respondJSON(w, http.StatusCreated, viewBan(ban), app)
}

// HandleRemoveBan lifts an ACTIVE ban.
func HandleRemoveBan(w http.ResponseWriter, r *http.Request, app App) {
	id, err := strconv.ParseInt(r.FormValue("id"), 10, 64)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ban id"}, app)
		return
	}
	if err := app.Engine().Unban(id, r.FormValue("resolved_by"), r.FormValue("reason")); err != nil {
		respondError(w, app, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "unbanned"}, app)
}

// HandleBanList returns every moderation record, most recent first.
func HandleBanList(w http.ResponseWriter, r *http.Request, app App) {
	bans, err := app.Engine().Bans()
	if err != nil {
		respondError(w, app, err)
		return
	}
	views := make([]map[string]interface{}, 0, len(bans))
	for i := range bans {
		views = append(views, viewBan(&bans[i]))
	}
	respondJSON(w, http.StatusOK, views, app)
}

// viewBan is the moderation view of a ban record. It is only reachable
// behind the moderation gate, so the IP is included.
func viewBan(b *models.Ban) map[string]interface{} {
	v := map[string]interface{}{
		"id":         b.ID,
		"ip":         b.IP,
		"reason":     b.Reason,
		"status":     b.Status,
		"valid_from": b.ValidFrom,
		"issued_by":  b.IssuedBy,
	}
	if b.ValidTo.Valid {
		v["valid_to"] = b.ValidTo.Time
	}
	if b.ResolvedBy != "" {
		v["resolved_by"] = b.ResolvedBy
		v["resolution_reason"] = b.ResolutionReason
	}
	return v
}

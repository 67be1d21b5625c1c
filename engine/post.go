// kotatsu/engine/post.go
package engine

import (
	"context"
	"fmt"
	"time"

	"kotatsu/attachment"
	"kotatsu/config"
	"kotatsu/models"
	"kotatsu/utils"
)

// validateSubmission applies the field rules shared by thread creation and
// replies. It runs before any durable write, so a rejected submission has no
// side effects and spends no post number.
func validateSubmission(board *models.Board, name, body string, file *models.FileUpload) error {
	if body == "" && file == nil {
		return models.Validationf("post must have a body or an attachment")
	}
	if len(name) > config.MaxNameLen {
		return models.Validationf("name exceeds %d characters", config.MaxNameLen)
	}
	if len(body) > config.MaxBodyLen {
		return models.Validationf("body exceeds %d characters", config.MaxBodyLen)
	}
	if file != nil {
		if len(file.Data) == 0 {
			return models.Validationf("uploaded file is empty")
		}
		if len(file.Data) > config.MaxFileSize {
			return models.Validationf("file exceeds %d bytes", config.MaxFileSize)
		}
		category := attachment.DetectCategory(file.ContentType)
		if !board.AllowsCategory(category) {
			return models.Validationf("board /%s/ does not accept %s attachments", board.Label, category)
		}
	}
	return nil
}

// checkBan rejects submissions from IPs with an ACTIVE ban. Warnings and
// resolved bans never block.
func (e *Engine) checkBan(ip string) error {
	ban, err := e.db.ActiveBan(ip)
	if err != nil {
		return err
	}
	if ban == nil {
		return nil
	}
	var until *time.Time
	if ban.ValidTo.Valid {
		t := ban.ValidTo.Time
		until = &t
	}
	return &models.BannedError{Reason: ban.Reason, Until: until}
}

// preparePost builds the post fields that are derived from the raw form:
// poster name and tripcode from the name field, rendered body from the raw
// body. The post number is issued later, inside the transaction.
func preparePost(boardLabel, rawName, rawBody, ip string) *models.Post {
	name, secret := utils.ParsePosterName(rawName)
	return &models.Post{
		BoardLabel: boardLabel,
		Name:       name,
		Tripcode:   utils.Tripcode(secret),
		Body:       RenderBody(rawBody),
		IP:         ip,
	}
}

// saveAttachment stores the uploaded file and returns its record, or
// (nil, nil) when the submission has no file.
func (e *Engine) saveAttachment(ctx context.Context, board *models.Board, file *models.FileUpload) (*models.Attachment, error) {
	if file == nil {
		return nil, nil
	}
	category := attachment.DetectCategory(file.ContentType)
	return e.files.Save(ctx, board.Label, category, file)
}

// discardAttachment removes a stored attachment's files after the submission
// that produced them failed to commit. Best effort; failures are logged so
// the orphaned files can be cleaned up by hand.
func (e *Engine) discardAttachment(ctx context.Context, att *models.Attachment) {
	if att == nil {
		return
	}
	if err := e.files.Delete(ctx, att); err != nil {
		e.logger.Error("Failed to remove attachment files after aborted submission",
			"attachment", att.ID, "error", err)
	}
}

// removeAttachmentFiles deletes the stored files behind a set of attachment
// records whose rows are already gone.
func (e *Engine) removeAttachmentFiles(ctx context.Context, attachments []models.Attachment) error {
	var firstErr error
	for i := range attachments {
		if err := e.files.Delete(ctx, &attachments[i]); err != nil {
			e.logger.Error("Failed to delete attachment files", "attachment", attachments[i].ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// GetPost resolves a post by board label and post number.
func (e *Engine) GetPost(boardLabel string, number int64) (*models.Post, error) {
	return e.db.GetPostByNumber(boardLabel, number)
}

// DeletePost removes a post. Deleting an original post deletes its whole
// thread, replies and files included; deleting a reply removes just that
// post and its attachment.
func (e *Engine) DeletePost(ctx context.Context, boardLabel string, number int64) error {
	post, err := e.db.GetPostByNumber(boardLabel, number)
	if err != nil {
		return err
	}

	if post.IsOp {
		attachments, err := e.db.DeleteThread(post.ThreadID)
		if err != nil {
			return fmt.Errorf("failed to delete thread for post %s/%d: %w", boardLabel, number, err)
		}
		e.logger.Info("Thread deleted", "board", boardLabel, "number", number, "attachments", len(attachments))
		return e.removeAttachmentFiles(ctx, attachments)
	}

	att, err := e.db.DeletePostRow(post.ID)
	if err != nil {
		return err
	}
	e.logger.Info("Post deleted", "board", boardLabel, "number", number)
	if att != nil {
		return e.files.Delete(ctx, att)
	}
	return nil
}

// kotatsu/engine/thread.go
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kotatsu/config"
	"kotatsu/models"
	"kotatsu/utils"
)

// CreateThread validates and persists a new thread with its original post.
// The post number, thread row, post row and attachment row all commit in one
// transaction; if it aborts, the number rolls back unspent and the stored
// files are removed. Board capacity is enforced synchronously after commit.
func (e *Engine) CreateThread(ctx context.Context, form *models.ThreadForm) (*models.Thread, error) {
	board, err := e.db.GetBoard(form.BoardLabel)
	if err != nil {
		return nil, err
	}
	if len(form.Subject) > config.MaxSubjectLen {
		return nil, models.Validationf("subject exceeds %d characters", config.MaxSubjectLen)
	}
	if err := validateSubmission(board, form.Name, form.Body, form.File); err != nil {
		return nil, err
	}
	if err := e.checkBan(form.IP); err != nil {
		return nil, err
	}

	att, err := e.saveAttachment(ctx, board, form.File)
	if err != nil {
		return nil, err
	}

	post := preparePost(board.Label, form.Name, form.Body, form.IP)
	now := utils.GetSQLTime()

	thread, err := e.insertThread(board, form.Subject, post, att, now)
	if err != nil {
		e.discardAttachment(ctx, att)
		return nil, err
	}

	e.logger.Info("Thread created", "board", board.Label, "number", thread.Number())

	if err := e.enforceThreadLimit(ctx, board); err != nil {
		// The new thread is committed; eviction trouble is reported but does
		// not undo it.
		e.logger.Error("Board capacity enforcement failed", "board", board.Label, "error", err)
	}
	return thread, nil
}

func (e *Engine) insertThread(board *models.Board, subject string, post *models.Post, att *models.Attachment, now time.Time) (*models.Thread, error) {
	tx, err := e.db.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer e.rollback(tx, "insertThread")

	number, err := e.db.NextPostNumber(tx, board.Label)
	if err != nil {
		return nil, err
	}
	post.PostNumber = number

	threadID, err := e.db.InsertThread(tx, board.Label, subject, now)
	if err != nil {
		return nil, err
	}
	post.ThreadID = threadID

	postID, err := e.db.InsertPost(tx, post, now)
	if err != nil {
		return nil, err
	}
	post.ID = postID
	if err := e.db.SetOriginalPost(tx, threadID, postID); err != nil {
		return nil, err
	}

	if att != nil {
		att.PostID = postID
		if err := e.db.InsertAttachment(tx, att); err != nil {
			return nil, err
		}
		post.Attachment = att
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit thread creation: %w", err)
	}

	post.IsOp = true
	post.CreatedAt = now
	return &models.Thread{
		ID:         threadID,
		BoardLabel: board.Label,
		Subject:    subject,
		CreatedAt:  now,
		LastBumpAt: now,
		Op:         *post,
	}, nil
}

// ReplyToThread validates and persists a reply. The thread's bump timestamp
// advances in the same transaction, but only while the pre-insert reply
// count is below the board's bump limit; at or past the limit the thread
// stops rising regardless of new replies.
func (e *Engine) ReplyToThread(ctx context.Context, form *models.PostForm) (*models.Post, error) {
	board, err := e.db.GetBoard(form.BoardLabel)
	if err != nil {
		return nil, err
	}
	thread, err := e.db.GetThreadByNumber(board.Label, form.ThreadNumber)
	if err != nil {
		return nil, err
	}
	if thread.Locked {
		return nil, &models.ConflictError{Reason: fmt.Sprintf("thread %s/%d is locked", board.Label, form.ThreadNumber)}
	}
	if err := validateSubmission(board, form.Name, form.Body, form.File); err != nil {
		return nil, err
	}
	if err := e.checkBan(form.IP); err != nil {
		return nil, err
	}

	att, err := e.saveAttachment(ctx, board, form.File)
	if err != nil {
		return nil, err
	}

	post := preparePost(board.Label, form.Name, form.Body, form.IP)
	post.ThreadID = thread.ID
	now := utils.GetSQLTime()

	if err := e.insertReply(board, thread.ID, post, att, now); err != nil {
		e.discardAttachment(ctx, att)
		return nil, err
	}

	e.logger.Info("Reply posted", "board", board.Label, "thread", form.ThreadNumber, "number", post.PostNumber)
	return post, nil
}

func (e *Engine) insertReply(board *models.Board, threadID int64, post *models.Post, att *models.Attachment, now time.Time) error {
	tx, err := e.db.DB.Begin()
	if err != nil {
		return err
	}
	defer e.rollback(tx, "insertReply")

	replyCount, err := e.db.ReplyCount(tx, threadID)
	if err != nil {
		return err
	}

	number, err := e.db.NextPostNumber(tx, board.Label)
	if err != nil {
		return err
	}
	post.PostNumber = number

	postID, err := e.db.InsertPost(tx, post, now)
	if err != nil {
		return err
	}
	post.ID = postID

	if att != nil {
		att.PostID = postID
		if err := e.db.InsertAttachment(tx, att); err != nil {
			return err
		}
		post.Attachment = att
	}

	if replyCount < board.BumpLimit {
		if err := e.db.BumpThread(tx, threadID, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reply: %w", err)
	}
	post.CreatedAt = now
	return nil
}

// enforceThreadLimit evicts the least recently bumped non-stickied threads
// until the board is back at capacity. Runs after the creating transaction
// commits; a concurrent deletion of the chosen victim is absorbed as a no-op
// and the count re-checked.
func (e *Engine) enforceThreadLimit(ctx context.Context, board *models.Board) error {
	for {
		count, err := e.db.CountThreads(board.Label)
		if err != nil {
			return err
		}
		if count <= board.ThreadLimit {
			return nil
		}

		victimID, ok, err := e.db.OldestEvictableThread(board.Label)
		if err != nil {
			return err
		}
		if !ok {
			// Every thread is stickied; the board stays over capacity.
			e.logger.Warn("Board over capacity with no evictable thread", "board", board.Label, "count", count)
			return nil
		}

		attachments, err := e.db.DeleteThread(victimID)
		if err != nil {
			return err
		}
		e.logger.Info("Thread evicted", "board", board.Label, "thread", victimID)
		if err := e.removeAttachmentFiles(ctx, attachments); err != nil {
			return err
		}
	}
}

// Threads lists a board's threads, stickied first, then by bump recency.
func (e *Engine) Threads(boardLabel string) ([]models.Thread, error) {
	if _, err := e.db.GetBoard(boardLabel); err != nil {
		return nil, err
	}
	return e.db.ListThreads(boardLabel)
}

// Thread resolves a full thread with its posts in creation order.
func (e *Engine) Thread(boardLabel string, number int64) (*models.Thread, error) {
	thread, err := e.db.GetThreadByNumber(boardLabel, number)
	if err != nil {
		return nil, err
	}
	posts, err := e.db.GetThreadPosts(thread.ID)
	if err != nil {
		return nil, err
	}
	thread.Posts = posts
	return thread, nil
}

// ToggleLock flips a thread's locked flag and returns the new state. Locking
// stops replies; existing posts stay readable.
func (e *Engine) ToggleLock(boardLabel string, number int64) (bool, error) {
	thread, err := e.db.GetThreadByNumber(boardLabel, number)
	if err != nil {
		return false, err
	}
	locked, err := e.db.ToggleLock(thread.ID)
	if err != nil {
		return false, err
	}
	e.logger.Info("Thread lock toggled", "board", boardLabel, "number", number, "locked", locked)
	return locked, nil
}

// ToggleSticky flips a thread's stickied flag and returns the new state.
// Stickied threads list first and are exempt from capacity eviction.
func (e *Engine) ToggleSticky(boardLabel string, number int64) (bool, error) {
	thread, err := e.db.GetThreadByNumber(boardLabel, number)
	if err != nil {
		return false, err
	}
	stickied, err := e.db.ToggleSticky(thread.ID)
	if err != nil {
		return false, err
	}
	e.logger.Info("Thread sticky toggled", "board", boardLabel, "number", number, "stickied", stickied)
	return stickied, nil
}

func (e *Engine) rollback(tx *sql.Tx, op string) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		e.logger.Error("Failed to rollback transaction", "op", op, "error", err)
	}
}

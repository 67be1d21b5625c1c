// kotatsu/database/threads.go
package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"kotatsu/models"
)

// InsertThread creates the thread row inside the submission transaction. The
// original post id is attached afterwards via SetOriginalPost, once the OP
// row exists.
func (s *Service) InsertThread(tx *sql.Tx, boardLabel, subject string, now time.Time) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO threads (board_label, subject, locked, stickied, created_at, last_bump_at)
		VALUES (?, ?, 0, 0, ?, ?)`,
		boardLabel, subject, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert thread: %w", err)
	}
	return res.LastInsertId()
}

// SetOriginalPost designates the thread's first post. Called exactly once,
// in the creation transaction.
func (s *Service) SetOriginalPost(tx *sql.Tx, threadID, postID int64) error {
	if _, err := tx.Exec("UPDATE threads SET original_post_id = ? WHERE id = ?", postID, threadID); err != nil {
		return fmt.Errorf("failed to set original post: %w", err)
	}
	return nil
}

// GetThreadByNumber resolves a thread by board label and the post number of
// its original post, which is how threads are addressed externally.
func (s *Service) GetThreadByNumber(boardLabel string, number int64) (*models.Thread, error) {
	var t models.Thread
	var op models.Post
	err := s.DB.QueryRow(`
		SELECT t.id, t.board_label, t.subject, t.locked, t.stickied, t.created_at, t.last_bump_at,
		       p.id, p.thread_id, p.board_label, p.post_number, p.name, p.tripcode, p.body, p.ip, p.created_at
		FROM threads t
		JOIN posts p ON p.id = t.original_post_id
		WHERE t.board_label = ? AND p.post_number = ?`, boardLabel, number).Scan(
		&t.ID, &t.BoardLabel, &t.Subject, &t.Locked, &t.Stickied, &t.CreatedAt, &t.LastBumpAt,
		&op.ID, &op.ThreadID, &op.BoardLabel, &op.PostNumber, &op.Name, &op.Tripcode, &op.Body, &op.IP, &op.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &models.NotFoundError{Kind: "thread", Ref: boardLabel + "/" + strconv.FormatInt(number, 10)}
		}
		return nil, fmt.Errorf("db error getting thread %s/%d: %w", boardLabel, number, err)
	}
	op.IsOp = true
	t.Op = op
	return &t, nil
}

// CountThreads returns the number of threads currently on a board.
func (s *Service) CountThreads(boardLabel string) (int, error) {
	var count int
	err := s.DB.QueryRow("SELECT COUNT(*) FROM threads WHERE board_label = ?", boardLabel).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// OldestEvictableThread finds the non-stickied thread with the oldest bump
// timestamp, ties broken by smallest id. Returns ok=false when every thread
// is stickied or the board is empty.
func (s *Service) OldestEvictableThread(boardLabel string) (int64, bool, error) {
	var id int64
	err := s.DB.QueryRow(`
		SELECT id FROM threads
		WHERE board_label = ? AND stickied = 0
		ORDER BY last_bump_at ASC, id ASC LIMIT 1`, boardLabel).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// DeleteThread removes a thread; its posts and attachment rows go with it via
// cascade. The attachment records are collected first and returned so the
// caller can remove the stored files — deleting rows cannot delete files.
// Deleting a thread that is already gone is a no-op, not an error.
func (s *Service) DeleteThread(threadID int64) ([]models.Attachment, error) {
	tx, err := s.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			s.logger.Error("Failed to rollback transaction in DeleteThread", "error", rerr)
		}
	}()

	attachments, err := attachmentsForThread(tx, threadID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec("DELETE FROM threads WHERE id = ?", threadID); err != nil {
		return nil, fmt.Errorf("failed to delete thread %d: %w", threadID, err)
	}

	return attachments, tx.Commit()
}

// BumpThread advances the bump timestamp inside the reply's transaction.
func (s *Service) BumpThread(tx *sql.Tx, threadID int64, now time.Time) error {
	if _, err := tx.Exec("UPDATE threads SET last_bump_at = ? WHERE id = ?", now, threadID); err != nil {
		return fmt.Errorf("failed to bump thread %d: %w", threadID, err)
	}
	return nil
}

// ReplyCount returns the number of replies in a thread, excluding the
// original post.
func (s *Service) ReplyCount(tx *sql.Tx, threadID int64) (int, error) {
	var count int
	err := tx.QueryRow(`
		SELECT COUNT(*) FROM posts
		WHERE thread_id = ? AND id != (SELECT original_post_id FROM threads WHERE id = ?)`,
		threadID, threadID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ToggleLock flips the locked flag and returns the new state.
func (s *Service) ToggleLock(threadID int64) (bool, error) {
	var locked bool
	err := s.DB.QueryRow(
		"UPDATE threads SET locked = NOT locked WHERE id = ? RETURNING locked", threadID).Scan(&locked)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, &models.NotFoundError{Kind: "thread", Ref: strconv.FormatInt(threadID, 10)}
		}
		return false, fmt.Errorf("failed to toggle lock on thread %d: %w", threadID, err)
	}
	return locked, nil
}

// ToggleSticky flips the stickied flag and returns the new state.
func (s *Service) ToggleSticky(threadID int64) (bool, error) {
	var stickied bool
	err := s.DB.QueryRow(
		"UPDATE threads SET stickied = NOT stickied WHERE id = ? RETURNING stickied", threadID).Scan(&stickied)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, &models.NotFoundError{Kind: "thread", Ref: strconv.FormatInt(threadID, 10)}
		}
		return false, fmt.Errorf("failed to toggle sticky on thread %d: %w", threadID, err)
	}
	return stickied, nil
}

// ListThreads retrieves a board's threads with their original posts, stickied
// threads first, then most recently bumped.
func (s *Service) ListThreads(boardLabel string) ([]models.Thread, error) {
	rows, err := s.DB.Query(`
		SELECT t.id, t.board_label, t.subject, t.locked, t.stickied, t.created_at, t.last_bump_at,
		       p.id, p.thread_id, p.board_label, p.post_number, p.name, p.tripcode, p.body, p.ip, p.created_at
		FROM threads t
		JOIN posts p ON p.id = t.original_post_id
		WHERE t.board_label = ?
		ORDER BY t.stickied DESC, t.last_bump_at DESC`, boardLabel)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("Failed to close rows in ListThreads", "error", err)
		}
	}()

	var threads []models.Thread
	for rows.Next() {
		var t models.Thread
		var op models.Post
		if err := rows.Scan(
			&t.ID, &t.BoardLabel, &t.Subject, &t.Locked, &t.Stickied, &t.CreatedAt, &t.LastBumpAt,
			&op.ID, &op.ThreadID, &op.BoardLabel, &op.PostNumber, &op.Name, &op.Tripcode, &op.Body, &op.IP, &op.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan thread row: %w", err)
		}
		op.IsOp = true
		t.Op = op
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// kotatsu/database/posts.go
package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"kotatsu/models"
)

// InsertPost persists a post row inside the submission transaction. The post
// number must already have been issued by NextPostNumber in the same
// transaction.
func (s *Service) InsertPost(tx *sql.Tx, p *models.Post, now time.Time) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO posts (thread_id, board_label, post_number, name, tripcode, body, ip, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ThreadID, p.BoardLabel, p.PostNumber, p.Name, p.Tripcode, p.Body, p.IP, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert post: %w", err)
	}
	return res.LastInsertId()
}

// InsertAttachment persists the attachment record bound to a post, in the
// same transaction as the post itself.
func (s *Service) InsertAttachment(tx *sql.Tx, a *models.Attachment) error {
	_, err := tx.Exec(`
		INSERT INTO attachments (id, post_id, category, folder, filename, original_filename,
			thumbnail_filename, remote_url, remote_thumbnail_url,
			width, height, thumb_width, thumb_height, duration, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.PostID, a.Category, a.Folder, a.Filename, a.OriginalFilename,
		a.ThumbnailFilename, a.RemoteURL, a.RemoteThumbnailURL,
		a.Metadata.Width, a.Metadata.Height, a.Metadata.ThumbWidth, a.Metadata.ThumbHeight,
		a.Metadata.Duration, a.Metadata.Checksum)
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	return nil
}

const attachmentColumns = `id, post_id, category, folder, filename, original_filename,
	thumbnail_filename, remote_url, remote_thumbnail_url,
	width, height, thumb_width, thumb_height, duration, checksum`

func scanAttachment(row interface{ Scan(...any) error }) (*models.Attachment, error) {
	var a models.Attachment
	err := row.Scan(&a.ID, &a.PostID, &a.Category, &a.Folder, &a.Filename, &a.OriginalFilename,
		&a.ThumbnailFilename, &a.RemoteURL, &a.RemoteThumbnailURL,
		&a.Metadata.Width, &a.Metadata.Height, &a.Metadata.ThumbWidth, &a.Metadata.ThumbHeight,
		&a.Metadata.Duration, &a.Metadata.Checksum)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// attachmentsForThread collects every attachment record belonging to a
// thread's posts, for file cleanup after a cascade delete.
func attachmentsForThread(tx *sql.Tx, threadID int64) ([]models.Attachment, error) {
	rows, err := tx.Query(`
		SELECT `+attachmentColumns+` FROM attachments
		WHERE post_id IN (SELECT id FROM posts WHERE thread_id = ?)`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments for thread %d: %w", threadID, err)
	}
	defer rows.Close()

	var attachments []models.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment row: %w", err)
		}
		attachments = append(attachments, *a)
	}
	return attachments, rows.Err()
}

// GetPostByNumber resolves a post by board label and post number, including
// its attachment when present.
func (s *Service) GetPostByNumber(boardLabel string, number int64) (*models.Post, error) {
	var p models.Post
	var originalPostID int64
	err := s.DB.QueryRow(`
		SELECT p.id, p.thread_id, p.board_label, p.post_number, p.name, p.tripcode, p.body, p.ip, p.created_at,
		       t.original_post_id
		FROM posts p JOIN threads t ON p.thread_id = t.id
		WHERE p.board_label = ? AND p.post_number = ?`, boardLabel, number).Scan(
		&p.ID, &p.ThreadID, &p.BoardLabel, &p.PostNumber, &p.Name, &p.Tripcode, &p.Body, &p.IP, &p.CreatedAt,
		&originalPostID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &models.NotFoundError{Kind: "post", Ref: boardLabel + "/" + strconv.FormatInt(number, 10)}
		}
		return nil, fmt.Errorf("db error getting post %s/%d: %w", boardLabel, number, err)
	}
	p.IsOp = p.ID == originalPostID

	a, err := scanAttachment(s.DB.QueryRow(
		"SELECT "+attachmentColumns+" FROM attachments WHERE post_id = ?", p.ID))
	if err == nil {
		p.Attachment = a
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("db error getting attachment for post %d: %w", p.ID, err)
	}

	return &p, nil
}

// GetThreadPosts fetches all posts in a thread in creation order, with
// attachments attached.
func (s *Service) GetThreadPosts(threadID int64) ([]models.Post, error) {
	rows, err := s.DB.Query(`
		SELECT p.id, p.thread_id, p.board_label, p.post_number, p.name, p.tripcode, p.body, p.ip, p.created_at,
		       t.original_post_id
		FROM posts p JOIN threads t ON p.thread_id = t.id
		WHERE p.thread_id = ? ORDER BY p.created_at ASC, p.id ASC`, threadID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("Failed to close rows in GetThreadPosts", "error", err)
		}
	}()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		var originalPostID int64
		if err := rows.Scan(&p.ID, &p.ThreadID, &p.BoardLabel, &p.PostNumber, &p.Name, &p.Tripcode,
			&p.Body, &p.IP, &p.CreatedAt, &originalPostID); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		p.IsOp = p.ID == originalPostID
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range posts {
		a, err := scanAttachment(s.DB.QueryRow(
			"SELECT "+attachmentColumns+" FROM attachments WHERE post_id = ?", posts[i].ID))
		if err == nil {
			posts[i].Attachment = a
		} else if err != sql.ErrNoRows {
			return nil, fmt.Errorf("db error getting attachment for post %d: %w", posts[i].ID, err)
		}
	}
	return posts, nil
}

// DeletePostRow removes a single reply post. The attachment record, if any,
// is returned so the caller can remove the stored files.
func (s *Service) DeletePostRow(postID int64) (*models.Attachment, error) {
	tx, err := s.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			s.logger.Error("Failed to rollback transaction in DeletePostRow", "error", rerr)
		}
	}()

	var attachment *models.Attachment
	a, err := scanAttachment(tx.QueryRow(
		"SELECT "+attachmentColumns+" FROM attachments WHERE post_id = ?", postID))
	if err == nil {
		attachment = a
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query attachment for post %d: %w", postID, err)
	}

	if _, err := tx.Exec("DELETE FROM posts WHERE id = ?", postID); err != nil {
		return nil, fmt.Errorf("failed to delete post %d: %w", postID, err)
	}

	return attachment, tx.Commit()
}

// kotatsu/database/boards.go
package database

import (
	"database/sql"
	"fmt"

	"kotatsu/models"
	"kotatsu/utils"
)

// CreateBoard inserts a new board with a zeroed post counter.
func (s *Service) CreateBoard(board *models.Board) error {
	_, err := s.DB.Exec(`
		INSERT INTO boards (label, name, attachment_categories, thread_limit, bump_limit, post_counter, nsfw, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		board.Label, board.Name, models.JoinCategories(board.AttachmentCategories),
		board.ThreadLimit, board.BumpLimit, board.NSFW, utils.GetSQLTime())
	if err != nil {
		return fmt.Errorf("failed to insert board %q: %w", board.Label, err)
	}
	return nil
}

// GetBoard fetches board configuration, using the instance's cache. The
// cached copy holds immutable configuration only; the live post counter is
// read exclusively through NextPostNumber.
func (s *Service) GetBoard(label string) (*models.Board, error) {
	s.cacheMu.RLock()
	board, ok := s.boardCache[label]
	s.cacheMu.RUnlock()
	if ok {
		return board, nil
	}

	var b models.Board
	var categories string
	err := s.DB.QueryRow(`
		SELECT label, name, attachment_categories, thread_limit, bump_limit, nsfw, created_at
		FROM boards WHERE label = ?`, label).Scan(
		&b.Label, &b.Name, &categories, &b.ThreadLimit, &b.BumpLimit, &b.NSFW, &b.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &models.NotFoundError{Kind: "board", Ref: label}
		}
		return nil, fmt.Errorf("db error getting board %q: %w", label, err)
	}
	b.AttachmentCategories = models.ParseCategories(categories)

	s.cacheMu.Lock()
	s.boardCache[label] = &b
	s.cacheMu.Unlock()
	return &b, nil
}

// BoardExists reports whether a board with the label exists.
func (s *Service) BoardExists(label string) (bool, error) {
	var count int
	if err := s.DB.QueryRow("SELECT COUNT(*) FROM boards WHERE label = ?", label).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// NextPostNumber issues the next post number for a board as a single
// indivisible increment-and-read against durable storage. It must run inside
// the submission's transaction: if the transaction aborts, the increment
// rolls back with it and no number is silently spent.
func (s *Service) NextPostNumber(tx *sql.Tx, label string) (int64, error) {
	var number int64
	err := tx.QueryRow(
		"UPDATE boards SET post_counter = post_counter + 1 WHERE label = ? RETURNING post_counter",
		label).Scan(&number)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, &models.NotFoundError{Kind: "board", Ref: label}
		}
		return 0, fmt.Errorf("failed to increment post counter for %q: %w", label, err)
	}
	return number, nil
}

// ClearBoardCache drops a cached board config, e.g. after board deletion.
func (s *Service) ClearBoardCache(label string) {
	s.cacheMu.Lock()
	delete(s.boardCache, label)
	s.cacheMu.Unlock()
}

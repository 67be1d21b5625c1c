// kotatsu/engine/board.go
package engine

import (
	"regexp"

	"kotatsu/config"
	"kotatsu/models"
)

var boardLabelPattern = regexp.MustCompile(`^[a-z0-9]{1,10}$`)

// CreateBoard registers a new board. The label is the permanent slug the
// board is addressed by; limits fall back to the defaults when unset.
func (e *Engine) CreateBoard(board *models.Board) error {
	if !boardLabelPattern.MatchString(board.Label) {
		return models.Validationf("board label must be 1-10 lowercase letters or digits")
	}
	if board.Name == "" {
		return models.Validationf("board requires a name")
	}
	if exists, err := e.db.BoardExists(board.Label); err != nil {
		return err
	} else if exists {
		return &models.ConflictError{Reason: "board /" + board.Label + "/ already exists"}
	}

	if board.ThreadLimit <= 0 {
		board.ThreadLimit = config.DefaultThreadLimit
	}
	if board.BumpLimit <= 0 {
		board.BumpLimit = config.DefaultBumpLimit
	}
	if len(board.AttachmentCategories) == 0 {
		board.AttachmentCategories = []models.AttachmentCategory{models.CategoryImage}
	}

	if err := e.db.CreateBoard(board); err != nil {
		return err
	}
	e.logger.Info("Board created", "board", board.Label, "name", board.Name)
	return nil
}

// Board fetches board configuration by label.
func (e *Engine) Board(label string) (*models.Board, error) {
	return e.db.GetBoard(label)
}

// kotatsu/engine/engine.go

// Package engine implements the posting core: submissions, thread lifecycle,
// board capacity and moderation state. Handlers translate HTTP to engine
// calls; the engine owns ordering, numbering and cleanup.
package engine

import (
	"log/slog"

	"kotatsu/attachment"
	"kotatsu/database"
)

type Engine struct {
	db     *database.Service
	files  *attachment.Store
	logger *slog.Logger
}

func New(db *database.Service, files *attachment.Store, logger *slog.Logger) *Engine {
	return &Engine{
		db:     db,
		files:  files,
		logger: logger,
	}
}

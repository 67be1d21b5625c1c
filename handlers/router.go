// kotatsu/handlers/router.go

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRouter(app App) *chi.Mux {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(NewStructuredLogger(app.Logger()))
	mux.Use(middleware.Recoverer)

	// Static file server for local attachment storage
	mux.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(app.FileDir()))))

	// Submissions
	mux.Group(func(r chi.Router) {
		r.Use(RateLimit(app))
		r.Post("/post", MakeHandler(app, HandlePost))
	})

	// Read API
	mux.Get("/api/{board}", MakeHandler(app, HandleBoard))
	mux.Get("/api/{board}/threads", MakeHandler(app, HandleThreadList))
	mux.Get("/api/{board}/thread/{number}", MakeHandler(app, HandleThread))
	mux.Get("/api/{board}/post/{number}", MakeHandler(app, HandlePostPreview))

	// Moderation handlers
	mux.Route("/mod", func(r chi.Router) {
		r.Use(RequireLAN)
		r.Use(RequireModAuth(app))
		r.Post("/create-board", MakeHandler(app, HandleCreateBoard))
		r.Post("/delete-post", MakeHandler(app, HandleModDelete))
		r.Post("/toggle-lock", MakeHandler(app, HandleToggleLock))
		r.Post("/toggle-sticky", MakeHandler(app, HandleToggleSticky))
		r.Post("/ban", MakeHandler(app, HandleBan))
		r.Post("/warn", MakeHandler(app, HandleWarn))
		r.Post("/remove-ban", MakeHandler(app, HandleRemoveBan))
		r.Get("/bans", MakeHandler(app, HandleBanList))
	})

	return mux
}

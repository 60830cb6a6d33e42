package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/medportal/internal/account"
	"github.com/nikhilbhutani/medportal/internal/api/handlers"
	"github.com/nikhilbhutani/medportal/internal/api/middleware"
	"github.com/nikhilbhutani/medportal/internal/config"
	"github.com/nikhilbhutani/medportal/internal/document"
)

// Deps are the services the router exposes. Files is set when blobs live on
// the local filesystem and must be served under /files.
type Deps struct {
	Accounts  *account.Service
	Documents *document.Service
	Files     handlers.BlobOpener
	// Checks are probed by /readyz.
	Checks map[string]handlers.Pinger
}

type Router struct {
	mux  *chi.Mux
	cfg  *config.Config
	deps Deps
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	return &Router{
		mux:  chi.NewRouter(),
		cfg:  cfg,
		deps: deps,
	}
}

// Setup mounts every route. ctx bounds background helpers such as the rate
// limiter's sweeper.
func (rt *Router) Setup(ctx context.Context) http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	health := handlers.NewHealthHandler(rt.deps.Checks, rt.cfg.Storage.Backend, rt.cfg.Processing.QueueMode)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	if rt.deps.Files != nil {
		r.Get("/files/*", handlers.NewFileHandler(rt.deps.Files).Serve)
	}

	dev := rt.cfg.IsDevelopment()
	accountH := handlers.NewAccountHandler(rt.deps.Accounts, dev)
	docH := handlers.NewDocumentHandler(rt.deps.Accounts, rt.deps.Documents, rt.cfg.Processing.MaxUploadBytes, dev)
	rl := middleware.NewRateLimiter(ctx, 10, 40)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health.Health)

		r.Group(func(r chi.Router) {
			r.Use(rl.Limit)

			r.Post("/generate-account", accountH.Generate)
			r.Post("/authenticate", accountH.Authenticate)

			r.Post("/upload-document", docH.Upload)
			r.Post("/get-documents", docH.List)
			r.Post("/process-document", docH.Process)
			r.Post("/delete-document", docH.Delete)
			r.Post("/batch-delete-documents", docH.BatchDelete)
			r.Post("/view-document", docH.View)
		})
	})

	return r
}

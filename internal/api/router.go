package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/halvard/gebo/internal/i18n"
	"github.com/halvard/gebo/internal/media"
	"github.com/halvard/gebo/internal/pubservice"
	"github.com/halvard/gebo/internal/session"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// local, if non-nil, enables the media upload and serving endpoints.
func NewRouter(svc *pubservice.Service, sessions *session.Manager, catalog *i18n.Catalog,
	authEnabled bool, token string, sseHandler http.Handler, local *media.Local) chi.Router {

	h := NewHandler(svc, sessions, catalog)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Session.
	r.Post("/session", h.Login)
	r.Get("/session", h.Session)
	r.Delete("/session", h.Logout)

	// Publish workflows.
	r.Post("/opportunities", h.CreateOpportunity)
	r.Put("/opportunities/{id}", h.UpdateOpportunity)
	r.Get("/opportunities/latest", h.LatestOpportunity)
	r.Post("/goals", h.CreateGoal)

	// Profiles and follows.
	r.Post("/profiles", h.CreateProfile)
	r.Get("/profiles/{id}", h.GetProfile)
	r.Post("/profiles/{id}/follow", h.Follow)
	r.Delete("/profiles/{id}/follow", h.Unfollow)
	r.Get("/profiles/{id}/follow", h.IsFollowing)

	// Dashboard and submission log.
	r.Get("/dashboard/vhr", h.VHRSummary)
	r.Get("/submissions", h.Submissions)

	// Media upload and serving (local backend only).
	if local != nil {
		mh := NewMediaHandler(local)
		r.Post("/media", mh.Upload)
		r.Get("/media/{name}", mh.ServeFile)
	}

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

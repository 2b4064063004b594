package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/plantspeak/internal/api/handlers"
	"github.com/nikhilbhutani/plantspeak/internal/api/middleware"
	"github.com/nikhilbhutani/plantspeak/internal/audio"
	"github.com/nikhilbhutani/plantspeak/internal/auth"
	"github.com/nikhilbhutani/plantspeak/internal/config"
)

// Deps are the services the router exposes. History, LocalAudio and the
// health probes may be nil.
type Deps struct {
	Identify   handlers.Identifier
	Speech     handlers.Speaker
	History    handlers.HistoryLister
	LocalAudio *audio.LocalStore
	Probes     map[string]handlers.Pinger
}

type Router struct {
	mux  *chi.Mux
	cfg  *config.Config
	deps Deps
	jwt  *auth.JWTMiddleware
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	rt := &Router{
		mux:  chi.NewRouter(),
		cfg:  cfg,
		deps: deps,
	}
	if cfg.Auth.JWTSecret != "" {
		rt.jwt = auth.NewJWTMiddleware(cfg.Auth.JWTSecret)
	}
	return rt
}

// Setup wires middleware and routes. ctx bounds background goroutines such
// as the rate limiter's janitor.
func (rt *Router) Setup(ctx context.Context) http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	// Forwarded headers are client-controlled unless a proxy rewrites them.
	if rt.cfg.Server.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins))

	if rt.cfg.Server.RateLimitRPS > 0 {
		rl := middleware.NewRateLimiter(ctx, rt.cfg.Server.RateLimitRPS, rt.cfg.Server.RateLimitBurst)
		r.Use(rl.Limit)
	}

	health := handlers.NewHealthHandler(rt.deps.Probes)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	if rt.deps.LocalAudio != nil {
		audioH := handlers.NewAudioHandler(rt.deps.LocalAudio)
		r.Get("/audio/{name}", audioH.Serve)
	}

	identifyH := handlers.NewIdentifyHandler(rt.deps.Identify)
	speechH := handlers.NewSpeechHandler(rt.deps.Speech)
	historyH := handlers.NewHistoryHandler(rt.deps.History)

	routes := func(r chi.Router) {
		if rt.jwt != nil {
			r.Use(rt.jwt.Authenticate)
		}
		r.Post("/identify", identifyH.Identify)
		r.Post("/tts", speechH.Speak)
		r.Get("/history", historyH.List)
	}

	r.Group(routes)
	r.Route("/api/v1", routes)

	return r
}

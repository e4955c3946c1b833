// Package httpserver exposes the FindIt services over a JSON HTTP API.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/and161185/findit/internal/model"
	"github.com/and161185/findit/internal/ratelimit"
	"github.com/and161185/findit/internal/service"
	"github.com/and161185/findit/internal/storage"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports backend readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators routed by Server.
type Deps struct {
	Auth          service.AuthService
	Users         service.UserService
	Items         service.ItemService
	Claims        service.ClaimService
	Conversations service.ConversationService
	Admin         service.AdminService

	Tokens   TokenParser
	Accounts AccountChecker // nil trusts the token until it expires
	DB       Pinger
	Limiter  *ratelimit.Limiter // nil disables request rate limiting
	Log      *zap.Logger
}

// Options tune the HTTP surface.
type Options struct {
	RequestTimeout time.Duration
	CORSOrigins    []string
	UploadDir      string // served under /uploads/ when set
	MaxUploadBytes int64
}

// Server routes HTTP requests to services.
type Server struct {
	d        Deps
	o        Options
	log      *zap.Logger
	validate *validator.Validate
}

// New constructs a Server. A nil logger is replaced with a no-op one.
func New(d Deps, o Options) *Server {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 15 * time.Second
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 10 << 20
	}
	return &Server{d: d, o: o, log: log, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, Recover(s.log), Logging(s.log), Metrics, CORS(s.o.CORSOrigins))

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())
	if s.o.UploadDir != "" {
		r.Handle(storage.URLPrefix+"*",
			http.StripPrefix(storage.URLPrefix, http.FileServer(http.Dir(s.o.UploadDir))))
	}

	r.Group(func(r chi.Router) {
		if s.d.Limiter != nil {
			r.Use(RateLimit(s.d.Limiter, s.log))
		}
		r.Use(chimw.Timeout(s.o.RequestTimeout))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Post("/signup", s.register)
			r.Post("/login", s.login)
			r.Post("/google", s.google)
			r.Post("/forgot-password", s.forgotPassword)
			r.Post("/reset-password", s.resetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(OptionalAuth(s.d.Tokens))
			r.Get("/items", s.listItems)
			r.Get("/items/{id}", s.getItem)
		})

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(s.d.Tokens, s.d.Accounts))

			r.Post("/items", s.createItem)
			r.Delete("/items/{id}", s.deleteItem)
			r.Post("/items/{id}/generate-pin", s.generatePIN)
			r.Post("/items/{id}/verify-pin", s.verifyPIN)

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", s.me)
				r.Delete("/", s.deleteMe)
				r.Get("/stats", s.myStats)
				r.Get("/items", s.myItems)
				r.Get("/claims", s.myClaims)
			})

			r.Route("/claims", func(r chi.Router) {
				r.Post("/start", s.startClaim)
				r.Post("/reject", s.rejectClaim)
				r.Post("/request-identity", s.requestIdentity)
				r.Post("/submit-identity", s.submitIdentity)
				r.Post("/initiate-handover", s.initiateHandover)
				r.Post("/confirm-handover", s.confirmHandover)
				r.Get("/list", s.listClaims)
			})
			r.Get("/messages/thread", s.claimThread)
			r.Post("/messages/send", s.sendClaimMessage)

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/initiate", s.initiateConversation)
				r.Get("/", s.listConversations)
				r.Get("/{id}", s.getConversation)
				r.Get("/{id}/messages", s.conversationMessages)
				r.Post("/{id}/messages", s.sendConversationMessage)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/normalize-locations", s.normalizeLocations)
				r.Delete("/items", s.wipeItems)
				r.Delete("/items/{id}", s.adminDeleteItem)
			})
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.d.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.d.DB.Ping(ctx); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// caller returns the principal set by Authenticate.
func caller(r *http.Request) model.Principal {
	p, _ := PrincipalFromCtx(r.Context())
	return p
}

package httpapi

import (
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// Options configures NewRouter.
type Options struct {
	// Requests receives one audit record per request. Nil disables the sink;
	// the latency histogram is still fed.
	Requests middleware.RequestSink
	// Metrics is mounted on GET /metrics when non-nil.
	Metrics http.Handler
	// TrustProxy enables X-Forwarded-For / X-Real-IP client addresses.
	TrustProxy bool
}

// Handler holds the dependencies of the route handlers.
type Handler struct {
	engine   *authcore.Engine
	cfg      authcore.Config
	validate *validator.Validate
}

// NewHandler binds handlers to engine.
func NewHandler(engine *authcore.Engine) *Handler {
	return &Handler{
		engine:   engine,
		cfg:      engine.Config(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// NewRouter registers every route with its middleware layers.
func NewRouter(engine *authcore.Engine, opts Options) http.Handler {
	h := NewHandler(engine)

	csrf := middleware.CSRF(engine)
	throttleLogin := middleware.Throttle(engine, authcore.BucketLogin, middleware.KeyByIP)
	throttleRegister := middleware.Throttle(engine, authcore.BucketRegistration, middleware.KeyByIP)
	throttleAPI := middleware.Throttle(engine, authcore.BucketAPI, middleware.KeyByAccount)
	throttleTwoFactor := middleware.Throttle(engine, authcore.BucketTwoFactor, middleware.KeyByAccount)

	r := chi.NewRouter()
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientInfo)
	r.Use(middleware.RequestAudit(engine, opts.Requests))

	r.Get("/authz/table", h.authzTable)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(csrf)
		r.Get("/csrf-cookie", h.csrfCookie)

		r.Group(func(r chi.Router) {
			r.Use(throttleLogin)
			r.Post("/login", h.login)
			r.Post("/forgot-password", h.forgotPassword)
			r.Post("/reset-password", h.resetPassword)
			r.Post("/reset-password/verify-token", h.verifyResetToken)
			r.Post("/email/verify", h.verifyEmail)
			r.Post("/email/resend", h.resendVerification)
		})
		r.With(throttleRegister).Post("/register", h.register)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(engine))
			r.Use(middleware.RequireActive(engine))
			r.Use(throttleAPI)

			r.Post("/logout", h.logout)
			r.With(throttleTwoFactor).Post("/2fa/verify", h.verifySecondFactor)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSecondFactor(engine))

				r.Route("/user", func(r chi.Router) {
					r.Route("/security", func(r chi.Router) {
						r.Post("/2fa/enable", h.enableTwoFactor)
						r.Post("/2fa/confirm", h.confirmTwoFactor)
						r.Post("/2fa/disable", h.disableTwoFactor)
						r.Post("/logout-others", h.logoutOthers)
					})
					r.Get("/me", h.me)
					r.Route("/profile", func(r chi.Router) {
						r.Post("/info", h.updateProfile)
						r.Put("/password", h.changePassword)
					})
				})

				r.Route("/users", func(r chi.Router) {
					r.With(middleware.Authorize(engine, authcore.OpUsersList)).Get("/", h.listUsers)
					r.With(middleware.Authorize(engine, authcore.OpUsersCreate)).Post("/", h.createUser)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", h.showUser)
						r.With(middleware.Authorize(engine, authcore.OpUsersUpdate)).Put("/", h.updateUser)
						r.With(middleware.Authorize(engine, authcore.OpUsersDelete)).Delete("/", h.deleteUser)
					})
				})
			})
		})
	})

	return r
}

package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"github.com/unrolled/secure"

	_ "github.com/norem/auth-service/docs"
	"github.com/norem/auth-service/internal/api/handler"
	"github.com/norem/auth-service/internal/api/middleware"
	"github.com/norem/auth-service/internal/core/ports"
)

// Dependencies are the collaborators the router wires into handlers and guards.
type Dependencies struct {
	AuthService   ports.AuthService
	Authenticator ports.Authenticator
	Authorizer    ports.Authorizer
	RefreshParser ports.RefreshTokenParser
	// Resolvers enables POST /auth/oauth/:provider when set.
	Resolvers handler.ResolverLookup
	// Health is pinged by the readiness probe, keyed by dependency name.
	Health   map[string]handler.Pinger
	Policies Policies
	// Registry receives the HTTP metrics and backs /metrics. Nil means the
	// default Prometheus registry, which also holds the auth metrics.
	Registry   *prometheus.Registry
	Production bool
	Log        zerolog.Logger
}

// routes registers handlers behind the guard derived from the policy table.
type routes struct {
	e        *echo.Echo
	policies Policies
	authn    ports.Authenticator
	authz    ports.Authorizer
}

func (r *routes) add(method, path string, h echo.HandlerFunc, extra ...echo.MiddlewareFunc) {
	guard := middleware.Enforce(r.policies.Lookup(method, path), r.authn, r.authz)
	r.e.Add(method, path, h, append([]echo.MiddlewareFunc{guard}, extra...)...)
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	policies := deps.Policies
	if policies == nil {
		policies = DefaultPolicies()
	}

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(echomiddleware.BodyLimit("64K"))
	e.Use(echo.WrapMiddleware(secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "no-referrer",
		SSLRedirect:        deps.Production,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      !deps.Production,
	}).Handler))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "auth",
		Subsystem:  "http",
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	r := &routes{e: e, policies: policies, authn: deps.Authenticator, authz: deps.Authorizer}

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(deps.AuthService)
	r.add(http.MethodPost, "/auth/register", authHandler.Register)
	r.add(http.MethodPost, "/auth/login", authHandler.Login)
	r.add(http.MethodPost, "/auth/refresh", authHandler.Refresh, middleware.RefreshAuth(deps.RefreshParser))
	r.add(http.MethodPost, "/auth/logout", authHandler.Logout)
	r.add(http.MethodGet, "/auth/me", authHandler.Me)

	if deps.Resolvers != nil {
		oauthHandler := handler.NewOAuthHandler(deps.AuthService, deps.Resolvers)
		r.add(http.MethodPost, "/auth/oauth/:provider", oauthHandler.Login)
	}

	// --- User administration ---
	userHandler := handler.NewUserHandler(deps.AuthService)
	r.add(http.MethodPut, "/users/:id/role", userHandler.ChangeRole)

	// --- Health probes, metrics and docs ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Health)

	r.add(http.MethodGet, "/health", healthHandler.Liveness)            // is the process alive?
	r.add(http.MethodGet, "/health/ready", healthDepsHandler.Readiness) // is the store reachable?
	r.add(http.MethodGet, "/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	r.add(http.MethodGet, "/swagger/*", echoSwagger.WrapHandler)

	return e
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Status >= http.StatusInternalServerError {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

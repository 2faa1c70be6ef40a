package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/septafinder/backend-go/internal/api"
	"github.com/septafinder/backend-go/internal/auth"
	"github.com/septafinder/backend-go/internal/models"
)

// Version is reported by the root endpoint. Overridden at link time.
var Version = "1.0.0"

const (
	rootMessage = "SEPTA Regional Rail Station Finder API"
	userKey     = "user"
)

// Finder resolves a request body to the nearest station
type Finder interface {
	FindNearest(ctx context.Context, in models.LocationInput) (*models.StationResponse, error)
}

// Authenticator covers account creation, login and bearer token checks
type Authenticator interface {
	Register(ctx context.Context, req auth.RegisterRequest) (auth.Token, error)
	Login(ctx context.Context, username, password string) (auth.Token, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// IndexStatus reports whether the station index can answer queries
type IndexStatus interface {
	Loaded() bool
	Len() int
}

// CacheStats exposes result cache counters for the health endpoint
type CacheStats interface {
	Stats() map[string]uint64
}

type loginForm struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

type Router struct {
	finder Finder
	auth   Authenticator
	index  IndexStatus
	cache  CacheStats
	engine *gin.Engine
}

func NewRouter(finder Finder, authn Authenticator, index IndexStatus, cache CacheStats) *Router {
	r := &Router{
		finder: finder,
		auth:   authn,
		index:  index,
		cache:  cache,
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(recovery(), requestLogger())

	engine.GET("/", r.root)
	engine.GET("/health", r.health)

	authGroup := engine.Group("/auth")
	authGroup.POST("/register", r.register)
	authGroup.POST("/login", r.login)

	protected := engine.Group("/", r.requireUser())
	protected.POST("/septa/find-nearest-station", r.findNearestStation)
	protected.POST("/find-nearest-station", r.findNearestStation)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, api.NewErrorResponse("Not Found"))
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, api.NewErrorResponse("Method Not Allowed"))
	})

	r.engine = engine
	return r
}

// Engine returns the bare router, without CORS handling
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Handler wraps the router with CORS handling for the given origins
func (r *Router) Handler(origins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"Origin",
		},
		ExposedHeaders: []string{
			"Content-Length",
			"Content-Type",
			"WWW-Authenticate",
		},
		AllowCredentials: false,
		MaxAge:           86400,
	})
	return c.Handler(r.engine)
}

func (r *Router) root(c *gin.Context) {
	c.JSON(http.StatusOK, api.RootResponse{
		Version: Version,
		Message: rootMessage,
	})
}

func (r *Router) health(c *gin.Context) {
	resp := api.HealthResponse{
		Status:       "ok",
		StationsOK:   r.index.Loaded(),
		StationCount: r.index.Len(),
	}
	if r.cache != nil {
		resp.Cache = r.cache.Stats()
	}

	status := http.StatusOK
	if !resp.StationsOK {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (r *Router) register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.NewErrorResponse("Invalid request body"))
		return
	}

	token, err := r.auth.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

func (r *Router) login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, api.NewErrorResponse("Username and password are required"))
		return
	}

	token, err := r.auth.Login(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

func (r *Router) findNearestStation(c *gin.Context) {
	var in models.LocationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, api.NewErrorResponse("Invalid request body"))
		return
	}

	logger := log.With().Str("username", currentUsername(c)).Logger()
	result, err := r.finder.FindNearest(c.Request.Context(), in)
	if err != nil {
		logger.Debug().Err(err).Msg("Nearest station lookup failed")
		writeError(c, err)
		return
	}

	logger.Debug().
		Str("station", result.StationName).
		Float64("distance_km", result.DistanceKm).
		Msg("Found nearest station")
	c.JSON(http.StatusOK, result)
}

// requireUser rejects requests without a bearer token for a registered user
func (r *Router) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			writeError(c, auth.ErrInvalidToken)
			return
		}

		user, err := r.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			writeError(c, err)
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

func currentUsername(c *gin.Context) string {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*models.User); ok {
			return user.Username
		}
	}
	return ""
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeError(c *gin.Context, err error) {
	status, body := api.FromError(err)
	if status == http.StatusUnauthorized || errors.Is(err, auth.ErrInvalidCredentials) {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(status, body)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("Handled request")
	}
}

func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("Recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.NewErrorResponse(api.MessageInternal))
	})
}

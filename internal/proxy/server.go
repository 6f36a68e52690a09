package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"gallery/internal/backend"
	"gallery/internal/cache"
	"gallery/internal/config"
	"gallery/internal/logging"
)

// Forwarder relays requests to the backend.
type Forwarder interface {
	Forward(ctx context.Context, req backend.ForwardRequest) (*backend.Response, error)
}

// Server is the proxy HTTP handler.
type Server struct {
	backend     Forwarder
	pages       cache.PageCache
	galleryTTL  time.Duration
	similarPath string
	logger      *slog.Logger
	limiter     *clientLimiter
	engine      *gin.Engine
}

// New builds the proxy router. A nil pages cache disables gallery caching.
func New(cfg *config.Config, fwd Forwarder, pages cache.PageCache, logger *slog.Logger) *Server {
	setGinMode(cfg.Server.GinMode)
	if pages == nil {
		pages = cache.Nop{}
	}
	s := &Server{
		backend:     fwd,
		pages:       pages,
		galleryTTL:  cfg.GalleryTTL(),
		similarPath: cfg.Backend.SimilarPath,
		logger:      logging.NewComponentLogger(logger, "proxy"),
		limiter:     newClientLimiter(cfg.Server.RateLimitPerMinute),
	}
	if s.similarPath == "" {
		s.similarPath = "/similar-to"
	}
	s.engine = s.routes(cfg)
	return s
}

// Handler returns the http.Handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes(cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(s.recovery())
	r.Use(requestID())
	r.Use(s.accessLog())
	r.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	api := r.Group(cfg.Server.RoutePrefix)
	api.GET("/health", s.handleHealth)
	api.GET("/gallery", s.handleGallery)
	api.POST("/search", s.handleSearch)
	api.POST("/similar", s.handleSimilar)
	api.POST("/similar-to", s.handleSimilar)
	api.GET("/random-query", s.handleRandomQuery)
	api.GET("/generate-random-query", s.handleRandomQuery)
	api.GET("/autocomplete", s.handleAutocomplete)

	limited := api.Group("", s.limiter.middleware())
	limited.POST("/ingest", s.handleIngest)
	limited.POST("/generate-description", s.handleGenerateDescription)

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not found")
	})
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func setGinMode(mode string) {
	switch strings.ToLower(mode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

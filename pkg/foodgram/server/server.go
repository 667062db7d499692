// Package server assembles the HTTP router and runs it.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/admin"
	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/config"
	"github.com/mikepea/foodgram/pkg/foodgram/ingredients"
	"github.com/mikepea/foodgram/pkg/foodgram/logging"
	"github.com/mikepea/foodgram/pkg/foodgram/media"
	"github.com/mikepea/foodgram/pkg/foodgram/metrics"
	"github.com/mikepea/foodgram/pkg/foodgram/pagination"
	"github.com/mikepea/foodgram/pkg/foodgram/recipes"
	"github.com/mikepea/foodgram/pkg/foodgram/tags"
	"github.com/mikepea/foodgram/pkg/foodgram/users"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "github.com/mikepea/foodgram/api/swagger"
)

const shutdownTimeout = 10 * time.Second

// Server serves the Foodgram API.
type Server struct {
	cfg    *config.Config
	router *gin.Engine
}

// New configures the auth and pagination packages from cfg and builds
// the router.
func New(cfg *config.Config, db *gorm.DB) *Server {
	auth.Configure(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	pagination.Configure(cfg.API.PageSize, cfg.API.MaxPageSize)

	return &Server{cfg: cfg, router: NewRouter(cfg, db)}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(cfg *config.Config, db *gorm.DB) *gin.Engine {
	r := gin.New()
	r.Use(logging.Middleware(), metrics.Middleware(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	storage := media.NewStorage(cfg.Server.MediaDir, cfg.Server.BaseURL, cfg.Server.MediaURL)
	r.Static(strings.TrimRight(cfg.Server.MediaURL, "/"), cfg.Server.MediaDir)

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"service": "foodgram",
			})
		})

		// Registration, tokens and the current user
		auth.NewHandler(db).RegisterRoutes(api)

		users.NewHandler(db, storage).RegisterRoutes(api.Group("/users"))
		tags.NewHandler(db).RegisterRoutes(api.Group("/tags"))
		ingredients.NewHandler(db).RegisterRoutes(api.Group("/ingredients"))
		recipes.NewHandler(db, storage).RegisterRoutes(api.Group("/recipes"))

		adminGroup := api.Group("/admin")
		adminGroup.Use(auth.AuthMiddleware(), auth.RequireAdmin())
		admin.NewHandler(db).RegisterRoutes(adminGroup)
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("starting Foodgram server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

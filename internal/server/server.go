package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"bakery/storefront/internal/checkout"
	"bakery/storefront/internal/config"
	"bakery/storefront/internal/domain"
	"bakery/storefront/internal/state"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

// Storefront is what the HTTP layer needs from the service
type Storefront interface {
	Snapshot(ctx context.Context) (*domain.Catalog, error)
	Revalidate(ctx context.Context, documentType, documentID string) ([]string, error)
	Checkout(ctx context.Context, sessionID string, validation domain.CheckoutValidation) (*checkout.Order, error)
	Formatter() *checkout.Formatter
}

type Server struct {
	cfg           *config.Config
	storefront    Storefront
	sessions      state.SessionStore
	sessionCookie *SessionManager
	limiter       RateLimiter
	money         *checkout.MoneyFormatter
	router        *gin.Engine
}

// New builds the router. limiter may be nil to disable rate limiting.
func New(cfg *config.Config, storefront Storefront, sessions state.SessionStore, limiter RateLimiter) (*Server, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		cfg:           cfg,
		storefront:    storefront,
		sessions:      sessions,
		sessionCookie: NewSessionManager(cfg.Session),
		limiter:       limiter,
		money:         storefront.Formatter().Money(),
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	corsCfg := cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
	}
	router.Use(cors.New(corsCfg))
	router.SetHTMLTemplate(tmpl)

	s.router = router
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.health)
	s.router.POST("/api/revalidate", s.revalidate)

	pages := s.router.Group("/", s.sessionCookie.Middleware())
	pages.GET("/", s.homePage)
	pages.GET("/menu", s.menuPage)
	pages.GET("/menu/:slug", s.categoryPage)
	pages.GET("/cart", s.cartPage)

	api := s.router.Group("/api", s.sessionCookie.Middleware())
	if s.limiter != nil {
		api.Use(RateLimit(s.limiter))
	}
	api.GET("/menu", s.menuJSON)
	api.GET("/cart", s.getCart)
	api.POST("/cart/items", s.addItem)
	api.POST("/cart/items/:id/increment", s.incrementItem)
	api.POST("/cart/items/:id/decrement", s.decrementItem)
	api.DELETE("/cart/items/:id", s.removeItem)
	api.DELETE("/cart", s.clearCart)
	api.POST("/checkout", s.checkout)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("🚀 Storefront listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("🛑 Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).Round(time.Microsecond),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}

// abortInternal logs err and answers with a generic 500
func abortInternal(c *gin.Context, msg string, err error) {
	log.Errorf("❌ %s: %v", msg, err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

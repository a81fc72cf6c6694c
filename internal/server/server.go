package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mareon-hq/mareon-backend/internal/common"
	"github.com/mareon-hq/mareon-backend/internal/documents"
	"github.com/mareon-hq/mareon-backend/internal/pubsub"
)

// Server wires the HTTP surface: the push webhook, the upload-initiation
// endpoint, and a health probe.
type Server struct {
	cfg    common.ServerConfig
	engine *gin.Engine
	logger *slog.Logger
}

func New(
	cfg common.ServerConfig,
	dispatcher *pubsub.Dispatcher,
	uploads *documents.UploadService,
	verifier IdentityVerifier,
	logger *slog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestID())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	webhooks := NewWebhookHandler(dispatcher, logger)
	engine.POST("/webhooks/pubsub", webhooks.HandlePush)

	api := engine.Group("/api/v1", AuthRequired(verifier, logger))
	api.POST("/documents/uploads", initiateUploadRoute(uploads, logger))

	return &Server{cfg: cfg, engine: engine, logger: logger}
}

// requestID tags every request with an id, honoring one forwarded by the
// gateway, and echoes it back in the response.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func initiateUploadRoute(uploads *documents.UploadService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth, ok := authFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req documents.InitiateUploadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		resp, err := uploads.InitiateUpload(c.Request.Context(), auth, req)
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		if err != nil {
			logger.Error("initiate upload failed", "org_id", auth.OrgID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

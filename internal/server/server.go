package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/inkwellhq/inkwell-backend/internal/logger"
	"github.com/inkwellhq/inkwell-backend/internal/sse"
)

// Server exposes the health check and the SSE stream. Product routing stays
// out of this process; compose, versioning and suggestions are consumed as
// plain services.
type Server struct {
	Engine *gin.Engine
	log    *logger.Logger
	hub    *sse.SSEHub
}

func NewServer(log *logger.Logger, hub *sse.SSEHub) *Server {
	router := gin.Default()
	s := &Server{Engine: router, log: log.With("component", "Server"), hub: hub}

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/sse/stream", s.stream)

	return s
}

// stream subscribes the caller to one project channel and blocks until the
// client disconnects.
func (s *Server) stream(c *gin.Context) {
	projectID, err := uuid.Parse(c.Query("project_id"))
	if err != nil || projectID == uuid.Nil {
		c.String(http.StatusBadRequest, "invalid project_id")
		return
	}
	client := s.hub.NewSSEClient()
	s.hub.AddChannel(client, projectID.String())
	s.hub.ServeHTTP(c.Writer, c.Request, client)
}

// Run serves until ctx is cancelled, then drains with a short shutdown grace
// period.
func (s *Server) Run(ctx context.Context, address string) error {
	srv := &http.Server{Addr: address, Handler: s.Engine}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("HTTP server listening", "address", address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

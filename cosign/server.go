package cosign

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/decred/slog"
	"github.com/gin-gonic/gin"
)

// maxRequestSize bounds a mint request body. Content is base64 in JSON.
const maxRequestSize = 2*MaxContentSize + 64*1024

// Server exposes a Minter over HTTP.
type Server struct {
	engine *gin.Engine
	minter *Minter
	log    slog.Logger
}

// NewServer wires the co-signer routes.
func NewServer(minter *Minter, log slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	if log == nil {
		log = slog.Disabled
	}

	s := &Server{
		engine: gin.New(),
		minter: minter,
		log:    log,
	}
	s.engine.Use(s.recovery(), s.logger())

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mintFee": s.minter.MintFee()})
	})
	s.engine.POST(MintPath, s.handleMint)

	return s
}

// Engine returns the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Infof("Co-signer listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleMint(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestSize)

	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error()})
		return
	}

	order, err := s.minter.Mint(c.Request.Context(), &req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, order)
	case IsClientError(err):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, ErrNoAuthority):
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		s.log.Errorf("Mint for %s failed: %v", req.OrdinalAddress, err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debugf("[API] %s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Errorf("[API] Panic recovered: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
			}
		}()
		c.Next()
	}
}

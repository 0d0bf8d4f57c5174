// Package api exposes one blockchain over HTTP. The server is the single
// writer of the chain: every request goes through its lock, so mining and
// queueing never overlap with reads.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/luca-patrignani/pow-ledger/ledger"
)

const shutdownTimeout = 5 * time.Second

// Server serializes access to a blockchain and serves it over HTTP.
type Server struct {
	mu     sync.RWMutex
	chain  *ledger.Blockchain
	logger *slog.Logger
	engine *gin.Engine
}

// NewServer creates a server for chain. The chain must not be used
// elsewhere while the server is running.
func NewServer(chain *ledger.Blockchain, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		chain:  chain,
		logger: logger,
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/chain", s.getChainHandler())
	s.engine.GET("/valid", s.getValidHandler())
	// "latest" is accepted in place of an index.
	s.engine.GET("/blocks/:index", s.getBlockHandler())
	s.engine.GET("/transactions/pending", s.getPendingHandler())
	s.engine.POST("/transactions", s.postTransactionHandler())
	s.engine.POST("/mine", s.postMineHandler())
	s.engine.GET("/balances/:address", s.getBalanceHandler())
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown failed: %w", err)
	}
	s.logger.Info("api stopped")
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

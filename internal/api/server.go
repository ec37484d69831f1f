// Package api serves the expense JSON API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	applog "github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/log"
)

// NewRouter builds the gin engine with every API route registered.
func NewRouter(service ExpenseService, allowedOrigins []string, logger *applog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger), CORSMiddleware(allowedOrigins))

	h := NewHandler(service)
	r.GET("/", h.Root)
	r.GET("/healthz", h.Health)
	r.POST("/expenses", h.CreateExpense)
	r.GET("/expenses", h.ListExpenses)
	r.GET("/expenses/categories", h.Categories)

	return r
}

type Server struct {
	httpServer *http.Server
	logger     *applog.Logger
}

func NewServer(addr string, service ExpenseService, allowedOrigins []string, logger *applog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(service, allowedOrigins, logger),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// ListenAndServe blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Expense API listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

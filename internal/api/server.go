package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Mao1229/moemail/internal/metrics"
	"github.com/Mao1229/moemail/internal/ports"
	"github.com/Mao1229/moemail/internal/usecase"
)

// Deps carries the wired usecases; cmd builds them, tests inject fakes.
type Deps struct {
	Driver    usecase.Driver
	Processor *usecase.Processor
	History   usecase.History
	Users     ports.UserContext
}

type Server struct {
	router *chi.Mux
}

func NewServer(d Deps) *Server {
	h := &BatchAPI{
		Driver:    d.Driver,
		Processor: d.Processor,
		History:   d.History,
		Users:     d.Users,
	}

	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/batch", func(r chi.Router) {
		r.Post("/create", h.handleCreate)
		r.Post("/process", h.handleProcess)
		r.Get("/status/{taskID}", h.handleStatus)
		r.Get("/download/{taskID}", h.handleDownload)
		r.Get("/history", h.handleHistory)
	})

	return &Server{router: r}
}

// Handler returns the fully wrapped HTTP handler, for tests and for Run.
func (s *Server) Handler() http.Handler {
	return chainMiddleware(
		s.router,
		recoverHandler,
		loggerHandler(func(w http.ResponseWriter, r *http.Request) bool { return r.URL.Path == "/health" }),
		realIPHandler,
		requestIDHandler,
		corsHandler,
	)
}

// Run method of the Server struct runs the HTTP server on the specified port.
// It shuts down gracefully on SIGINT/SIGTERM.
func (s *Server) Run(port int) {
	addr := fmt.Sprintf(":%d", port)

	httpServer := http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Fatal().Err(err).Msg("Server forced to shutdown")
		}

		close(done)
	}()

	log.Info().Msgf("server serving on port %d", port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Failed to listen and serve")
	}

	<-done
	log.Info().Msg("Server stopped")
}

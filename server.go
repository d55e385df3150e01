package forge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// Server exposes the previews directory and a build endpoint over HTTP, for
// collaborators that talk to the engine out of process. Build failures reach
// clients as a generic "generation failed"; the classified diagnostics stay
// in the server logs.
type Server struct {
	builder *Builder
	cfg     *Config
	log     *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewServer(builder *Builder, cfg *Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		builder:  builder,
		cfg:      cfg,
		log:      log,
		limiters: map[string]*rate.Limiter{},
	}
}

func (s *Server) Serve() error {
	return http.ListenAndServe(fmt.Sprintf(":%d", s.cfg.Port), s.routes())
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.rateLimit)
	r.Post("/build", s.handleBuild)
	r.Get("/previews/{name}", s.handlePreview)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var order Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil || order.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order"})
		return
	}

	built, err := s.builder.Build(r.Context(), &order)
	if err != nil {
		if errors.Is(err, ErrQueueFull) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "busy, retry later"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "generation failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": path.Base(built)})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	name := path.Base(chi.URLParam(r, "name"))
	f, err := os.ReadFile(path.Join(s.cfg.PreviewsDir, name))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Add("Content-type", mime.TypeByExtension(filepath.Ext(name)))
	w.Write(f)
}

// rateLimit keeps a single chatty client from monopolizing the build queue.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		s.mu.Lock()
		lim, ok := s.limiters[host]
		if !ok {
			lim = rate.NewLimiter(rate.Limit(5), 10)
			s.limiters[host] = lim
		}
		s.mu.Unlock()
		if !lim.Allow() {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rzbill/ringlog/internal/runtime"
	"github.com/rzbill/ringlog/internal/server/http/controllers"
	"github.com/rzbill/ringlog/pkg/log"
)

// Server is the diagnostics HTTP API.
type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	logger log.Logger
}

// New builds the server and registers all routes.
func New(rt *runtime.Runtime, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	mux := http.NewServeMux()
	controllers.NewControllerRegistry(rt).RegisterAllRoutes(mux)
	s := &Server{rt: rt, logger: logger.WithComponent("http")}
	s.srv = &http.Server{
		Handler:           s.logRequests(cors(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          log.ToStdLogger(s.logger),
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http listening", log.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", log.Str("method", r.Method), log.Str("path", r.URL.Path), log.Duration("took", time.Since(start)))
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

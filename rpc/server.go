package rpc

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"
)

// Server is the HTTP control-surface server.
type Server struct {
	handler   *Handler
	addr      string
	authToken string // empty -> no auth required
	srv       *http.Server
	ln        net.Listener
}

// NewServer creates a Server on addr. If authToken is non-empty, every
// request must carry a matching "Authorization: Bearer <token>" header.
func NewServer(addr string, handler *Handler, authToken string) *Server {
	s := &Server{handler: handler, addr: addr, authToken: authToken}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.wrap(handler.status))
	mux.HandleFunc("GET /chain/status", s.wrap(handler.chainStatus))
	mux.HandleFunc("GET /chain/blocks", s.wrap(handler.chainBlocks))
	mux.HandleFunc("GET /chain/block/{index}", s.wrap(handler.chainBlock))
	mux.HandleFunc("POST /tasks/claim", s.wrap(handler.tasksClaim))
	mux.HandleFunc("POST /tasks/complete", s.wrap(handler.tasksComplete))
	mux.HandleFunc("GET /peers", s.wrap(handler.peers))
	mux.HandleFunc("POST /admin/clear-suspect", s.wrap(handler.clearSuspect))
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start binds the port synchronously (so callers know immediately if binding
// fails) then serves requests in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("[rpc] server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listener's address. Useful when started on ":0".
func (s *Server) Addr() net.Addr {
	if s.ln != nil {
		return s.ln.Addr()
	}
	return nil
}

// Stop gracefully shuts down the HTTP server, waiting up to 5 seconds for
// in-flight requests to complete.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// wrap applies bearer-token auth and a request body size cap to each route.
func (s *Server) wrap(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" && r.Header.Get("Authorization") != "Bearer "+s.authToken {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 1*1024*1024)
		h(w, r)
	}
}

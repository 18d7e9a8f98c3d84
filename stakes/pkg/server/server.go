package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
)

// Server serves the metrics of the latest snapshot over HTTP while refreshing them in the
// background.
type Server struct {
	log *slog.Logger
	cfg Config

	view    *SnapshotView
	handler *Handler

	httpSrv      *http.Server
	mu           sync.Mutex
	shutdownOnce sync.Once
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	view, err := NewSnapshotView(cfg)
	if err != nil {
		return nil, err
	}
	return &Server{
		log:     cfg.Logger,
		cfg:     cfg,
		view:    view,
		handler: NewHandler(cfg.Logger, cfg, view),
	}, nil
}

func (s *Server) View() *SnapshotView {
	return s.view
}

// Start runs the refresh loop and the HTTP server until ctx is done or either fails. The
// returned channel is closed once both have stopped.
func (s *Server) Start(ctx context.Context, cancel context.CancelFunc, listener net.Listener) <-chan error {
	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer cancel()
		if err := s.view.Run(ctx); err != nil {
			s.log.Error("server: refresh loop failed", "error", err)
			errCh <- err
		}
	}()

	go func() {
		defer wg.Done()
		defer cancel()
		if err := s.Serve(ctx, listener); err != nil {
			s.log.Error("server: exited with error", "error", err)
			errCh <- err
		} else {
			s.log.Info("server: stopped")
		}
	}()

	go func() {
		wg.Wait()
		close(errCh)
	}()

	return errCh
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	mux := http.NewServeMux()
	s.handler.Register(mux)

	httpSrv := &http.Server{Handler: mux}
	s.mu.Lock()
	s.httpSrv = httpSrv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	s.log.Info("server: listening", "address", listener.Addr().String())
	err := httpSrv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) shutdown() {
	s.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.mu.Lock()
		httpSrv := s.httpSrv
		s.mu.Unlock()
		if httpSrv != nil {
			_ = httpSrv.Shutdown(ctx)
		}
	})
}

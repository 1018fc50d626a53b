package serve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

// Server hosts a model behind the /invocations and /ping contract.
type Server struct {
	modelDir    string
	handler     Handler
	port        int
	watch       bool
	freezeAfter time.Duration
	logger      *slog.Logger

	mu          sync.RWMutex
	model       any
	lastRequest time.Time
}

// Config holds configuration for a serving container.
type Config struct {
	// ModelDir is the directory holding the model bundle, usually from
	// the SM_MODEL_DIR environment variable.
	ModelDir string

	// Handler customizes loading, decoding, predicting, and encoding.
	// Zero-value fields fall back to the linear handler.
	Handler Handler

	Port int

	// Watch reloads the model when the bundle changes on disk.
	Watch bool

	// FreezeAfter simulates serverless behavior: an endpoint idle for
	// longer than this unloads its model, and the next request gets a
	// 503 while the model reloads. Zero disables freezing.
	FreezeAfter time.Duration

	Logger *slog.Logger
}

// NewServer creates a serving container. The model is not loaded until
// Load or Serve is called.
func NewServer(cfg Config) *Server {
	h := cfg.Handler
	builtin := LinearHandler()
	if h.ModelFn == nil {
		h.ModelFn = builtin.ModelFn
	}
	if h.InputFn == nil {
		h.InputFn = builtin.InputFn
	}
	if h.PredictFn == nil {
		h.PredictFn = builtin.PredictFn
	}
	if h.OutputFn == nil {
		h.OutputFn = builtin.OutputFn
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		modelDir:    cfg.ModelDir,
		handler:     h,
		port:        cfg.Port,
		watch:       cfg.Watch,
		freezeAfter: cfg.FreezeAfter,
		logger:      logger,
	}
}

// Load reads the model bundle into memory.
func (s *Server) Load() error {
	m, err := s.handler.ModelFn(s.modelDir)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.model = m
	s.lastRequest = time.Now()
	s.mu.Unlock()
	s.logger.Info("model loaded", "model_dir", s.modelDir)
	return nil
}

// unload drops the model, forcing a cold start on the next request.
func (s *Server) unload() {
	s.mu.Lock()
	s.model = nil
	s.mu.Unlock()
}

// Router builds the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewMux()
	r.Use(middleware.Recoverer)
	r.Get("/ping", s.handlePing)
	r.Post("/invocations", s.handleInvocations)
	return r
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	loaded := s.model != nil
	s.mu.RUnlock()
	if !loaded {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleInvocations(w http.ResponseWriter, r *http.Request) {
	m, cold := s.currentModel()
	if cold {
		// Cold start: reload in the background and tell the client to
		// retry, the way a scaled-to-zero serverless endpoint behaves.
		go func() {
			if err := s.Load(); err != nil {
				s.logger.Error("model reload failed", "error", err)
			}
		}()
		s.logger.Info("cold start, asking client to retry")
		http.Error(w, "model is loading, retry shortly", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	input, err := s.handler.InputFn(body, r.Header.Get("Content-Type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	output, err := s.handler.PredictFn(m, input)
	if err != nil {
		s.logger.Error("prediction failed", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, contentType, err := s.handler.OutputFn(output)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// currentModel returns the loaded model, freezing it first when the
// endpoint has been idle past the freeze window.
func (s *Server) currentModel() (m any, cold bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model != nil && s.freezeAfter > 0 && time.Since(s.lastRequest) > s.freezeAfter {
		s.logger.Info("endpoint idle past freeze window, unloading model",
			"idle", time.Since(s.lastRequest))
		s.model = nil
	}
	s.lastRequest = time.Now()
	if s.model == nil {
		return nil, true
	}
	return s.model, false
}

// Serve loads the model and blocks serving HTTP until the context is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Load(); err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting serving container", "addr", addr, "model_dir", s.modelDir)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		eg.Go(func() error {
			return s.watchModelDir(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Debug("shutting down serving container...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// watchModelDir reloads the model when the bundle changes on disk.
func (s *Server) watchModelDir(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.modelDir); err != nil {
		s.logger.Error("failed to watch model directory", "error", err)
		// Continue without watching.
		<-ctx.Done()
		return nil
	}

	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Info("model bundle changed, reloading", "file", event.Name)
				if err := s.Load(); err != nil {
					s.logger.Error("model reload failed", "error", err)
				}
			})

		case err := <-watcher.Errors:
			s.logger.Error("watcher error", "error", err)
		}
	}
}

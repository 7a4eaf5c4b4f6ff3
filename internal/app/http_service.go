package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/housekeepd/internal/config"
	"github.com/dokzlo13/housekeepd/internal/housekeeping"
	luart "github.com/dokzlo13/housekeepd/internal/lua"
)

const maxSceneArgsBytes = 1 << 20

type pinger interface {
	PingContext(ctx context.Context) error
}

type scheduleInspector interface {
	Inspect(ctx context.Context) (housekeeping.Schedule, error)
}

type sceneRunner interface {
	Scenes() []string
	RunScene(ctx context.Context, name, trigger string, args map[string]any) error
}

// HTTPService serves health checks, metrics, the pending schedule and
// scene triggers.
type HTTPService struct {
	cfg     *config.Config
	handler http.Handler
	server  *http.Server
}

// NewHTTPService creates a new HTTPService.
func NewHTTPService(cfg *config.Config, db pinger, keeper scheduleInspector, scenes sceneRunner, metrics http.Handler) *HTTPService {
	return &HTTPService{
		cfg:     cfg,
		handler: newRouter(db, keeper, scenes, metrics, cfg.Housekeeping.Slot),
	}
}

// Start begins the HTTP server if enabled.
func (s *HTTPService) Start(ctx context.Context) {
	if !s.cfg.HTTP.Enabled {
		log.Debug().Msg("HTTP server disabled")
		return
	}

	go s.run(ctx)
}

func (s *HTTPService) run(ctx context.Context) {
	addr := s.cfg.HTTP.Addr()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
	}

	log.Info().Str("addr", addr).Msg("Starting HTTP server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("HTTP server error")
	}
}

// pendingTask is one row of GET /schedule
type pendingTask struct {
	Target string `json:"target"`
	Time   int64  `json:"time"`
	Due    string `json:"due"`
	Cmd    string `json:"cmd"`
	Args   []any  `json:"args,omitempty"`
}

func newRouter(db pinger, keeper scheduleInspector, scenes sceneRunner, metrics http.Handler, slot string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
	})

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /metrics", metrics)

	// Read-only: a corrupted schedule is reported, the next run repairs it
	mux.HandleFunc("GET /schedule", func(w http.ResponseWriter, r *http.Request) {
		sched, err := keeper.Inspect(r.Context())
		if housekeeping.IsCorrupted(err) {
			writeJSON(w, http.StatusConflict, map[string]any{"slot": slot, "status": "corrupted", "error": err.Error()})
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to load schedule")
			writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "error": err.Error()})
			return
		}

		pending := make([]pendingTask, 0, len(sched))
		for _, e := range sched.Entries() {
			pending = append(pending, pendingTask{
				Target: string(e.Target),
				Time:   e.Task.Due,
				Due:    e.Task.DueAt().UTC().Format(time.RFC3339),
				Cmd:    e.Task.Cmd,
				Args:   e.Task.Command().Args(),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"slot": slot, "pending": pending})
	})

	mux.HandleFunc("GET /scenes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"scenes": scenes.Scenes()})
	})

	mux.HandleFunc("POST /scenes/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSceneArgsBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "error": "failed to read request body"})
			return
		}

		var args map[string]any
		if len(body) > 0 {
			if err := json.Unmarshal(body, &args); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "error": "body must be a JSON object"})
				return
			}
		}

		log.Debug().Str("scene", name).Int("body_len", len(body)).Msg("Received scene trigger")

		err = scenes.RunScene(r.Context(), name, luart.TriggerHTTP, args)
		switch {
		case errors.Is(err, luart.ErrUnknownScene):
			writeJSON(w, http.StatusNotFound, map[string]any{"status": "error", "error": err.Error()})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "error": err.Error()})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "scene": name})
		}
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

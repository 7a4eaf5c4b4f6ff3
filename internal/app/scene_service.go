package app

import (
	"context"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/housekeepd/internal/config"
	luart "github.com/dokzlo13/housekeepd/internal/lua"
)

// SceneService owns the Lua runtime and the scene triggers.
type SceneService struct {
	cfg     *config.Config
	Runtime *luart.Runtime
	scripts *luart.ScriptCache
	cron    *cron.Cron
}

// NewSceneService creates a new SceneService. Relative scene files are
// resolved against the scenes directory.
func NewSceneService(cfg *config.Config, deps luart.RuntimeDeps, c *cron.Cron) *SceneService {
	if deps.Scripts == nil {
		deps.Scripts = luart.NewScriptCache()
	}

	scenes := make([]luart.Scene, 0, len(cfg.Scenes.Definitions))
	for _, def := range cfg.Scenes.Definitions {
		scenes = append(scenes, luart.Scene{Name: def.Name, Path: scenePath(cfg.Scenes.Dir, def.File)})
	}

	return &SceneService{
		cfg:     cfg,
		Runtime: luart.NewRuntime(deps, scenes),
		scripts: deps.Scripts,
		cron:    c,
	}
}

func scenePath(dir, file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(dir, file)
}

// StartWorker starts the Lua worker goroutine only. Used by one-shot tools.
func (s *SceneService) StartWorker(ctx context.Context) {
	go s.Runtime.Run(ctx)
}

// Start begins the Lua worker, registers cron triggers and optionally
// watches the scenes directory.
func (s *SceneService) Start(ctx context.Context) error {
	s.StartWorker(ctx)

	for _, def := range s.cfg.Scenes.Definitions {
		if def.Cron == "" {
			continue
		}
		name := def.Name
		if _, err := s.cron.AddFunc(def.Cron, func() {
			// Failures are logged and recorded by the runtime
			_ = s.Runtime.RunScene(ctx, name, luart.TriggerCron, nil)
		}); err != nil {
			return err
		}
		log.Info().Str("scene", name).Str("cron", def.Cron).Msg("Scene trigger scheduled")
	}

	if s.cfg.Scenes.Watch {
		go func() {
			if err := s.scripts.Watch(ctx, s.cfg.Scenes.Dir); err != nil {
				log.Error().Err(err).Msg("Scene watcher stopped")
			}
		}()
	}
	return nil
}

// Close stops the runtime.
func (s *SceneService) Close() {
	if s.Runtime != nil {
		s.Runtime.Close()
	}
}

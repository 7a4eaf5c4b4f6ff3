// Package lua runs scene scripts. Every run gets its own Lua state with the
// housekeeping, globals, device, timewindow and log modules preloaded.
package lua

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/housekeepd/internal/device"
	"github.com/dokzlo13/housekeepd/internal/globals"
	"github.com/dokzlo13/housekeepd/internal/lua/modules"
	"github.com/dokzlo13/housekeepd/internal/timewindow"
)

var (
	// ErrRuntimeClosed is returned when the Lua runtime is closed
	ErrRuntimeClosed = errors.New("lua runtime closed")
	// ErrUnknownScene is returned for a scene name that is not configured
	ErrUnknownScene = errors.New("unknown scene")
)

// Trigger names recorded with each scene run
const (
	TriggerCron = "cron"
	TriggerHTTP = "http"
	TriggerCLI  = "cli"
)

// LuaWork represents work executed by the runtime worker
type LuaWork func(ctx context.Context)

// SceneObserver is told about every finished scene run
type SceneObserver interface {
	SceneRun(ctx context.Context, name, trigger string, err error)
}

// Scene is a named script
type Scene struct {
	Name string
	Path string
}

// RuntimeDeps groups all dependencies needed by the Lua runtime
type RuntimeDeps struct {
	Keeper    modules.Housekeeper
	Globals   globals.Store
	Devices   device.Dispatcher
	Windows   *timewindow.Evaluator
	Scripts   *ScriptCache
	Observers []SceneObserver
}

// Runtime runs scenes one at a time on a single worker goroutine
type Runtime struct {
	deps   RuntimeDeps
	scenes map[string]string

	workQueue chan LuaWork

	// Closing this channel signals senders to stop
	closing   chan struct{}
	closeOnce sync.Once
}

// NewRuntime creates a new Lua runtime
func NewRuntime(deps RuntimeDeps, scenes []Scene) *Runtime {
	if deps.Scripts == nil {
		deps.Scripts = NewScriptCache()
	}
	if deps.Windows == nil {
		deps.Windows = timewindow.NewEvaluator(nil, time.UTC)
	}

	r := &Runtime{
		deps:      deps,
		scenes:    make(map[string]string, len(scenes)),
		workQueue: make(chan LuaWork, 100),
		closing:   make(chan struct{}),
	}
	for _, sc := range scenes {
		r.scenes[sc.Name] = sc.Path
	}
	return r
}

// Scenes returns the configured scene names, sorted
func (r *Runtime) Scenes() []string {
	names := make([]string, 0, len(r.scenes))
	for name := range r.scenes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasScene reports whether name is configured
func (r *Runtime) HasScene(name string) bool {
	_, ok := r.scenes[name]
	return ok
}

// Close signals the runtime to stop accepting new work
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		close(r.closing)
	})
}

// RunScene queues the scene and waits for it to finish. args is exposed to
// the script as the global table `args`.
func (r *Runtime) RunScene(ctx context.Context, name, trigger string, args map[string]any) error {
	path, ok := r.scenes[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownScene, name)
	}

	start := time.Now()
	err := r.doSyncWithResult(ctx, func(ctx context.Context) error {
		return r.execute(ctx, name, path, args)
	})

	event := log.Info()
	if err != nil {
		event = log.Error().Err(err)
	}
	event.
		Str("scene", name).
		Str("trigger", trigger).
		Dur("took", time.Since(start)).
		Msg("Scene finished")

	for _, o := range r.deps.Observers {
		o.SceneRun(ctx, name, trigger, err)
	}
	return err
}

// doSyncWithResult queues work, waits for space, and waits for the result
func (r *Runtime) doSyncWithResult(ctx context.Context, work func(context.Context) error) error {
	done := make(chan error, 1)
	wrapped := LuaWork(func(c context.Context) {
		done <- work(c)
	})

	select {
	case <-r.closing:
		return ErrRuntimeClosed
	default:
	}

	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case r.workQueue <- wrapped:
	}

	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Run starts the worker goroutine. Exits when ctx is cancelled or the runtime
// is closed.
func (r *Runtime) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.closing:
			return
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		}
	}
}

// executeWork runs a single work item with panic recovery
func (r *Runtime) executeWork(ctx context.Context, work LuaWork) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Msg("Lua work panicked - worker continuing")
		}
	}()
	work(ctx)
}

// execute runs one scene in a fresh state
func (r *Runtime) execute(ctx context.Context, name, path string, args map[string]any) (err error) {
	proto, err := r.deps.Scripts.Load(path)
	if err != nil {
		return err
	}

	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("scene %s panicked: %v", name, rec)
		}
	}()

	r.registerModules(L, name)

	if args == nil {
		args = map[string]any{}
	}
	L.SetGlobal("args", modules.MapToTable(L, args))

	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, 0, nil); err != nil {
		return fmt.Errorf("scene %s: %w", name, err)
	}
	return nil
}

// registerModules preloads all Lua modules
func (r *Runtime) registerModules(L *lua.LState, scene string) {
	L.PreloadModule("log", modules.NewLogModule(scene).Loader)
	L.PreloadModule("housekeeping", modules.NewHousekeepingModule(r.deps.Keeper).Loader)
	L.PreloadModule("globals", modules.NewGlobalsModule(r.deps.Globals).Loader)
	L.PreloadModule("device", modules.NewDeviceModule(r.deps.Devices).Loader)
	L.PreloadModule("timewindow", modules.NewTimeWindowModule(r.deps.Windows).Loader)
}

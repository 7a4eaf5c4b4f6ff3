package lua

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// ScriptCache keeps compiled scene scripts. Entries are dropped when the
// file changes on disk so the next run recompiles it.
type ScriptCache struct {
	mu     sync.RWMutex
	protos map[string]*lua.FunctionProto
}

// NewScriptCache creates an empty cache
func NewScriptCache() *ScriptCache {
	return &ScriptCache{protos: make(map[string]*lua.FunctionProto)}
}

// Load returns the compiled script at path, compiling it on first use
func (c *ScriptCache) Load(path string) (*lua.FunctionProto, error) {
	key := cacheKey(path)

	c.mu.RLock()
	proto, ok := c.protos[key]
	c.mu.RUnlock()
	if ok {
		return proto, nil
	}

	proto, err := compile(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.protos[key] = proto
	c.mu.Unlock()

	log.Debug().Str("path", path).Msg("Lua script compiled")
	return proto, nil
}

// Invalidate drops the cached script for path
func (c *ScriptCache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.protos, cacheKey(path))
	c.mu.Unlock()
}

// Watch invalidates scripts in dir as they change. Blocks until ctx is done.
func (c *ScriptCache) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	log.Info().Str("dir", dir).Msg("Watching scene scripts for changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				c.Invalidate(ev.Name)
				log.Info().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("Scene script changed")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("dir", dir).Msg("Scene watcher error")
		}
	}
}

func compile(path string) (*lua.FunctionProto, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()

	chunk, err := parse.Parse(bufio.NewReader(f), path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return nil, fmt.Errorf("failed to compile script: %w", err)
	}
	return proto, nil
}

func cacheKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

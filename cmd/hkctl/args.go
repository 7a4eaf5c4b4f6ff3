package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dokzlo13/housekeepd/internal/housekeeping"
)

// parseTargetList splits "4,5,AWAY_MODE" into targets.
func parseTargetList(s string) ([]housekeeping.Target, error) {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return housekeeping.ParseTargets(names)
}

// parseValue turns a command line word into a number, boolean or string.
func parseValue(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	return s
}

// parseCommand builds a command from its name and up to two arguments.
func parseCommand(name string, args []string) (housekeeping.Command, error) {
	if len(args) > 2 {
		return nil, fmt.Errorf("%w: at most two arguments, got %d", housekeeping.ErrInvalidCommand, len(args))
	}
	cmd := []any{name}
	for _, a := range args {
		cmd = append(cmd, parseValue(a))
	}
	return housekeeping.ParseCommand(cmd)
}

// parseSceneArgs turns key=value pairs into scene arguments.
func parseSceneArgs(pairs []string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		args[k] = parseValue(v)
	}
	return args, nil
}

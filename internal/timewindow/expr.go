// Package timewindow evaluates daily time expressions such as "22:15" or
// "@sunset - 30m" and windows between two of them.
package timewindow

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dokzlo13/housekeepd/internal/geo"
)

// ErrNoLocation is returned when a sun-relative expression is evaluated
// without a configured location.
var ErrNoLocation = errors.New("sun-relative time needs geo coordinates")

// Base is the reference point of an expression
type Base int

const (
	BaseFixed Base = iota
	BaseDawn
	BaseSunrise
	BaseNoon
	BaseSunset
	BaseDusk
)

var bases = map[string]Base{
	"dawn":    BaseDawn,
	"sunrise": BaseSunrise,
	"noon":    BaseNoon,
	"sunset":  BaseSunset,
	"dusk":    BaseDusk,
}

// Expr is a parsed time-of-day expression
type Expr struct {
	Raw    string
	Base   Base
	Hour   int // For fixed times (0-23)
	Minute int // For fixed times (0-59)
	Offset time.Duration
}

var (
	// "@dawn", "@sunset", "@noon + 30m", "@sunrise - 1h30m"
	astroPattern = regexp.MustCompile(`^@(\w+)\s*(?:([+-])\s*(\S+))?$`)
	// "22:15", "06:30"
	fixedPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// ParseExpr parses a time expression string
func ParseExpr(expr string) (*Expr, error) {
	expr = strings.TrimSpace(expr)

	if m := fixedPattern.FindStringSubmatch(expr); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 {
			return nil, fmt.Errorf("invalid hour: %d", hour)
		}
		if minute > 59 {
			return nil, fmt.Errorf("invalid minute: %d", minute)
		}
		return &Expr{Raw: expr, Base: BaseFixed, Hour: hour, Minute: minute}, nil
	}

	m := astroPattern.FindStringSubmatch(expr)
	if m == nil {
		return nil, fmt.Errorf("invalid time expression: %q", expr)
	}

	base, ok := bases[strings.ToLower(m[1])]
	if !ok {
		return nil, fmt.Errorf("unknown astronomical time: %s", m[1])
	}

	var offset time.Duration
	if m[3] != "" {
		d, err := time.ParseDuration(m[3])
		if err != nil {
			return nil, fmt.Errorf("invalid offset in %q: %w", expr, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("invalid offset in %q: sign goes before the duration", expr)
		}
		offset = d
		if m[2] == "-" {
			offset = -d
		}
	}

	return &Expr{Raw: expr, Base: base, Offset: offset}, nil
}

// IsFixed returns true if this is a fixed time expression
func (e *Expr) IsFixed() bool {
	return e.Base == BaseFixed
}

// String returns the original expression string
func (e *Expr) String() string {
	return e.Raw
}

// at returns the time of the expression on date's calendar day in tz
func (e *Expr) at(date time.Time, astro *geo.AstroTimes, tz *time.Location) (time.Time, error) {
	if e.IsFixed() {
		return time.Date(date.Year(), date.Month(), date.Day(), e.Hour, e.Minute, 0, 0, tz), nil
	}
	if astro == nil {
		return time.Time{}, ErrNoLocation
	}

	var base time.Time
	switch e.Base {
	case BaseDawn:
		base = astro.Dawn
	case BaseSunrise:
		base = astro.Sunrise
	case BaseNoon:
		base = astro.Noon
	case BaseSunset:
		base = astro.Sunset
	case BaseDusk:
		base = astro.Dusk
	}
	return base.Add(e.Offset), nil
}

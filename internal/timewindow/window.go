package timewindow

import (
	"fmt"
	"time"

	"github.com/dokzlo13/housekeepd/internal/geo"
)

// Window is a daily interval [Start, End). When End falls before Start the
// window wraps around midnight.
type Window struct {
	Start *Expr
	End   *Expr
}

// ParseWindow parses both ends of a window
func ParseWindow(start, end string) (Window, error) {
	s, err := ParseExpr(start)
	if err != nil {
		return Window{}, fmt.Errorf("window start: %w", err)
	}
	e, err := ParseExpr(end)
	if err != nil {
		return Window{}, fmt.Errorf("window end: %w", err)
	}
	return Window{Start: s, End: e}, nil
}

func (w Window) String() string {
	return w.Start.String() + " .. " + w.End.String()
}

// Evaluator resolves expressions in a timezone, using the calculator for
// sun-relative ones. The calculator may be nil when only fixed times are used.
type Evaluator struct {
	geo *geo.Calculator
	tz  *time.Location
}

// NewEvaluator creates an evaluator. A nil tz means the calculator's zone, or
// UTC without a calculator.
func NewEvaluator(calc *geo.Calculator, tz *time.Location) *Evaluator {
	if tz == nil {
		tz = time.UTC
		if calc != nil {
			tz = calc.Location().Timezone
		}
	}
	return &Evaluator{geo: calc, tz: tz}
}

// Timezone returns the evaluator's timezone
func (ev *Evaluator) Timezone() *time.Location {
	return ev.tz
}

// At returns the time of expr on the calendar day of date
func (ev *Evaluator) At(expr *Expr, date time.Time) (time.Time, error) {
	date = date.In(ev.tz)
	var astro *geo.AstroTimes
	if !expr.IsFixed() && ev.geo != nil {
		astro = ev.geo.Times(date)
	}
	return expr.at(date, astro, ev.tz)
}

// Contains reports whether t falls inside the window
func (ev *Evaluator) Contains(w Window, t time.Time) (bool, error) {
	start, err := ev.At(w.Start, t)
	if err != nil {
		return false, err
	}
	end, err := ev.At(w.End, t)
	if err != nil {
		return false, err
	}

	if !end.Before(start) {
		return !t.Before(start) && t.Before(end), nil
	}
	// Wraps midnight: inside from start until the end of the day, and from
	// the start of the day until end
	return !t.Before(start) || t.Before(end), nil
}

// Next finds the next occurrence of expr strictly after the given time
func (ev *Evaluator) Next(expr *Expr, after time.Time) (time.Time, error) {
	date := after.In(ev.tz)

	// Sun-relative offsets can push an occurrence onto a neighbouring day,
	// so start one day back
	for i := -1; i < 3; i++ {
		t, err := ev.At(expr, date.AddDate(0, 0, i))
		if err != nil {
			return time.Time{}, err
		}
		if t.After(after) {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no occurrence of %s after %s", expr, after)
}

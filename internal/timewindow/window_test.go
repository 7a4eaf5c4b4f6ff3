package timewindow

import (
	"errors"
	"testing"
	"time"

	"github.com/dokzlo13/housekeepd/internal/geo"
)

func TestParseExpr(t *testing.T) {
	tests := []struct {
		in      string
		base    Base
		hour    int
		minute  int
		offset  time.Duration
		wantErr bool
	}{
		{in: "22:15", base: BaseFixed, hour: 22, minute: 15},
		{in: "6:05", base: BaseFixed, hour: 6, minute: 5},
		{in: "@sunrise", base: BaseSunrise},
		{in: "@Sunset - 30m", base: BaseSunset, offset: -30 * time.Minute},
		{in: "@dusk+1h30m", base: BaseDusk, offset: 90 * time.Minute},
		{in: "@noon", base: BaseNoon},
		{in: "@dawn + 15m", base: BaseDawn, offset: 15 * time.Minute},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "@moonrise", wantErr: true},
		{in: "@sunset + soon", wantErr: true},
		{in: "@sunset + -5m", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseExpr(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseExpr(%q) expected error, got %+v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseExpr(%q) error = %v", tt.in, err)
			}
			if got.Base != tt.base || got.Hour != tt.hour || got.Minute != tt.minute || got.Offset != tt.offset {
				t.Errorf("ParseExpr(%q) = %+v", tt.in, got)
			}
		})
	}
}

func mustWindow(t *testing.T, start, end string) Window {
	t.Helper()
	w, err := ParseWindow(start, end)
	if err != nil {
		t.Fatalf("ParseWindow(%q, %q) error = %v", start, end, err)
	}
	return w
}

func TestEvaluator_Contains_Fixed(t *testing.T) {
	ev := NewEvaluator(nil, time.UTC)
	at := func(h, m int) time.Time { return time.Date(2024, 3, 10, h, m, 0, 0, time.UTC) }

	day := mustWindow(t, "08:00", "17:30")
	night := mustWindow(t, "22:00", "06:00")

	tests := []struct {
		name string
		w    Window
		t    time.Time
		want bool
	}{
		{"day_inside", day, at(12, 0), true},
		{"day_start_inclusive", day, at(8, 0), true},
		{"day_end_exclusive", day, at(17, 30), false},
		{"day_before", day, at(7, 59), false},
		{"night_late", night, at(23, 0), true},
		{"night_early", night, at(5, 59), true},
		{"night_midday", night, at(12, 0), false},
		{"night_end_exclusive", night, at(6, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.Contains(tt.w, tt.t)
			if err != nil {
				t.Fatalf("Contains() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Contains(%s, %s) = %v, want %v", tt.w, tt.t.Format("15:04"), got, tt.want)
			}
		})
	}
}

func TestEvaluator_Contains_Sun(t *testing.T) {
	calc, err := geo.NewCalculator("Berlin", 52.52, 13.405, "Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}
	ev := NewEvaluator(calc, nil)
	tz := ev.Timezone()

	dark := mustWindow(t, "@sunset", "@sunrise")

	midnight := time.Date(2024, 6, 21, 0, 30, 0, 0, tz)
	noon := time.Date(2024, 6, 21, 13, 0, 0, 0, tz)

	if in, err := ev.Contains(dark, midnight); err != nil || !in {
		t.Errorf("Contains(dark, 00:30) = %v, %v; want true", in, err)
	}
	if in, err := ev.Contains(dark, noon); err != nil || in {
		t.Errorf("Contains(dark, 13:00) = %v, %v; want false", in, err)
	}
}

func TestEvaluator_NoLocation(t *testing.T) {
	ev := NewEvaluator(nil, time.UTC)
	w := mustWindow(t, "@sunset", "23:00")

	if _, err := ev.Contains(w, time.Now()); !errors.Is(err, ErrNoLocation) {
		t.Errorf("Contains() error = %v, want ErrNoLocation", err)
	}
}

func TestEvaluator_Next(t *testing.T) {
	ev := NewEvaluator(nil, time.UTC)
	expr, _ := ParseExpr("07:00")

	before := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	got, err := ev.Next(expr, before)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if want := time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Next() = %v, want %v", got, want)
	}

	// Exactly at the occurrence rolls over to tomorrow
	got, _ = ev.Next(expr, time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC))
	if want := time.Date(2024, 3, 11, 7, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Next() = %v, want %v", got, want)
	}
}

// Package geo computes sun event times for a fixed location.
package geo

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// AstroTimes contains astronomical times for a day
type AstroTimes struct {
	Dawn     time.Time `json:"dawn"`
	Sunrise  time.Time `json:"sunrise"`
	Noon     time.Time `json:"noon"`
	Sunset   time.Time `json:"sunset"`
	Dusk     time.Time `json:"dusk"`
	Midnight time.Time `json:"midnight"`
}

// Location is a named point on earth with its timezone
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
	Timezone  *time.Location
}

// Calculator calculates astronomical times for one location
type Calculator struct {
	loc Location

	mu    sync.RWMutex
	cache map[string]*AstroTimes // by date
}

// NewCalculator creates a calculator for the given coordinates
func NewCalculator(name string, lat, lon float64, timezone string) (*Calculator, error) {
	tz, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("coordinates out of range: %f,%f", lat, lon)
	}

	log.Info().
		Str("name", name).
		Float64("lat", lat).
		Float64("lon", lon).
		Str("timezone", tz.String()).
		Msg("Geo calculator initialized")

	return &Calculator{
		loc:   Location{Name: name, Latitude: lat, Longitude: lon, Timezone: tz},
		cache: make(map[string]*AstroTimes),
	}, nil
}

// Location returns the configured location
func (c *Calculator) Location() Location {
	return c.loc
}

// Times returns astronomical times for the calendar day of date in the
// location's timezone
func (c *Calculator) Times(date time.Time) *AstroTimes {
	date = date.In(c.loc.Timezone)
	key := date.Format("2006-01-02")

	c.mu.RLock()
	cached, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	times := calculate(c.loc.Latitude, c.loc.Longitude, date, c.loc.Timezone)

	c.mu.Lock()
	c.cache[key] = times
	c.mu.Unlock()

	return times
}

// calculate computes astronomical times using solar calculations
func calculate(lat, lon float64, date time.Time, tz *time.Location) *AstroTimes {
	// Julian day - add 0.5 because the NOAA sunrise equation expects JD at noon, not midnight
	jd := toJulianDay(date) + 0.5

	return &AstroTimes{
		Dawn:     sunTime(jd, lat, lon, tz, date, -6.0, true), // Civil dawn
		Sunrise:  sunTime(jd, lat, lon, tz, date, -0.833, true),
		Noon:     solarNoon(jd, lon, tz, date),
		Sunset:   sunTime(jd, lat, lon, tz, date, -0.833, false),
		Dusk:     sunTime(jd, lat, lon, tz, date, -6.0, false), // Civil dusk
		Midnight: time.Date(date.Year(), date.Month(), date.Day()+1, 0, 0, 0, 0, tz),
	}
}

// toJulianDay converts a date to Julian day number
func toJulianDay(t time.Time) float64 {
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())

	if m <= 2 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5
}

// transit returns the Julian date of solar transit and the ecliptic longitude
func transit(jd, lon float64) (float64, float64) {
	n := jd - 2451545.0 + 0.0008
	jStar := n - lon/360.0

	// Solar mean anomaly
	m := math.Mod(357.5291+0.98560028*jStar, 360.0)
	mRad := m * math.Pi / 180.0

	// Equation of center
	c := 1.9148*math.Sin(mRad) + 0.02*math.Sin(2*mRad) + 0.0003*math.Sin(3*mRad)

	lambda := math.Mod(m+c+180+102.9372, 360.0)
	lambdaRad := lambda * math.Pi / 180.0

	return 2451545.0 + jStar + 0.0053*math.Sin(mRad) - 0.0069*math.Sin(2*lambdaRad), lambdaRad
}

func solarNoon(jd, lon float64, tz *time.Location, date time.Time) time.Time {
	jTransit, _ := transit(jd, lon)
	return julianToTime(jTransit, tz, date)
}

// sunTime calculates the time the sun crosses angle, rising or setting.
// In polar day or night the hour angle is clamped, which yields noon or
// midnight-adjacent times instead of no event.
func sunTime(jd, lat, lon float64, tz *time.Location, date time.Time, angle float64, rising bool) time.Time {
	jTransit, lambdaRad := transit(jd, lon)

	// Declination of the sun
	dec := math.Asin(math.Sin(lambdaRad) * math.Sin(23.44*math.Pi/180.0))

	latRad := lat * math.Pi / 180.0
	angleRad := angle * math.Pi / 180.0

	cosOmega := (math.Sin(angleRad) - math.Sin(latRad)*math.Sin(dec)) / (math.Cos(latRad) * math.Cos(dec))
	cosOmega = math.Max(-1, math.Min(1, cosOmega))

	omega := math.Acos(cosOmega) * 180.0 / math.Pi

	jTime := jTransit + omega/360.0
	if rising {
		jTime = jTransit - omega/360.0
	}

	return julianToTime(jTime, tz, date)
}

// julianToTime converts a Julian date to a wall-clock time on refDate's day
func julianToTime(jd float64, tz *time.Location, refDate time.Time) time.Time {
	unixTime := (jd - 2440587.5) * 86400.0
	t := time.Unix(int64(unixTime), 0).In(tz)

	return time.Date(
		refDate.Year(), refDate.Month(), refDate.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, tz,
	)
}

package domain

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const zoneCacheSize = 128

// Zones resolves IANA zone names with a fixed-size cache and a default fallback.
// Zone data does not change at runtime, so entries never expire.
type Zones struct {
	def     *time.Location
	defName string
	log     *zap.Logger

	cache *lru.Cache[string, *time.Location]

	mu     sync.Mutex
	warned map[string]struct{}
}

// NewZones builds a resolver. An unknown default name falls back to UTC.
func NewZones(defaultName string, log *zap.Logger) *Zones {
	if log == nil {
		log = zap.NewNop()
	}
	def, err := time.LoadLocation(defaultName)
	if err != nil || defaultName == "" {
		log.Warn("unknown default timezone, falling back to UTC", zap.String("tz", defaultName))
		def, defaultName = time.UTC, "UTC"
	}
	cache, _ := lru.New[string, *time.Location](zoneCacheSize) // only errors on size <= 0
	return &Zones{
		def:     def,
		defName: defaultName,
		log:     log,
		cache:   cache,
		warned:  make(map[string]struct{}),
	}
}

// Default returns the configured default zone.
func (z *Zones) Default() *time.Location { return z.def }

// DefaultName returns the IANA name of the default zone.
func (z *Zones) DefaultName() string { return z.defName }

// Resolve returns the zone for name, or the default zone when name is empty
// or unknown. An unknown name is warned about once per process.
func (z *Zones) Resolve(name string) *time.Location {
	if name == "" {
		return z.def
	}
	if loc, ok := z.cache.Get(name); ok {
		return loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		z.warnOnce(name, err)
		z.cache.Add(name, z.def)
		return z.def
	}
	z.cache.Add(name, loc)
	return loc
}

// ForUser resolves the user's zone.
func (z *Zones) ForUser(u *User) *time.Location {
	if u == nil {
		return z.def
	}
	return z.Resolve(u.TZ)
}

func (z *Zones) warnOnce(name string, err error) {
	z.mu.Lock()
	_, seen := z.warned[name]
	z.warned[name] = struct{}{}
	z.mu.Unlock()
	if !seen {
		z.log.Warn("unknown timezone, using default",
			zap.String("tz", name),
			zap.String("default", z.defName),
			zap.Error(err),
		)
	}
}

// ValidateZone checks that name is a loadable IANA location and returns its
// canonical name.
func ValidateZone(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidZone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidZone, name)
	}
	return loc.String(), nil
}

// LocalDate returns the calendar date of now in loc.
func LocalDate(loc *time.Location, now time.Time) Date {
	return DateOf(now.In(loc))
}

// ToAbsolute combines a date and a local time of day in loc into a UTC instant.
// The zone's offset on that date is used, so DST is handled by the location.
func ToAbsolute(d Date, t ClockTime, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, loc).UTC()
}

// LocalClock returns the local time of day of instant t in loc.
func LocalClock(t time.Time, loc *time.Location) ClockTime {
	lt := t.In(loc)
	return ClockTime{Hour: lt.Hour(), Minute: lt.Minute()}
}

// DayBounds returns the half-open UTC interval [start, end) covering local
// midnight to midnight of d in loc.
func DayBounds(d Date, loc *time.Location) (start, end time.Time) {
	start = time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
	end = time.Date(d.Year, d.Month, d.Day+1, 0, 0, 0, 0, loc)
	return start.UTC(), end.UTC()
}

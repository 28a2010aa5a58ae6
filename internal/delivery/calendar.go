package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/avask/shopflow/internal/cache"
)

type DateAvailability struct {
	Date      string `json:"date"` // YYYY-MM-DD
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Service computes delivery calendars and cost quotes. Calendars are
// cached per (month, year, zone); quotes depend on "now" and are never
// cached.
type Service struct {
	zones *ZoneTable
	cache cache.CalendarCache
	now   func() time.Time

	maxAdvanceDays   int
	workdayStartHour int
	workdayEndHour   int
	sameDaySLAHours  int
}

func NewService(zones *ZoneTable, calendarCache cache.CalendarCache) *Service {
	return &Service{
		zones:            zones,
		cache:            calendarCache,
		now:              time.Now,
		maxAdvanceDays:   60,
		workdayStartHour: 9,
		workdayEndHour:   18,
		sameDaySLAHours:  4,
	}
}

// AvailableDates lists every day of the month with its availability and,
// for blocked days, the reason. A day is available iff it lies within
// [now, now+maxAdvanceDays], is not a weekend, and is not a gazetted
// holiday for that year.
func (s *Service) AvailableDates(ctx context.Context, month time.Month, year int, zoneCode string) ([]DateAvailability, error) {
	if _, ok := s.zones.Zone(zoneCode); !ok {
		return nil, fmt.Errorf("unknown zone %q", zoneCode)
	}

	key := fmt.Sprintf("%s:%04d-%02d", zoneCode, year, int(month))
	if data, err := s.cache.Get(ctx, key); err == nil {
		var dates []DateAvailability
		if err2 := json.Unmarshal(data, &dates); err2 == nil {
			return dates, nil
		}
		log.Printf("calendar cache entry for %s is corrupt, recomputing", key)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("calendar cache get error: %v", err) // recompute on cache failure
	}

	dates := s.computeMonth(month, year)

	if data, err := json.Marshal(dates); err == nil {
		if errSet := s.cache.Set(ctx, key, data); errSet != nil {
			log.Printf("calendar cache set error: %v", errSet)
		}
	}
	return dates, nil
}

func (s *Service) computeMonth(month time.Month, year int) []DateAvailability {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	horizon := today.AddDate(0, 0, s.maxAdvanceDays)

	first := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
	daysInMonth := first.AddDate(0, 1, -1).Day()

	dates := make([]DateAvailability, 0, daysInMonth)
	for day := 1; day <= daysInMonth; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
		entry := DateAvailability{Date: date.Format("2006-01-02")}

		switch {
		case date.Before(today):
			entry.Reason = "in the past"
		case date.After(horizon):
			entry.Reason = "beyond booking window"
		case isWeekend(date):
			entry.Reason = "weekend"
		default:
			if name, holiday := holidayName(date); holiday {
				entry.Reason = name
			} else {
				entry.Available = true
			}
		}
		dates = append(dates, entry)
	}
	return dates
}

// earliestDate finds the first working day satisfying the urgency's
// minimum notice. Same-day additionally requires enough room left in
// today's working window; otherwise it rolls to the next working day.
func (s *Service) earliestDate(zone Zone, urgency Urgency) time.Time {
	now := s.now()

	notice := zone.MinNoticeHours[urgency]
	candidate := now.Add(time.Duration(notice) * time.Hour)

	if urgency == UrgencySameDay {
		windowEnd := time.Date(now.Year(), now.Month(), now.Day(), s.workdayEndHour, 0, 0, 0, now.Location())
		if windowEnd.Sub(now) < time.Duration(s.sameDaySLAHours)*time.Hour {
			candidate = now.AddDate(0, 0, 1)
		}
	}

	date := time.Date(candidate.Year(), candidate.Month(), candidate.Day(), 0, 0, 0, 0, candidate.Location())
	for !isWorkingDay(date) {
		date = date.AddDate(0, 0, 1)
	}
	return date
}

package delivery

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Urgency string

const (
	UrgencyStandard Urgency = "standard"
	UrgencyExpress  Urgency = "express"
	UrgencySameDay  Urgency = "same_day"
)

type TimeSlot string

const (
	SlotAnytime TimeSlot = "anytime"
	SlotMorning TimeSlot = "morning"
	SlotEvening TimeSlot = "evening"
)

// Zone groups postal-code prefixes that share delivery cost and urgency
// parameters.
type Zone struct {
	Code       string
	Name       string
	Prefixes   []string
	DistanceKm int64
	BaseCost   int64 // minor units
	CostPerKm  decimal.Decimal
	// UrgencySurcharge lists the urgencies this zone offers at all; an
	// urgency missing from the map is not deliverable in the zone.
	UrgencySurcharge map[Urgency]int64
	MinNoticeHours   map[Urgency]int
}

func (z Zone) Offers(urgency Urgency) bool {
	_, ok := z.UrgencySurcharge[urgency]
	return ok
}

var slotSurcharge = map[TimeSlot]int64{
	SlotAnytime: 0,
	SlotMorning: 300,
	SlotEvening: 450,
}

// ZoneTable resolves postal codes by longest prefix match. Codes that
// match nothing fall back to the catch-all zone, which carries the most
// conservative parameters of the table: never assume the cheap zone for
// an address we do not recognize.
type ZoneTable struct {
	zones    []Zone
	catchAll Zone
}

func NewZoneTable(zones []Zone, catchAll Zone) *ZoneTable {
	return &ZoneTable{zones: zones, catchAll: catchAll}
}

func (t *ZoneTable) Resolve(postalCode string) Zone {
	postalCode = strings.TrimSpace(postalCode)

	best := t.catchAll
	bestLen := 0
	for _, zone := range t.zones {
		for _, prefix := range zone.Prefixes {
			if len(prefix) > bestLen && strings.HasPrefix(postalCode, prefix) {
				best = zone
				bestLen = len(prefix)
			}
		}
	}
	return best
}

func (t *ZoneTable) Zone(code string) (Zone, bool) {
	if code == t.catchAll.Code {
		return t.catchAll, true
	}
	for _, zone := range t.zones {
		if zone.Code == code {
			return zone, true
		}
	}
	return Zone{}, false
}

// DefaultZones returns the production zone table. Kept in code rather than
// config: the table changes a few times a year, with a deploy.
func DefaultZones() *ZoneTable {
	zones := []Zone{
		{
			Code:       "metro",
			Name:       "Metro core",
			Prefixes:   []string{"100", "101", "110"},
			DistanceKm: 8,
			BaseCost:   500,
			CostPerKm:  decimal.NewFromInt(25),
			UrgencySurcharge: map[Urgency]int64{
				UrgencyStandard: 0,
				UrgencyExpress:  700,
				UrgencySameDay:  1500,
			},
			MinNoticeHours: map[Urgency]int{
				UrgencyStandard: 24,
				UrgencyExpress:  12,
				UrgencySameDay:  2,
			},
		},
		{
			Code:       "suburban",
			Name:       "Suburban ring",
			Prefixes:   []string{"10", "11", "12"},
			DistanceKm: 25,
			BaseCost:   700,
			CostPerKm:  decimal.NewFromInt(30),
			UrgencySurcharge: map[Urgency]int64{
				UrgencyStandard: 0,
				UrgencyExpress:  900,
			},
			MinNoticeHours: map[Urgency]int{
				UrgencyStandard: 24,
				UrgencyExpress:  18,
			},
		},
	}

	catchAll := Zone{
		Code:       "remote",
		Name:       "Remote / unmatched",
		DistanceKm: 80,
		BaseCost:   1200,
		CostPerKm:  decimal.NewFromInt(40),
		UrgencySurcharge: map[Urgency]int64{
			UrgencyStandard: 0,
		},
		MinNoticeHours: map[Urgency]int{
			UrgencyStandard: 72,
		},
	}

	return NewZoneTable(zones, catchAll)
}

package delivery

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrMissingPostalCode = errors.New("postal code is required")
	ErrUrgencyNotOffered = errors.New("urgency not offered in this zone")
	ErrUnknownTimeSlot   = errors.New("unknown time slot")
)

type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

type DeliveryQuote struct {
	ZoneCode     string `json:"zone"`
	BaseCost     int64  `json:"base_cost"`
	DistanceCost int64  `json:"distance_cost"`
	UrgencyCost  int64  `json:"urgency_cost"`
	SlotCost     int64  `json:"slot_cost"`
	TotalCost    int64  `json:"total_cost"`
	Currency     string `json:"currency"`
	EarliestDate string `json:"earliest_date"` // YYYY-MM-DD, always a working day
}

// Quote prices a delivery for the address. Not cached: the earliest date
// depends on the clock.
func (s *Service) Quote(_ context.Context, addr Address, urgency Urgency, slot TimeSlot) (*DeliveryQuote, error) {
	if addr.PostalCode == "" {
		return nil, ErrMissingPostalCode
	}
	if slot == "" {
		slot = SlotAnytime
	}
	slotCost, ok := slotSurcharge[slot]
	if !ok {
		return nil, ErrUnknownTimeSlot
	}

	zone := s.zones.Resolve(addr.PostalCode)
	if !zone.Offers(urgency) {
		return nil, ErrUrgencyNotOffered
	}

	distanceCost := zone.CostPerKm.Mul(decimal.NewFromInt(zone.DistanceKm)).Round(0).IntPart()
	urgencyCost := zone.UrgencySurcharge[urgency]

	return &DeliveryQuote{
		ZoneCode:     zone.Code,
		BaseCost:     zone.BaseCost,
		DistanceCost: distanceCost,
		UrgencyCost:  urgencyCost,
		SlotCost:     slotCost,
		TotalCost:    zone.BaseCost + distanceCost + urgencyCost + slotCost,
		Currency:     "USD",
		EarliestDate: s.earliestDate(zone, urgency).Format("2006-01-02"),
	}, nil
}

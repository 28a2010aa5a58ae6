package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/avask/shopflow/internal/delivery"
)

type DeliveryService interface {
	AvailableDates(ctx context.Context, month time.Month, year int, zoneCode string) ([]delivery.DateAvailability, error)
	Quote(ctx context.Context, addr delivery.Address, urgency delivery.Urgency, slot delivery.TimeSlot) (*delivery.DeliveryQuote, error)
}

type ZoneResolver interface {
	Resolve(postalCode string) delivery.Zone
}

type DeliveryHandler struct {
	deliveries DeliveryService
	zones      ZoneResolver
}

func NewDeliveryHandler(deliveries DeliveryService, zones ZoneResolver) *DeliveryHandler {
	return &DeliveryHandler{deliveries: deliveries, zones: zones}
}

// Calendar returns the per-day availability for a month. The zone is
// resolved from the postal code so clients never pick zones directly.
func (h *DeliveryHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	postalCode := q.Get("postal_code")
	if postalCode == "" {
		respondError(w, http.StatusBadRequest, "missing_postal_code", "postal_code is required")
		return
	}

	year, err := strconv.Atoi(q.Get("year"))
	if err != nil || year < 2000 || year > 2100 {
		respondError(w, http.StatusBadRequest, "invalid_year", "year must be a valid calendar year")
		return
	}
	monthNum, err := strconv.Atoi(q.Get("month"))
	if err != nil || monthNum < 1 || monthNum > 12 {
		respondError(w, http.StatusBadRequest, "invalid_month", "month must be 1-12")
		return
	}

	zone := h.zones.Resolve(postalCode)
	dates, err := h.deliveries.AvailableDates(r.Context(), time.Month(monthNum), year, zone.Code)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"zone":  zone.Code,
		"dates": dates,
	})
}

func (h *DeliveryHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	addr := delivery.Address{
		Street:     q.Get("street"),
		City:       q.Get("city"),
		PostalCode: q.Get("postal_code"),
	}
	urgency := delivery.Urgency(q.Get("urgency"))
	if urgency == "" {
		urgency = delivery.UrgencyStandard
	}
	slot := delivery.TimeSlot(q.Get("time_slot"))

	quote, err := h.deliveries.Quote(r.Context(), addr, urgency, slot)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

// Package shipping computes delivery zones and estimated delivery dates.
// Everything here is pure: the same inputs always yield the same outputs,
// and malformed input falls back to a conservative estimate instead of
// failing the request.
package shipping

import (
	"time"
)

// Shipping method constants.
const (
	MethodOvernight     = "overnight"
	MethodExpress       = "express"
	MethodStandard      = "standard"
	MethodEconomy       = "economy"
	MethodInternational = "international"
)

// Delivery zone constants, A (nearest) through D (most remote).
const (
	ZoneA = "A"
	ZoneB = "B"
	ZoneC = "C"
	ZoneD = "D"
)

// fallbackBusinessDays is the conservative estimate used when the postal code
// is empty or malformed.
const fallbackBusinessDays = 5

// methodBaseDays maps each shipping method to its base business-day count.
var methodBaseDays = map[string]int{
	MethodOvernight:     1,
	MethodExpress:       2,
	MethodStandard:      4,
	MethodEconomy:       6,
	MethodInternational: 10,
}

// zoneExtraDays maps each zone to the business days added on top of the
// method base.
var zoneExtraDays = map[string]int{
	ZoneA: 0,
	ZoneB: 1,
	ZoneC: 2,
	ZoneD: 4,
}

// ETA is the result of a zone and delivery-date computation.
type ETA struct {
	Zone          string    `json:"zone"`
	BusinessDays  int       `json:"business_days"`
	CalendarDays  int       `json:"calendar_days"`
	EstimatedDate time.Time `json:"estimated_date"`
}

// ZoneForPostalCode derives the delivery zone from the leading digit of the
// postal code: 0-2 -> A, 3-5 -> B, 6-8 -> C, 9 -> D. A code that does not
// start with a digit maps to the most remote zone.
func ZoneForPostalCode(postalCode string) string {
	if postalCode == "" {
		return ZoneD
	}
	switch c := postalCode[0]; {
	case c >= '0' && c <= '2':
		return ZoneA
	case c >= '3' && c <= '5':
		return ZoneB
	case c >= '6' && c <= '8':
		return ZoneC
	case c == '9':
		return ZoneD
	default:
		return ZoneD
	}
}

// ValidMethod reports whether the method code is one of the supported
// shipping methods.
func ValidMethod(method string) bool {
	_, ok := methodBaseDays[method]
	return ok
}

// BaseDays returns the base business-day count for the method. Unknown method
// codes fall back to the standard method's base.
func BaseDays(method string) int {
	if days, ok := methodBaseDays[method]; ok {
		return days
	}
	return methodBaseDays[MethodStandard]
}

// CalculateETA computes the zone, business-day count, and estimated delivery
// date for a postal code and shipping method, walking forward from now.
func CalculateETA(postalCode, method string) ETA {
	return CalculateETAFrom(postalCode, method, time.Now().UTC())
}

// CalculateETAFrom is CalculateETA with an explicit start time. The estimated
// date is found by walking forward one calendar day at a time, counting only
// weekdays toward the business-day total; CalendarDays is the actual elapsed
// days and can exceed BusinessDays when weekends are skipped.
func CalculateETAFrom(postalCode, method string, from time.Time) ETA {
	businessDays := fallbackBusinessDays
	zone := ZoneD
	if validPostalCode(postalCode) {
		zone = ZoneForPostalCode(postalCode)
		businessDays = BaseDays(method) + zoneExtraDays[zone]
	}

	date := from
	calendarDays := 0
	remaining := businessDays
	for remaining > 0 {
		date = date.AddDate(0, 0, 1)
		calendarDays++
		if isWeekday(date) {
			remaining--
		}
	}

	return ETA{
		Zone:          zone,
		BusinessDays:  businessDays,
		CalendarDays:  calendarDays,
		EstimatedDate: date,
	}
}

// validPostalCode reports whether the postal code is usable for zone
// derivation: non-empty and starting with a digit.
func validPostalCode(postalCode string) bool {
	if postalCode == "" {
		return false
	}
	c := postalCode[0]
	return c >= '0' && c <= '9'
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

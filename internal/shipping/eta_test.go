package shipping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneForPostalCode(t *testing.T) {
	tests := []struct {
		name       string
		postalCode string
		expected   string
	}{
		{"leading zero", "02139", ZoneA},
		{"leading one", "10001", ZoneA},
		{"leading two", "28205", ZoneA},
		{"leading three", "30303", ZoneB},
		{"leading five", "55401", ZoneB},
		{"leading six", "60601", ZoneC},
		{"leading eight", "85001", ZoneC},
		{"leading nine", "94105", ZoneD},
		{"empty", "", ZoneD},
		{"non-digit prefix", "SW1A 1AA", ZoneD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ZoneForPostalCode(tt.postalCode))
		})
	}
}

func TestValidMethod(t *testing.T) {
	for _, method := range []string{MethodOvernight, MethodExpress, MethodStandard, MethodEconomy, MethodInternational} {
		assert.True(t, ValidMethod(method), method)
	}
	assert.False(t, ValidMethod("teleport"))
	assert.False(t, ValidMethod(""))
	assert.False(t, ValidMethod("Standard"))
}

func TestBaseDays(t *testing.T) {
	assert.Equal(t, 1, BaseDays(MethodOvernight))
	assert.Equal(t, 2, BaseDays(MethodExpress))
	assert.Equal(t, 4, BaseDays(MethodStandard))
	assert.Equal(t, 6, BaseDays(MethodEconomy))
	assert.Equal(t, 10, BaseDays(MethodInternational))

	// Unknown codes fall back to standard.
	assert.Equal(t, 4, BaseDays("teleport"))
}

func TestCalculateETAFrom_ZoneMonotonicity(t *testing.T) {
	// Farther zones never beat nearer ones for the same method.
	from := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC) // Monday
	postalByZone := []struct {
		zone   string
		postal string
	}{
		{ZoneA, "10001"},
		{ZoneB, "40001"},
		{ZoneC, "70001"},
		{ZoneD, "90001"},
	}

	for method := range methodBaseDays {
		prev := 0
		for _, pz := range postalByZone {
			eta := CalculateETAFrom(pz.postal, method, from)
			require.Equal(t, pz.zone, eta.Zone)
			assert.GreaterOrEqual(t, eta.BusinessDays, prev,
				"method %s zone %s", method, pz.zone)
			prev = eta.BusinessDays
		}
	}
}

func TestCalculateETAFrom_NeverLandsOnWeekend(t *testing.T) {
	// Walk a start date through two full weeks for every method.
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for method := range methodBaseDays {
		for day := 0; day < 14; day++ {
			eta := CalculateETAFrom("10001", method, start.AddDate(0, 0, day))
			wd := eta.EstimatedDate.Weekday()
			assert.NotEqual(t, time.Saturday, wd, "method %s day %d", method, day)
			assert.NotEqual(t, time.Sunday, wd, "method %s day %d", method, day)
		}
	}
}

func TestCalculateETAFrom_StandardAcrossWeekend(t *testing.T) {
	// Friday 2024-01-05, standard to zone A: 4 business days spanning a
	// weekend land on Thursday 2024-01-11, six calendar days out.
	friday := time.Date(2024, 1, 5, 15, 30, 0, 0, time.UTC)

	eta := CalculateETAFrom("10001", MethodStandard, friday)

	assert.Equal(t, ZoneA, eta.Zone)
	assert.Equal(t, 4, eta.BusinessDays)
	assert.Equal(t, 6, eta.CalendarDays)
	assert.Equal(t, time.Date(2024, 1, 11, 15, 30, 0, 0, time.UTC), eta.EstimatedDate)
	assert.Equal(t, time.Thursday, eta.EstimatedDate.Weekday())
}

func TestCalculateETAFrom_Overnight(t *testing.T) {
	monday := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	eta := CalculateETAFrom("10001", MethodOvernight, monday)

	assert.Equal(t, 1, eta.BusinessDays)
	assert.Equal(t, 1, eta.CalendarDays)
	assert.Equal(t, time.Tuesday, eta.EstimatedDate.Weekday())
}

func TestCalculateETAFrom_MalformedPostalFallback(t *testing.T) {
	monday := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	for _, postal := range []string{"", "ABC123", "!!!"} {
		eta := CalculateETAFrom(postal, MethodOvernight, monday)
		assert.Equal(t, ZoneD, eta.Zone, "postal %q", postal)
		assert.Equal(t, fallbackBusinessDays, eta.BusinessDays, "postal %q", postal)
	}
}

func TestCalculateETAFrom_ZoneDInternational(t *testing.T) {
	monday := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	// International base 10 plus zone D surcharge 4.
	eta := CalculateETAFrom("94105", MethodInternational, monday)
	assert.Equal(t, ZoneD, eta.Zone)
	assert.Equal(t, 14, eta.BusinessDays)
}

func TestCalculateETAFrom_Deterministic(t *testing.T) {
	from := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	first := CalculateETAFrom("30303", MethodExpress, from)
	second := CalculateETAFrom("30303", MethodExpress, from)
	assert.Equal(t, first, second)
}

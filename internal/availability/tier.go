package availability

import (
	"github.com/shopspring/decimal"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
)

// Tier is the per-resource, per-day status derived from remaining units.
type Tier string

const (
	TierUnset     Tier = "unset"
	TierFull      Tier = "full"
	TierLimited   Tier = "limited"
	TierAvailable Tier = "available"
)

// AggregateTier summarizes several resources on one day by ratio.
// It is not interchangeable with Tier: one unit left out of two is a
// limited resource but a healthy aggregate.
type AggregateTier string

const (
	AggregateUnset     AggregateTier = "unset"
	AggregateFull      AggregateTier = "full"
	AggregateLimited   AggregateTier = "limited"
	AggregateAvailable AggregateTier = "available"
)

// Ratio thresholds for AggregateTier.
const (
	aggregateAvailableAbove = 0.5
	aggregateFullBelow      = 0.1
)

type DayAvailability struct {
	Date          calendar.Day
	Available     int
	TotalUnits    int
	Tier          Tier
	PriceOverride *decimal.Decimal
}

type Aggregate struct {
	Date      calendar.Day
	Available int
	Capacity  int
	Ratio     float64
	Tier      AggregateTier
}

// ComputeDay derives the tier of one record. A nil record means the day was
// never initialized and reports TierUnset with nothing available.
func ComputeDay(day calendar.Day, rec *capacity.Record) DayAvailability {
	out := DayAvailability{Date: day, Tier: TierUnset}
	if rec == nil {
		return out
	}

	out.Available = rec.Available()
	out.TotalUnits = rec.TotalUnits
	out.PriceOverride = rec.PriceOverride
	switch {
	case out.Available <= 0:
		out.Tier = TierFull
	case out.Available == 1:
		out.Tier = TierLimited
	default:
		out.Tier = TierAvailable
	}
	return out
}

// ComputeAggregate sums the records of one day across resources.
func ComputeAggregate(day calendar.Day, records []*capacity.Record) Aggregate {
	out := Aggregate{Date: day, Tier: AggregateUnset}
	for _, rec := range records {
		if rec == nil {
			continue
		}
		out.Available += rec.Available()
		out.Capacity += rec.TotalUnits
	}
	if out.Capacity == 0 {
		return out
	}

	out.Ratio = float64(out.Available) / float64(out.Capacity)
	switch {
	case out.Ratio > aggregateAvailableAbove:
		out.Tier = AggregateAvailable
	case out.Ratio < aggregateFullBelow:
		out.Tier = AggregateFull
	default:
		out.Tier = AggregateLimited
	}
	return out
}

package pricing

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Normalize derives the comparability of a tier list.
//
// A record is Comparable only when every tier is per-GB and at least one
// carries a finite, non-negative rate; min/max are then taken across all
// usable per-GB tiers, PAYG and volume brackets alike. Records mixing
// per-GB with other billing models are conservatively NonComparable — a
// $/GB figure is never assigned to a record the number cannot fully
// describe, and no cross-unit estimation is attempted.
func Normalize(tiers []Tier) Comparison {
	if len(tiers) == 0 {
		return NonComparable{DominantModel: ModelUnknown, Reason: "no pricing data"}
	}

	var rates []float64
	otherModels := map[Model]int{}
	for _, t := range tiers {
		gb, ok := t.(PerGBTier)
		if !ok {
			otherModels[t.Model()]++
			continue
		}
		if usableRate(gb.PricePerGB) {
			rates = append(rates, gb.PricePerGB)
		}
	}

	switch {
	case len(otherModels) > 0 && len(rates) > 0:
		return NonComparable{
			DominantModel: dominantModel(otherModels),
			Reason:        "mixed billing models: per_gb, " + modelList(otherModels),
		}
	case len(otherModels) > 0:
		return NonComparable{
			DominantModel: dominantModel(otherModels),
			Reason:        "no per-GB pricing (" + modelList(otherModels) + ")",
		}
	case len(rates) == 0:
		return NonComparable{DominantModel: ModelPerGB, Reason: "no usable per-GB rate"}
	}

	minRate, maxRate := rates[0], rates[0]
	for _, r := range rates[1:] {
		minRate = math.Min(minRate, r)
		maxRate = math.Max(maxRate, r)
	}
	return Comparable{MinPerGB: minRate, MaxPerGB: maxRate}
}

// usableRate reports whether a $/GB rate can participate in ranking.
func usableRate(rate float64) bool {
	return !math.IsNaN(rate) && !math.IsInf(rate, 0) && rate >= 0
}

// dominantModel returns the most frequent non-per-GB model, ties broken
// alphabetically so normalization is deterministic.
func dominantModel(counts map[Model]int) Model {
	models := make([]Model, 0, len(counts))
	for m := range counts {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool {
		if counts[models[i]] != counts[models[j]] {
			return counts[models[i]] > counts[models[j]]
		}
		return models[i] < models[j]
	})
	if len(models) == 0 {
		return ModelUnknown
	}
	return models[0]
}

// modelList formats the model set for violation and reason messages.
func modelList(counts map[Model]int) string {
	models := make([]string, 0, len(counts))
	for m := range counts {
		models = append(models, string(m))
	}
	sort.Strings(models)
	return strings.Join(models, ", ")
}

// NewRecord assembles a record from parsed tiers, normalizing as it goes.
func NewRecord(providerID, providerName string, proxyType ProxyType, priceURL string, tiers []Tier) Record {
	return Record{
		ProviderID:   providerID,
		ProviderName: providerName,
		ProxyType:    proxyType,
		PriceURL:     priceURL,
		Tiers:        tiers,
		Comparison:   Normalize(tiers),
	}
}

// CheapestPerGB returns the minimum comparable $/GB across records, used
// for the provider-level aggregate. ok is false when no record is
// comparable.
func CheapestPerGB(records []Record) (rate float64, ok bool) {
	for _, r := range records {
		if minPerGB, _, comparable := r.PerGBRange(); comparable {
			if !ok || minPerGB < rate {
				rate, ok = minPerGB, true
			}
		}
	}
	return rate, ok
}

// String implements fmt.Stringer for logging.
func (c Comparable) String() string {
	return fmt.Sprintf("comparable $%.2f-$%.2f/GB", c.MinPerGB, c.MaxPerGB)
}

// String implements fmt.Stringer for logging.
func (c NonComparable) String() string {
	return fmt.Sprintf("non-comparable (%s): %s", c.DominantModel, c.Reason)
}

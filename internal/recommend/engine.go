// Package recommend ranks comparable providers for a requested usage
// volume. The engine is a pure function of (dataset, volume, proxy type):
// it holds no state and the caller decides which dataset snapshot to rank
// against.
package recommend

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/proxyprice/pipeline/internal/pricing"
)

const (
	// maxRecommendations caps the ranked list.
	maxRecommendations = 10
	// maxFallback caps the alternatives list for unmatched queries.
	maxFallback = 5
)

// DefaultPopularProviders is the editorial allow-list used for tie
// breaking when no override is configured.
var DefaultPopularProviders = []string{
	"brightdata",
	"oxylabs",
	"smartproxy",
	"soax",
}

// Options tunes ranking behavior. The zero value uses the defaults.
type Options struct {
	// PopularProviders overrides the tie-break allow-list.
	PopularProviders []string
	// MaxResults overrides the ranked-list cap.
	MaxResults int
}

// Recommendation ranks one provider record against a requested volume.
type Recommendation struct {
	ID            string            `json:"id"`
	ProviderID    string            `json:"provider_id"`
	ProviderName  string            `json:"provider_name"`
	ProxyType     pricing.ProxyType `json:"proxy_type"`
	Tier          pricing.PerGBTier `json:"tier"`
	PricePerGB    float64           `json:"price_per_gb"`
	MonthlyCost   float64           `json:"monthly_cost"`
	Reason        string            `json:"reason"`
	IsBestValue   bool              `json:"is_best_value"`
	IsMostPopular bool              `json:"is_most_popular"`
}

// Result is the outcome of one ranking request. Fallback is populated
// only when Recommendations is empty, so callers always have something
// to present.
type Result struct {
	Recommendations []Recommendation         `json:"recommendations"`
	Fallback        []pricing.FallbackRecord `json:"fallback"`
}

// ForVolume selects, for each comparable record of the requested proxy
// type, the cheapest tier covering the requested volume, and ranks
// providers by resulting monthly cost. Providers with no covering tier
// are excluded, not errors. When nothing ranks, up to five priced but
// non-comparable providers are returned as fallback.
func ForVolume(ds pricing.CalculatorDataset, requestedGB float64, proxyType pricing.ProxyType, opts Options) (Result, error) {
	if requestedGB <= 0 {
		return Result{}, fmt.Errorf("requested volume must be positive, got %v", requestedGB)
	}
	if !proxyType.Valid() {
		return Result{}, fmt.Errorf("unknown proxy type %q", proxyType)
	}

	popular := allowList(opts.PopularProviders)
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = maxRecommendations
	}

	var recs []Recommendation
	for _, rec := range ds.ComparablePricing {
		if rec.ProxyType != proxyType {
			continue
		}
		tier, ok := selectTier(rec.Tiers, requestedGB)
		if !ok {
			continue
		}
		recs = append(recs, Recommendation{
			ID:            uuid.New().String(),
			ProviderID:    rec.ProviderID,
			ProviderName:  rec.ProviderName,
			ProxyType:     rec.ProxyType,
			Tier:          tier,
			PricePerGB:    tier.PricePerGB,
			MonthlyCost:   MonthlyCost(tier.PricePerGB, requestedGB),
			Reason:        reason(tier, requestedGB),
			IsMostPopular: popular[rec.ProviderID],
		})
	}

	// Ascending by cost; equal-cost peers yield to the allow-list.
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].MonthlyCost != recs[j].MonthlyCost {
			return recs[i].MonthlyCost < recs[j].MonthlyCost
		}
		return recs[i].IsMostPopular && !recs[j].IsMostPopular
	})
	if len(recs) > maxResults {
		recs = recs[:maxResults]
	}
	if len(recs) > 0 {
		recs[0].IsBestValue = true
		recs[0].Reason = "lowest monthly cost at this volume"
		return Result{Recommendations: recs}, nil
	}

	return Result{Fallback: fallback(ds, proxyType)}, nil
}

// selectTier picks the cheapest covering tier: PAYG tiers cover any
// volume, brackets cover requests up to their threshold. Lowest $/GB
// wins over the tightest bracket — a larger tier that is cheaper per
// unit beats an exact match, because total monthly cost is the real
// objective.
func selectTier(tiers []pricing.PerGBTier, requestedGB float64) (pricing.PerGBTier, bool) {
	var best pricing.PerGBTier
	found := false
	for _, t := range tiers {
		if !t.Covers(requestedGB) {
			continue
		}
		if !found || t.PricePerGB < best.PricePerGB {
			best, found = t, true
		}
	}
	return best, found
}

// MonthlyCost is ceil(rate × volume), computed in decimal so the quote
// is never rounded below the true price.
func MonthlyCost(pricePerGB, requestedGB float64) float64 {
	return decimal.NewFromFloat(pricePerGB).
		Mul(decimal.NewFromFloat(requestedGB)).
		Ceil().
		InexactFloat64()
}

// reason explains why a tier was selected, in presentation-ready form.
func reason(tier pricing.PerGBTier, requestedGB float64) string {
	switch {
	case tier.PAYG:
		return fmt.Sprintf("pay-as-you-go flexibility at $%.2f/GB", tier.PricePerGB)
	case tier.GB == requestedGB:
		return fmt.Sprintf("exact tier match for %.0f GB", requestedGB)
	default:
		return fmt.Sprintf("best $/GB rate covering %.0f GB", requestedGB)
	}
}

// fallback returns up to maxFallback priced, non-comparable providers
// for the requested type so an unmatched query never dead-ends.
func fallback(ds pricing.CalculatorDataset, proxyType pricing.ProxyType) []pricing.FallbackRecord {
	var out []pricing.FallbackRecord
	for _, rec := range ds.FallbackPricing {
		if rec.ProxyType != proxyType {
			continue
		}
		out = append(out, rec)
		if len(out) == maxFallback {
			break
		}
	}
	return out
}

func allowList(override []string) map[string]bool {
	ids := override
	if ids == nil {
		ids = DefaultPopularProviders
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

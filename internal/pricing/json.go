package pricing

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// tierWire is the flat on-disk shape of a tier. Field names are part of
// the consumer contract and must not change.
type tierWire struct {
	PricingModel Model    `json:"pricing_model"`
	GB           *float64 `json:"gb,omitempty"`
	PricePerGB   *float64 `json:"price_per_gb,omitempty"`
	Total        *float64 `json:"total,omitempty"`
	IsPAYG       bool     `json:"is_payg,omitempty"`
	PricePerIP   *float64 `json:"price_per_ip,omitempty"`
	IPs          *int     `json:"ips,omitempty"`
	Threads      *int     `json:"threads,omitempty"`
	Proxies      *int     `json:"proxies,omitempty"`
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

// MarshalJSON emits the flat wire form with the per_gb discriminator.
func (t PerGBTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(tierWire{
		PricingModel: ModelPerGB,
		GB:           floatPtr(t.GB),
		PricePerGB:   floatPtr(t.PricePerGB),
		Total:        floatPtr(t.Total),
		IsPAYG:       t.PAYG,
	})
}

// UnmarshalJSON decodes the flat wire form produced by MarshalJSON.
func (t *PerGBTier) UnmarshalJSON(data []byte) error {
	var w tierWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.PricingModel != "" && w.PricingModel != ModelPerGB {
		return fmt.Errorf("expected per_gb tier, got %q", w.PricingModel)
	}
	*t = PerGBTier{PAYG: w.IsPAYG}
	if w.GB != nil {
		t.GB = *w.GB
	}
	if w.PricePerGB != nil {
		t.PricePerGB = *w.PricePerGB
	}
	if w.Total != nil {
		t.Total = *w.Total
	}
	return nil
}

// MarshalJSON emits the flat wire form with the per_ip discriminator.
func (t PerIPTier) MarshalJSON() ([]byte, error) {
	w := tierWire{
		PricingModel: ModelPerIP,
		PricePerIP:   floatPtr(t.PricePerIP),
	}
	if t.IPs > 0 {
		w.IPs = intPtr(t.IPs)
	}
	if t.Total > 0 {
		w.Total = floatPtr(t.Total)
	}
	return json.Marshal(w)
}

// MarshalJSON emits the flat wire form with the per_thread discriminator.
func (t PerThreadTier) MarshalJSON() ([]byte, error) {
	w := tierWire{PricingModel: ModelPerThread}
	if t.Threads > 0 {
		w.Threads = intPtr(t.Threads)
	}
	if t.Total > 0 {
		w.Total = floatPtr(t.Total)
	}
	return json.Marshal(w)
}

// MarshalJSON emits the flat wire form with the per_proxy discriminator.
func (t PerProxyTier) MarshalJSON() ([]byte, error) {
	w := tierWire{PricingModel: ModelPerProxy}
	if t.Proxies > 0 {
		w.Proxies = intPtr(t.Proxies)
	}
	if t.Total > 0 {
		w.Total = floatPtr(t.Total)
	}
	return json.Marshal(w)
}

// UnmarshalTier decodes one wire tier, dispatching on pricing_model.
func UnmarshalTier(data []byte) (Tier, error) {
	var w tierWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode tier: %w", err)
	}
	deref := func(p *float64) float64 {
		if p == nil {
			return 0
		}
		return *p
	}
	derefInt := func(p *int) int {
		if p == nil {
			return 0
		}
		return *p
	}
	switch w.PricingModel {
	case ModelPerGB:
		return PerGBTier{
			GB:         deref(w.GB),
			PricePerGB: deref(w.PricePerGB),
			Total:      deref(w.Total),
			PAYG:       w.IsPAYG,
		}, nil
	case ModelPerIP:
		return PerIPTier{
			IPs:        derefInt(w.IPs),
			PricePerIP: deref(w.PricePerIP),
			Total:      deref(w.Total),
		}, nil
	case ModelPerThread:
		return PerThreadTier{Threads: derefInt(w.Threads), Total: deref(w.Total)}, nil
	case ModelPerProxy:
		return PerProxyTier{Proxies: derefInt(w.Proxies), Total: deref(w.Total)}, nil
	default:
		return nil, fmt.Errorf("unknown pricing model %q", w.PricingModel)
	}
}

// recordWire is the flat on-disk shape of a pricing record.
type recordWire struct {
	ProviderID    string            `json:"provider_id"`
	ProviderName  string            `json:"provider_name"`
	ProxyType     ProxyType         `json:"proxy_type"`
	PriceURL      *string           `json:"price_url"`
	Tiers         []json.RawMessage `json:"tiers"`
	HasPricing    bool              `json:"has_pricing"`
	MinPricePerGB *float64          `json:"min_price_per_gb"`
	MaxPricePerGB *float64          `json:"max_price_per_gb"`
	PricingModel  Model             `json:"pricing_model"`
	Comparable    bool              `json:"comparable"`
	TierCount     int               `json:"tier_count"`
}

// MarshalJSON flattens the record into its wire form, deriving
// has_pricing, comparable, tier_count and the $/GB range from the tier
// list and comparison variant.
func (r Record) MarshalJSON() ([]byte, error) {
	w := recordWire{
		ProviderID:   r.ProviderID,
		ProviderName: r.ProviderName,
		ProxyType:    r.ProxyType,
		Tiers:        make([]json.RawMessage, 0, len(r.Tiers)),
		HasPricing:   r.HasPricing(),
		PricingModel: r.PricingModel(),
		Comparable:   r.Comparison != nil && r.Comparison.Comparable(),
		TierCount:    len(r.Tiers),
	}
	if r.PriceURL != "" {
		u := r.PriceURL
		w.PriceURL = &u
	}
	for _, t := range r.Tiers {
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		w.Tiers = append(w.Tiers, raw)
	}
	if minPerGB, maxPerGB, ok := r.PerGBRange(); ok {
		w.MinPricePerGB = floatPtr(minPerGB)
		w.MaxPricePerGB = floatPtr(maxPerGB)
	}
	return json.Marshal(w)
}

// UnmarshalJSON rebuilds a record from its wire form. The non-comparable
// reason is not persisted, so it round-trips as empty.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	rec := Record{
		ProviderID:   w.ProviderID,
		ProviderName: w.ProviderName,
		ProxyType:    w.ProxyType,
	}
	if w.PriceURL != nil {
		rec.PriceURL = *w.PriceURL
	}
	for i, raw := range w.Tiers {
		t, err := UnmarshalTier(raw)
		if err != nil {
			return fmt.Errorf("tiers[%d]: %w", i, err)
		}
		rec.Tiers = append(rec.Tiers, t)
	}
	if w.Comparable && w.MinPricePerGB != nil && w.MaxPricePerGB != nil {
		rec.Comparison = Comparable{MinPerGB: *w.MinPricePerGB, MaxPerGB: *w.MaxPricePerGB}
	} else {
		rec.Comparison = NonComparable{DominantModel: w.PricingModel}
	}
	*r = rec
	return nil
}

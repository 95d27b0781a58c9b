package pricing

import "strings"

// ProxyType is the enumerated category of network proxy a pricing record
// applies to. Free-text labels from the source table are folded into this
// enumeration; anything unrecognized lands in TypeOther rather than being
// rejected.
type ProxyType string

const (
	TypeResidential ProxyType = "residential"
	TypeDatacenter  ProxyType = "datacenter"
	TypeMobile      ProxyType = "mobile"
	TypeISP         ProxyType = "isp"
	TypeOther       ProxyType = "other"
)

// ProxyTypes lists every valid proxy type, catch-all included.
var ProxyTypes = []ProxyType{TypeResidential, TypeDatacenter, TypeMobile, TypeISP, TypeOther}

// ParseProxyType normalizes a human-authored proxy-type label.
// Matching is case- and whitespace-insensitive and substring-based, so
// "Residential Proxies" and "Rotating residential" both map to residential.
func ParseProxyType(label string) ProxyType {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(l, "residential"):
		return TypeResidential
	case strings.Contains(l, "datacenter"), strings.Contains(l, "data center"):
		return TypeDatacenter
	case strings.Contains(l, "mobile"):
		return TypeMobile
	case strings.Contains(l, "isp"):
		return TypeISP
	default:
		return TypeOther
	}
}

// Valid reports whether t is a member of the enumeration.
func (t ProxyType) Valid() bool {
	for _, pt := range ProxyTypes {
		if t == pt {
			return true
		}
	}
	return false
}

// Model identifies the billing model of a tier or record.
type Model string

const (
	ModelPerGB     Model = "per_gb"
	ModelPerIP     Model = "per_ip"
	ModelPerThread Model = "per_thread"
	ModelPerProxy  Model = "per_proxy"
	ModelUnknown   Model = "unknown"
)

// Tier is one pricing bracket within a provider/proxy-type offer.
// Each billing model has its own concrete type carrying only the fields
// that model actually has, instead of one struct full of optional fields
// guarded by a string discriminator.
type Tier interface {
	// Model returns the billing model discriminator used on the wire.
	Model() Model
	// TotalPrice returns the advertised bracket total, 0 when unknown.
	TotalPrice() float64
}

// PerGBTier is a per-gigabyte tier: either a volume bracket (GB is the
// upper threshold) or a pay-as-you-go rate (PAYG true, the threshold is
// meaningless).
type PerGBTier struct {
	GB         float64
	PricePerGB float64
	Total      float64
	PAYG       bool
}

// Model implements Tier.
func (t PerGBTier) Model() Model { return ModelPerGB }

// TotalPrice implements Tier.
func (t PerGBTier) TotalPrice() float64 { return t.Total }

// Covers reports whether this tier can satisfy a requested volume.
// A PAYG tier covers any non-negative volume; a volume bracket covers
// requests up to and including its threshold.
func (t PerGBTier) Covers(requestedGB float64) bool {
	if t.PAYG {
		return requestedGB >= 0
	}
	return t.GB >= requestedGB
}

// PerIPTier is a per-IP-address tier. IPs is 0 when the offer quotes a
// unit rate without a bundle size.
type PerIPTier struct {
	IPs        int
	PricePerIP float64
	Total      float64
}

// Model implements Tier.
func (t PerIPTier) Model() Model { return ModelPerIP }

// TotalPrice implements Tier.
func (t PerIPTier) TotalPrice() float64 { return t.Total }

// PerThreadTier is a per-thread (or per-thread-per-day) tier.
type PerThreadTier struct {
	Threads int
	Total   float64
}

// Model implements Tier.
func (t PerThreadTier) Model() Model { return ModelPerThread }

// TotalPrice implements Tier.
func (t PerThreadTier) TotalPrice() float64 { return t.Total }

// PerProxyTier is a per-proxy (or per-port) tier.
type PerProxyTier struct {
	Proxies int
	Total   float64
}

// Model implements Tier.
func (t PerProxyTier) Model() Model { return ModelPerProxy }

// TotalPrice implements Tier.
func (t PerProxyTier) TotalPrice() float64 { return t.Total }

// Comparison is the derived comparability of a pricing record: either
// Comparable with a $/GB range, or NonComparable with a reason. Making
// this a tagged variant keeps "comparable without a price range" and
// "non-comparable with one" unrepresentable.
type Comparison interface {
	// Comparable reports whether the record can be ranked on $/GB.
	Comparable() bool
}

// Comparable carries the $/GB range of a record whose tiers are all
// per-GB. MinPerGB <= MaxPerGB by construction.
type Comparable struct {
	MinPerGB float64
	MaxPerGB float64
}

// Comparable implements Comparison.
func (Comparable) Comparable() bool { return true }

// NonComparable marks a record that cannot be ranked on $/GB, with the
// dominant billing model and a human-readable reason.
type NonComparable struct {
	DominantModel Model
	Reason        string
}

// Comparable implements Comparison.
func (NonComparable) Comparable() bool { return false }

// Record is one (provider, proxy type) pricing record as assembled by the
// pipeline. The wire fields derived from it (has_pricing, comparable,
// tier_count, min/max) are computed at marshal time so they can never
// drift from the tier list.
type Record struct {
	ProviderID   string
	ProviderName string
	ProxyType    ProxyType
	PriceURL     string
	Tiers        []Tier
	Comparison   Comparison
}

// HasPricing reports whether any tier was recognized for this record.
func (r Record) HasPricing() bool { return len(r.Tiers) > 0 }

// PricingModel returns the record's billing model label: per_gb for
// comparable records, the dominant model otherwise.
func (r Record) PricingModel() Model {
	switch c := r.Comparison.(type) {
	case Comparable:
		return ModelPerGB
	case NonComparable:
		return c.DominantModel
	default:
		return ModelUnknown
	}
}

// PerGBRange returns the record's $/GB range when comparable.
func (r Record) PerGBRange() (minPerGB, maxPerGB float64, ok bool) {
	c, ok := r.Comparison.(Comparable)
	if !ok {
		return 0, 0, false
	}
	return c.MinPerGB, c.MaxPerGB, true
}

// PerGBTiers returns the record's per-GB tiers in offer order.
func (r Record) PerGBTiers() []PerGBTier {
	var out []PerGBTier
	for _, t := range r.Tiers {
		if gb, ok := t.(PerGBTier); ok {
			out = append(out, gb)
		}
	}
	return out
}

// Provider is a proxy vendor. ID doubles as the URL slug and is globally
// unique; both are immutable for the duration of a pipeline run.
type Provider struct {
	ID                 string      `json:"id" validate:"required"`
	Name               string      `json:"name" validate:"required"`
	Slug               string      `json:"slug" validate:"required,slugchars"`
	WebsiteURL         string      `json:"website_url" validate:"omitempty,httpurl"`
	TrialOffer         *string     `json:"trial_offer"`
	ProxyTypes         []ProxyType `json:"proxy_types"`
	CheapestPricePerGB *float64    `json:"cheapest_price_per_gb" validate:"omitempty,gte=0"`
	HasPricingData     bool        `json:"has_pricing_data"`
	PricingCount       int         `json:"pricing_count" validate:"gte=0"`
}

// ProviderDataset is the providers.json envelope.
type ProviderDataset struct {
	Providers   []Provider `json:"providers"`
	TotalCount  int        `json:"total_count"`
	LastUpdated string     `json:"last_updated"`
}

// PricingDataset is the pricing.json envelope.
type PricingDataset struct {
	Pricing     []Record `json:"pricing"`
	TotalCount  int      `json:"total_count"`
	LastUpdated string   `json:"last_updated"`
}

// CalcRecord is a comparable record denormalized for the calculator:
// only its per-GB tiers are retained, so consumers never need to re-check
// comparability.
type CalcRecord struct {
	ProviderID    string      `json:"provider_id" validate:"required"`
	ProviderName  string      `json:"provider_name" validate:"required"`
	ProxyType     ProxyType   `json:"proxy_type"`
	Tiers         []PerGBTier `json:"tiers"`
	MinPricePerGB float64     `json:"min_price_per_gb" validate:"gte=0"`
	MaxPricePerGB float64     `json:"max_price_per_gb" validate:"gte=0"`
}

// FallbackRecord is a priced but non-comparable record surfaced as an
// alternative when no comparable provider matches a request.
type FallbackRecord struct {
	ProviderID   string    `json:"provider_id" validate:"required"`
	ProviderName string    `json:"provider_name" validate:"required"`
	ProxyType    ProxyType `json:"proxy_type"`
	PricingModel Model     `json:"pricing_model"`
	TierCount    int       `json:"tier_count" validate:"gte=0"`
	PriceURL     string    `json:"price_url,omitempty" validate:"omitempty,httpurl"`
}

// CalculatorDataset is the calculator.json envelope consumed by the
// recommendation engine.
type CalculatorDataset struct {
	SourceLastUpdated string           `json:"source_last_updated"`
	ComparablePricing []CalcRecord     `json:"comparable_pricing"`
	FallbackPricing   []FallbackRecord `json:"fallback_pricing"`
}

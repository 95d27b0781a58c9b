// Package validate is the consistency gate over the emitted datasets.
// It runs against in-memory pipeline results before any file is written,
// collects every violation instead of failing fast, and splits findings
// into fatal errors and warnings.
package validate

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/proxyprice/pipeline/internal/pricing"
)

// Severity classifies a violation. Errors abort publication; warnings
// tolerate intentional manual overrides and are only logged.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation is one independently reported consistency finding.
type Violation struct {
	Severity Severity
	Path     string
	Message  string
}

func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s: %s", v.Severity, v.Path, v.Message)
}

// Fatal filters violations down to the ones that must fail the run.
func Fatal(violations []Violation) []Violation {
	var out []Violation
	for _, v := range violations {
		if v.Severity == SeverityError {
			out = append(out, v)
		}
	}
	return out
}

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Checker validates pipeline output datasets.
type Checker struct {
	v *validator.Validate
}

// NewChecker builds a Checker with the slug and http(s)-URL rules the
// dataset structs are tagged with.
func NewChecker() *Checker {
	v := validator.New()
	// Registration only fails for empty tag names; these are constants.
	_ = v.RegisterValidation("slugchars", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return validHTTPURL(fl.Field().String())
	})
	return &Checker{v: v}
}

// Datasets runs every check across the three datasets and returns all
// violations found, warnings included.
func (c *Checker) Datasets(providers pricing.ProviderDataset, pricingDS pricing.PricingDataset, calc pricing.CalculatorDataset) []Violation {
	var vs []Violation
	providerIDs := map[string][]pricing.Record{}

	vs = append(vs, c.checkProviders(providers, providerIDs)...)
	vs = append(vs, c.checkPricing(pricingDS, providerIDs)...)
	vs = append(vs, c.checkAggregates(providers, providerIDs)...)
	vs = append(vs, c.checkCalculator(calc, providerIDs)...)
	return vs
}

func (c *Checker) checkProviders(ds pricing.ProviderDataset, providerIDs map[string][]pricing.Record) []Violation {
	var vs []Violation
	if ds.TotalCount != len(ds.Providers) {
		vs = append(vs, errorf("providers.total_count", "declared %d, actual %d", ds.TotalCount, len(ds.Providers)))
	}
	vs = append(vs, checkDate("providers.last_updated", ds.LastUpdated)...)

	for i, p := range ds.Providers {
		path := fmt.Sprintf("providers[%d]", i)
		vs = append(vs, c.structViolations(path, p)...)
		if p.Slug != p.ID {
			vs = append(vs, errorf(path+".slug", "slug %q must equal id %q", p.Slug, p.ID))
		}
		if _, dup := providerIDs[p.ID]; dup {
			vs = append(vs, errorf(path+".id", "duplicate provider id %q", p.ID))
			continue
		}
		providerIDs[p.ID] = nil
	}
	return vs
}

func (c *Checker) checkPricing(ds pricing.PricingDataset, providerIDs map[string][]pricing.Record) []Violation {
	var vs []Violation
	if ds.TotalCount != len(ds.Pricing) {
		vs = append(vs, errorf("pricing.total_count", "declared %d, actual %d", ds.TotalCount, len(ds.Pricing)))
	}
	vs = append(vs, checkDate("pricing.last_updated", ds.LastUpdated)...)

	for i, r := range ds.Pricing {
		path := fmt.Sprintf("pricing[%d]", i)
		if r.ProviderID == "" {
			vs = append(vs, errorf(path+".provider_id", "missing provider id"))
		} else if _, ok := providerIDs[r.ProviderID]; !ok {
			vs = append(vs, errorf(path+".provider_id", "references unknown provider %q", r.ProviderID))
		} else {
			providerIDs[r.ProviderID] = append(providerIDs[r.ProviderID], r)
		}
		if !r.ProxyType.Valid() {
			vs = append(vs, errorf(path+".proxy_type", "unknown proxy type %q", r.ProxyType))
		}
		if r.PriceURL != "" && !validHTTPURL(r.PriceURL) {
			vs = append(vs, errorf(path+".price_url", "malformed URL %q", r.PriceURL))
		}
		vs = append(vs, checkRecordShape(path, r)...)
	}
	return vs
}

// checkRecordShape enforces the structural invariants: comparable
// implies per-GB-only tiers with an ordered, present $/GB range; no
// pricing implies no tiers and non-comparable; all amounts finite and
// non-negative.
func checkRecordShape(path string, r pricing.Record) []Violation {
	var vs []Violation
	switch cmp := r.Comparison.(type) {
	case pricing.Comparable:
		if !r.HasPricing() {
			vs = append(vs, errorf(path, "comparable record has no tiers"))
		}
		for j, t := range r.Tiers {
			if t.Model() != pricing.ModelPerGB {
				vs = append(vs, errorf(fmt.Sprintf("%s.tiers[%d]", path, j), "comparable record carries %s tier", t.Model()))
			}
		}
		if cmp.MinPerGB > cmp.MaxPerGB {
			vs = append(vs, errorf(path, "min_price_per_gb %.4f exceeds max %.4f", cmp.MinPerGB, cmp.MaxPerGB))
		}
		if !finiteNonNegative(cmp.MinPerGB) || !finiteNonNegative(cmp.MaxPerGB) {
			vs = append(vs, errorf(path, "price range must be finite and non-negative"))
		}
	case pricing.NonComparable:
		// No range to check by construction.
	default:
		vs = append(vs, errorf(path, "record has no comparison result"))
	}

	if !r.HasPricing() && r.Comparison != nil && r.Comparison.Comparable() {
		vs = append(vs, errorf(path, "record without pricing marked comparable"))
	}
	for j, t := range r.Tiers {
		tpath := fmt.Sprintf("%s.tiers[%d]", path, j)
		if !finiteNonNegative(t.TotalPrice()) {
			vs = append(vs, errorf(tpath+".total", "must be finite and non-negative"))
		}
		switch tier := t.(type) {
		case pricing.PerGBTier:
			if !finiteNonNegative(tier.PricePerGB) {
				vs = append(vs, errorf(tpath+".price_per_gb", "must be finite and non-negative"))
			}
			if !finiteNonNegative(tier.GB) {
				vs = append(vs, errorf(tpath+".gb", "must be finite and non-negative"))
			}
		case pricing.PerIPTier:
			if !finiteNonNegative(tier.PricePerIP) {
				vs = append(vs, errorf(tpath+".price_per_ip", "must be finite and non-negative"))
			}
			if tier.IPs < 0 {
				vs = append(vs, errorf(tpath+".ips", "must be non-negative"))
			}
		}
	}
	return vs
}

// checkAggregates verifies the provider-level aggregates against the
// records that reference each provider. A cheapest-price mismatch is a
// warning, not fatal, to tolerate intentional manual overrides.
func (c *Checker) checkAggregates(ds pricing.ProviderDataset, providerIDs map[string][]pricing.Record) []Violation {
	var vs []Violation
	for i, p := range ds.Providers {
		path := fmt.Sprintf("providers[%d](%s)", i, p.ID)
		records := providerIDs[p.ID]

		if p.PricingCount != len(records) {
			vs = append(vs, errorf(path+".pricing_count", "declared %d, actual %d", p.PricingCount, len(records)))
		}
		anyPricing := false
		for _, r := range records {
			anyPricing = anyPricing || r.HasPricing()
		}
		if p.HasPricingData != anyPricing {
			vs = append(vs, errorf(path+".has_pricing_data", "declared %v, actual %v", p.HasPricingData, anyPricing))
		}

		cheapest, ok := pricing.CheapestPerGB(records)
		switch {
		case ok && p.CheapestPricePerGB == nil:
			vs = append(vs, warnf(path+".cheapest_price_per_gb", "missing, records say %.4f", cheapest))
		case ok && math.Abs(*p.CheapestPricePerGB-cheapest) > 1e-9:
			vs = append(vs, warnf(path+".cheapest_price_per_gb", "declared %.4f, records say %.4f", *p.CheapestPricePerGB, cheapest))
		case !ok && p.CheapestPricePerGB != nil:
			vs = append(vs, warnf(path+".cheapest_price_per_gb", "declared %.4f but no comparable records", *p.CheapestPricePerGB))
		}
	}
	return vs
}

func (c *Checker) checkCalculator(ds pricing.CalculatorDataset, providerIDs map[string][]pricing.Record) []Violation {
	var vs []Violation
	vs = append(vs, checkDate("calculator.source_last_updated", ds.SourceLastUpdated)...)

	for i, rec := range ds.ComparablePricing {
		path := fmt.Sprintf("calculator.comparable_pricing[%d]", i)
		vs = append(vs, c.structViolations(path, rec)...)
		if _, ok := providerIDs[rec.ProviderID]; !ok {
			vs = append(vs, errorf(path+".provider_id", "references unknown provider %q", rec.ProviderID))
		}
		if len(rec.Tiers) == 0 {
			vs = append(vs, errorf(path+".tiers", "comparable calculator record has no per-GB tiers"))
		}
		if rec.MinPricePerGB > rec.MaxPricePerGB {
			vs = append(vs, errorf(path, "min_price_per_gb %.4f exceeds max %.4f", rec.MinPricePerGB, rec.MaxPricePerGB))
		}
	}
	for i, rec := range ds.FallbackPricing {
		path := fmt.Sprintf("calculator.fallback_pricing[%d]", i)
		vs = append(vs, c.structViolations(path, rec)...)
		if _, ok := providerIDs[rec.ProviderID]; !ok {
			vs = append(vs, errorf(path+".provider_id", "references unknown provider %q", rec.ProviderID))
		}
		if rec.PricingModel == pricing.ModelPerGB {
			vs = append(vs, errorf(path+".pricing_model", "per_gb record does not belong in the fallback set"))
		}
		if rec.TierCount == 0 {
			vs = append(vs, errorf(path+".tier_count", "fallback record must have pricing tiers"))
		}
	}
	return vs
}

// structViolations maps go-playground field failures onto violations.
func (c *Checker) structViolations(path string, s any) []Violation {
	err := c.v.Struct(s)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []Violation{errorf(path, "validation: %v", err)}
	}
	var vs []Violation
	for _, fe := range fieldErrs {
		vs = append(vs, errorf(path+"."+strings.ToLower(fe.Field()), "failed %q rule (value %v)", fe.Tag(), fe.Value()))
	}
	return vs
}

func checkDate(path, value string) []Violation {
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return []Violation{errorf(path, "expected YYYY-MM-DD, got %q", value)}
	}
	return nil
}

// validHTTPURL accepts only absolute http(s) URLs with a host.
func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func errorf(path, format string, args ...any) Violation {
	return Violation{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)}
}

func warnf(path, format string, args ...any) Violation {
	return Violation{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)}
}

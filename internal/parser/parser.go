// Package parser turns free-text pricing offers into structured tiers.
//
// Offers are human-authored and inconsistent: one string may hold several
// tiers separated by newlines (or glued together with " + "), quote
// brackets as "71 GB$7/GB$499" triples, monthly plans, pay-as-you-go
// rates, or per-IP/per-thread unit pricing. The parser is an ordered
// cascade of independent pattern matchers; malformed text degrades to
// zero tiers, it never fails.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/proxyprice/pipeline/internal/pricing"
)

var (
	// "71 GB$7/GB$499" — volume bracket with advertised rate and total.
	reVolumeTriple = regexp.MustCompile(`(?i)^(\d[\d,]*(?:\.\d+)?)\s*GB\s*\$(\d[\d,]*(?:\.\d+)?)\s*/\s*GB\s*\$(\d[\d,]*(?:\.\d+)?)`)

	// "$499/71 GB: $7/GB" — plan form, rate as advertised.
	rePlanRate = regexp.MustCompile(`(?i)^\$(\d[\d,]*(?:\.\d+)?)\s*/\s*(\d[\d,]*(?:\.\d+)?)\s*GB\s*:\s*\$(\d[\d,]*(?:\.\d+)?)\s*/\s*GB`)

	// "10 IPs$2.50/IP$25" — per-IP bundle with unit rate and total.
	reIPTriple = regexp.MustCompile(`(?i)^(\d[\d,]*)\s*IPs?\s*\$(\d[\d,]*(?:\.\d+)?)\s*/\s*IP\s*\$(\d[\d,]*(?:\.\d+)?)`)

	// "Pay as you go: $1.50/GB".
	rePAYG = regexp.MustCompile(`(?i)^pay\s+as\s+you\s+go\s*:?\s*\$(\d[\d,]*(?:\.\d+)?)\s*/\s*GB`)

	// Bare "$1.50/GB" with no bracket: an unbounded single-unit rate.
	reBareGBRate = regexp.MustCompile(`(?i)^\$(\d[\d,]*(?:\.\d+)?)\s*/\s*GB(?:\s*/\s*mo(?:nth)?)?$`)

	// "$300/mo (100 GB)" and "$300/100 GB" monthly plans.
	reMonthlyMo    = regexp.MustCompile(`(?i)\$(\d[\d,]*(?:\.\d+)?)\s*/\s*mo(?:nth)?\b.*?(\d[\d,]*(?:\.\d+)?)\s*GB`)
	reMonthlyPlain = regexp.MustCompile(`(?i)\$(\d[\d,]*(?:\.\d+)?)\s*/\s*(\d[\d,]*(?:\.\d+)?)\s*GB`)

	// "$2/IP" or "$2 per IP", bundle size optional elsewhere in the segment.
	reIPRate  = regexp.MustCompile(`(?i)\$(\d[\d,]*(?:\.\d+)?)\s*(?:/\s*IP|per\s+IP)`)
	reIPCount = regexp.MustCompile(`(?i)(\d[\d,]*)\s*IPs?\b`)

	// "100 Threads: $60" and "$0.14/thread/day".
	reThreadCount = regexp.MustCompile(`(?i)(\d[\d,]*)\s*threads?\b[^$]*\$(\d[\d,]*(?:\.\d+)?)`)
	reThreadRate  = regexp.MustCompile(`(?i)\$(\d[\d,]*(?:\.\d+)?)\s*/\s*thread(?:\s*/\s*day)?`)

	// "500 Proxies: $120" and "$1.20/port".
	reProxyCount = regexp.MustCompile(`(?i)(\d[\d,]*)\s*prox(?:ies|y)\b[^$]*\$(\d[\d,]*(?:\.\d+)?)`)
	rePortRate   = regexp.MustCompile(`(?i)\$(\d[\d,]*(?:\.\d+)?)\s*/\s*port`)

	reSegmentSplit = regexp.MustCompile(`\s\+\s`)
)

// ParseOffers parses a multi-line offer string into tiers, one tier per
// recognized segment. Lines split into segments on " + " so combined
// offers like "$2/IP/month + $0.10/GB" yield one tier per billing model.
// Unrecognized segments are skipped; the result is empty, never an error,
// for garbage input.
func ParseOffers(offers string) []pricing.Tier {
	var tiers []pricing.Tier
	for _, line := range strings.Split(offers, "\n") {
		for _, segment := range reSegmentSplit.Split(line, -1) {
			segment = strings.TrimSpace(segment)
			if segment == "" {
				continue
			}
			if tier, ok := parseSegment(segment); ok {
				tiers = append(tiers, tier)
			}
		}
	}
	return tiers
}

// parseSegment runs the matcher cascade; the first match wins.
func parseSegment(segment string) (pricing.Tier, bool) {
	for _, match := range matchers {
		if tier, ok := match(segment); ok {
			return tier, true
		}
	}
	return nil, false
}

// matchers is the recognition cascade, highest-priority pattern first.
// Order matters: the volume triple must win over the bare $X/GB rate it
// contains, and explicit PAYG over the bare rate form.
var matchers = []func(string) (pricing.Tier, bool){
	matchVolumeTriple,
	matchPlanRate,
	matchIPTriple,
	matchPAYG,
	matchBareGBRate,
	matchMonthlyPlan,
	matchIPRate,
	matchThread,
	matchProxy,
}

func matchVolumeTriple(s string) (pricing.Tier, bool) {
	m := reVolumeTriple.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	gb, ok1 := parseAmount(m[1])
	advertised, ok2 := parseAmount(m[2])
	total, ok3 := parseAmount(m[3])
	if !ok1 || !ok2 || !ok3 {
		return nil, false
	}
	// The bracket arithmetic wins over the advertised rate when they
	// disagree: 71 GB for $499 is $7.03/GB however the vendor rounds it.
	rate := advertised
	if gb > 0 && total > 0 {
		rate = derivedRate(total, gb)
	}
	return pricing.PerGBTier{GB: gb, PricePerGB: rate, Total: total}, true
}

func matchPlanRate(s string) (pricing.Tier, bool) {
	m := rePlanRate.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	total, ok1 := parseAmount(m[1])
	gb, ok2 := parseAmount(m[2])
	rate, ok3 := parseAmount(m[3])
	if !ok1 || !ok2 || !ok3 {
		return nil, false
	}
	return pricing.PerGBTier{GB: gb, PricePerGB: rate, Total: total}, true
}

func matchIPTriple(s string) (pricing.Tier, bool) {
	m := reIPTriple.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	ips, ok1 := parseCount(m[1])
	rate, ok2 := parseAmount(m[2])
	total, ok3 := parseAmount(m[3])
	if !ok1 || !ok2 || !ok3 {
		return nil, false
	}
	return pricing.PerIPTier{IPs: ips, PricePerIP: rate, Total: total}, true
}

func matchPAYG(s string) (pricing.Tier, bool) {
	m := rePAYG.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	rate, ok := parseAmount(m[1])
	if !ok {
		return nil, false
	}
	return paygTier(rate), true
}

func matchBareGBRate(s string) (pricing.Tier, bool) {
	m := reBareGBRate.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	rate, ok := parseAmount(m[1])
	if !ok {
		return nil, false
	}
	return paygTier(rate), true
}

func matchMonthlyPlan(s string) (pricing.Tier, bool) {
	m := reMonthlyMo.FindStringSubmatch(s)
	if m == nil {
		m = reMonthlyPlain.FindStringSubmatch(s)
	}
	if m == nil {
		return nil, false
	}
	total, ok1 := parseAmount(m[1])
	gb, ok2 := parseAmount(m[2])
	if !ok1 || !ok2 || gb <= 0 {
		return nil, false
	}
	return pricing.PerGBTier{GB: gb, PricePerGB: derivedRate(total, gb), Total: total}, true
}

func matchIPRate(s string) (pricing.Tier, bool) {
	m := reIPRate.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	rate, ok := parseAmount(m[1])
	if !ok {
		return nil, false
	}
	tier := pricing.PerIPTier{PricePerIP: rate}
	if c := reIPCount.FindStringSubmatch(s); c != nil {
		if ips, ok := parseCount(c[1]); ok {
			tier.IPs = ips
		}
	}
	return tier, true
}

func matchThread(s string) (pricing.Tier, bool) {
	if m := reThreadCount.FindStringSubmatch(s); m != nil {
		threads, ok1 := parseCount(m[1])
		total, ok2 := parseAmount(m[2])
		if ok1 && ok2 {
			return pricing.PerThreadTier{Threads: threads, Total: total}, true
		}
	}
	if m := reThreadRate.FindStringSubmatch(s); m != nil {
		if rate, ok := parseAmount(m[1]); ok {
			return pricing.PerThreadTier{Threads: 1, Total: rate}, true
		}
	}
	return nil, false
}

func matchProxy(s string) (pricing.Tier, bool) {
	if m := reProxyCount.FindStringSubmatch(s); m != nil {
		proxies, ok1 := parseCount(m[1])
		total, ok2 := parseAmount(m[2])
		if ok1 && ok2 {
			return pricing.PerProxyTier{Proxies: proxies, Total: total}, true
		}
	}
	if m := rePortRate.FindStringSubmatch(s); m != nil {
		if rate, ok := parseAmount(m[1]); ok {
			return pricing.PerProxyTier{Proxies: 1, Total: rate}, true
		}
	}
	return nil, false
}

// paygTier is the single-unit unbounded rate form: one GB at the quoted
// rate, applicable to any requested volume.
func paygTier(rate float64) pricing.PerGBTier {
	return pricing.PerGBTier{GB: 1, PricePerGB: rate, Total: rate, PAYG: true}
}

// derivedRate computes total/gb at two decimal places using decimal
// arithmetic, matching how vendors themselves round bracket rates.
func derivedRate(total, gb float64) float64 {
	return decimal.NewFromFloat(total).
		Div(decimal.NewFromFloat(gb)).
		Round(2).
		InexactFloat64()
}

// parseAmount parses a captured money or volume token, tolerating
// currency symbols and thousands separators. Failures mean the segment
// is skipped, never a hard error.
func parseAmount(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', ',', ' ':
			return -1
		}
		return r
	}, s)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// parseCount parses an integer token with optional thousands separators.
func parseCount(s string) (int, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.Atoi(cleaned)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

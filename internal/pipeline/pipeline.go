// Package pipeline orchestrates the batch transform: raw CSV in,
// validated providers/pricing/calculator datasets out. Every run fully
// recomputes and overwrites the outputs; there is no incremental merge,
// and nothing is written until the validator gate has passed against the
// in-memory results.
package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog"

	"github.com/proxyprice/pipeline/internal/parser"
	"github.com/proxyprice/pipeline/internal/pricing"
	"github.com/proxyprice/pipeline/internal/validate"
)

// Output file names, fixed by the consumer contract.
const (
	ProvidersFile  = "providers.json"
	PricingFile    = "pricing.json"
	CalculatorFile = "calculator.json"
)

// Source table column headers.
const (
	colName       = "Name"
	colProperty   = "Property Name"
	colPriceURL   = "Price URL"
	colOffers     = "Price Offers"
	colTrialOffer = "Trial Offer"
)

// Datasets holds one run's in-memory results before publication.
type Datasets struct {
	Providers  pricing.ProviderDataset
	Pricing    pricing.PricingDataset
	Calculator pricing.CalculatorDataset
}

// sourceRow is one raw CSV row after header mapping.
type sourceRow struct {
	providerName string
	proxyLabel   string
	priceURL     string
	offers       string
	trialOffer   string
}

// Run builds the datasets, gates them through the validator, and writes
// the three output files atomically. On any fatal violation the previous
// outputs are left untouched.
func Run(cfg Config, logger zerolog.Logger) error {
	start := time.Now()

	ds, err := Build(cfg.CSVPath, logger)
	if err != nil {
		return err
	}

	checker := validate.NewChecker()
	violations := checker.Datasets(ds.Providers, ds.Pricing, ds.Calculator)
	fatal := validate.Fatal(violations)
	for _, v := range violations {
		if v.Severity == validate.SeverityWarning {
			logger.Warn().Str("path", v.Path).Msg(v.Message)
		} else {
			logger.Error().Str("path", v.Path).Msg(v.Message)
		}
	}
	if len(fatal) > 0 {
		return fmt.Errorf("validation failed with %d violation(s), outputs not written", len(fatal))
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	outputs := []output{
		{ProvidersFile, ds.Providers},
		{PricingFile, ds.Pricing},
		{CalculatorFile, ds.Calculator},
	}
	if err := writeOutputs(cfg.OutDir, outputs); err != nil {
		return err
	}

	logger.Info().
		Str("csv", cfg.CSVPath).
		Str("out_dir", cfg.OutDir).
		Int("providers", ds.Providers.TotalCount).
		Int("pricing_records", ds.Pricing.TotalCount).
		Int("comparable", len(ds.Calculator.ComparablePricing)).
		Int("fallback", len(ds.Calculator.FallbackPricing)).
		Int("warnings", len(violations)-len(fatal)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("pipeline completed")
	return nil
}

// Build reads the CSV and assembles the three datasets in memory.
func Build(csvPath string, logger zerolog.Logger) (*Datasets, error) {
	rows, err := readSource(csvPath)
	if err != nil {
		return nil, err
	}
	lastUpdated := sourceDate(csvPath)

	providersByID := map[string]*pricing.Provider{}
	var order []string
	var records []pricing.Record

	for _, row := range rows {
		if row.providerName == "" || row.proxyLabel == "" {
			continue
		}
		id := slug.Make(row.providerName)
		p, ok := providersByID[id]
		if !ok {
			p = &pricing.Provider{
				ID:         id,
				Name:       row.providerName,
				Slug:       id,
				WebsiteURL: websiteFromURL(row.priceURL),
			}
			if row.trialOffer != "" {
				trial := row.trialOffer
				p.TrialOffer = &trial
			}
			providersByID[id] = p
			order = append(order, id)
		}

		proxyType := pricing.ParseProxyType(row.proxyLabel)
		if !containsType(p.ProxyTypes, proxyType) {
			p.ProxyTypes = append(p.ProxyTypes, proxyType)
		}

		tiers := parser.ParseOffers(row.offers)
		rec := pricing.NewRecord(id, row.providerName, proxyType, row.priceURL, tiers)
		records = append(records, rec)

		logger.Debug().
			Str("provider", id).
			Str("proxy_type", string(proxyType)).
			Int("tiers", len(tiers)).
			Bool("comparable", rec.Comparison.Comparable()).
			Msg("row parsed")
	}

	providers := assembleProviders(order, providersByID, records)
	calc := assembleCalculator(records, lastUpdated)

	return &Datasets{
		Providers: pricing.ProviderDataset{
			Providers:   providers,
			TotalCount:  len(providers),
			LastUpdated: lastUpdated,
		},
		Pricing: pricing.PricingDataset{
			Pricing:     records,
			TotalCount:  len(records),
			LastUpdated: lastUpdated,
		},
		Calculator: calc,
	}, nil
}

// assembleProviders computes per-provider aggregates and orders the list
// by cheapest comparable price, priceless providers last, names breaking
// ties so re-runs are byte-stable.
func assembleProviders(order []string, byID map[string]*pricing.Provider, records []pricing.Record) []pricing.Provider {
	recordsByProvider := map[string][]pricing.Record{}
	for _, r := range records {
		recordsByProvider[r.ProviderID] = append(recordsByProvider[r.ProviderID], r)
	}

	providers := make([]pricing.Provider, 0, len(order))
	for _, id := range order {
		p := *byID[id]
		recs := recordsByProvider[id]
		p.PricingCount = len(recs)
		for _, r := range recs {
			p.HasPricingData = p.HasPricingData || r.HasPricing()
		}
		if cheapest, ok := pricing.CheapestPerGB(recs); ok {
			p.CheapestPricePerGB = &cheapest
		}
		providers = append(providers, p)
	}

	sort.SliceStable(providers, func(i, j int) bool {
		a, b := providers[i].CheapestPricePerGB, providers[j].CheapestPricePerGB
		switch {
		case a == nil && b == nil:
			return providers[i].Name < providers[j].Name
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a < *b
		default:
			return providers[i].Name < providers[j].Name
		}
	})
	return providers
}

// assembleCalculator pre-filters and pre-sorts records for the
// recommendation engine: comparable records keep only their per-GB
// tiers; priced non-comparable records form the fallback set.
func assembleCalculator(records []pricing.Record, lastUpdated string) pricing.CalculatorDataset {
	calc := pricing.CalculatorDataset{SourceLastUpdated: lastUpdated}
	for _, r := range records {
		if minPerGB, maxPerGB, ok := r.PerGBRange(); ok {
			calc.ComparablePricing = append(calc.ComparablePricing, pricing.CalcRecord{
				ProviderID:    r.ProviderID,
				ProviderName:  r.ProviderName,
				ProxyType:     r.ProxyType,
				Tiers:         r.PerGBTiers(),
				MinPricePerGB: minPerGB,
				MaxPricePerGB: maxPerGB,
			})
			continue
		}
		if r.HasPricing() {
			calc.FallbackPricing = append(calc.FallbackPricing, pricing.FallbackRecord{
				ProviderID:   r.ProviderID,
				ProviderName: r.ProviderName,
				ProxyType:    r.ProxyType,
				PricingModel: r.PricingModel(),
				TierCount:    len(r.Tiers),
				PriceURL:     r.PriceURL,
			})
		}
	}
	sort.SliceStable(calc.ComparablePricing, func(i, j int) bool {
		if calc.ComparablePricing[i].MinPricePerGB != calc.ComparablePricing[j].MinPricePerGB {
			return calc.ComparablePricing[i].MinPricePerGB < calc.ComparablePricing[j].MinPricePerGB
		}
		return calc.ComparablePricing[i].ProviderID < calc.ComparablePricing[j].ProviderID
	})
	sort.SliceStable(calc.FallbackPricing, func(i, j int) bool {
		return calc.FallbackPricing[i].ProviderID < calc.FallbackPricing[j].ProviderID
	})
	return calc
}

// readSource parses the CSV, tolerating a UTF-8 BOM and quoted embedded
// newlines in the offers column.
func readSource(path string) ([]sourceRow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source table: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := map[string]int{}
	for i, name := range header {
		index[name] = i
	}
	for _, required := range []string{colName, colProperty} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("source table missing required column %q", required)
		}
	}
	field := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var rows []sourceRow
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rows = append(rows, sourceRow{
			providerName: field(row, colName),
			proxyLabel:   field(row, colProperty),
			priceURL:     field(row, colPriceURL),
			offers:       field(row, colOffers),
			trialOffer:   field(row, colTrialOffer),
		})
	}
	return rows, nil
}

// sourceDate derives last_updated from the source file's modification
// time so the freshness indicator can never be hand-edited; the run time
// is the fallback for unstatable input. Both paths format in UTC so the
// date cannot shift with the host timezone.
func sourceDate(path string) string {
	if info, err := os.Stat(path); err == nil {
		return info.ModTime().UTC().Format("2006-01-02")
	}
	return time.Now().UTC().Format("2006-01-02")
}

// websiteFromURL reduces a pricing URL to the vendor's base site.
func websiteFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return "https://" + strings.TrimPrefix(u.Hostname(), "www.")
}

func containsType(types []pricing.ProxyType, t pricing.ProxyType) bool {
	for _, existing := range types {
		if existing == t {
			return true
		}
	}
	return false
}

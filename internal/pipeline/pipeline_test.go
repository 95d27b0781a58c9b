package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxyprice/pipeline/internal/pricing"
)

const sampleCSV = `Name,Property Name,Price URL,Price Offers,Trial Offer
Acme Proxies,Residential,https://www.acme.example/pricing,"1 GB$8/GB$8
71 GB$7/GB$499",3-day trial
Acme Proxies,Datacenter,https://www.acme.example/pricing,Pay as you go: $1.50/GB,
IP Vendor,Datacenter,https://ipvendor.example/plans,10 IPs$2.50/IP$25,
Mystery Co,Mobile,,Contact sales,
`

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Price.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildGroupsRowsByProvider(t *testing.T) {
	ds, err := Build(writeCSV(t, sampleCSV), zerolog.Nop())
	require.NoError(t, err)

	require.Equal(t, 3, ds.Providers.TotalCount)
	require.Equal(t, 4, ds.Pricing.TotalCount)

	byID := map[string]pricing.Provider{}
	for _, p := range ds.Providers.Providers {
		byID[p.ID] = p
	}

	acme := byID["acme-proxies"]
	assert.Equal(t, "Acme Proxies", acme.Name)
	assert.Equal(t, "acme-proxies", acme.Slug)
	assert.Equal(t, "https://acme.example", acme.WebsiteURL)
	require.NotNil(t, acme.TrialOffer)
	assert.Equal(t, "3-day trial", *acme.TrialOffer)
	assert.ElementsMatch(t, []pricing.ProxyType{pricing.TypeResidential, pricing.TypeDatacenter}, acme.ProxyTypes)
	assert.Equal(t, 2, acme.PricingCount)
	assert.True(t, acme.HasPricingData)
	require.NotNil(t, acme.CheapestPricePerGB)
	assert.Equal(t, 1.5, *acme.CheapestPricePerGB)

	vendor := byID["ip-vendor"]
	assert.True(t, vendor.HasPricingData)
	assert.Nil(t, vendor.CheapestPricePerGB)

	mystery := byID["mystery-co"]
	assert.False(t, mystery.HasPricingData)
	assert.Nil(t, mystery.CheapestPricePerGB)
	assert.Equal(t, 1, mystery.PricingCount)
}

func TestBuildProviderOrdering(t *testing.T) {
	ds, err := Build(writeCSV(t, sampleCSV), zerolog.Nop())
	require.NoError(t, err)

	var ids []string
	for _, p := range ds.Providers.Providers {
		ids = append(ids, p.ID)
	}
	// Cheapest comparable price first, priceless providers last.
	assert.Equal(t, []string{"acme-proxies", "ip-vendor", "mystery-co"}, ids)
}

func TestBuildCalculatorSplit(t *testing.T) {
	ds, err := Build(writeCSV(t, sampleCSV), zerolog.Nop())
	require.NoError(t, err)

	require.Len(t, ds.Calculator.ComparablePricing, 2)
	// Sorted by min $/GB: the datacenter PAYG record before the
	// residential brackets.
	first := ds.Calculator.ComparablePricing[0]
	assert.Equal(t, "acme-proxies", first.ProviderID)
	assert.Equal(t, pricing.TypeDatacenter, first.ProxyType)
	assert.Equal(t, 1.5, first.MinPricePerGB)

	second := ds.Calculator.ComparablePricing[1]
	assert.Equal(t, pricing.TypeResidential, second.ProxyType)
	assert.Equal(t, 7.03, second.MinPricePerGB)
	assert.Equal(t, 8.0, second.MaxPricePerGB)
	require.Len(t, second.Tiers, 2)

	// Per-IP pricing is priced but not comparable, so it lands in the
	// fallback set; the unpriced provider appears nowhere.
	require.Len(t, ds.Calculator.FallbackPricing, 1)
	fb := ds.Calculator.FallbackPricing[0]
	assert.Equal(t, "ip-vendor", fb.ProviderID)
	assert.Equal(t, pricing.ModelPerIP, fb.PricingModel)
	assert.Equal(t, 1, fb.TierCount)
}

func TestBuildToleratesBOM(t *testing.T) {
	ds, err := Build(writeCSV(t, "\xef\xbb\xbf"+sampleCSV), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Providers.TotalCount)
}

func TestBuildSkipsIncompleteRows(t *testing.T) {
	csv := "Name,Property Name,Price URL,Price Offers,Trial Offer\n" +
		",Residential,https://x.example,$1/GB,\n" +
		"No Property,,https://x.example,$1/GB,\n" +
		"Real,Residential,https://real.example/p,$1/GB,\n"
	ds, err := Build(writeCSV(t, csv), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Providers.TotalCount)
	assert.Equal(t, 1, ds.Pricing.TotalCount)
}

func TestBuildMissingColumn(t *testing.T) {
	_, err := Build(writeCSV(t, "Name,Price URL\nAcme,https://x.example\n"), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Property Name")
}

func TestBuildMissingFile(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "absent.csv"), zerolog.Nop())
	assert.Error(t, err)
}

func TestRunWritesAllOutputs(t *testing.T) {
	outDir := t.TempDir()
	cfg := Config{
		CSVPath: writeCSV(t, sampleCSV),
		OutDir:  outDir,
	}

	require.NoError(t, Run(cfg, zerolog.Nop()))

	var providers pricing.ProviderDataset
	decodeFile(t, filepath.Join(outDir, ProvidersFile), &providers)
	assert.Equal(t, 3, providers.TotalCount)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, providers.LastUpdated)

	var pricingDS pricing.PricingDataset
	decodeFile(t, filepath.Join(outDir, PricingFile), &pricingDS)
	assert.Equal(t, 4, pricingDS.TotalCount)
	assert.Len(t, pricingDS.Pricing, 4)

	var calc pricing.CalculatorDataset
	decodeFile(t, filepath.Join(outDir, CalculatorFile), &calc)
	assert.Len(t, calc.ComparablePricing, 2)
	assert.Len(t, calc.FallbackPricing, 1)
}

func TestRunCreatesOutDir(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "nested", "data")
	cfg := Config{
		CSVPath: writeCSV(t, sampleCSV),
		OutDir:  outDir,
	}

	require.NoError(t, Run(cfg, zerolog.Nop()))
	_, err := os.Stat(filepath.Join(outDir, ProvidersFile))
	assert.NoError(t, err)
}

func TestRunLeavesNoTempFiles(t *testing.T) {
	outDir := t.TempDir()
	cfg := Config{
		CSVPath: writeCSV(t, sampleCSV),
		OutDir:  outDir,
	}
	require.NoError(t, Run(cfg, zerolog.Nop()))

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{ProvidersFile, PricingFile, CalculatorFile}, names)
}

func TestBuildIsDeterministic(t *testing.T) {
	path := writeCSV(t, sampleCSV)

	first, err := Build(path, zerolog.Nop())
	require.NoError(t, err)
	second, err := Build(path, zerolog.Nop())
	require.NoError(t, err)

	pairs := []struct {
		name string
		a, b any
	}{
		{"providers", first.Providers, second.Providers},
		{"pricing", first.Pricing, second.Pricing},
		{"calculator", first.Calculator, second.Calculator},
	}
	for _, p := range pairs {
		a, err := json.MarshalIndent(p.a, "", "  ")
		require.NoError(t, err)
		b, err := json.MarshalIndent(p.b, "", "  ")
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), "%s output must be byte-stable across re-runs", p.name)
	}
}

func TestWriteOutputsPublishesNothingOnStagingFailure(t *testing.T) {
	dir := t.TempDir()
	outputs := []output{
		{"a.json", map[string]string{"k": "v"}},
		{"b.json", map[string]string{"k": "v"}},
		{"c.json", make(chan int)}, // not serializable
	}

	err := writeOutputs(dir, outputs)
	require.Error(t, err)

	// Neither the already-staged datasets nor their temp files survive.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSourceDateUsesUTC(t *testing.T) {
	path := writeCSV(t, sampleCSV)
	stamp := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, stamp, stamp))

	// Late-evening UTC mtimes must not roll into the next day on hosts
	// east of Greenwich.
	assert.Equal(t, "2026-03-01", sourceDate(path))
}

func TestWebsiteFromURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.acme.example/pricing?ref=x", "https://acme.example"},
		{"https://acme.example/pricing", "https://acme.example"},
		{"", ""},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, websiteFromURL(tt.in), "input %q", tt.in)
	}
}

func decodeFile(t *testing.T, path string, v any) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

// proxyprice-calc queries a published calculator.json for provider
// recommendations at a given monthly volume and proxy type, printing a
// ranked table (or the fallback alternatives when nothing ranks) to
// stdout.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/proxyprice/pipeline/internal/pricing"
	"github.com/proxyprice/pipeline/internal/recommend"
)

func main() {
	dataPath := flag.String("data", "data/calculator.json", "Path to calculator.json")
	gb := flag.Float64("gb", 0, "Requested monthly volume in GB")
	proxyType := flag.String("type", "residential", "Proxy type (residential, datacenter, mobile, isp, other)")
	asJSON := flag.Bool("json", false, "Emit the raw result as JSON instead of a table")
	popular := flag.String("popular", "", "Comma-separated provider ids overriding the popularity tie-break list")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	raw, err := os.ReadFile(*dataPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("read calculator dataset")
	}
	var ds pricing.CalculatorDataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		logger.Fatal().Err(err).Str("path", *dataPath).Msg("parse calculator dataset")
	}

	opts := recommend.Options{}
	if *popular != "" {
		for _, id := range strings.Split(*popular, ",") {
			if id = strings.TrimSpace(id); id != "" {
				opts.PopularProviders = append(opts.PopularProviders, id)
			}
		}
	}

	result, err := recommend.ForVolume(ds, *gb, pricing.ProxyType(*proxyType), opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("recommendation failed")
	}

	if *asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			logger.Fatal().Err(err).Msg("encode result")
		}
		fmt.Println(string(out))
		return
	}

	printResult(result, *gb, *proxyType)
}

func printResult(result recommend.Result, gb float64, proxyType string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if len(result.Recommendations) == 0 {
		fmt.Fprintf(os.Stdout, "No comparable %s providers cover %.0f GB. Alternatives:\n\n", proxyType, gb)
		fmt.Fprintln(w, "PROVIDER\tMODEL\tTIERS\tPRICING PAGE")
		for _, f := range result.Fallback {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", f.ProviderName, f.PricingModel, f.TierCount, f.PriceURL)
		}
		return
	}

	fmt.Fprintf(os.Stdout, "Recommendations for %.0f GB of %s proxies:\n\n", gb, proxyType)
	fmt.Fprintln(w, "#\tPROVIDER\t$/GB\tMONTHLY\tREASON\tFLAGS")
	for i, r := range result.Recommendations {
		var flags []string
		if r.IsBestValue {
			flags = append(flags, "best value")
		}
		if r.IsMostPopular {
			flags = append(flags, "popular")
		}
		fmt.Fprintf(w, "%d\t%s\t$%.2f\t$%.0f\t%s\t%s\n",
			i+1, r.ProviderName, r.PricePerGB, r.MonthlyCost, r.Reason, strings.Join(flags, ", "))
	}
}

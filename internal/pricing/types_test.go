package pricing

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProxyType(t *testing.T) {
	tests := []struct {
		label string
		want  ProxyType
	}{
		{"Residential", TypeResidential},
		{"Rotating Residential Proxies", TypeResidential},
		{"  residential  ", TypeResidential},
		{"Datacenter", TypeDatacenter},
		{"Shared Data Center", TypeDatacenter},
		{"Mobile 4G/5G", TypeMobile},
		{"Static ISP", TypeISP},
		{"SOCKS5", TypeOther},
		{"", TypeOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseProxyType(tt.label), "label %q", tt.label)
	}
}

func TestProxyTypeValid(t *testing.T) {
	for _, pt := range ProxyTypes {
		assert.True(t, pt.Valid())
	}
	assert.False(t, ProxyType("socks5").Valid())
	assert.False(t, ProxyType("").Valid())
}

func TestPerGBTierCovers(t *testing.T) {
	bracket := PerGBTier{GB: 100, PricePerGB: 0.5, Total: 50}
	assert.True(t, bracket.Covers(50))
	assert.True(t, bracket.Covers(100))
	assert.False(t, bracket.Covers(100.1))

	payg := PerGBTier{GB: 1, PricePerGB: 1.5, Total: 1.5, PAYG: true}
	assert.True(t, payg.Covers(0))
	assert.True(t, payg.Covers(999))
}

func TestRecordPricingModel(t *testing.T) {
	comparable := NewRecord("a", "A", TypeResidential, "", []Tier{PerGBTier{GB: 1, PricePerGB: 2, Total: 2}})
	assert.Equal(t, ModelPerGB, comparable.PricingModel())

	perIP := NewRecord("a", "A", TypeResidential, "", []Tier{PerIPTier{PricePerIP: 2}})
	assert.Equal(t, ModelPerIP, perIP.PricingModel())

	assert.Equal(t, ModelUnknown, Record{}.PricingModel())
}

func TestRecordMarshalDerivesFlags(t *testing.T) {
	rec := NewRecord("soax", "SOAX", TypeResidential, "https://soax.com/pricing", []Tier{
		PerGBTier{GB: 1, PricePerGB: 8, Total: 8},
		PerGBTier{GB: 71, PricePerGB: 7.03, Total: 499},
	})

	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, true, wire["has_pricing"])
	assert.Equal(t, true, wire["comparable"])
	assert.Equal(t, float64(2), wire["tier_count"])
	assert.Equal(t, 7.03, wire["min_price_per_gb"])
	assert.Equal(t, 8.0, wire["max_price_per_gb"])
	assert.Equal(t, "per_gb", wire["pricing_model"])
}

func TestRecordMarshalNonComparable(t *testing.T) {
	rec := NewRecord("webshare", "Webshare", TypeDatacenter, "", []Tier{PerIPTier{IPs: 10, PricePerIP: 2.5, Total: 25}})

	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, false, wire["comparable"])
	assert.Equal(t, "per_ip", wire["pricing_model"])
	assert.Nil(t, wire["min_price_per_gb"])
	assert.Nil(t, wire["max_price_per_gb"])
}

func TestRecordRoundTrip(t *testing.T) {
	rec := NewRecord("soax", "SOAX", TypeResidential, "https://soax.com/pricing", []Tier{
		PerGBTier{GB: 71, PricePerGB: 7.03, Total: 499},
		PerGBTier{GB: 1, PricePerGB: 1.5, Total: 1.5, PAYG: true},
	})

	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, rec.ProviderID, decoded.ProviderID)
	assert.Equal(t, rec.ProxyType, decoded.ProxyType)
	assert.Equal(t, rec.Tiers, decoded.Tiers)
	assert.Equal(t, rec.Comparison, decoded.Comparison)
}

func TestUnmarshalTierUnknownModel(t *testing.T) {
	_, err := UnmarshalTier([]byte(`{"pricing_model":"per_request"}`))
	assert.Error(t, err)
}

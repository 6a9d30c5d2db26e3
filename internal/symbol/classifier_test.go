package symbol

import (
	"testing"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		code string
		want domain.Market
	}{
		{"600519", domain.MarketAShare},
		{"sh600519", domain.MarketAShare},
		{"000001", domain.MarketAShare},
		{"sh000001", domain.MarketIndex},
		{"sz399001", domain.MarketIndex},
		{"510300", domain.MarketETF},
		{"159919", domain.MarketETF},
		{"0700.HK", domain.MarketHK},
		{"00700", domain.MarketHK},
		{"2330", domain.MarketTW},
		{"2330.TW", domain.MarketTW},
		{"AAPL", domain.MarketUS},
		{"BRK.B", domain.MarketUS},
	}

	for _, c := range cases {
		got := Classify(c.code)
		assert.Equalf(t, c.want, got.Market, "Classify(%q)", c.code)
		assert.Equal(t, c.code, got.Code)
	}
}

func TestClassify_TrimsWhitespace(t *testing.T) {
	got := Classify("  600519  ")
	assert.Equal(t, domain.MarketAShare, got.Market)
}

func TestClassify_ResolvesExchange(t *testing.T) {
	cases := []struct {
		code string
		want domain.Exchange
	}{
		{"600519", domain.ExchangeSH},
		{"688981", domain.ExchangeSH},
		{"510300", domain.ExchangeSH},
		{"000001", domain.ExchangeSZ},
		{"002594", domain.ExchangeSZ},
		{"300750", domain.ExchangeSZ},
		{"159919", domain.ExchangeSZ},
		{"sh000001", domain.ExchangeSH},
		{"sz399001", domain.ExchangeSZ},
		{"600519.SS", domain.ExchangeSH},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, Classify(c.code).Exchange, "Classify(%q)", c.code)
	}
}

func TestClassify_ForeignSymbolsCarryNoExchange(t *testing.T) {
	for _, code := range []string{"AAPL", "0700.HK", "2330.TW"} {
		assert.Emptyf(t, Classify(code).Exchange, "Classify(%q)", code)
	}
}

// The classifier owns every per-source code spelling; fetchers read the
// derived formats instead of re-parsing the raw string.
func TestClassify_PerSourceFormats(t *testing.T) {
	maotai := Classify("600519")
	assert.Equal(t, "sh600519", maotai.TencentCode())
	assert.Equal(t, "sh600519", maotai.SinaCode())
	assert.Equal(t, "600519.SH", maotai.TushareCode())
	assert.Equal(t, "sh.600519", maotai.BaostockCode())
	assert.Equal(t, "600519.SS", maotai.YahooCode())
	assert.Equal(t, "1", maotai.EastmoneyMarketID())

	pingan := Classify("000001")
	assert.Equal(t, "sz000001", pingan.TencentCode())
	assert.Equal(t, "000001.SZ", pingan.TushareCode())
	assert.Equal(t, "sz.000001", pingan.BaostockCode())
	assert.Equal(t, "000001.SZ", pingan.YahooCode())
	assert.Equal(t, "0", pingan.EastmoneyMarketID())

	tencentHK := Classify("0700.HK")
	assert.Equal(t, "hk0700", tencentHK.TencentCode())
	assert.Equal(t, "hk0700", tencentHK.SinaCode())
	assert.Equal(t, "0700.HK", tencentHK.YahooCode())

	apple := Classify("AAPL")
	assert.Equal(t, "usAAPL", apple.TencentCode())
	assert.Equal(t, "gb_aapl", apple.SinaCode())
	assert.Equal(t, "AAPL", apple.YahooCode())

	tsmc := Classify("2330")
	assert.Equal(t, "2330.TW", tsmc.YahooCode())

	shIndex := Classify("sh000001")
	assert.Equal(t, "sh000001", shIndex.TencentCode())
}

// Classifying a spelling the classifier itself produced lands on the same
// record.
func TestClassify_Idempotent(t *testing.T) {
	first := Classify("600519")
	again := Classify(first.TencentCode())
	assert.Equal(t, first.Market, again.Market)
	assert.Equal(t, first.Exchange, again.Exchange)
	assert.Equal(t, first.TencentCode(), again.TencentCode())
	assert.Equal(t, first.TushareCode(), again.TushareCode())
}

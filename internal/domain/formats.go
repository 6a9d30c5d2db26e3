package domain

import "strings"

// Per-source ticker spellings. Each upstream expects its own code shape
// ("sh600519", "600519.SH", "600519.SS", "0700.HK"); these methods derive
// it from the Market and Exchange that symbol.Classify resolved once, so
// no fetcher ever re-parses the raw string.

// marketSuffixes are the venue suffixes a raw user code may carry; they
// are stripped before re-spelling, longest first so ".TWO" wins over
// ".TW". A bare dot inside a US class-share code (BRK.B) is preserved.
var marketSuffixes = []string{".TWO", ".SS", ".SZ", ".SH", ".HK", ".TW", ".US"}

// BaseCode returns the code with any venue suffix (".HK", ".SS", …) and
// any domestic exchange prefix ("sh600519") removed.
func (s Symbol) BaseCode() string {
	code := strings.TrimSpace(s.Code)
	upper := strings.ToUpper(code)
	for _, suf := range marketSuffixes {
		if strings.HasSuffix(upper, suf) {
			code = code[:len(code)-len(suf)]
			break
		}
	}

	switch s.Market {
	case MarketAShare, MarketETF, MarketIndex:
		lower := strings.ToLower(code)
		if len(code) > 2 && (strings.HasPrefix(lower, "sh") || strings.HasPrefix(lower, "sz") || strings.HasPrefix(lower, "bj")) {
			code = code[2:]
		}
	case MarketHK:
		code = strings.TrimPrefix(strings.ToUpper(code), "HK")
	}
	return code
}

// TencentCode spells the symbol for qt.gtimg.cn: "sh600519", "hk00700",
// "usAAPL".
func (s Symbol) TencentCode() string {
	switch s.Market {
	case MarketHK:
		return "hk" + s.BaseCode()
	case MarketUS:
		return "us" + strings.ToUpper(s.BaseCode())
	case MarketTW:
		return s.BaseCode()
	default:
		return string(s.Exchange) + s.BaseCode()
	}
}

// SinaCode spells the symbol for hq.sinajs.cn: "sh600519", "hk00700",
// "gb_aapl".
func (s Symbol) SinaCode() string {
	switch s.Market {
	case MarketHK:
		return "hk" + s.BaseCode()
	case MarketUS:
		return "gb_" + strings.ToLower(s.BaseCode())
	default:
		return string(s.Exchange) + s.BaseCode()
	}
}

// TushareCode spells the symbol for api.tushare.pro: "600519.SH",
// "000001.SZ".
func (s Symbol) TushareCode() string {
	return s.BaseCode() + "." + strings.ToUpper(string(s.Exchange))
}

// BaostockCode spells the symbol for baostock: "sh.600519", "sz.000001".
func (s Symbol) BaostockCode() string {
	return string(s.Exchange) + "." + s.BaseCode()
}

// YahooCode spells the symbol for the Yahoo chart API: "AAPL",
// "2330.TW", "0700.HK", "600519.SS".
func (s Symbol) YahooCode() string {
	switch s.Market {
	case MarketUS:
		return strings.ToUpper(s.BaseCode())
	case MarketTW:
		return s.BaseCode() + ".TW"
	case MarketHK:
		return s.BaseCode() + ".HK"
	default:
		if s.Exchange == ExchangeSH {
			return s.BaseCode() + ".SS"
		}
		return s.BaseCode() + ".SZ"
	}
}

// EastmoneyMarketID is push2ex's numeric market id: "1" for Shanghai,
// "0" for Shenzhen.
func (s Symbol) EastmoneyMarketID() string {
	if s.Exchange == ExchangeSH {
		return "1"
	}
	return "0"
}

// Package symbol classifies a raw stock code string into its canonical
// market, so the rest of the system can route it to the right fetchers
// without per-call guesswork.
package symbol

import (
	"regexp"
	"strings"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

var (
	// A-share: 6 digits, optionally prefixed with sh/sz/bj exchange codes.
	reAShare = regexp.MustCompile(`^(sh|sz|bj)?(\d{6})$`)
	// ETF codes are A-share-shaped but fall in reserved numeric ranges.
	reETFCode = regexp.MustCompile(`^(1[5-8]\d{4}|5[0-9]\d{4})$`)
	// HK: 4-5 digits, optionally suffixed with .HK.
	reHK = regexp.MustCompile(`^(\d{4,5})(\.HK)?$`)
	// TW: 4 digits, optionally suffixed with .TW or .TWO.
	reTW = regexp.MustCompile(`^(\d{4})(\.TWO?)?$`)
	// US: letters only, optionally with a single dot (BRK.B-style).
	reUS = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z])?$`)
	// Index codes: exchange-prefixed pseudo-codes like sh000001.
	reIndex = regexp.MustCompile(`^(sh|sz)(000\d{3}|399\d{3})$`)
)

// Classify resolves a raw, user-facing code into a Symbol: its market,
// its SH/SZ exchange for domestic symbols, and (through the Symbol's
// format methods) every per-source code spelling. Classification is a
// pure function of the string: no network access, no state. Ambiguous
// numeric codes are resolved in priority order (index > ETF > A-share)
// since those ranges can otherwise collide.
func Classify(raw string) domain.Symbol {
	code := strings.TrimSpace(raw)
	upper := strings.ToUpper(code)
	lower := strings.ToLower(code)

	bare := stripSuffix(code)

	switch {
	case reIndex.MatchString(lower):
		return domestic(code, domain.MarketIndex, lower)
	case reETFCode.MatchString(stripExchangePrefix(lower)):
		return domestic(code, domain.MarketETF, lower)
	case reAShare.MatchString(lower):
		return domestic(code, domain.MarketAShare, lower)
	case strings.HasSuffix(upper, ".HK"):
		return domain.Symbol{Code: code, Market: domain.MarketHK}
	case strings.HasSuffix(upper, ".TW") || strings.HasSuffix(upper, ".TWO"):
		return domain.Symbol{Code: code, Market: domain.MarketTW}
	case reTW.MatchString(bare) && len(bare) == 4:
		// Bare 4-digit codes are TW; HK requires an explicit .HK suffix or
		// 5 digits to disambiguate from Taiwan's 4-digit listings.
		return domain.Symbol{Code: code, Market: domain.MarketTW}
	case reHK.MatchString(bare) && len(bare) == 5:
		return domain.Symbol{Code: code, Market: domain.MarketHK}
	case reUS.MatchString(upper):
		return domain.Symbol{Code: code, Market: domain.MarketUS}
	default:
		// Fall back to A-share: the most common unqualified numeric input
		// in this system's watchlists.
		return domestic(code, domain.MarketAShare, lower)
	}
}

// domestic builds a Symbol for an SH/SZ-listed instrument, resolving the
// exchange exactly once: an explicit sh/sz prefix wins, otherwise the
// leading digit decides (6xx A-shares, 5xx ETFs, and 000xxx indices with
// an sh prefix list in Shanghai; 0xx/3xx A-shares, 1xx ETFs, and 399xxx
// indices in Shenzhen).
func domestic(code string, market domain.Market, lower string) domain.Symbol {
	return domain.Symbol{Code: code, Market: market, Exchange: domesticExchange(lower)}
}

func domesticExchange(lower string) domain.Exchange {
	switch {
	case strings.HasPrefix(lower, "sh"):
		return domain.ExchangeSH
	case strings.HasPrefix(lower, "sz"):
		return domain.ExchangeSZ
	case strings.HasSuffix(lower, ".ss") || strings.HasSuffix(lower, ".sh"):
		return domain.ExchangeSH
	case strings.HasSuffix(lower, ".sz"):
		return domain.ExchangeSZ
	}
	if bare := stripSuffix(lower); strings.HasPrefix(bare, "6") || strings.HasPrefix(bare, "5") || strings.HasPrefix(bare, "9") {
		return domain.ExchangeSH
	}
	return domain.ExchangeSZ
}

func stripExchangePrefix(s string) string {
	if len(s) > 2 && (strings.HasPrefix(s, "sh") || strings.HasPrefix(s, "sz") || strings.HasPrefix(s, "bj")) {
		return s[2:]
	}
	return s
}

func stripSuffix(s string) string {
	if i := strings.Index(s, "."); i >= 0 {
		return s[:i]
	}
	return s
}

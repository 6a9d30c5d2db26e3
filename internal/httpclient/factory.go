// Package httpclient builds the shared HTTP clients used by every data
// provider fetcher.
package httpclient

import (
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// upstreamHosts lists the finance-data domains that must always be reached
// directly even when the process has an outbound proxy configured for
// everything else.
var upstreamHosts = []string{
	"qt.gtimg.cn",
	"hq.sinajs.cn",
	"api.tushare.pro",
	"www.baostock.com",
	"push2.eastmoney.com",
	"push2ex.eastmoney.com",
	"query1.finance.yahoo.com",
	"localhost",
	"127.0.0.1",
}

// New builds an *http.Client with the given timeout. When HTTP_PROXY or
// HTTPS_PROXY is set in the environment, it injects a NO_PROXY override so
// the configured upstream finance hosts always bypass the proxy — a proxy
// outage must never take down quote fetching.
func New(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: proxyFunc(),
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func proxyFunc() func(*http.Request) (*url.URL, error) {
	httpProxy := os.Getenv("HTTP_PROXY")
	httpsProxy := os.Getenv("HTTPS_PROXY")
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	noProxy := buildNoProxy()
	_ = os.Setenv("NO_PROXY", noProxy)
	_ = os.Setenv("no_proxy", noProxy)

	return http.ProxyFromEnvironment
}

func buildNoProxy() string {
	existing := os.Getenv("NO_PROXY")
	hosts := append([]string{}, upstreamHosts...)
	if existing != "" {
		hosts = append(hosts, strings.Split(existing, ",")...)
	}
	return strings.Join(dedupe(hosts), ",")
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

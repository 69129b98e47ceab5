// internal/tracking/filter.go
package tracking

import "strings"

// Heuristic classification of inbound beacon/redirect hits. Link scanners
// and prefetch proxies fetch tracking URLs before any human does; counting
// those would inflate open/click numbers. The lists below are curated and
// will always have edge cases; the goal is suppressing automated noise,
// not perfect attribution.

var botTokens = []string{
	"bot", "crawler", "spider", "slurp", "scanner", "monitor", "pingdom",
	"uptime", "preview", "prefetch", "curl", "wget", "python", "scrapy",
	"java/", "go-http-client", "okhttp", "libwww", "httpclient",
	"facebookexternalhit", "proofpoint", "barracuda", "mimecast",
}

var emailClientTokens = []string{
	"outlook", "thunderbird", "apple mail", "airmail", "postbox",
	"mailbird", "em client", "superhuman", "windows mail",
	"microsoft office", "msoffice",
}

var browserTokens = []string{
	"mozilla", "applewebkit", "chrome", "safari", "firefox", "gecko",
	"edge", "opera",
}

var automationTokens = []string{
	"headless", "selenium", "webdriver", "puppeteer", "playwright",
	"phantom", "cypress",
}

var scannerReferrerTokens = []string{
	"proofpoint", "urldefense", "safelinks", "mimecast", "barracuda",
	"symantec", "forcepoint", "virustotal", "phishtank", "webshrinker",
	"scanner", "cache", "proxy",
}

// IsLikelyHuman reports whether a tracking hit looks like a genuine email
// client rather than a bot, scanner or prefetcher.
func IsLikelyHuman(userAgent, referrer string) bool {
	return IsValidEmailClient(userAgent) && IsValidReferrer(referrer)
}

// IsValidEmailClient classifies a user-agent string. Fails closed: an
// absent or unrecognized user-agent does not count as a genuine open.
func IsValidEmailClient(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	ua := strings.ToLower(userAgent)
	for _, tok := range botTokens {
		if strings.Contains(ua, tok) {
			return false
		}
	}
	for _, tok := range emailClientTokens {
		if strings.Contains(ua, tok) {
			return true
		}
	}
	for _, tok := range browserTokens {
		if strings.Contains(ua, tok) {
			for _, auto := range automationTokens {
				if strings.Contains(ua, auto) {
					return false
				}
			}
			return true
		}
	}
	return false
}

// IsValidReferrer accepts an absent referrer (email clients strip them)
// and rejects known security/scanner/proxy origins.
func IsValidReferrer(referrer string) bool {
	if referrer == "" {
		return true
	}
	ref := strings.ToLower(referrer)
	for _, tok := range scannerReferrerTokens {
		if strings.Contains(ref, tok) {
			return false
		}
	}
	return true
}

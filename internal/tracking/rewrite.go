// internal/tracking/rewrite.go
package tracking

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// LinkRewriter embeds open/click tracking into outbound HTML. Tracking is
// a best-effort enhancement: implementations must return the input
// unmodified rather than fail, and must not break malformed or fragment
// HTML.
type LinkRewriter interface {
	EmbedOpenBeacon(html, trackingID, baseURL string) string
	EmbedClickTracking(html, trackingID, baseURL string) string
	EmbedAll(html, trackingID, baseURL string) string
}

// RegexRewriter rewrites HTML as text. It never parses a DOM, so whatever
// the template author wrote survives byte-for-byte outside the rewritten
// attributes.
type RegexRewriter struct {
	Secret string
}

func NewRewriter(secret string) *RegexRewriter {
	return &RegexRewriter{Secret: secret}
}

var hrefPattern = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']+)["']`)

var closingTagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)</body>`),
	regexp.MustCompile(`(?i)</html>`),
}

// skippedSchemes are link targets that never leave the mail client.
var skippedSchemes = []string{"mailto:", "tel:", "sms:", "javascript:", "data:", "file:"}

// minLinkLength filters out trivial targets like "/" or "#x".
const minLinkLength = 10

// EmbedOpenBeacon inserts an invisible 1x1 image pointing at the open
// endpoint, just before the closing body/html tag when one exists,
// appended otherwise.
func (rw *RegexRewriter) EmbedOpenBeacon(html, trackingID, baseURL string) string {
	if trackingID == "" || baseURL == "" {
		return html
	}
	beacon := fmt.Sprintf(
		`<img src="%s/track/open/%s?t=%s" width="1" height="1" style="display:none;width:1px;height:1px;border:0;" alt="" />`,
		strings.TrimRight(baseURL, "/"), trackingID, SignToken(trackingID, rw.Secret),
	)
	// Indexes must come from the original string: lowercasing a copy
	// shifts byte offsets on case-length-changing runes.
	for _, pattern := range closingTagPatterns {
		if locs := pattern.FindAllStringIndex(html, -1); locs != nil {
			i := locs[len(locs)-1][0]
			return html[:i] + beacon + html[i:]
		}
	}
	return html + beacon
}

// EmbedClickTracking rewrites every rewritable href to the click-redirect
// endpoint, carrying the original destination percent-encoded.
func (rw *RegexRewriter) EmbedClickTracking(html, trackingID, baseURL string) string {
	if trackingID == "" || baseURL == "" {
		return html
	}
	token := SignToken(trackingID, rw.Secret)
	base := strings.TrimRight(baseURL, "/")
	return hrefPattern.ReplaceAllStringFunc(html, func(attr string) string {
		m := hrefPattern.FindStringSubmatch(attr)
		if len(m) < 2 || !rewritable(m[1], baseURL) {
			return attr
		}
		return fmt.Sprintf(`href="%s/track/click/%s?url=%s&t=%s"`,
			base, trackingID, url.QueryEscape(m[1]), token)
	})
}

// EmbedAll applies click rewriting before the beacon so the beacon image
// itself is never wrapped as a trackable link.
func (rw *RegexRewriter) EmbedAll(html, trackingID, baseURL string) string {
	return rw.EmbedOpenBeacon(rw.EmbedClickTracking(html, trackingID, baseURL), trackingID, baseURL)
}

func rewritable(target, baseURL string) bool {
	if len(target) < minLinkLength {
		return false
	}
	if strings.HasPrefix(target, "#") {
		return false
	}
	lower := strings.ToLower(target)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	// loop prevention: never re-wrap a link that already points at us
	if baseURL != "" && strings.Contains(target, strings.TrimRight(baseURL, "/")) {
		return false
	}
	return true
}

var _ LinkRewriter = (*RegexRewriter)(nil)

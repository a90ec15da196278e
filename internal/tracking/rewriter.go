// Package tracking implements email engagement tracking: pure HTML
// rewriting (open pixel injection, click-link wrapping) and the edge
// service that serves the rewritten URLs and persists the resulting
// open/click events.
//
// Rewriting is regex-based, not a full HTML parser. Anchors split in
// unusual ways or using single-quoted attributes pass through
// unchanged. This is a deliberate scope limitation: email bodies are
// treated as opaque text and the rewriters never fail on malformed
// input.
package tracking

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	bodyCloseRe = regexp.MustCompile(`(?i)</body\s*>`)
	anchorRe    = regexp.MustCompile(`(?is)<a\b[^>]*href="[^"]*"[^>]*>`)
	hrefRe      = regexp.MustCompile(`(?is)(href=")([^"]*)(")`)
)

// OpenURL returns the open-beacon URL for a send.
func OpenURL(baseURL, sendID string) string {
	return fmt.Sprintf("%s/track/open/%s", strings.TrimRight(baseURL, "/"), sendID)
}

// ClickURL returns the click-redirect URL for a send, with the original
// destination percent-encoded in the url query parameter.
func ClickURL(baseURL, sendID, original string) string {
	return fmt.Sprintf("%s/track/click/%s?url=%s",
		strings.TrimRight(baseURL, "/"), sendID, url.QueryEscape(original))
}

// AddTrackingPixel inserts a 1x1 invisible image beacon for the given
// send. The pixel goes immediately before the first closing body tag if
// one exists, otherwise it is appended to the end of the document. The
// input is never parsed, so malformed HTML passes through with the
// pixel appended.
func AddTrackingPixel(html, sendID, baseURL string) string {
	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none" alt="" />`,
		OpenURL(baseURL, sendID))

	loc := bodyCloseRe.FindStringIndex(html)
	if loc == nil {
		return html + pixel
	}
	return html[:loc[0]] + pixel + html[loc[0]:]
}

// WrapLinksWithTracking rewrites every double-quoted anchor href to the
// click-redirect URL for the given send, preserving all other attributes
// verbatim. Same-page fragment links (#...) and hrefs already pointing
// at a tracking endpoint are left untouched so in-page navigation keeps
// working and links are never double-wrapped.
func WrapLinksWithTracking(html, sendID, baseURL string) string {
	return anchorRe.ReplaceAllStringFunc(html, func(tag string) string {
		m := hrefRe.FindStringSubmatch(tag)
		if m == nil {
			return tag
		}
		original := m[2]
		if original == "" || strings.HasPrefix(original, "#") {
			return tag
		}
		if strings.Contains(original, "/track/click/") || strings.Contains(original, "/track/open/") {
			return tag
		}
		wrapped := ClickURL(baseURL, sendID, original)
		return hrefRe.ReplaceAllString(tag, `${1}`+wrapped+`${3}`)
	})
}

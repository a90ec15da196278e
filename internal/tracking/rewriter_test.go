package tracking

import (
	"net/url"
	"strings"
	"testing"
)

const (
	testBase   = "https://crm.example.com"
	testSendID = "3f1d3bb8-9f52-4a8f-8f20-6cbb6f0a9a01"
)

func TestAddTrackingPixelBeforeBodyClose(t *testing.T) {
	html := `<html><body><p>Hello</p></body></html>`
	out := AddTrackingPixel(html, testSendID, testBase)

	if n := strings.Count(out, "/track/open/"+testSendID); n != 1 {
		t.Fatalf("expected exactly one pixel, got %d", n)
	}
	idx := strings.Index(out, "<img")
	bodyIdx := strings.Index(out, "</body>")
	if idx == -1 || bodyIdx == -1 || idx > bodyIdx {
		t.Fatalf("pixel not inserted before </body>: %s", out)
	}
}

func TestAddTrackingPixelNoBodyTag(t *testing.T) {
	html := `<p>No body close here</p>`
	out := AddTrackingPixel(html, testSendID, testBase)

	if !strings.HasPrefix(out, html) {
		t.Fatalf("original content modified: %s", out)
	}
	if !strings.Contains(out[len(html):], "/track/open/"+testSendID) {
		t.Fatalf("pixel not appended: %s", out)
	}
	if n := strings.Count(out, "<img"); n != 1 {
		t.Fatalf("expected exactly one pixel, got %d", n)
	}
}

func TestAddTrackingPixelCaseInsensitiveBody(t *testing.T) {
	html := `<HTML><BODY>hi</BODY></HTML>`
	out := AddTrackingPixel(html, testSendID, testBase)

	idx := strings.Index(out, "<img")
	bodyIdx := strings.Index(out, "</BODY>")
	if idx == -1 || idx > bodyIdx {
		t.Fatalf("pixel not inserted before uppercase body close: %s", out)
	}
}

func TestAddTrackingPixelMalformedHTML(t *testing.T) {
	html := `<<<<not html at all &&& </bod`
	out := AddTrackingPixel(html, testSendID, testBase)
	if !strings.HasPrefix(out, html) {
		t.Fatalf("malformed input was not treated as opaque text")
	}
}

func TestWrapLinksRewritesHref(t *testing.T) {
	html := `<a href="https://example.com/pricing?plan=pro&ref=1" class="btn" target="_blank">Pricing</a>`
	out := WrapLinksWithTracking(html, testSendID, testBase)

	prefix := testBase + "/track/click/" + testSendID + "?url="
	if !strings.Contains(out, `href="`+prefix) {
		t.Fatalf("href not rewritten: %s", out)
	}
	if !strings.Contains(out, `class="btn"`) || !strings.Contains(out, `target="_blank"`) {
		t.Fatalf("other attributes not preserved: %s", out)
	}

	// Percent-decoding the url parameter must round-trip the original.
	start := strings.Index(out, "?url=") + len("?url=")
	end := strings.Index(out[start:], `"`) + start
	decoded, err := url.QueryUnescape(out[start:end])
	if err != nil {
		t.Fatalf("unescape: %v", err)
	}
	if decoded != "https://example.com/pricing?plan=pro&ref=1" {
		t.Fatalf("round-trip mismatch: %q", decoded)
	}
}

func TestWrapLinksSkipsFragments(t *testing.T) {
	html := `<a href="#section-2">Jump</a>`
	out := WrapLinksWithTracking(html, testSendID, testBase)
	if out != html {
		t.Fatalf("fragment anchor was modified: %q", out)
	}
}

func TestWrapLinksSkipsAlreadyTracked(t *testing.T) {
	html := `<a href="` + testBase + `/track/click/` + testSendID + `?url=x">already</a>` +
		`<a href="` + testBase + `/track/open/` + testSendID + `">pixel link</a>`
	out := WrapLinksWithTracking(html, testSendID, testBase)
	if out != html {
		t.Fatalf("tracked anchor was double-wrapped: %q", out)
	}
}

func TestWrapLinksMultipleAnchors(t *testing.T) {
	html := `<a href="https://a.example.com">A</a> text <a href="https://b.example.com">B</a>`
	out := WrapLinksWithTracking(html, testSendID, testBase)

	if n := strings.Count(out, "/track/click/"+testSendID); n != 2 {
		t.Fatalf("expected 2 wrapped links, got %d: %s", n, out)
	}
	if strings.Contains(out, `href="https://a.example.com"`) {
		t.Fatalf("first link left unwrapped: %s", out)
	}
}

func TestWrapLinksMalformedAnchorPassesThrough(t *testing.T) {
	html := `<a href=>broken</a><a href='https://single.example.com'>single</a>`
	out := WrapLinksWithTracking(html, testSendID, testBase)
	if out != html {
		t.Fatalf("malformed/unsupported anchors were modified: %q", out)
	}
}

func TestWrapThenPixelOrder(t *testing.T) {
	// The pixel URL must never itself get click-wrapped: production code
	// wraps links first, then injects the pixel.
	html := `<html><body><a href="https://example.com">x</a></body></html>`
	out := AddTrackingPixel(WrapLinksWithTracking(html, testSendID, testBase), testSendID, testBase)

	if strings.Contains(out, "/track/click/"+testSendID+"?url="+url.QueryEscape(OpenURL(testBase, testSendID))) {
		t.Fatalf("pixel URL was click-wrapped: %s", out)
	}
	if n := strings.Count(out, "/track/open/"+testSendID); n != 1 {
		t.Fatalf("expected exactly one pixel, got %d", n)
	}
}

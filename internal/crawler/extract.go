package crawler

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// skippedSchemes are href prefixes that never lead to crawlable pages.
var skippedSchemes = []string{"mailto:", "tel:", "javascript:", "data:"}

// binaryExtensions are file extensions excluded from crawling. These are
// documents and media that a link extractor cannot learn structure from.
var binaryExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif",
	".zip", ".svg", ".ico", ".webp", ".mp4",
}

// PageData is the result of scanning one page's markup.
type PageData struct {
	// Title is the text of the first <title> element, or empty.
	Title string

	// Links are the normalized, same-host, crawlable URLs found on the
	// page. The slice is duplicate-free; order is not significant.
	Links []string
}

// Extract scans markup for anchor links and the page title in a single
// tokenizer pass.
//
// Design decision: We use the streaming x/net/html tokenizer rather than
// building a DOM because real-world markup is frequently malformed. The
// tokenizer keeps producing tokens past nesting errors and unclosed tags,
// so a broken page still yields whatever links are recoverable.
//
// Filtering and normalization:
//   - fragment-only hrefs and mailto/tel/javascript/data schemes are
//     dropped
//   - common binary document and image extensions are dropped
//   - remaining hrefs are resolved against base; resolution failures are
//     silently discarded
//   - only links whose hostname exactly equals base's hostname are kept
//     (no subdomain crossing)
//   - results are normalized by NormalizeURL, so "/about" and "/about/"
//     collapse to one entry
func Extract(markup string, base *url.URL) *PageData {
	data := &PageData{Links: make([]string, 0)}
	seen := make(map[string]bool)

	z := html.NewTokenizer(strings.NewReader(markup))
	inTitle := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			// EOF or unrecoverable garbage; keep what was found.
			return data

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "a":
				if link, ok := resolveLink(attrValue(tok, "href"), base); ok && !seen[link] {
					seen[link] = true
					data.Links = append(data.Links, link)
				}
			case "title":
				inTitle = true
			}

		case html.TextToken:
			if inTitle && data.Title == "" {
				data.Title = strings.TrimSpace(string(z.Text()))
			}

		case html.EndTagToken:
			tok := z.Token()
			if tok.Data == "title" {
				inTitle = false
			}
		}
	}
}

// ExtractLinks returns the normalized, same-host, crawlable links found
// in markup. See Extract for the filtering rules.
func ExtractLinks(markup string, base *url.URL) []string {
	return Extract(markup, base).Links
}

// resolveLink filters and resolves a single href against the base URL.
// The second return value is false when the href must be discarded.
func resolveLink(href string, base *url.URL) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(u)

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(resolved.Hostname(), base.Hostname()) {
		return "", false
	}

	path := strings.ToLower(resolved.Path)
	for _, ext := range binaryExtensions {
		if strings.HasSuffix(path, ext) {
			return "", false
		}
	}

	return NormalizeURL(resolved), true
}

// attrValue returns the value of the named attribute, or empty.
func attrValue(tok html.Token, name string) string {
	for _, attr := range tok.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

// NormalizeURL canonicalizes a URL for deduplication.
//
// Policy: the fragment is removed, scheme and host are lowercased,
// default ports (:80 for http, :443 for https) are stripped, and one
// trailing slash is removed from the path. Path case is preserved, since
// many servers treat /About and /about as distinct resources.
func NormalizeURL(u *url.URL) string {
	nu := *u
	nu.Fragment = ""
	nu.Scheme = strings.ToLower(nu.Scheme)
	nu.Host = strings.ToLower(nu.Host)

	if (nu.Scheme == "http" && nu.Port() == "80") ||
		(nu.Scheme == "https" && nu.Port() == "443") {
		nu.Host = nu.Hostname()
	}

	nu.Path = strings.TrimSuffix(nu.Path, "/")

	return nu.String()
}

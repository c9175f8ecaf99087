package content

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/JakeFAU/websearch/internal/crawler"
)

var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// ExtractLinks returns the href of every anchor in body, resolved against
// pageURL, in document order. Empty, fragment-only and pseudo-scheme links are
// dropped. Links that fail to resolve are skipped. Duplicates are kept.
func ExtractLinks(pageURL string, body []byte) ([]string, error) {
	if _, err := crawler.ParseURL(pageURL); err != nil {
		return nil, fmt.Errorf("extract links: %w", err)
	}

	var links []string
	z := html.NewTokenizer(strings.NewReader(string(body)))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed tail; either way the document is done.
			return links, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			href, ok := hrefAttr(z)
			if !ok {
				continue
			}
			href = cleanHref(href)
			if href == "" {
				continue
			}
			abs, err := crawler.Resolve(pageURL, href)
			if err != nil {
				continue
			}
			links = append(links, abs)
		}
	}
}

func hrefAttr(z *html.Tokenizer) (string, bool) {
	for {
		key, val, more := z.TagAttr()
		if strings.EqualFold(string(key), "href") {
			return string(val), true
		}
		if !more {
			return "", false
		}
	}
}

// cleanHref trims href, strips its fragment and returns "" when the link
// cannot name a fetchable page.
func cleanHref(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, s := range skippedSchemes {
		if strings.HasPrefix(lower, s) {
			return ""
		}
	}
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	return href
}

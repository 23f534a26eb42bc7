// Package extract pulls anchor links out of HTML pages.
package extract

import (
	"bytes"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is an anchor's visible text and raw href.
type Link struct {
	Text string
	Href string
}

// Links parses body and returns a lazy sequence over every <a> element with a
// non-empty href, in document order. Text is trimmed with inner whitespace
// collapsed to single spaces. The HTML parser is lenient, so malformed markup
// yields whatever anchors could be recovered.
func Links(body []byte) (iter.Seq[Link], error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	anchors := doc.Find("a[href]")
	return func(yield func(Link) bool) {
		for i := range anchors.Length() {
			sel := anchors.Eq(i)
			href := strings.TrimSpace(sel.AttrOr("href", ""))
			if href == "" {
				continue
			}
			if !yield(Link{Text: collapseSpace(sel.Text()), Href: href}) {
				return
			}
		}
	}, nil
}

// Resolve returns href as an absolute http(s) URL relative to base.
// The second result is false when href cannot be resolved to one.
func Resolve(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	if !ref.IsAbs() {
		baseURL, baseErr := url.Parse(base)
		if baseErr != nil || !baseURL.IsAbs() {
			return "", false
		}
		ref = baseURL.ResolveReference(ref)
	}

	scheme := strings.ToLower(ref.Scheme)
	if (scheme != "http" && scheme != "https") || ref.Host == "" {
		return "", false
	}
	ref.Fragment = ""
	return ref.String(), true
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

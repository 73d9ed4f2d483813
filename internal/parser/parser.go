// Package parser extracts quote stubs and author details from
// quotes.toscrape.com markup.
package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/quotescrape/internal/normalize"
	"github.com/JakeFAU/quotescrape/internal/quotes"
)

// Selectors used against listing and author pages.
const (
	selQuote     = "div.quote"
	selQuoteText = `span[itemprop="text"]`
	selAuthor    = `small[itemprop="author"]`
	selTag       = "div.tags a.tag"
	selAboutLink = "span a"
	selNextPage  = "li.next a"
	selBornDate  = "span.author-born-date"
	selBornPlace = "span.author-born-location"
	selBio       = "div.author-description"
)

// Listing is what a single listing page yields.
type Listing struct {
	Stubs   []quotes.Stub
	NextURL string
}

// ParseListing reads the quote stubs in document order plus the next-page
// link. Relative links are resolved against pageURL. A selector that matches
// nothing leaves its field empty.
func ParseListing(body []byte, pageURL string) (Listing, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return Listing{}, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Listing{}, fmt.Errorf("parse listing html: %w", err)
	}

	var listing Listing
	doc.Find(selQuote).Each(func(_ int, sel *goquery.Selection) {
		stub := quotes.Stub{
			Quote:  normalize.Clean(firstText(sel.Find(selQuoteText))),
			Author: normalize.Clean(firstText(sel.Find(selAuthor))),
		}
		sel.Find(selTag).Each(func(_ int, tag *goquery.Selection) {
			stub.Tags = append(stub.Tags, normalize.Clean(firstText(tag)))
		})
		if href, ok := sel.Find(selAboutLink).First().Attr("href"); ok && href != "" {
			stub.AboutURL = resolve(base, href)
		}
		listing.Stubs = append(listing.Stubs, stub)
	})

	if href, ok := doc.Find(selNextPage).First().Attr("href"); ok && href != "" {
		listing.NextURL = resolve(base, href)
	}
	return listing, nil
}

// ParseAuthor reads the birth date, birthplace and biography from an author
// page.
func ParseAuthor(body []byte) (quotes.Author, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return quotes.Author{}, fmt.Errorf("parse author html: %w", err)
	}
	return quotes.Author{
		DOB:          normalize.FormatDate(firstText(doc.Find(selBornDate))),
		PlaceOfBirth: normalize.Place(firstText(doc.Find(selBornPlace))),
		Bio:          normalize.Clean(firstText(doc.Find(selBio))),
	}, nil
}

// firstText returns the first direct text node of the first matched element.
// Text inside nested elements is ignored.
func firstText(sel *goquery.Selection) string {
	first := sel.First()
	if first.Length() == 0 {
		return ""
	}
	for node := first.Nodes[0].FirstChild; node != nil; node = node.NextSibling {
		if node.Type == html.TextNode && strings.TrimSpace(node.Data) != "" {
			return node.Data
		}
	}
	return ""
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

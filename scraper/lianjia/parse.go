package lianjia

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rental-ooh/models"
)

const (
	itemSelector  = ".content__list .content__list--item"
	titleSelector = "p.content__list--item--title a"
	priceSelector = "em"
	descSelector  = "p.content__list--item--des"
)

// ParseListings extracts rental items from a listing page. Items without a
// title or price (adverts, placeholders) are skipped.
func ParseListings(html, city, pageURL string, scrapedAt time.Time) ([]*models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, _ := url.Parse(pageURL)

	var listings []*models.RawListing
	doc.Find(itemSelector).Each(func(_ int, item *goquery.Selection) {
		titleEl := item.Find(titleSelector).First()
		priceEl := item.Find(priceSelector).First()
		if titleEl.Length() == 0 || priceEl.Length() == 0 {
			return
		}

		href, _ := titleEl.Attr("href")
		listings = append(listings, &models.RawListing{
			Platform:  platform,
			City:      city,
			Title:     strings.TrimSpace(titleEl.Text()),
			RawPrice:  strings.TrimSpace(priceEl.Text()),
			Detail:    joinText(item.Find(descSelector).First(), " | "),
			URL:       resolve(base, href),
			ScrapedAt: scrapedAt,
		})
	})

	return listings, nil
}

// joinText joins the stripped text of each child node with sep, skipping
// empty and separator-only pieces.
func joinText(sel *goquery.Selection, sep string) string {
	var parts []string
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		t := strings.TrimSpace(c.Text())
		if t == "" || t == "/" || t == "-" {
			return
		}
		parts = append(parts, t)
	})
	return strings.Join(parts, sep)
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

package scraper

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pmholt/eventscout/internal/event"
)

// parseListingPage extracts the summaries on one listing page and reports
// whether the markup indicates a further page. JSON-LD markup is
// authoritative: when any structured events are present, HTML block parsing
// is skipped entirely for that page.
func parseListingPage(doc *goquery.Document) ([]event.Summary, bool) {
	var summaries []event.Summary

	if ldEvents := extractJSONLDEvents(doc); len(ldEvents) > 0 {
		for _, e := range ldEvents {
			s := summaryFromLD(e)
			if s.Title != "" {
				summaries = append(summaries, s)
			}
		}
	} else {
		summaries = parseListingHTML(doc)
	}

	return summaries, hasNextPage(doc)
}

// parseListingHTML walks the repeated list-item blocks of a listing page.
func parseListingHTML(doc *goquery.Document) []event.Summary {
	var summaries []event.Summary

	doc.Find("article.event, li.event-item, div.event-card").Each(func(_ int, sel *goquery.Selection) {
		s := event.Summary{Source: event.SourceHTML}

		s.Title = text(sel, ".event-title, h2, h3")
		if s.Title == "" {
			return
		}

		if href, ok := sel.Find("a.event-link, .event-title a, h2 a, h3 a").First().Attr("href"); ok {
			s.DetailURL = href
		}
		if dt, ok := sel.Find("time").First().Attr("datetime"); ok {
			if t, parsed := event.ParseTime(dt); parsed {
				s.StartsAt = &t
			}
		}
		if s.StartsAt == nil {
			if t, parsed := event.ParseTime(text(sel, ".event-date")); parsed {
				s.StartsAt = &t
			}
		}
		s.Venue = text(sel, ".event-venue, .venue")
		s.Address = text(sel, ".event-address, .address")
		s.Cost = text(sel, ".event-cost, .cost, .price")
		if src, ok := sel.Find("img").First().Attr("src"); ok {
			s.ImageURL = src
		}
		sel.Find(".event-category, .category, .tag").Each(func(_ int, c *goquery.Selection) {
			if cat := strings.TrimSpace(c.Text()); cat != "" {
				s.Categories = append(s.Categories, cat)
			}
		})
		s.Sponsored = sel.HasClass("sponsored") || sel.Find(".sponsored").Length() > 0

		summaries = append(summaries, s)
	})

	return summaries
}

// hasNextPage inspects pagination markup. A disabled or absent next link
// signals the last page, as does the current page number matching the
// highest page number found.
func hasNextPage(doc *goquery.Document) bool {
	next := doc.Find(".pagination a.next, a[rel=next]").First()
	if next.Length() > 0 {
		return !next.HasClass("disabled")
	}

	current := 0
	max := 0
	doc.Find(".pagination .page, .pagination a.page-link").Each(func(_ int, sel *goquery.Selection) {
		n, err := strconv.Atoi(strings.TrimSpace(sel.Text()))
		if err != nil {
			return
		}
		if sel.HasClass("current") || sel.HasClass("active") {
			current = n
		}
		if n > max {
			max = n
		}
	})
	return current > 0 && current < max
}

// fillDetailFromHTML extracts detail-page fields with CSS selectors, but
// only into fields still empty. JSON-LD data populated earlier is never
// overwritten; reversing this precedence would regress data quality.
func fillDetailFromHTML(doc *goquery.Document, d *event.Detail) {
	setIfEmpty(&d.Title, text(doc.Selection, "h1, .event-title"))
	setIfEmpty(&d.Description, text(doc.Selection, ".event-description, .description"))
	setIfEmpty(&d.Venue, text(doc.Selection, ".event-venue, .venue"))
	setIfEmpty(&d.Address, text(doc.Selection, ".event-address, .address"))
	setIfEmpty(&d.Cost, text(doc.Selection, ".event-cost, .cost, .price"))
	setIfEmpty(&d.Organizer, text(doc.Selection, ".event-organizer, .organizer"))
	setIfEmpty(&d.CostDetails, text(doc.Selection, ".cost-details, .ticket-info"))

	if d.StartsAt == nil {
		if dt, ok := doc.Find("time").First().Attr("datetime"); ok {
			if t, parsed := event.ParseTime(dt); parsed {
				d.StartsAt = &t
			}
		}
	}
	if d.OrganizerURL == "" {
		if href, ok := doc.Find(".event-organizer a, .organizer a").First().Attr("href"); ok {
			d.OrganizerURL = href
		}
	}
	if d.ImageURL == "" {
		if src, ok := doc.Find(".event-image img, article img").First().Attr("src"); ok {
			d.ImageURL = src
		}
	}
	if len(d.Performers) == 0 {
		doc.Find(".performer, .lineup li").Each(func(_ int, sel *goquery.Selection) {
			if name := strings.TrimSpace(sel.Text()); name != "" {
				d.Performers = append(d.Performers, name)
			}
		})
	}
	if len(d.Tags) == 0 {
		doc.Find(".event-tag, .tags .tag").Each(func(_ int, sel *goquery.Selection) {
			if tag := strings.TrimSpace(sel.Text()); tag != "" {
				d.Tags = append(d.Tags, tag)
			}
		})
	}

	if d.ContactEmail == "" {
		if href, ok := doc.Find(`a[href^="mailto:"]`).First().Attr("href"); ok {
			d.ContactEmail = strings.TrimPrefix(href, "mailto:")
		}
	}
	if d.ContactPhone == "" {
		if href, ok := doc.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
			d.ContactPhone = strings.TrimPrefix(href, "tel:")
		}
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		platform := socialPlatform(href)
		if platform == "" {
			return
		}
		if d.SocialLinks == nil {
			d.SocialLinks = make(map[string]string)
		}
		if _, exists := d.SocialLinks[platform]; !exists {
			d.SocialLinks[platform] = href
		}
	})
}

// socialPlatform maps a URL to a known social platform name, or "".
func socialPlatform(href string) string {
	lower := strings.ToLower(href)
	switch {
	case strings.Contains(lower, "facebook.com"):
		return "facebook"
	case strings.Contains(lower, "instagram.com"):
		return "instagram"
	case strings.Contains(lower, "twitter.com"), strings.Contains(lower, "x.com/"):
		return "twitter"
	case strings.Contains(lower, "youtube.com"), strings.Contains(lower, "youtu.be"):
		return "youtube"
	case strings.Contains(lower, "tiktok.com"):
		return "tiktok"
	case strings.Contains(lower, "linkedin.com"):
		return "linkedin"
	}
	return ""
}

func text(sel *goquery.Selection, selector string) string {
	return strings.TrimSpace(sel.Find(selector).First().Text())
}

func setIfEmpty(dst *string, value string) {
	if *dst == "" && value != "" {
		*dst = value
	}
}

package scraper

import (
	"encoding/json"
	"regexp"

	"snsworker/internal/channel"
	"snsworker/internal/numfmt"

	"github.com/PuerkitoBio/goquery"
)

// strategy tries to pull one count out of a parsed profile page.
type strategy func(doc *goquery.Document) (int64, string, bool)

// chains holds the ordered extraction strategies per platform. The sites
// render profile data differently depending on crawler detection, locale
// and whether JS executed, so several independent signals are tried and
// the first hit is trusted.
var chains = map[channel.Channel][]strategy{
	channel.Instagram: {jsonLDInteractionCount, metaDescriptionFollowers},
	channel.NaverBlog: {buddyClassCount, neighborTextCount},
	channel.Threads:   {titleFollowers},
}

var (
	// number-ish token: digits with optional separators and a compact unit
	// compound Korean units must precede their components in the alternation
	numberToken = `([0-9][0-9,.]*\s*(?:십만|백만|천만|만|천|억|조|[kmbgKMBG])?)`

	followersBeforeRe = regexp.MustCompile(`(?i)` + numberToken + `\s*followers`)
	followersAfterRe  = regexp.MustCompile(`팔로워\s*` + numberToken)
	neighborRe        = regexp.MustCompile(`이웃[^0-9]*([0-9][0-9,.]*)`)
	firstNumberRe     = regexp.MustCompile(numberToken)
)

// jsonLDInteractionCount reads embedded structured data
// (script[type=application/ld+json]) and takes the first
// userInteractionCount it can find, at any nesting depth.
func jsonLDInteractionCount(doc *goquery.Document) (int64, string, bool) {
	var count int64
	found := false

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if v, ok := findInteractionCount(data); ok {
			count = v
			found = true
			return false
		}
		return true
	})

	return count, "jsonld", found
}

// findInteractionCount walks arbitrary JSON looking for the
// userInteractionCount field, which may be a number or a compact string.
func findInteractionCount(data any) (int64, bool) {
	switch v := data.(type) {
	case map[string]any:
		if raw, ok := v["userInteractionCount"]; ok {
			switch n := raw.(type) {
			case float64:
				return int64(n), true
			case string:
				if parsed, ok := numfmt.Normalize(n); ok {
					return parsed, true
				}
			}
		}
		for _, child := range v {
			if n, ok := findInteractionCount(child); ok {
				return n, true
			}
		}
	case []any:
		for _, child := range v {
			if n, ok := findInteractionCount(child); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// metaDescriptionFollowers matches "N Followers" or "팔로워 N" in the meta
// description, in either word order.
func metaDescriptionFollowers(doc *goquery.Document) (int64, string, bool) {
	desc, exists := doc.Find(`meta[name="description"]`).Attr("content")
	if !exists || desc == "" {
		desc, exists = doc.Find(`meta[property="og:description"]`).Attr("content")
		if !exists {
			return 0, "", false
		}
	}

	for _, re := range []*regexp.Regexp{followersBeforeRe, followersAfterRe} {
		if m := re.FindStringSubmatch(desc); m != nil {
			if v, ok := numfmt.Normalize(m[1]); ok {
				return v, "meta_description", true
			}
		}
	}
	return 0, "", false
}

// buddyClassCount finds any element whose class mentions buddy or neighbor
// (Naver's own markup uses both) and normalizes its text.
func buddyClassCount(doc *goquery.Document) (int64, string, bool) {
	var count int64
	found := false

	doc.Find(`[class*="buddy"], [class*="neighbor"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		token := firstNumberRe.FindString(s.Text())
		if token == "" {
			return true
		}
		if v, ok := numfmt.Normalize(token); ok {
			count = v
			found = true
			return false
		}
		return true
	})

	return count, "buddy_class", found
}

// neighborTextCount scans the whole page text for "이웃 ... N".
func neighborTextCount(doc *goquery.Document) (int64, string, bool) {
	if m := neighborRe.FindStringSubmatch(doc.Text()); m != nil {
		if v, ok := numfmt.Normalize(m[1]); ok {
			return v, "neighbor_text", true
		}
	}
	return 0, "", false
}

// titleFollowers matches "N Followers" in the page title, the only place
// Threads exposes the count without executing JS.
func titleFollowers(doc *goquery.Document) (int64, string, bool) {
	title := doc.Find("title").First().Text()
	if m := followersBeforeRe.FindStringSubmatch(title); m != nil {
		if v, ok := numfmt.Normalize(m[1]); ok {
			return v, "title", true
		}
	}
	return 0, "", false
}

package scraper

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"snsworker/helpers"
	"snsworker/internal/channel"
	"snsworker/logger"
	"snsworker/services/cache"

	"github.com/PuerkitoBio/goquery"
)

// Scraper fetches SNS profile pages and extracts the follower or neighbor
// count with platform-specific fallback chains. It never returns an error:
// any failure yields a Metrics with both counts nil so the caller can still
// score the applicant.
type Scraper struct {
	cacheSvc  cache.CacheService
	blockTime time.Duration

	// fetchFunc is swapped out in tests
	fetchFunc func(url string) (io.Reader, error)
}

// New creates a scraper. cacheSvc may be nil, in which case rate-limited
// hosts are not blocked between passes.
func New(cacheSvc cache.CacheService, blockTime time.Duration) *Scraper {
	return &Scraper{
		cacheSvc:  cacheSvc,
		blockTime: blockTime,
		fetchFunc: helpers.FetchWithBrowserHeaders,
	}
}

// Fetch scrapes the profile page at url. The platform is detected from the
// URL; unknown platforms are returned untouched with no network access.
func (s *Scraper) Fetch(rawURL string) Metrics {
	platform := channel.Detect(rawURL)
	metrics := Metrics{Platform: platform, URL: rawURL}
	if platform == channel.Unknown {
		return metrics
	}

	log := logger.ForScraper(string(platform))

	host := hostOf(rawURL)
	if s.cacheSvc != nil && host != "" {
		if _, err := s.cacheSvc.Get(cache.BlockKey(host)); err == nil {
			log.Warn().Str("host", host).Msg("Host is rate limited, skipping fetch")
			return metrics
		}
	}

	body, err := s.fetchFunc(rawURL)
	if err != nil {
		if s.cacheSvc != nil && host != "" && strings.HasPrefix(err.Error(), "rate limited") {
			blockSeconds := fmt.Sprintf("%d", int(s.blockTime/time.Second))
			s.cacheSvc.Set(cache.BlockKey(host), []byte(blockSeconds), s.blockTime)
		}
		log.Warn().Err(err).Str("url", rawURL).Msg("Fetch failed")
		return metrics
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		log.Warn().Err(err).Str("url", rawURL).Msg("HTML parse failed")
		return metrics
	}

	// First strategy that yields a number wins; no cross-validation.
	for _, strat := range chains[platform] {
		count, evidence, ok := strat(doc)
		if !ok {
			continue
		}
		if platform == channel.NaverBlog {
			metrics.Neighbors = &count
		} else {
			metrics.Followers = &count
		}
		metrics.Evidence = evidence
		log.Debug().
			Str("url", rawURL).
			Int64("count", count).
			Str("evidence", evidence).
			Msg("Extracted metric")
		return metrics
	}

	log.Debug().Str("url", rawURL).Msg("No extraction strategy matched")
	return metrics
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

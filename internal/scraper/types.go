package scraper

import "snsworker/internal/channel"

// Metrics is the best-effort result of scraping one profile URL.
// Exactly one of Followers/Neighbors is meaningful per platform:
// instagram and threads report followers, naver_blog reports neighbors.
// A nil count means the pull failed or nothing could be extracted; a
// measured zero is a real value.
type Metrics struct {
	Platform  channel.Channel `json:"platform"`
	URL       string          `json:"url"`
	Followers *int64          `json:"followers,omitempty"`
	Neighbors *int64          `json:"neighbors,omitempty"`

	// Evidence names the extraction strategy that produced the count,
	// for diagnostics only.
	Evidence string `json:"evidence,omitempty"`
}

// Primary returns the metric that matters for this platform.
func (m Metrics) Primary() *int64 {
	if m.Platform == channel.NaverBlog {
		return m.Neighbors
	}
	return m.Followers
}

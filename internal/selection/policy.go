package selection

import (
	"fmt"

	"snsworker/internal/channel"
)

// Criteria maps a channel to the minimum primary metric (followers or
// neighbors) required for selection. A channel absent from the map is not
// considered at all.
type Criteria map[channel.Channel]int64

// ProjectCriteria builds the three-channel criteria used by project-level
// selection, falling back to the system defaults for non-positive values.
func ProjectCriteria(threadsMin, blogMin, instagramMin int64) Criteria {
	if threadsMin <= 0 {
		threadsMin = 500
	}
	if blogMin <= 0 {
		blogMin = 300
	}
	if instagramMin <= 0 {
		instagramMin = 1000
	}
	return Criteria{
		channel.Threads:   threadsMin,
		channel.NaverBlog: blogMin,
		channel.Instagram: instagramMin,
	}
}

// DefaultCriteria returns the system default three-channel criteria
// (threads 500, blog 300, instagram 1000).
func DefaultCriteria() Criteria {
	return ProjectCriteria(0, 0, 0)
}

// WebhookCriteria returns the fixed two-channel rule applied to direct
// webhook submissions: instagram 1000, blog 100, threads not considered.
func WebhookCriteria() Criteria {
	return Criteria{
		channel.Instagram: 1000,
		channel.NaverBlog: 100,
	}
}

// Input is everything the policy looks at. Counts holds measured primary
// metrics keyed by channel; a channel missing from the map was not
// measured (failed pull or no declared URL) and can never satisfy its
// threshold. A present zero is a real measurement.
type Input struct {
	PrivacyConsent bool
	MediaConsent   bool
	Counts         map[channel.Channel]int64
}

// Decision is the policy outcome with a human-readable reason.
type Decision struct {
	Selected bool   `json:"selected"`
	Reason   string `json:"reason"`
}

// Policy decides selection from consent flags and measured metrics.
// Pure and deterministic; no I/O.
type Policy struct {
	Minimums Criteria
}

// evaluationOrder fixes the channel check order so the reported reason is
// deterministic when several channels pass.
var evaluationOrder = []channel.Channel{
	channel.Instagram,
	channel.NaverBlog,
	channel.Threads,
}

// Evaluate applies the decision rules in order: consent gates first, then
// selected if any configured channel meets its minimum.
func (p Policy) Evaluate(in Input) Decision {
	if !in.PrivacyConsent {
		return Decision{Selected: false, Reason: "no privacy consent"}
	}
	if !in.MediaConsent {
		return Decision{Selected: false, Reason: "no media consent"}
	}

	for _, ch := range evaluationOrder {
		min, configured := p.Minimums[ch]
		if !configured {
			continue
		}
		count, measured := in.Counts[ch]
		if !measured {
			continue
		}
		if count >= min {
			return Decision{
				Selected: true,
				Reason:   fmt.Sprintf("%s %d >= %d", ch, count, min),
			}
		}
	}

	return Decision{Selected: false, Reason: "criteria not met"}
}

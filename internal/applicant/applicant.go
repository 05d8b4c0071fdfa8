package applicant

import (
	"strconv"
	"strings"
	"time"
)

// Status is the selection state of an applicant. An applicant stays
// Pending until a metric pull has been attempted and the selection policy
// has run; only then does it become Selected or NotSelected.
type Status string

const (
	StatusPending     Status = "pending"
	StatusSelected    Status = "selected"
	StatusNotSelected Status = "not_selected"
)

// Applicant is one person's campaign submission, tracked through scraping
// and selection. Measured counts are pointers: nil means "not measured"
// (the pull failed or never ran), a zero value means "measured, zero".
type Applicant struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Row   int    `json:"row,omitempty"`

	ThreadsURL   string `json:"threads_url,omitempty"`
	InstagramURL string `json:"instagram_url,omitempty"`
	BlogURL      string `json:"blog_url,omitempty"`

	ThreadsFollowers   *int64 `json:"threads_followers,omitempty"`
	InstagramFollowers *int64 `json:"instagram_followers,omitempty"`
	BlogNeighbors      *int64 `json:"blog_neighbors,omitempty"`

	PrivacyConsent bool `json:"privacy_consent"`
	MediaConsent   bool `json:"media_consent"`

	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	ProcessedAt time.Time `json:"processed_at,omitempty"`
}

// Key returns the identity key used for dedup: email when present, then
// the source row position, then the name/phone contact key for direct
// submissions that carry neither.
func (a *Applicant) Key() string {
	if k := EmailKey(a.Email); k != "" {
		return k
	}
	if a.Row > 0 {
		return RowKey(a.Row)
	}
	return ContactKey(a.Name, a.Phone)
}

// HasChannel reports whether at least one channel URL was declared.
func (a *Applicant) HasChannel() bool {
	return a.ThreadsURL != "" || a.InstagramURL != "" || a.BlogURL != ""
}

// EmailKey normalizes an email address for dedup comparison.
// Returns "" for a blank email.
func EmailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RowKey builds the secondary dedup key from a source row position.
func RowKey(row int) string {
	return "row:" + strconv.Itoa(row)
}

// ContactKey builds the last-resort identity key for submissions without
// an email or row position (webhook and form records), from the
// normalized name and the digits of the phone number.
func ContactKey(name, phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	return "contact:" + strings.ToLower(strings.TrimSpace(name)) + ":" + digits
}

// Stats aggregates the outcome of one sync pass.
type Stats struct {
	Total       int `json:"total"`
	Selected    int `json:"selected"`
	NotSelected int `json:"not_selected"`
}

package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"snsworker/helpers"
	"snsworker/internal/applicant"
	"snsworker/internal/channel"
	errs "snsworker/pkg/errors"
)

// Record is one raw candidate row before dedup and scoring.
type Record struct {
	Row   int
	Name  string
	Email string
	Phone string

	ThreadsURL   string
	InstagramURL string
	BlogURL      string

	PrivacyConsent bool
	MediaConsent   bool
}

// Source yields the raw candidate records for one sync pass.
type Source interface {
	// Records parses the source. A parse failure fails the whole pass;
	// no partial candidates are returned.
	Records() ([]Record, error)

	// Name identifies the source kind for logging
	Name() string
}

// field is a logical record field resolved through header aliases.
type field int

const (
	fieldName field = iota
	fieldEmail
	fieldPhone
	fieldThreads
	fieldInstagram
	fieldBlog
	fieldPrivacy
	fieldMedia
)

// fieldAliases maps each logical field to the localized header variants
// seen across spreadsheet exports and form builders. Matching is by
// substring on the normalized header; first non-empty cell wins.
var fieldAliases = map[field][]string{
	fieldName:      {"성함", "이름", "name"},
	fieldEmail:     {"이메일", "메일주소", "e-mail", "email"},
	fieldPhone:     {"연락처", "전화번호", "휴대폰", "phone"},
	fieldThreads:   {"스레드", "threads"},
	fieldInstagram: {"인스타그램", "인스타", "instagram", "insta"},
	fieldBlog:      {"네이버블로그", "블로그", "blog"},
	fieldPrivacy:   {"개인정보", "privacy"},
	fieldMedia:     {"영상", "미디어", "video", "media"},
}

// fieldOrder keeps alias matching deterministic when one header could
// name two fields. More specific fields come first.
var fieldOrder = []field{
	fieldThreads, fieldInstagram, fieldBlog,
	fieldPrivacy, fieldMedia,
	fieldEmail, fieldPhone, fieldName,
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.ReplaceAll(h, " ", "")
}

func matchField(header string) (field, bool) {
	norm := normalizeHeader(header)
	if norm == "" {
		return 0, false
	}
	for _, f := range fieldOrder {
		for _, alias := range fieldAliases[f] {
			if strings.Contains(norm, alias) {
				return f, true
			}
		}
	}
	return 0, false
}

// parseConsent interprets localized yes/no answers. Anything not
// recognized as agreement counts as no consent.
func parseConsent(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "y", "yes", "true", "1", "o", "on", "agree", "네", "예":
		return true
	}
	return strings.Contains(v, "동의") && !strings.Contains(v, "미동의") && !strings.Contains(v, "비동의")
}

// buildRecord assembles a Record from logical field values, normalizing
// channel URLs with the channel pinned by the field, not re-inferred.
func buildRecord(values map[field]string, row int) Record {
	return Record{
		Row:            row,
		Name:           strings.TrimSpace(values[fieldName]),
		Email:          strings.TrimSpace(values[fieldEmail]),
		Phone:          strings.TrimSpace(values[fieldPhone]),
		ThreadsURL:     channel.NormalizeURL(values[fieldThreads], channel.Threads),
		InstagramURL:   channel.NormalizeURL(values[fieldInstagram], channel.Instagram),
		BlogURL:        channel.NormalizeURL(values[fieldBlog], channel.NaverBlog),
		PrivacyConsent: parseConsent(values[fieldPrivacy]),
		MediaConsent:   parseConsent(values[fieldMedia]),
	}
}

// empty reports whether the row carries nothing identifying at all.
func (r Record) empty() bool {
	return r.Name == "" && r.Email == "" && r.Phone == ""
}

// CSVSource parses a spreadsheet CSV export from an in-memory buffer.
type CSVSource struct {
	Reader io.Reader
}

func (s CSVSource) Name() string { return "csv" }

// Records parses the CSV. Row numbers follow the spreadsheet convention:
// the header is row 1, the first data row is row 2.
func (s CSVSource) Records() ([]Record, error) {
	reader := csv.NewReader(s.Reader)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty sheet")
	}

	// Resolve each column to a logical field once, from the header row.
	// Several columns may map to the same field (e.g. both "이메일" and
	// "email" headers); per row, the first non-empty cell wins.
	type column struct {
		index int
		field field
	}
	var columns []column
	for i, header := range rows[0] {
		if f, ok := matchField(header); ok {
			columns = append(columns, column{index: i, field: f})
		}
	}

	var records []Record
	for i, row := range rows[1:] {
		values := make(map[field]string)
		for _, c := range columns {
			if c.index >= len(row) {
				continue
			}
			if values[c.field] == "" && strings.TrimSpace(row[c.index]) != "" {
				values[c.field] = row[c.index]
			}
		}
		rec := buildRecord(values, i+2)
		if rec.empty() {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// SheetSource fetches a public spreadsheet CSV export by URL.
type SheetSource struct {
	URL     string
	Project string
}

func (s SheetSource) Name() string { return "sheet" }

func (s SheetSource) Records() ([]Record, error) {
	data, err := helpers.FetchSimply(s.URL)
	if err != nil {
		return nil, errs.NewFetch(s.Project, "failed to fetch sheet export", err)
	}
	return CSVSource{Reader: bytes.NewReader(data)}.Records()
}

// WebhookSource parses a single JSON webhook payload with applicant
// fields keyed by English or Korean labels.
type WebhookSource struct {
	Payload map[string]any
}

func (s WebhookSource) Name() string { return "webhook" }

func (s WebhookSource) Records() ([]Record, error) {
	if len(s.Payload) == 0 {
		return nil, fmt.Errorf("empty webhook payload")
	}
	fields := make(map[string]string, len(s.Payload))
	for k, v := range s.Payload {
		switch value := v.(type) {
		case string:
			fields[k] = value
		case bool:
			if value {
				fields[k] = "true"
			} else {
				fields[k] = "false"
			}
		case float64:
			fields[k] = fmt.Sprintf("%v", value)
		}
	}
	return FormSource{Fields: fields}.Records()
}

// FormSource parses a direct form submission with the same dual-labeled
// field convention as webhooks.
type FormSource struct {
	Fields map[string]string
}

func (s FormSource) Name() string { return "form" }

func (s FormSource) Records() ([]Record, error) {
	if len(s.Fields) == 0 {
		return nil, fmt.Errorf("empty form submission")
	}

	values := make(map[field]string)
	for label, value := range s.Fields {
		f, ok := matchField(label)
		if !ok {
			continue
		}
		if values[f] == "" && strings.TrimSpace(value) != "" {
			values[f] = value
		}
	}

	rec := buildRecord(values, 0)
	if rec.empty() {
		return nil, fmt.Errorf("submission carries no applicant identity")
	}
	return []Record{rec}, nil
}

// ToApplicant converts a raw record into a pending applicant.
func (r Record) ToApplicant() applicant.Applicant {
	return applicant.Applicant{
		Name:           r.Name,
		Email:          r.Email,
		Phone:          r.Phone,
		Row:            r.Row,
		ThreadsURL:     r.ThreadsURL,
		InstagramURL:   r.InstagramURL,
		BlogURL:        r.BlogURL,
		PrivacyConsent: r.PrivacyConsent,
		MediaConsent:   r.MediaConsent,
		Status:         applicant.StatusPending,
	}
}

package numfmt

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// koreanUnits maps Korean magnitude words to their multipliers. Compound
// forms must come before their components so "천만" wins over "천" and "만".
var koreanUnits = []struct {
	word string
	mult float64
}{
	{"천만", 1e7},
	{"백만", 1e6},
	{"십만", 1e5},
	{"조", 1e12},
	{"억", 1e8},
	{"만", 1e4},
	{"천", 1e3},
}

var (
	koreanRes = buildKoreanRes()
	latinRe   = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)([kmbg])$`)
	leadingRe = regexp.MustCompile(`^[0-9]+`)
	stripper  = strings.NewReplacer(",", "", "，", "", " ", "", "　", "")
)

func buildKoreanRes() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(koreanUnits))
	for i, u := range koreanUnits {
		res[i] = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)` + u.word)
	}
	return res
}

var latinMults = map[string]float64{
	"k": 1e3,
	"m": 1e6,
	"b": 1e9,
	"g": 1e9,
}

// Normalize parses a compact count string ("1.2만", "3.4K", "12,345") into
// an integer. Thousands separators and full-width spaces are ignored.
// Returns false when no number can be extracted; never panics.
func Normalize(text string) (int64, bool) {
	s := strings.ToLower(stripper.Replace(strings.TrimSpace(text)))
	if s == "" {
		return 0, false
	}

	// Korean magnitude words: the decimal number directly preceding the
	// unit is multiplied and rounded ("1.2만" -> 12000).
	for i, u := range koreanUnits {
		if !strings.Contains(s, u.word) {
			continue
		}
		m := koreanRes[i].FindStringSubmatch(s)
		if m == nil {
			return 0, false
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		return int64(math.Round(v * u.mult)), true
	}

	// Latin suffix on an otherwise numeric string ("3.4k" -> 3400).
	if m := latinRe.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		return int64(math.Round(v * latinMults[m[2]])), true
	}

	// Plain digits, possibly followed by trailing text ("12345 followers").
	if m := leadingRe.FindString(s); m != "" {
		v, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}

	return 0, false
}

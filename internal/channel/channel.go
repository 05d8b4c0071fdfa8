package channel

import "strings"

// Channel identifies one of the supported SNS platforms.
type Channel string

const (
	Threads   Channel = "threads"
	Instagram Channel = "instagram"
	NaverBlog Channel = "naver_blog"
	Unknown   Channel = "unknown"
)

// domain fragments stripped from user-supplied partial URLs, and the
// canonical profile URL prefix per channel.
var canonical = map[Channel]struct {
	fragments []string
	prefix    string
}{
	Threads:   {[]string{"threads.net/", "threads.com/"}, "https://www.threads.net/@"},
	Instagram: {[]string{"instagram.com/"}, "https://www.instagram.com/"},
	NaverBlog: {[]string{"m.blog.naver.com/", "blog.naver.com/"}, "https://blog.naver.com/"},
}

// Detect classifies a URL by hostname substring. No network access.
func Detect(url string) Channel {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "threads.net") || strings.Contains(lower, "threads.com"):
		return Threads
	case strings.Contains(lower, "instagram.com"):
		return Instagram
	case strings.Contains(lower, "blog.naver.com"):
		return NaverBlog
	default:
		return Unknown
	}
}

// NormalizeURL turns a bare username, partial URL or full URL into the
// canonical profile URL for the given channel. Inputs that already carry a
// scheme are trusted as-is. The channel comes from the form field context,
// never re-inferred, since a bare username is ambiguous between platforms.
func NormalizeURL(input string, ch Channel) string {
	id := strings.TrimSpace(input)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") {
		return id
	}

	c, ok := canonical[ch]
	if !ok {
		return id
	}

	lower := strings.ToLower(id)
	for _, frag := range c.fragments {
		if idx := strings.Index(lower, frag); idx >= 0 {
			id = id[idx+len(frag):]
			break
		}
	}
	id = strings.TrimPrefix(id, "@")
	id = strings.Trim(id, "/")
	if id == "" {
		return ""
	}
	return c.prefix + id
}

// Parse maps user-facing channel labels (form field names, config keys) to
// a Channel. Unrecognized labels map to Unknown.
func Parse(s string) Channel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "threads", "스레드":
		return Threads
	case "instagram", "insta", "인스타그램", "인스타":
		return Instagram
	case "blog", "naver_blog", "naverblog", "블로그", "네이버블로그":
		return NaverBlog
	default:
		return Unknown
	}
}

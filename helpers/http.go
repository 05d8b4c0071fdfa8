package helpers

import (
	"bytes"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"slices"
	"time"

	"golang.org/x/net/html/charset"
)

// Rotated per request so repeated profile pulls don't present one
// fingerprint to the SNS hosts.
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Safari/605.1.15",
	}

	referers = []string{
		"https://www.google.com/",
		"https://www.naver.com/",
	}

	// shared client; the timeout bounds every profile and sheet pull
	client = &http.Client{
		Timeout: 10 * time.Second,
	}
)

// FetchSimply sends a plain GET with a desktop User-Agent and returns the
// raw body. Used for spreadsheet CSV exports where no charset trickery or
// crawler evasion is needed.
func FetchSimply(url string) ([]byte, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	req.Header.Set("User-Agent", userAgents[rnd.Intn(len(userAgents))])

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetchSimply unexpected status code: %d", resp.StatusCode)
	}

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// FetchWithBrowserHeaders sends an HTTP GET with browser-like headers,
// converts the response body to UTF-8 (if needed), and returns it as an
// io.Reader. Profile pages served to obvious bots hide follower data, so
// the request mimics a desktop browser navigation.
func FetchWithBrowserHeaders(url string) (io.Reader, error) {
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgents[rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("referer", referers[rnd.Intn(len(referers))])
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("upgrade-insecure-requests", "1")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Sec-Fetch-User", "?1")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	// 429 standard, 430 is what Instagram actually answers with
	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		resp.Body.Close()
		retryAfter := resp.Header.Get("Retry-After")
		return nil, fmt.Errorf("rate limited; retry after %s", retryAfter)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s unexpected status code: %d", url, resp.StatusCode)
	}

	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Naver pages still ship EUC-KR depending on the template; decode
	// everything to UTF-8 before the extraction regexes see it
	encoding, name, _ := charset.DetermineEncoding(bodyBytes, resp.Header.Get("Content-Type"))
	if name == "utf-8" || name == "UTF-8" {
		return bytes.NewReader(bodyBytes), nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(bodyBytes))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}

	return &buf, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Redis configuration (applicant store + mail outbox streams)
	RedisAddr           string
	RedisDB             int
	MailStream          string
	MailStreamCount     int
	MailStreamMaxLength int

	// Memcache configuration (scrape politeness cache)
	MemcacheAddr string

	// Sync configuration
	PollInterval     time.Duration // base polling interval per project
	PollMaxInterval  time.Duration // backoff ceiling when no new rows arrive
	ScrapeBatchSize  int
	ScrapeBatchDelay time.Duration
	BlockTime        time.Duration // per-host block after a rate-limit response

	// Default selection minimums, overridable per project in the store
	ThreadsMin   int64
	InstagramMin int64
	BlogMin      int64

	// HTTP server
	ListenAddr      string
	SSEHeartbeat    time.Duration
	LongPollTimeout time.Duration

	// ProjectSheets maps project id -> spreadsheet CSV export URL for the
	// polling worker. Parsed from "id=url,id=url".
	ProjectSheets map[string]string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	mailStreamCount, _ := strconv.Atoi(getEnv("MAIL_STREAM_COUNT", "1"))
	mailStreamMaxLen, _ := strconv.Atoi(getEnv("MAIL_STREAM_MAXLEN", "500"))
	pollInterval, _ := strconv.Atoi(getEnv("POLL_INTERVAL_SECONDS", "30"))
	pollMaxInterval, _ := strconv.Atoi(getEnv("POLL_MAX_INTERVAL_SECONDS", "300"))
	batchSize, _ := strconv.Atoi(getEnv("SCRAPE_BATCH_SIZE", "5"))
	batchDelay, _ := strconv.Atoi(getEnv("SCRAPE_BATCH_DELAY_MS", "1000"))
	blockTime, _ := strconv.Atoi(getEnv("SCRAPE_BLOCK_SECONDS", "300"))
	threadsMin, _ := strconv.ParseInt(getEnv("THREADS_MIN", "500"), 10, 64)
	instagramMin, _ := strconv.ParseInt(getEnv("INSTAGRAM_MIN", "1000"), 10, 64)
	blogMin, _ := strconv.ParseInt(getEnv("BLOG_MIN", "300"), 10, 64)
	heartbeat, _ := strconv.Atoi(getEnv("SSE_HEARTBEAT_SECONDS", "15"))
	longPoll, _ := strconv.Atoi(getEnv("LONG_POLL_TIMEOUT_SECONDS", "30"))

	return Config{
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:             redisDB,
		MailStream:          getEnv("MAIL_STREAM", "mailout"),
		MailStreamCount:     mailStreamCount,
		MailStreamMaxLength: mailStreamMaxLen,
		MemcacheAddr:        getEnv("MEMCACHE_ADDR", "localhost:11211"),
		PollInterval:        time.Duration(pollInterval) * time.Second,
		PollMaxInterval:     time.Duration(pollMaxInterval) * time.Second,
		ScrapeBatchSize:     batchSize,
		ScrapeBatchDelay:    time.Duration(batchDelay) * time.Millisecond,
		BlockTime:           time.Duration(blockTime) * time.Second,
		ThreadsMin:          threadsMin,
		InstagramMin:        instagramMin,
		BlogMin:             blogMin,
		ListenAddr:          getEnv("LISTEN_ADDR", ":8080"),
		SSEHeartbeat:        time.Duration(heartbeat) * time.Second,
		LongPollTimeout:     time.Duration(longPoll) * time.Second,
		ProjectSheets:       parseProjectSheets(getEnv("PROJECT_SHEETS", "")),
		Environment:         getEnv("SNSWORKER_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the worker cannot run with
func (c *Config) Validate() error {
	if c.ScrapeBatchSize <= 0 {
		return fmt.Errorf("scrape batch size must be positive, got %d", c.ScrapeBatchSize)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.PollMaxInterval < c.PollInterval {
		return fmt.Errorf("poll max interval %v is below poll interval %v", c.PollMaxInterval, c.PollInterval)
	}
	if c.ThreadsMin < 0 || c.InstagramMin < 0 || c.BlogMin < 0 {
		return fmt.Errorf("selection minimums must be non-negative")
	}
	if c.MailStreamCount <= 0 {
		return fmt.Errorf("mail stream count must be positive, got %d", c.MailStreamCount)
	}
	return nil
}

// parseProjectSheets parses "projectA=https://a,projectB=https://b".
// Malformed entries are skipped.
func parseProjectSheets(raw string) map[string]string {
	sheets := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, url, found := strings.Cut(entry, "=")
		if !found || id == "" || url == "" {
			continue
		}
		sheets[strings.TrimSpace(id)] = strings.TrimSpace(url)
	}
	return sheets
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

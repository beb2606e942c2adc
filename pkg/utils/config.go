package utils

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultCatalogURL = "https://www.webtoons.com/zh-hant/originals/complete?sortOrder=UPDATE&page=1"
	DefaultReferer    = "https://www.webtoons.com/"
	DefaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"
)

// Config is everything the binaries read from the environment.
type Config struct {
	HTTPAddr string
	LogLevel string
	LogJSON  bool

	// Store
	StoreBackend string // file | sqlite | postgres
	DataFile     string
	PostgresDSN  string

	// Remote site
	CatalogURL     string
	Referer        string
	UserAgent      string
	RequestTimeout time.Duration
	RequestsPerSec float64

	// Engine
	EpisodeStrategy string // attribute | items | label | browser
	DetailDelay     time.Duration
	UnchangedDelay  time.Duration
	MaxPages        int // 0 = every page

	CrawlSchedule string // cron spec, empty disables
	NotifyAddr    string // UDP listen address, empty disables
	FeedAddr      string // TCP change feed address, empty disables

	// Webhook
	PublicURL   string // externally visible root, for image links
	FallbackURL string // chat backend for unmatched intents, empty = canned reply
}

// LoadConfig reads WEBTOONHUB_* variables, after loading a .env file from
// the working directory if there is one.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr: envString("WEBTOONHUB_HTTP_ADDR", ":5000"),
		LogLevel: envString("WEBTOONHUB_LOG_LEVEL", "info"),
		LogJSON:  envBool("WEBTOONHUB_LOG_JSON", false),

		StoreBackend: strings.ToLower(envString("WEBTOONHUB_STORE", "file")),
		DataFile:     envString("WEBTOONHUB_DATA_FILE", "data/comics_data.json"),
		PostgresDSN:  envString("WEBTOONHUB_PG_DSN", ""),

		CatalogURL:     envString("WEBTOONHUB_CATALOG_URL", DefaultCatalogURL),
		Referer:        envString("WEBTOONHUB_REFERER", DefaultReferer),
		UserAgent:      envString("WEBTOONHUB_USER_AGENT", DefaultUserAgent),
		RequestTimeout: envDuration("WEBTOONHUB_REQUEST_TIMEOUT", 15*time.Second),
		RequestsPerSec: envFloat("WEBTOONHUB_RPS", 5),

		EpisodeStrategy: strings.ToLower(envString("WEBTOONHUB_EPISODE_STRATEGY", "attribute")),
		DetailDelay:     envDuration("WEBTOONHUB_DETAIL_DELAY", 100*time.Millisecond),
		UnchangedDelay:  envDuration("WEBTOONHUB_UNCHANGED_DELAY", 50*time.Millisecond),
		MaxPages:        envInt("WEBTOONHUB_MAX_PAGES", 0),

		CrawlSchedule: envString("WEBTOONHUB_CRAWL_SCHEDULE", ""),
		NotifyAddr:    envString("WEBTOONHUB_NOTIFY_ADDR", ""),
		FeedAddr:      envString("WEBTOONHUB_FEED_ADDR", ""),

		PublicURL:   envString("WEBTOONHUB_PUBLIC_URL", ""),
		FallbackURL: envString("WEBTOONHUB_FALLBACK_URL", ""),
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// the parsers below fall back to def on malformed values

func envInt(key string, def int) int {
	n, err := strconv.Atoi(envString(key, ""))
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(envString(key, ""), 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	b, err := strconv.ParseBool(envString(key, ""))
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(envString(key, ""))
	if err != nil {
		return def
	}
	return d
}

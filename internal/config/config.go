package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string

	// MongoDB (optional persistence; empty MONGO_URI selects the in-memory store)
	MongoURI               string
	MongoDatabase          string
	MongoCollection        string
	MongoArchiveCollection string

	// Policy service (optional; empty disables the lookup)
	PolicyServiceURL string

	// Webhook endpoints for domain events, comma-separated "event=url" pairs
	EventWebhooks map[string]string

	DefaultMaxRounds int
	DealTimeout      time.Duration
	StalenessWindow  time.Duration
	MaxTextLength    int
	SweepInterval    time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func Load() Config {
	return Config{
		Port:                   getenv("PORT", "8080"),
		Environment:            getenv("ENVIRONMENT", "production"),
		MongoURI:               strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDatabase:          getenv("MONGO_DB", "procurement"),
		MongoCollection:        getenv("MONGO_COLLECTION_DEALS", "deals"),
		MongoArchiveCollection: getenv("MONGO_COLLECTION_DEALS_ARCHIVE", "deals_archive"),
		PolicyServiceURL:       strings.TrimRight(strings.TrimSpace(os.Getenv("POLICY_SERVICE_URL")), "/"),
		EventWebhooks:          parseWebhooks(os.Getenv("EVENT_WEBHOOKS")),
		DefaultMaxRounds:       getenvInt("DEFAULT_MAX_ROUNDS", 10),
		DealTimeout:            getenvDuration("DEAL_TIMEOUT", 24*time.Hour),
		StalenessWindow:        getenvDuration("MESSAGE_STALENESS_WINDOW", 5*time.Minute),
		MaxTextLength:          getenvInt("MAX_TEXT_LENGTH", 10000),
		SweepInterval:          getenvDuration("SWEEP_INTERVAL", time.Minute),
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           20 * time.Second,
		IdleTimeout:            60 * time.Second,
	}
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// parseWebhooks reads "deal.agreed=http://a,deal.archived=http://b".
func parseWebhooks(raw string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

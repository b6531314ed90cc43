package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Provider   ProviderConfig
	Scrape     ScrapeConfig
	Inventory  InventoryConfig
	Resilience ResilienceConfig
	Ingest     IngestConfig
	Notify     NotifyConfig
	Auth       AuthConfig
	Log        LogConfig
	Schedule   ScheduleConfig

	// LocationsFile is a JSON file holding the location list. Empty
	// means the embedded defaults are used.
	LocationsFile string
}

// ServerConfig controls the ops HTTP server (serve mode only).
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// ProviderConfig controls the remote browser provider.
type ProviderConfig struct {
	// APIKey authenticates session creation.
	APIKey string

	// ProjectID scopes sessions at the provider.
	ProjectID string

	// BaseURL is the provider REST endpoint.
	BaseURL string // default: "https://api.browserbase.com"

	// ConnectTimeout bounds the WebSocket open handshake.
	ConnectTimeout time.Duration // default: 15s

	// CommandTimeout is the per-CDP-command deadline.
	CommandTimeout time.Duration // default: 30s
}

// ScrapeConfig controls batch orchestration.
type ScrapeConfig struct {
	// LocationAttempts is the per-location retry cap.
	LocationAttempts int // default: 3

	// NavAttempts is the inline navigation retry cap.
	NavAttempts int // default: 2

	// LocationDelay is the fixed pause between locations.
	LocationDelay time.Duration // default: 5s

	// RenderDelay waits for client-side rendering after navigation.
	RenderDelay time.Duration // default: 3s

	// NavTimeout bounds a single navigation incl. the load event.
	NavTimeout time.Duration // default: 30s

	// NavRetryDelay is the pause between inline navigation retries.
	NavRetryDelay time.Duration // default: 1s

	// PoolSize is the number of concurrent detail pages per batch.
	PoolSize int // default: 4

	// DetailPageLimit caps detail visits per location.
	DetailPageLimit int // default: 20

	// CartHackLimit caps how many candidates get the cart fallback.
	CartHackLimit int // default: 5

	// PoolBatchDelay is the pause between detail-page pool batches.
	PoolBatchDelay time.Duration // default: 1s

	// DebugScreenshotDir, when set, receives failure screenshots.
	DebugScreenshotDir string

	// AgeGateTexts is the allow-list of button labels clicked to
	// dismiss age-verification interstitials.
	AgeGateTexts []string
}

// InventoryConfig tunes the extraction heuristics.
type InventoryConfig struct {
	// DropdownCeiling rejects quantity-selector maxima at or above
	// this value; large maxima are UI conveniences, not inventory.
	DropdownCeiling int // default: 50

	// CartSentinel is the oversized quantity used to provoke a
	// validation message from the add-to-cart flow.
	CartSentinel int // default: 999
}

// ResilienceConfig controls retry and the circuit breaker.
type ResilienceConfig struct {
	SessionRetries   int           // default: 3
	SessionBaseDelay time.Duration // default: 2s

	BreakerThreshold int           // default: 5
	BreakerResetTime time.Duration // default: 60s

	FetchTimeout time.Duration // default: 30s
}

// IngestConfig controls the ingestion collaborator.
type IngestConfig struct {
	// BaseURL receives POST {base}/scraped-batch.
	BaseURL string
}

// NotifyConfig controls downstream notification and the operator webhook.
type NotifyConfig struct {
	// BaseURL receives POST {base}/notify.
	BaseURL string

	// WebhookURL is forwarded in the notify payload.
	WebhookURL string

	// MaxEvents is forwarded in the notify payload.
	MaxEvents int // default: 25

	// DiscordWebhookURL receives the operator-facing batch summary.
	DiscordWebhookURL string
}

// AuthConfig controls ops API authentication.
type AuthConfig struct {
	// Token, when non-empty, is required as a bearer token on the
	// protected ops endpoints.
	Token string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// ScheduleConfig controls serve-mode cron scheduling.
type ScheduleConfig struct {
	// Spec is a cron expression; empty disables the internal schedule
	// (the binary is then driven by external cron via one-shot runs).
	Spec string // default: "0 */6 * * *"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("MENUWATCH_HOST", "0.0.0.0"),
			Port: envIntOr("MENUWATCH_PORT", 8080),
			Mode: envOr("MENUWATCH_MODE", "release"),
		},
		Provider: ProviderConfig{
			APIKey:         os.Getenv("BROWSERBASE_API_KEY"),
			ProjectID:      os.Getenv("BROWSERBASE_PROJECT_ID"),
			BaseURL:        envOr("BROWSERBASE_API_URL", "https://api.browserbase.com"),
			ConnectTimeout: envDurationOr("MENUWATCH_CONNECT_TIMEOUT", 15*time.Second),
			CommandTimeout: envDurationOr("MENUWATCH_COMMAND_TIMEOUT", 30*time.Second),
		},
		Scrape: ScrapeConfig{
			LocationAttempts:   envIntOr("MENUWATCH_LOCATION_ATTEMPTS", 3),
			NavAttempts:        envIntOr("MENUWATCH_NAV_ATTEMPTS", 2),
			LocationDelay:      envDurationOr("MENUWATCH_LOCATION_DELAY", 5*time.Second),
			RenderDelay:        envDurationOr("MENUWATCH_RENDER_DELAY", 3*time.Second),
			NavTimeout:         envDurationOr("MENUWATCH_NAV_TIMEOUT", 30*time.Second),
			NavRetryDelay:      envDurationOr("MENUWATCH_NAV_RETRY_DELAY", time.Second),
			PoolSize:           envIntOr("MENUWATCH_POOL_SIZE", 4),
			DetailPageLimit:    envIntOr("MENUWATCH_DETAIL_LIMIT", 20),
			CartHackLimit:      envIntOr("MENUWATCH_CART_HACK_LIMIT", 5),
			PoolBatchDelay:     envDurationOr("MENUWATCH_POOL_BATCH_DELAY", time.Second),
			DebugScreenshotDir: os.Getenv("MENUWATCH_SCREENSHOT_DIR"),
			AgeGateTexts: envSliceOr("MENUWATCH_AGE_GATE_TEXTS", []string{
				"yes", "21+", "i agree", "i am 21", "i'm over 21", "enter", "confirm",
			}),
		},
		Inventory: InventoryConfig{
			DropdownCeiling: envIntOr("MENUWATCH_DROPDOWN_CEILING", 50),
			CartSentinel:    envIntOr("MENUWATCH_CART_SENTINEL", 999),
		},
		Resilience: ResilienceConfig{
			SessionRetries:   envIntOr("MENUWATCH_SESSION_RETRIES", 3),
			SessionBaseDelay: envDurationOr("MENUWATCH_SESSION_BASE_DELAY", 2*time.Second),
			BreakerThreshold: envIntOr("MENUWATCH_BREAKER_THRESHOLD", 5),
			BreakerResetTime: envDurationOr("MENUWATCH_BREAKER_RESET", 60*time.Second),
			FetchTimeout:     envDurationOr("MENUWATCH_FETCH_TIMEOUT", 30*time.Second),
		},
		Ingest: IngestConfig{
			BaseURL: os.Getenv("INGEST_BASE_URL"),
		},
		Notify: NotifyConfig{
			BaseURL:           os.Getenv("NOTIFY_BASE_URL"),
			WebhookURL:        os.Getenv("NOTIFY_WEBHOOK_URL"),
			MaxEvents:         envIntOr("NOTIFY_MAX_EVENTS", 25),
			DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		},
		Auth: AuthConfig{
			Token: os.Getenv("MENUWATCH_API_TOKEN"),
		},
		Log: LogConfig{
			Level:  envOr("MENUWATCH_LOG_LEVEL", "info"),
			Format: envOr("MENUWATCH_LOG_FORMAT", "json"),
		},
		Schedule: ScheduleConfig{
			Spec: envOr("MENUWATCH_CRON", "0 */6 * * *"),
		},
		LocationsFile: os.Getenv("MENUWATCH_LOCATIONS_FILE"),
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

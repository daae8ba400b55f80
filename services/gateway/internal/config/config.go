package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when neither an explicit path nor
// SIGNALREACH_CONFIG is given.
const DefaultConfigPath = "config.yaml"

// ResolvePath returns path, else SIGNALREACH_CONFIG, else DefaultConfigPath.
// It reads the environment at call time, so values loaded from .env count.
func ResolvePath(path string) string {
	if path = strings.TrimSpace(path); path != "" {
		return path
	}
	if v := strings.TrimSpace(os.Getenv("SIGNALREACH_CONFIG")); v != "" {
		return v
	}
	return DefaultConfigPath
}

const (
	defaultActorID          = "trudax~reddit-scraper-lite"
	defaultMaxItems         = 50
	defaultWaitTimeout      = 5 * time.Minute
	defaultRunTimeout       = 10 * time.Minute
	defaultLoginPerMinute   = 10
	defaultRefreshPerMinute = 20
	defaultDraftPerMinute   = 30
	defaultQueueConcurrency = 2
	defaultQueueStream      = "signalreach:scrape:jobs"
	defaultQueueGroup       = "scrapers"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port              string   `yaml:"port"`
	LogLevel          string   `yaml:"logLevel"`
	LogsDir           string   `yaml:"logsDir"`
	DatabaseURL       string   `yaml:"databaseURL"`
	RedisAddr         string   `yaml:"redisAddr"`
	RedisPassword     string   `yaml:"redisPassword"`
	AllowedOrigins    []string `yaml:"allowedOrigins"`
	TrustedProxyCIDRs []string `yaml:"trustedProxyCidrs"`

	AuthURL     string `yaml:"authURL"`
	AuthAnonKey string `yaml:"authAnonKey"`
	JWTSecret   string `yaml:"jwtSecret"`
	JWTIssuer   string `yaml:"jwtIssuer"`
	JWTAudience string `yaml:"jwtAudience"`
	JWTLeeway   string `yaml:"jwtLeeway"`
	CronSecret  string `yaml:"cronSecret"`

	GenerationProvider string  `yaml:"generationProvider"`
	GenerationBaseURL  string  `yaml:"generationBaseURL"`
	GenerationAPIKey   string  `yaml:"generationAPIKey"`
	GenerationModel    string  `yaml:"generationModel"`
	GenerationTimeout  string  `yaml:"generationTimeout"`
	GenerationTemp     float64 `yaml:"generationTemperature"`

	ApifyToken             string `yaml:"apifyToken"`
	ApifyBaseURL           string `yaml:"apifyBaseURL"`
	ScrapeActorID          string `yaml:"scrapeActorId"`
	ScrapeMaxItems         int    `yaml:"scrapeMaxItems"`
	ScrapeWaitTimeout      string `yaml:"scrapeWaitTimeout"`
	ScrapeRunTimeout       string `yaml:"scrapeRunTimeout"`
	ScrapeConcurrency      int    `yaml:"scrapeConcurrency"`
	ScrapeAllowDuplicates  bool   `yaml:"scrapeAllowDuplicates"`
	ScrapeRespectFrequency bool   `yaml:"scrapeRespectFrequency"`

	ArchiveEndpoint  string `yaml:"archiveEndpoint"`
	ArchiveAccessKey string `yaml:"archiveAccessKey"`
	ArchiveSecretKey string `yaml:"archiveSecretKey"`
	ArchiveBucket    string `yaml:"archiveBucket"`
	ArchiveRegion    string `yaml:"archiveRegion"`
	ArchiveUseSSL    bool   `yaml:"archiveUseSSL"`

	QueueStream      string `yaml:"queueStream"`
	QueueGroup       string `yaml:"queueGroup"`
	QueueConcurrency int    `yaml:"queueConcurrency"`

	LoginRateLimitPerMinute   int `yaml:"loginRateLimitPerMinute"`
	RefreshRateLimitPerMinute int `yaml:"refreshRateLimitPerMinute"`
	DraftRateLimitPerMinute   int `yaml:"draftRateLimitPerMinute"`
}

// Load reads config from path (see ResolvePath), applies environment
// overrides and defaults, then validates the result.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	path = ResolvePath(path)
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogsDir, "LOGS_DIR")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	if v := os.Getenv("SIGNALREACH_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("SIGNALREACH_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}

	setString(&cfg.AuthURL, "SUPABASE_URL")
	setString(&cfg.AuthAnonKey, "SUPABASE_ANON_KEY")
	setString(&cfg.JWTSecret, "SUPABASE_JWT_SECRET")
	setString(&cfg.JWTIssuer, "JWT_ISSUER")
	setString(&cfg.JWTAudience, "JWT_AUDIENCE")
	setString(&cfg.JWTLeeway, "JWT_LEEWAY")
	setString(&cfg.CronSecret, "CRON_SECRET")

	setString(&cfg.GenerationProvider, "GENERATION_PROVIDER")
	setString(&cfg.GenerationBaseURL, "GENERATION_BASE_URL")
	setString(&cfg.GenerationAPIKey, "GEMINI_API_KEY")
	setString(&cfg.GenerationAPIKey, "GENERATION_API_KEY")
	setString(&cfg.GenerationModel, "GENERATION_MODEL")
	setString(&cfg.GenerationTimeout, "GENERATION_TIMEOUT")

	setString(&cfg.ApifyToken, "APIFY_API_TOKEN")
	setString(&cfg.ApifyBaseURL, "APIFY_BASE_URL")
	setString(&cfg.ScrapeActorID, "SCRAPE_ACTOR_ID")
	setInt(&cfg.ScrapeMaxItems, "SCRAPE_MAX_ITEMS")
	setString(&cfg.ScrapeWaitTimeout, "SCRAPE_WAIT_TIMEOUT")
	setString(&cfg.ScrapeRunTimeout, "SCRAPE_RUN_TIMEOUT")
	setInt(&cfg.ScrapeConcurrency, "SCRAPE_CONCURRENCY")
	setBool(&cfg.ScrapeAllowDuplicates, "SCRAPE_ALLOW_DUPLICATES")
	setBool(&cfg.ScrapeRespectFrequency, "SCRAPE_RESPECT_FREQUENCY")

	setString(&cfg.ArchiveEndpoint, "ARCHIVE_ENDPOINT")
	setString(&cfg.ArchiveAccessKey, "ARCHIVE_ACCESS_KEY")
	setString(&cfg.ArchiveSecretKey, "ARCHIVE_SECRET_KEY")
	setString(&cfg.ArchiveBucket, "ARCHIVE_BUCKET")
	setString(&cfg.ArchiveRegion, "ARCHIVE_REGION")
	setBool(&cfg.ArchiveUseSSL, "ARCHIVE_USE_SSL")

	setString(&cfg.QueueStream, "QUEUE_STREAM")
	setString(&cfg.QueueGroup, "QUEUE_GROUP")
	setInt(&cfg.QueueConcurrency, "QUEUE_CONCURRENCY")
	setInt(&cfg.LoginRateLimitPerMinute, "LOGIN_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.RefreshRateLimitPerMinute, "REFRESH_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.DraftRateLimitPerMinute, "DRAFT_RATE_LIMIT_PER_MINUTE")
}

func applyDefaults(cfg *FileConfig) {
	if cfg.ScrapeActorID == "" {
		cfg.ScrapeActorID = defaultActorID
	}
	if cfg.ScrapeMaxItems == 0 {
		cfg.ScrapeMaxItems = defaultMaxItems
	}
	if cfg.QueueConcurrency == 0 {
		cfg.QueueConcurrency = defaultQueueConcurrency
	}
	if cfg.QueueStream == "" {
		cfg.QueueStream = defaultQueueStream
	}
	if cfg.QueueGroup == "" {
		cfg.QueueGroup = defaultQueueGroup
	}
	if cfg.LoginRateLimitPerMinute == 0 {
		cfg.LoginRateLimitPerMinute = defaultLoginPerMinute
	}
	if cfg.RefreshRateLimitPerMinute == 0 {
		cfg.RefreshRateLimitPerMinute = defaultRefreshPerMinute
	}
	if cfg.DraftRateLimitPerMinute == 0 {
		cfg.DraftRateLimitPerMinute = defaultDraftPerMinute
	}
	if cfg.GenerationProvider == "" {
		cfg.GenerationProvider = "gemini"
	}
}

func validateConfig(cfg FileConfig) error {
	required := []struct{ value, name, env string }{
		{cfg.Port, "port", "PORT"},
		{cfg.DatabaseURL, "databaseURL", "DATABASE_URL"},
		{cfg.RedisAddr, "redisAddr", "REDIS_ADDR"},
		{cfg.AuthURL, "authURL", "SUPABASE_URL"},
		{cfg.JWTSecret, "jwtSecret", "SUPABASE_JWT_SECRET"},
		{cfg.CronSecret, "cronSecret", "CRON_SECRET"},
		{cfg.GenerationModel, "generationModel", "GENERATION_MODEL"},
		{cfg.ApifyToken, "apifyToken", "APIFY_API_TOKEN"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("config: %s is required (set in config.yaml or %s)", r.name, r.env)
		}
	}
	if !strings.EqualFold(cfg.GenerationProvider, "ollama") && strings.TrimSpace(cfg.GenerationAPIKey) == "" {
		return errors.New("config: generationAPIKey is required (set in config.yaml or GEMINI_API_KEY)")
	}
	if cfg.ScrapeMaxItems < 0 || cfg.ScrapeConcurrency < 0 || cfg.QueueConcurrency < 0 {
		return errors.New("config: scrape and queue limits must be >= 0")
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.RefreshRateLimitPerMinute < 0 || cfg.DraftRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	for _, d := range []struct{ value, name string }{
		{cfg.JWTLeeway, "jwtLeeway"},
		{cfg.GenerationTimeout, "generationTimeout"},
		{cfg.ScrapeWaitTimeout, "scrapeWaitTimeout"},
		{cfg.ScrapeRunTimeout, "scrapeRunTimeout"},
	} {
		if _, err := ParseDuration(d.value, 0); err != nil {
			return fmt.Errorf("config: %s: %w", d.name, err)
		}
	}
	return nil
}

// ArchiveEnabled reports whether raw scrape output should go to object storage.
func (c FileConfig) ArchiveEnabled() bool {
	return strings.TrimSpace(c.ArchiveEndpoint) != "" && strings.TrimSpace(c.ArchiveBucket) != ""
}

func (c FileConfig) WaitTimeout() time.Duration {
	d, _ := ParseDuration(c.ScrapeWaitTimeout, defaultWaitTimeout)
	return d
}

// RunTimeout bounds a whole cron-triggered scrape.
func (c FileConfig) RunTimeout() time.Duration {
	d, _ := ParseDuration(c.ScrapeRunTimeout, defaultRunTimeout)
	return d
}

func (c FileConfig) Leeway() time.Duration {
	d, _ := ParseDuration(c.JWTLeeway, 0)
	return d
}

func (c FileConfig) GenerationTimeoutDuration() time.Duration {
	d, _ := ParseDuration(c.GenerationTimeout, 0)
	return d
}

// ParseDuration parses an optional duration string, returning def when empty.
func ParseDuration(value string, def time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if d < 0 {
		return def, fmt.Errorf("invalid duration %q: must be >= 0", value)
	}
	return d, nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

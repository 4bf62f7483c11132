package config

import (
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level      string
    Pretty     bool
    File       string
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// PreviewConfig controls the merge preview.
type PreviewConfig struct {
    Debounce time.Duration
    TempDir  string // empty = os.TempDir()
    StaleAge time.Duration
}

// RenderConfig controls page rasterization.
type RenderConfig struct {
    Zoom           float64
    ThumbnailWidth int
    CacheEntries   int
}

// SplitConfig holds split defaults.
type SplitConfig struct {
    DefaultPrefix string
}

// MetricsConfig enables the /metrics endpoint when Addr is set.
type MetricsConfig struct {
    Addr string
}

// Config is the top-level configuration.
type Config struct {
    Logging LoggingConfig
    Axiom   AxiomConfig
    Preview PreviewConfig
    Render  RenderConfig
    Split   SplitConfig
    Metrics MetricsConfig
}

// Load applies .env files (missing files are ignored) and then reads the
// environment. Variables already set win over file values.
func Load(files ...string) Config {
    if len(files) == 0 {
        files = []string{".env"}
    }
    for _, f := range files {
        if _, err := os.Stat(f); err == nil {
            _ = godotenv.Load(f)
        }
    }
    return FromEnv()
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", "true")),
        File:       getEnv("LOG_FILE", ""),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "20"), 20),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "3"), 3),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "14"), 14),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       getEnv("AXIOM_DATASET", "dev") + "_pdfsplitmerge",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    cfg.Preview = PreviewConfig{
        Debounce: parseDuration(getEnv("PREVIEW_DEBOUNCE", "250ms"), 250*time.Millisecond),
        TempDir:  getEnv("PREVIEW_TEMP_DIR", ""),
        StaleAge: parseDuration(getEnv("PREVIEW_STALE_AGE", "24h"), 24*time.Hour),
    }
    if cfg.Preview.Debounce <= 0 { cfg.Preview.Debounce = 250 * time.Millisecond }

    cfg.Render = RenderConfig{
        Zoom:           parseFloat(getEnv("RENDER_ZOOM", "1.5"), 1.5),
        ThumbnailWidth: parseInt(getEnv("RENDER_THUMB_WIDTH", "200"), 200),
        CacheEntries:   parseInt(getEnv("RENDER_CACHE_ENTRIES", "64"), 64),
    }
    if cfg.Render.Zoom <= 0 { cfg.Render.Zoom = 1.5 }
    if cfg.Render.ThumbnailWidth <= 0 { cfg.Render.ThumbnailWidth = 200 }

    cfg.Split = SplitConfig{
        DefaultPrefix: getEnv("SPLIT_DEFAULT_PREFIX", "split"),
    }

    cfg.Metrics = MetricsConfig{
        Addr: getEnv("METRICS_ADDR", ""),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := strings.TrimSpace(os.Getenv(key)); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseFloat(s string, def float64) float64 {
    if s == "" { return def }
    if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

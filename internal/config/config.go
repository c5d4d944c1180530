// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/tournament-scraper/internal/calendar"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Mirror   MirrorConfig   `mapstructure:"mirror"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Geo      GeoConfig      `mapstructure:"geo"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Batch    BatchConfig    `mapstructure:"batch"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// HTTPConfig configures the shared HTTP client.
type HTTPConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ThrottleConfig sizes each named request gate.
type ThrottleConfig struct {
	ChessArbiter GateConfig `mapstructure:"chessarbiter"`
	ChessManager GateConfig `mapstructure:"chessmanager"`
	Mirror       GateConfig `mapstructure:"mirror"`
}

// GateConfig bounds one throttle.
type GateConfig struct {
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// SourcesConfig enables and points the source adapters.
type SourcesConfig struct {
	ChessArbiter SourceConfig `mapstructure:"chessarbiter"`
	ChessManager SourceConfig `mapstructure:"chessmanager"`
}

// SourceConfig configures a single source adapter.
type SourceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	Country string `mapstructure:"country"`
}

// MirrorConfig points at the host serving previously published snapshots.
// An empty BaseURL disables mirroring.
type MirrorConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// SnapshotConfig sets where snapshots are written.
type SnapshotConfig struct {
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// GeoConfig selects the gazetteer. An empty File uses the embedded table.
type GeoConfig struct {
	File string `mapstructure:"file"`
}

// PubSubConfig holds metadata for snapshot notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// BatchConfig drives the batch run. StartDate and EndDate are YYYY-MM and
// inclusive; both must be set to enable scraping.
type BatchConfig struct {
	StartDate    string `mapstructure:"start_date"`
	EndDate      string `mapstructure:"end_date"`
	MonthsAhead  int    `mapstructure:"months_ahead"`
	MonthsBack   int    `mapstructure:"months_back"`
	SkipExisting bool   `mapstructure:"skip_existing"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TOURNAMENTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindBatchEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// bindBatchEnv maps the unprefixed batch variables.
func bindBatchEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"batch.start_date":   "START_DATE",
		"batch.end_date":     "END_DATE",
		"batch.months_ahead": "MONTHS_AHEAD",
		"batch.months_back":  "MONTHS_BACK",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, "TOURNAMENTS_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("http.user_agent", "tournament-scraper/1.0")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("throttle.chessarbiter.max_concurrent", 10)
	v.SetDefault("throttle.chessmanager.max_concurrent", 20)
	v.SetDefault("throttle.mirror.max_concurrent", 10)
	v.SetDefault("sources.chessarbiter.enabled", true)
	v.SetDefault("sources.chessarbiter.base_url", "http://www.chessarbiter.com")
	v.SetDefault("sources.chessmanager.enabled", true)
	v.SetDefault("sources.chessmanager.base_url", "https://www.chessmanager.com")
	v.SetDefault("sources.chessmanager.country", "POL")
	v.SetDefault("mirror.base_url", "")
	v.SetDefault("snapshot.dir", "data")
	v.SetDefault("snapshot.gcs_bucket", "")
	v.SetDefault("snapshot.gcs_prefix", "")
	v.SetDefault("geo.file", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("batch.months_ahead", 6)
	v.SetDefault("batch.months_back", 66)
	v.SetDefault("batch.skip_existing", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	gates := map[string]GateConfig{
		"throttle.chessarbiter": c.Throttle.ChessArbiter,
		"throttle.chessmanager": c.Throttle.ChessManager,
		"throttle.mirror":       c.Throttle.Mirror,
	}
	for key, gate := range gates {
		if gate.MaxConcurrent <= 0 {
			return fmt.Errorf("%s.max_concurrent must be > 0", key)
		}
		if gate.RequestsPerSecond < 0 {
			return fmt.Errorf("%s.requests_per_second must be >= 0", key)
		}
	}
	if c.Sources.ChessArbiter.Enabled && c.Sources.ChessArbiter.BaseURL == "" {
		return fmt.Errorf("sources.chessarbiter.base_url must be set when the source is enabled")
	}
	if c.Sources.ChessManager.Enabled && c.Sources.ChessManager.BaseURL == "" {
		return fmt.Errorf("sources.chessmanager.base_url must be set when the source is enabled")
	}
	if strings.TrimSpace(c.Snapshot.Dir) == "" {
		return fmt.Errorf("snapshot.dir must be set")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	if c.Batch.MonthsAhead < 0 {
		return fmt.Errorf("batch.months_ahead must be >= 0")
	}
	if c.Batch.MonthsBack < 0 {
		return fmt.Errorf("batch.months_back must be >= 0")
	}
	var start, end calendar.Month
	var err error
	if c.Batch.StartDate != "" {
		if start, err = calendar.ParseMonth(c.Batch.StartDate); err != nil {
			return fmt.Errorf("batch.start_date: %w", err)
		}
	}
	if c.Batch.EndDate != "" {
		if end, err = calendar.ParseMonth(c.Batch.EndDate); err != nil {
			return fmt.Errorf("batch.end_date: %w", err)
		}
	}
	if c.Batch.StartDate != "" && c.Batch.EndDate != "" && end.Before(start) {
		return fmt.Errorf("batch.end_date must not be before batch.start_date")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// ScrapeRange returns the inclusive month range to scrape, or false when the
// batch only mirrors.
func (c BatchConfig) ScrapeRange() (start, end calendar.Month, ok bool) {
	if c.StartDate == "" || c.EndDate == "" {
		return calendar.Month{}, calendar.Month{}, false
	}
	start, err := calendar.ParseMonth(c.StartDate)
	if err != nil {
		return calendar.Month{}, calendar.Month{}, false
	}
	end, err = calendar.ParseMonth(c.EndDate)
	if err != nil {
		return calendar.Month{}, calendar.Month{}, false
	}
	return start, end, true
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron"
	"github.com/spf13/viper"

	"github.com/samirrijal/placekeeper/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Valkey      ValkeyConfig      `mapstructure:"valkey"`
	Temporal    TemporalConfig    `mapstructure:"temporal"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Log         LogConfig         `mapstructure:"log"`
	Google      GoogleConfig      `mapstructure:"google"`
	Geocoding   GeocodingConfig   `mapstructure:"geocoding"`
	Discovery   DiscoveryConfig   `mapstructure:"discovery"`
	Enrichment  EnrichmentConfig  `mapstructure:"enrichment"`
	Assets      AssetsConfig      `mapstructure:"assets"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

// TemporalConfig points at the Temporal frontend. When Enabled, scheduled
// maintenance runs are executed as workflows on the worker.
type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GoogleConfig configures the places provider client.
type GoogleConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	PhotoMaxWidth int           `mapstructure:"photo_max_width"`
}

// GeocodingConfig configures the reverse geocoder and the geography job.
type GeocodingConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	UserAgent           string        `mapstructure:"user_agent"`
	Language            string        `mapstructure:"language"`
	Timeout             time.Duration `mapstructure:"timeout"`
	RequestDelay        time.Duration `mapstructure:"request_delay"`
	RateLimitDelay      time.Duration `mapstructure:"rate_limit_delay"`
	MaxRateLimitRetries int           `mapstructure:"max_rate_limit_retries"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	BatchSize           int           `mapstructure:"batch_size"`
}

// DiscoveryConfig configures the discovery scanner.
type DiscoveryConfig struct {
	RequestDelay   time.Duration       `mapstructure:"request_delay"`
	RateLimitDelay time.Duration       `mapstructure:"rate_limit_delay"`
	PageTokenDelay time.Duration       `mapstructure:"page_token_delay"`
	MaxRetries     int                 `mapstructure:"max_retries"`
	MaxPages       int                 `mapstructure:"max_pages"`
	Workers        int                 `mapstructure:"workers"`
	Cells          []domain.SearchCell `mapstructure:"cells"`
	Categories     []domain.Category   `mapstructure:"categories"`
}

// EnrichmentConfig configures the enrichment worker.
type EnrichmentConfig struct {
	DailyCallBudget     int           `mapstructure:"daily_call_budget"`
	RequestDelay        time.Duration `mapstructure:"request_delay"`
	RateLimitDelay      time.Duration `mapstructure:"rate_limit_delay"`
	MaxRateLimitRetries int           `mapstructure:"max_rate_limit_retries"`
	MatchRadiusM        int           `mapstructure:"match_radius_m"`
}

// AssetsConfig configures the asset pipeline.
type AssetsConfig struct {
	Root          string `mapstructure:"root"`
	WatermarkText string `mapstructure:"watermark_text"`
	JPEGQuality   int    `mapstructure:"jpeg_quality"`
}

// MaintenanceConfig configures the maintenance sweeper.
type MaintenanceConfig struct {
	AssetRetention  time.Duration `mapstructure:"asset_retention"`
	ReportsDir      string        `mapstructure:"reports_dir"`
	DeleteBatchSize int           `mapstructure:"delete_batch_size"`
}

// ScheduleConfig holds six-field cron specs (seconds first) per job.
type ScheduleConfig struct {
	Discovery   string        `mapstructure:"discovery"`
	Enrichment  string        `mapstructure:"enrichment"`
	Geography   string        `mapstructure:"geography"`
	Maintenance string        `mapstructure:"maintenance"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
}

// Specs maps job names to their cron specs.
func (s ScheduleConfig) Specs() map[string]string {
	return map[string]string{
		domain.JobDiscovery:   s.Discovery,
		domain.JobEnrichment:  s.Enrichment,
		domain.JobGeography:   s.Geography,
		domain.JobMaintenance: s.Maintenance,
	}
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: PLACEKEEPER_DATABASE_HOST → database.host
	v.SetEnvPrefix("PLACEKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.Discovery.Cells) == 0 {
		cfg.Discovery.Cells = DefaultCells()
	}
	if len(cfg.Discovery.Categories) == 0 {
		cfg.Discovery.Categories = DefaultCategories()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "placekeeper")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "placekeeper")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "placekeeper-maintenance")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("google.api_key", "")
	v.SetDefault("google.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("google.timeout", "15s")
	v.SetDefault("google.photo_max_width", 800)

	v.SetDefault("geocoding.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoding.user_agent", "placekeeper/1.0 (ops@placekeeper.co)")
	v.SetDefault("geocoding.language", "es")
	v.SetDefault("geocoding.timeout", "10s")
	v.SetDefault("geocoding.request_delay", "1100ms")
	v.SetDefault("geocoding.rate_limit_delay", "60s")
	v.SetDefault("geocoding.max_rate_limit_retries", 3)
	v.SetDefault("geocoding.cache_ttl", "720h")
	v.SetDefault("geocoding.batch_size", 500)

	v.SetDefault("discovery.request_delay", "2s")
	v.SetDefault("discovery.rate_limit_delay", "60s")
	v.SetDefault("discovery.page_token_delay", "2s")
	v.SetDefault("discovery.max_retries", 3)
	v.SetDefault("discovery.max_pages", 3)
	v.SetDefault("discovery.workers", 1)

	v.SetDefault("enrichment.daily_call_budget", 1000)
	v.SetDefault("enrichment.request_delay", "200ms")
	v.SetDefault("enrichment.rate_limit_delay", "60s")
	v.SetDefault("enrichment.max_rate_limit_retries", 5)
	v.SetDefault("enrichment.match_radius_m", 150)

	v.SetDefault("assets.root", "./uploads")
	v.SetDefault("assets.watermark_text", "placekeeper")
	v.SetDefault("assets.jpeg_quality", 85)

	v.SetDefault("maintenance.asset_retention", "720h")
	v.SetDefault("maintenance.reports_dir", "./reports")
	v.SetDefault("maintenance.delete_batch_size", 500)

	v.SetDefault("schedule.discovery", "0 0 2 * * 1")
	v.SetDefault("schedule.enrichment", "0 0 3 * * *")
	v.SetDefault("schedule.geography", "0 30 3 * * *")
	v.SetDefault("schedule.maintenance", "0 0 4 * * 0")
	v.SetDefault("schedule.lock_ttl", "10m")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Geocoding.UserAgent == "" {
		errs = append(errs, "geocoding.user_agent is required by the reverse geocoding usage policy")
	}
	if c.Discovery.MaxPages < 1 {
		errs = append(errs, "discovery.max_pages must be at least 1")
	}
	if c.Discovery.Workers < 1 {
		errs = append(errs, "discovery.workers must be at least 1")
	}
	if c.Discovery.MaxRetries < 0 {
		errs = append(errs, "discovery.max_retries must not be negative")
	}
	for i, cell := range c.Discovery.Cells {
		if err := (domain.Coordinates{Lon: cell.Centroid.Lon, Lat: cell.Centroid.Lat}).Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("discovery.cells[%d]: %v", i, err))
		}
		if cell.RadiusMeters <= 0 {
			errs = append(errs, fmt.Sprintf("discovery.cells[%d].radius_m must be positive", i))
		}
	}
	for i, cat := range c.Discovery.Categories {
		if cat.Name == "" || cat.Type == "" {
			errs = append(errs, fmt.Sprintf("discovery.categories[%d] needs name and type", i))
		}
	}
	if c.Enrichment.DailyCallBudget < 0 {
		errs = append(errs, "enrichment.daily_call_budget must not be negative")
	}
	if c.Enrichment.MaxRateLimitRetries < 0 {
		errs = append(errs, "enrichment.max_rate_limit_retries must not be negative")
	}
	if c.Geocoding.MaxRateLimitRetries < 0 {
		errs = append(errs, "geocoding.max_rate_limit_retries must not be negative")
	}
	if c.Assets.Root == "" {
		errs = append(errs, "assets.root is required")
	}
	if c.Assets.JPEGQuality < 1 || c.Assets.JPEGQuality > 100 {
		errs = append(errs, fmt.Sprintf("assets.jpeg_quality must be 1-100, got %d", c.Assets.JPEGQuality))
	}
	if c.Maintenance.AssetRetention <= 0 {
		errs = append(errs, "maintenance.asset_retention must be positive")
	}
	if c.Maintenance.ReportsDir == "" {
		errs = append(errs, "maintenance.reports_dir is required")
	}
	for job, spec := range c.Schedule.Specs() {
		if _, err := cron.Parse(spec); err != nil {
			errs = append(errs, fmt.Sprintf("schedule.%s: %v", job, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// DefaultCells returns the built-in search grid over the Colombian Caribbean.
func DefaultCells() []domain.SearchCell {
	return []domain.SearchCell{
		{Centroid: domain.Centroid{Name: "Barranquilla", Lat: 10.9639, Lon: -74.7964}, RadiusMeters: 8000},
		{Centroid: domain.Centroid{Name: "Cartagena", Lat: 10.3910, Lon: -75.4794}, RadiusMeters: 8000},
		{Centroid: domain.Centroid{Name: "Santa Marta", Lat: 11.2408, Lon: -74.1990}, RadiusMeters: 6000},
		{Centroid: domain.Centroid{Name: "Sincelejo", Lat: 9.3047, Lon: -75.3978}, RadiusMeters: 5000},
		{Centroid: domain.Centroid{Name: "Montería", Lat: 8.7479, Lon: -75.8814}, RadiusMeters: 5000},
		{Centroid: domain.Centroid{Name: "Valledupar", Lat: 10.4631, Lon: -73.2532}, RadiusMeters: 5000},
		{Centroid: domain.Centroid{Name: "Riohacha", Lat: 11.5444, Lon: -72.9072}, RadiusMeters: 4000},
	}
}

// DefaultCategories returns the built-in category taxonomy.
func DefaultCategories() []domain.Category {
	return []domain.Category{
		{Name: "restaurant", Type: "restaurant"},
		{Name: "cafe", Type: "cafe"},
		{Name: "bar", Type: "bar"},
		{Name: "hotel", Type: "lodging"},
		{Name: "museum", Type: "museum"},
		{Name: "park", Type: "park"},
		{Name: "beach", Type: "natural_feature", Keyword: "playa"},
		{Name: "shopping", Type: "shopping_mall"},
		{Name: "tourist_attraction", Type: "tourist_attraction"},
	}
}

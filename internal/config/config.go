package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration
	PipelineEnabled    bool

	// Nominatim place lookup.
	NominatimURL       string
	NominatimUserAgent string
	NominatimTimeout   time.Duration
	NominatimCacheSize int

	// Open-Meteo scalar fields.
	OpenMeteoForecastURL   string
	OpenMeteoAirQualityURL string
	OpenMeteoElevationURL  string
	OpenMeteoTimeout       time.Duration

	// Rasterization defaults.
	GridSize     int
	FieldSamples int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	nominatimTimeout, err := parseDuration("NOMINATIM_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	openMeteoTimeout, err := parseDuration("OPENMETEO_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("NOMINATIM_CACHE_SIZE", 1000, 1_000_000)
	if err != nil {
		return nil, err
	}
	gridSize, err := parsePositiveInt("GRID_SIZE", 100, 1000)
	if err != nil {
		return nil, err
	}
	fieldSamples, err := parsePositiveInt("FIELD_SAMPLES", 64, 1000)
	if err != nil {
		return nil, err
	}
	pipelineEnabled, err := strconv.ParseBool(sharedcfg.EnvOrDefault("PIPELINE_ENABLED", "true"))
	if err != nil {
		return nil, errors.New("invalid PIPELINE_ENABLED")
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "geode-plans"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "geode-results"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "geode"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		PipelineEnabled:    pipelineEnabled,

		NominatimURL:       sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: sharedcfg.EnvOrDefault("NOMINATIM_USER_AGENT", "geode/1.0"),
		NominatimTimeout:   nominatimTimeout,
		NominatimCacheSize: cacheSize,

		OpenMeteoForecastURL:   sharedcfg.EnvOrDefault("OPENMETEO_FORECAST_URL", "https://api.open-meteo.com/v1/forecast"),
		OpenMeteoAirQualityURL: sharedcfg.EnvOrDefault("OPENMETEO_AIR_QUALITY_URL", "https://air-quality-api.open-meteo.com/v1/air-quality"),
		OpenMeteoElevationURL:  sharedcfg.EnvOrDefault("OPENMETEO_ELEVATION_URL", "https://api.open-meteo.com/v1/elevation"),
		OpenMeteoTimeout:       openMeteoTimeout,

		GridSize:     gridSize,
		FieldSamples: fieldSamples,
	}

	if cfg.PipelineEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}
	if cfg.NominatimUserAgent == "" {
		return nil, errors.New("NOMINATIM_USER_AGENT is required")
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def, limit int) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, strconv.Itoa(def)))
	if err != nil || n <= 0 || n > limit {
		return 0, fmt.Errorf("invalid %s: must be between 1 and %d", key, limit)
	}
	return n, nil
}

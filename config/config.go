package config

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type contextKey string

func (c contextKey) String() string {
	return "langpack/config/" + string(c)
}

const (
	ctxKeyConfiguration = contextKey("configurationKey")

	defaultWorkerPoolExpiry  = time.Second
	defaultDisposeTimeout    = 8 * time.Second
	defaultLocalizationDir   = "Localization"
	defaultLocalizationMeta  = "meta"
	defaultLocalizationCache = time.Hour
)

// ToContext adds configuration to the current supplied context.
func ToContext(ctx context.Context, config any) context.Context {
	return context.WithValue(ctx, ctxKeyConfiguration, config)
}

// FromContext extracts configuration from the supplied context if any exist.
func FromContext[T any](ctx context.Context) T {
	if cfg, ok := ctx.Value(ctxKeyConfiguration).(T); ok {
		return cfg
	}
	var zero T
	return zero
}

// FromEnv convenience method to process configs.
func FromEnv[T any]() (T, error) {
	return env.ParseAs[T]()
}

// FillEnv convenience method to fill a config object with environment data.
func FillEnv(v any) error {
	return env.Parse(v)
}

type ConfigurationDefault struct {
	LogLevel          string `envDefault:"info"                      env:"LOG_LEVEL"            yaml:"log_level"`
	LogTimeFormat     string `envDefault:"2006-01-02T15:04:05Z07:00" env:"LOG_TIME_FORMAT"      yaml:"log_time_format"`
	LogColored        bool   `envDefault:"true"                      env:"LOG_COLORED"          yaml:"log_colored"`
	LogShowStackTrace bool   `envDefault:"false"                     env:"LOG_SHOW_STACK_TRACE" yaml:"log_show_stack_trace"`

	OpenTelemetryDisable    bool    `envDefault:"false" env:"OPENTELEMETRY_DISABLE"        yaml:"opentelemetry_disable"`
	OpenTelemetryTraceRatio float64 `envDefault:"0.1"   env:"OPENTELEMETRY_TRACE_ID_RATIO" yaml:"opentelemetry_trace_id_ratio"`

	ServiceName        string `envDefault:"langpack" env:"SERVICE_NAME"        yaml:"service_name"`
	ServiceEnvironment string `envDefault:""         env:"SERVICE_ENVIRONMENT" yaml:"service_environment"`

	// Worker pool settings
	WorkerPoolCPUFactorForWorkerCount int    `envDefault:"1"  env:"WORKER_POOL_CPU_FACTOR_FOR_WORKER_COUNT" yaml:"worker_pool_cpu_factor_for_worker_count"`
	WorkerPoolCapacity                int    `envDefault:"16" env:"WORKER_POOL_CAPACITY"                    yaml:"worker_pool_capacity"`
	WorkerPoolCount                   int    `envDefault:"1"  env:"WORKER_POOL_COUNT"                       yaml:"worker_pool_count"`
	WorkerPoolExpiryDuration          string `envDefault:"1s" env:"WORKER_POOL_EXPIRY_DURATION"             yaml:"worker_pool_expiry_duration"`
	WorkerPoolDisposeTimeout          string `envDefault:"8s" env:"WORKER_POOL_DISPOSE_TIMEOUT"             yaml:"worker_pool_dispose_timeout"`

	// Localization assets
	LocalizationAssetsURL string `envDefault:"file://./StreamingAssets" env:"LOCALIZATION_ASSETS_URL" yaml:"localization_assets_url"`
	LocalizationFolder    string `envDefault:"Localization"             env:"LOCALIZATION_FOLDER"     yaml:"localization_folder"`
	LocalizationMetaFile  string `envDefault:"meta"                     env:"LOCALIZATION_META_FILE"  yaml:"localization_meta_file"`
	LocalizationCacheURL  string `envDefault:""                         env:"LOCALIZATION_CACHE_URL"  yaml:"localization_cache_url"`
	LocalizationCacheTTL  string `envDefault:"1h"                       env:"LOCALIZATION_CACHE_TTL"  yaml:"localization_cache_ttl"`
	LocalizationEventsURL string `envDefault:""                         env:"LOCALIZATION_EVENTS_URL" yaml:"localization_events_url"`
}

type ConfigurationLogLevel interface {
	LoggingLevel() string
	LoggingTimeFormat() string
	LoggingShowStackTrace() bool
	LoggingColored() bool
	LoggingLevelIsDebug() bool
}

var _ ConfigurationLogLevel = new(ConfigurationDefault)

func (c *ConfigurationDefault) LoggingLevel() string {
	return c.LogLevel
}

func (c *ConfigurationDefault) LoggingTimeFormat() string {
	return c.LogTimeFormat
}

func (c *ConfigurationDefault) LoggingColored() bool {
	return c.LogColored
}

func (c *ConfigurationDefault) LoggingShowStackTrace() bool {
	return c.LogShowStackTrace
}

func (c *ConfigurationDefault) LoggingLevelIsDebug() bool {
	return c.LoggingLevel() == "debug" || c.LoggingLevel() == "trace"
}

type ConfigurationTelemetry interface {
	DisableOpenTelemetry() bool
	SamplingRatio() float64
	Name() string
	Environment() string
}

var _ ConfigurationTelemetry = new(ConfigurationDefault)

func (c *ConfigurationDefault) DisableOpenTelemetry() bool {
	return c.OpenTelemetryDisable
}

func (c *ConfigurationDefault) SamplingRatio() float64 {
	return c.OpenTelemetryTraceRatio
}

func (c *ConfigurationDefault) Name() string {
	return c.ServiceName
}

func (c *ConfigurationDefault) Environment() string {
	return c.ServiceEnvironment
}

type ConfigurationWorkerPool interface {
	GetCPUFactor() int
	GetCapacity() int
	GetCount() int
	GetExpiryDuration() time.Duration
	GetDisposeTimeout() time.Duration
}

var _ ConfigurationWorkerPool = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetCPUFactor() int {
	return c.WorkerPoolCPUFactorForWorkerCount
}

func (c *ConfigurationDefault) GetCapacity() int {
	return c.WorkerPoolCapacity
}

func (c *ConfigurationDefault) GetCount() int {
	return c.WorkerPoolCount
}

func (c *ConfigurationDefault) GetExpiryDuration() time.Duration {
	return parseDuration(c.WorkerPoolExpiryDuration, defaultWorkerPoolExpiry)
}

// GetDisposeTimeout is the grace period workers get to finish at shutdown.
func (c *ConfigurationDefault) GetDisposeTimeout() time.Duration {
	return parseDuration(c.WorkerPoolDisposeTimeout, defaultDisposeTimeout)
}

type ConfigurationLocalization interface {
	GetAssetsURL() string
	GetMetaPath() string
	GetLanguagePath(languageType string) string
	GetCacheURL() string
	GetCacheTTL() time.Duration
	GetEventsURL() string
}

var _ ConfigurationLocalization = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetAssetsURL() string {
	return c.LocalizationAssetsURL
}

func (c *ConfigurationDefault) folder() string {
	folder := strings.Trim(c.LocalizationFolder, "/")
	if folder == "" {
		return defaultLocalizationDir
	}
	return folder
}

// GetMetaPath is the bucket key of the meta index, relative to the assets root.
func (c *ConfigurationDefault) GetMetaPath() string {
	name := c.LocalizationMetaFile
	if name == "" {
		name = defaultLocalizationMeta
	}
	return path.Join(c.folder(), name)
}

// GetLanguagePath is the bucket key of a language text pack.
func (c *ConfigurationDefault) GetLanguagePath(languageType string) string {
	return path.Join(c.folder(), languageType)
}

func (c *ConfigurationDefault) GetCacheURL() string {
	return c.LocalizationCacheURL
}

func (c *ConfigurationDefault) GetCacheTTL() time.Duration {
	return parseDuration(c.LocalizationCacheTTL, defaultLocalizationCache)
}

func (c *ConfigurationDefault) GetEventsURL() string {
	return c.LocalizationEventsURL
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return duration
}

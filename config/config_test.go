package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestContextHelpersAndKeyString() {
	ctx := context.Background()
	cfg := ConfigurationDefault{LogLevel: "debug"}

	s.Equal("langpack/config/configurationKey", ctxKeyConfiguration.String())

	ctx = ToContext(ctx, cfg)
	fromCtx := FromContext[ConfigurationDefault](ctx)
	s.Equal("debug", fromCtx.LogLevel)

	missing := FromContext[*ConfigurationDefault](context.Background())
	s.Nil(missing)
}

func (s *ConfigSuite) TestFromEnvAndFillEnv() {
	type envCfg struct {
		Value string `env:"LANGPACK_TEST_VALUE"`
	}

	s.T().Setenv("LANGPACK_TEST_VALUE", "abc")

	fromEnv, err := FromEnv[envCfg]()
	s.Require().NoError(err)
	s.Equal("abc", fromEnv.Value)

	var target envCfg
	s.Require().NoError(FillEnv(&target))
	s.Equal("abc", target.Value)
}

func (s *ConfigSuite) TestDefaults() {
	cfg, err := FromEnv[ConfigurationDefault]()
	s.Require().NoError(err)

	s.Equal("file://./StreamingAssets", cfg.GetAssetsURL())
	s.Equal("Localization/meta", cfg.GetMetaPath())
	s.Equal("Localization/fr", cfg.GetLanguagePath("fr"))
	s.Equal(time.Hour, cfg.GetCacheTTL())
	s.Equal(8*time.Second, cfg.GetDisposeTimeout())
	s.Equal(time.Second, cfg.GetExpiryDuration())
	s.Empty(cfg.GetCacheURL())
	s.Empty(cfg.GetEventsURL())
	s.False(cfg.LoggingLevelIsDebug())
	s.InDelta(0.1, cfg.SamplingRatio(), 0.0001)
	s.Equal("langpack", cfg.Name())
	s.Empty(cfg.Environment())
}

func (s *ConfigSuite) TestOverrides() {
	testCases := []struct {
		name       string
		env        map[string]string
		metaPath   string
		langPath   string
		cacheTTL   time.Duration
		dispose    time.Duration
		debugLevel bool
	}{
		{
			name: "custom folder and meta name",
			env: map[string]string{
				"LOCALIZATION_FOLDER":    "/i18n/",
				"LOCALIZATION_META_FILE": "index",
			},
			metaPath: "i18n/index",
			langPath: "i18n/en",
			cacheTTL: time.Hour,
			dispose:  8 * time.Second,
		},
		{
			name: "invalid durations fall back",
			env: map[string]string{
				"LOCALIZATION_CACHE_TTL":      "soon",
				"WORKER_POOL_DISPOSE_TIMEOUT": "2s",
				"LOG_LEVEL":                   "trace",
			},
			metaPath:   "Localization/meta",
			langPath:   "Localization/en",
			cacheTTL:   time.Hour,
			dispose:    2 * time.Second,
			debugLevel: true,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			for k, v := range tc.env {
				s.T().Setenv(k, v)
			}

			cfg, err := FromEnv[ConfigurationDefault]()
			s.Require().NoError(err)
			s.Equal(tc.metaPath, cfg.GetMetaPath())
			s.Equal(tc.langPath, cfg.GetLanguagePath("en"))
			s.Equal(tc.cacheTTL, cfg.GetCacheTTL())
			s.Equal(tc.dispose, cfg.GetDisposeTimeout())
			s.Equal(tc.debugLevel, cfg.LoggingLevelIsDebug())
		})
	}
}

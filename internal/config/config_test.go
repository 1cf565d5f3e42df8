package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	laberrors "github.com/DanaKeydar-LabOS/lab-ai/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "lab_schema", cfg.Store.Collection)
	assert.Equal(t, 768, cfg.Store.VectorSize)
	assert.Equal(t, 5, cfg.Store.TopK)
	assert.Equal(t, "ollama", cfg.Models.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Models.EmbeddingModel)
	assert.Equal(t, 100, cfg.Query.DefaultLimit)
	assert.Equal(t, 1000, cfg.Query.MaxLimit)
	assert.Equal(t, 50, cfg.Cache.MaxEntries)
	assert.Len(t, cfg.Whitelist, 17)
	assert.Contains(t, cfg.Whitelist, "ao")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LAB_AI_TABLE_WHITELIST", "experiments,samples")
	t.Setenv("LAB_AI_DEFAULT_QUERY_LIMIT", "50")
	t.Setenv("LAB_AI_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"experiments", "samples"}, cfg.Whitelist)
	assert.Equal(t, 50, cfg.Query.DefaultLimit)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "bad provider",
			mutate:  func(c *Config) { c.Models.Provider = "bedrock" },
			wantErr: "invalid model provider",
		},
		{
			name:    "zero default limit",
			mutate:  func(c *Config) { c.Query.DefaultLimit = 0 },
			wantErr: "default query limit",
		},
		{
			name: "max below default",
			mutate: func(c *Config) {
				c.Query.DefaultLimit = 100
				c.Query.MaxLimit = 10
			},
			wantErr: "must not be below",
		},
		{
			name:    "empty whitelist",
			mutate:  func(c *Config) { c.Whitelist = nil },
			wantErr: "whitelist must not be empty",
		},
		{
			name:    "zero top-k",
			mutate:  func(c *Config) { c.Store.TopK = 0 },
			wantErr: "top-k",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// Validation failures carry the config error type and name the offending
// environment variable, so startup errors point at what to fix.
func TestValidateReturnsConfigError(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Models.Provider = "bedrock"

	err = validate(cfg)
	require.Error(t, err)
	assert.True(t, laberrors.IsType(err, laberrors.ErrTypeConfig))
	assert.Contains(t, err.Error(), "MODEL_PROVIDER")
}

func TestWhitelistVersionStable(t *testing.T) {
	a := &Config{Whitelist: []string{"b", "a", "C"}}
	b := &Config{Whitelist: []string{"c", "B", "a"}}

	assert.Equal(t, a.WhitelistVersion(), b.WhitelistVersion())
	assert.Equal(t, "a,b,c", a.WhitelistVersion())

	c := &Config{Whitelist: []string{"a", "b"}}
	assert.NotEqual(t, a.WhitelistVersion(), c.WhitelistVersion())
}

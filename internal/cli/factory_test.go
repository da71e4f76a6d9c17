package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/stepgraph/internal/config"
	"github.com/aretw0/stepgraph/pkg/adapters/breaker"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_StoreKinds(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	doc := domain.FlowDocument{
		Name:  "welcome",
		Steps: []domain.Step{{ID: "a", Order: 1, Message: domain.TextMessage{Text: "hi"}}},
	}

	tests := []struct {
		name string
		cfg  func(dir string) config.Config
	}{
		{"memory", func(string) config.Config {
			c := config.Default()
			c.Store.Kind = config.StoreMemory
			return c
		}},
		{"file", func(dir string) config.Config {
			c := config.Default()
			c.Store.Path = dir
			return c
		}},
		{"loam", func(dir string) config.Config {
			c := config.Default()
			c.Store.Kind = config.StoreLoam
			c.Store.Path = dir
			return c
		}},
		{"redis", func(string) config.Config {
			c := config.Default()
			c.Store.Kind = config.StoreRedis
			c.Store.Redis.Addr = mr.Addr()
			c.Session.DistributedLock = true
			return c
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := Setup(tt.cfg(filepath.Join(t.TempDir(), "flows")), nil)
			require.NoError(t, err)
			defer svc.Close()

			require.NoError(t, svc.Store.Save(ctx, doc))
			got, err := svc.Store.Get(ctx, "welcome")
			require.NoError(t, err)
			assert.Equal(t, doc.Steps, got.Steps)

			if tt.name == "redis" {
				assert.NotNil(t, svc.Locker)
			} else {
				assert.Nil(t, svc.Locker)
			}
		})
	}
}

func TestSetup_Breaker(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Kind = config.StoreMemory
	cfg.Store.Breaker.Enabled = true

	svc, err := Setup(cfg, nil)
	require.NoError(t, err)
	_, ok := svc.Store.(*breaker.Store)
	assert.True(t, ok, "store should be wrapped in a breaker")
}

func TestSetup_UnknownKind(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Kind = "s3"
	_, err := Setup(cfg, nil)
	assert.ErrorContains(t, err, `unknown store kind "s3"`)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv(config.EnvPrefix+"STORE_PATH", "")
	cfg, err := LoadConfig("", "", "/tmp/flows", "debug")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/flows", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)

	_, err = LoadConfig("", "", "", "loud")
	assert.Error(t, err)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("STEPGRAPH_STORE_KIND=memory\n"), 0644))

	cfg, err := LoadConfig("", envFile, "", "")
	require.NoError(t, err)
	assert.Equal(t, config.StoreMemory, cfg.Store.Kind)
}

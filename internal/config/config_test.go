package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Greater(t, cfg.Mining.Threads, 0)
	assert.Equal(t, 4096, cfg.Yescrypt.N)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Monitoring.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
mining:
  key: "pool-epoch-7"
  threads: 8
yescrypt:
  n: 2048
  r: 4
  p: 2
monitoring:
  enabled: true
  listen_addr: ":9100"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "pool-epoch-7", cfg.Mining.Key)
	assert.Equal(t, 8, cfg.Mining.Threads)
	assert.Equal(t, 2048, cfg.Yescrypt.N)
	assert.Equal(t, 2, cfg.Yescrypt.P)
	assert.True(t, cfg.Monitoring.Enabled)
	assert.Equal(t, ":9100", cfg.Monitoring.ListenAddr)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "negative threads",
			content: `
mining:
  threads: -1
`,
		},
		{
			name: "bad cost parameter",
			content: `
yescrypt:
  n: 1000
`,
		},
		{
			name: "monitoring without address",
			content: `
monitoring:
  enabled: true
  listen_addr: ""
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

package xconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSettings struct {
	Registry struct {
		ShardCount int           `koanf:"shard_count"`
		SlowWait   time.Duration `koanf:"slow_wait"`
		Comparer   string        `koanf:"comparer"`
	} `koanf:"registry"`
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

const testYAML = `
registry:
  shard_count: 64
  slow_wait: 50ms
  comparer: ignorecase
log:
  level: debug
`

const testJSON = `{"registry": {"shard_count": 16, "slow_wait": "1s", "comparer": "ordinal"}}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew_YAML(t *testing.T) {
	path := writeFile(t, "xkeylockctl.yaml", testYAML)

	cfg, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, FormatYAML, cfg.Format())
	assert.Equal(t, 64, cfg.Client().Int("registry.shard_count"))

	var s testSettings
	require.NoError(t, cfg.Unmarshal("", &s))
	assert.Equal(t, 64, s.Registry.ShardCount)
	assert.Equal(t, 50*time.Millisecond, s.Registry.SlowWait)
	assert.Equal(t, "ignorecase", s.Registry.Comparer)
	assert.Equal(t, "debug", s.Log.Level)
}

func TestNewFromBytes_JSON(t *testing.T) {
	cfg, err := NewFromBytes([]byte(testJSON), FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, cfg.Path())

	var s testSettings
	require.NoError(t, cfg.Unmarshal("", &s))
	assert.Equal(t, 16, s.Registry.ShardCount)
	assert.Equal(t, time.Second, s.Registry.SlowWait)
	assert.ElementsMatch(t,
		[]string{"registry.shard_count", "registry.slow_wait", "registry.comparer"},
		cfg.Client().Keys())
}

func TestNewFromBytes_Empty(t *testing.T) {
	cfg, err := NewFromBytes(nil, FormatYAML)
	require.NoError(t, err)

	var s testSettings
	require.NoError(t, cfg.Unmarshal("registry", &s.Registry))
	assert.Zero(t, s.Registry.ShardCount)
}

func TestNew_Errors(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = New("settings.toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrLoadFailed)

	_, err = New(writeFile(t, "bad.json", "{not json"))
	assert.ErrorIs(t, err, ErrParseFailed)

	_, err = NewFromBytes([]byte("a: 1"), Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestUnmarshal_TypeMismatch(t *testing.T) {
	cfg, err := NewFromBytes([]byte("registry:\n  shard_count: [1, 2]\n"), FormatYAML)
	require.NoError(t, err)

	var s testSettings
	assert.ErrorIs(t, cfg.Unmarshal("", &s), ErrUnmarshalFailed)
}

func TestOptions(t *testing.T) {
	cfg, err := NewFromBytes([]byte(`{"registry": {"shard_count": 4}}`), FormatJSON, WithDelim("/"), WithTag("json"), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Client().Int("registry/shard_count"))

	var s struct {
		Registry struct {
			ShardCount int `json:"shard_count"`
		} `json:"registry"`
	}
	require.NoError(t, cfg.Unmarshal("", &s))
	assert.Equal(t, 4, s.Registry.ShardCount)
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"xkeylockctl"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestContend_IgnoreCaseSerializes(t *testing.T) {
	code, out, errOut := runCLI(t, "contend",
		"--keys", "Key,KEY,key", "--comparer", "ignorecase", "--hold", "20ms", "--expect", "serial")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "overlapped: false")
	assert.Contains(t, out, "handles:    1")
	assert.Contains(t, out, "sections:   3")
}

func TestContend_OrdinalRunsInParallel(t *testing.T) {
	code, out, errOut := runCLI(t, "contend",
		"--keys", "Key,KEY,key", "--hold", "100ms", "--expect", "parallel")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "overlapped: true")
	assert.Contains(t, out, "handles:    3")
	assert.Contains(t, out, "registered: KEY,Key,key")
}

func TestContend_LocaleIgnoreCase(t *testing.T) {
	code, out, errOut := runCLI(t, "contend",
		"--keys", "résumé", "--keys", "RÉSUMÉ,Résumé",
		"--comparer", "locale-ignorecase:fr", "--hold", "10ms", "--rounds", "2")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "sections:   6")
	assert.Contains(t, out, "overlapped: false")
}

func TestContend_ExpectMismatch(t *testing.T) {
	code, out, errOut := runCLI(t, "contend",
		"--keys", "a,a", "--hold", "10ms", "--expect", "parallel")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "overlapped: false")
	assert.Contains(t, errOut, "期望 parallel")
}

func TestContend_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing_keys", []string{"contend"}},
		{"empty_keys", []string{"contend", "--keys", " , "}},
		{"unknown_comparer", []string{"contend", "--keys", "a", "--comparer", "fuzzy"}},
		{"ordinal_with_arg", []string{"contend", "--keys", "a", "--comparer", "ordinal:x"}},
		{"bad_locale", []string{"contend", "--keys", "a", "--comparer", "locale:!!"}},
		{"bad_expect", []string{"contend", "--keys", "a", "--expect", "sometimes"}},
		{"bad_shards", []string{"contend", "--keys", "a", "--shards", "3"}},
		{"bad_log_level", []string{"--log-level", "loud", "contend", "--keys", "a"}},
		{"unknown_flag", []string{"contend", "--keys", "a", "--bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			assert.Equal(t, 2, code)
		})
	}
}

func TestContend_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xkeylockctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("registry:\n  comparer: ignorecase\n  shard_count: 4\n"), 0o600))

	code, out, errOut := runCLI(t, "--config", path, "contend", "--keys", "A,a", "--hold", "10ms")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "overlapped: false")

	// 命令行参数覆盖配置文件
	code, out, errOut = runCLI(t, "-c", path, "contend", "--keys", "A,a", "--hold", "100ms", "--comparer", "ordinal")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "overlapped: true")
}

func TestContend_ConfigFileUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xkeylockctl.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"registry": {"comparer": "ignorecase", "shardz": 4}}`), 0o600))

	code, out, errOut := runCLI(t, "-c", path, "contend", "--keys", "A,a", "--hold", "1ms")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "overlapped: false")
	assert.Contains(t, errOut, "unknown config key")
	assert.Contains(t, errOut, "registry.shardz")
	assert.NotContains(t, errOut, "registry.comparer")
}

func TestContend_ConfigFileMissing(t *testing.T) {
	code, _, errOut := runCLI(t, "-c", filepath.Join(t.TempDir(), "absent.yaml"), "contend", "--keys", "a")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "xconf")
}

func TestContend_Metrics(t *testing.T) {
	code, out, errOut := runCLI(t, "--metrics", "contend", "--keys", "a,b", "--rounds", "2", "--hold", "1ms")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "metric xkeylock.operation.total run_exclusive:ok=4")
}

func TestContend_LogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "xkeylockctl.log")
	code, _, errOut := runCLI(t,
		"--log-level", "debug", "--log-format", "json", "--log-file", logPath,
		"contend", "--keys", "order:1", "--hold", "1ms")
	require.Equal(t, 0, code, errOut)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"lock created"`)
	assert.Contains(t, string(data), `"lock_key":"order:1"`)
	assert.Contains(t, string(data), `"run_id":`)
}

func TestContend_Timeout(t *testing.T) {
	code, _, errOut := runCLI(t, "contend", "--keys", "a,a", "--hold", "1s", "--timeout", "50ms")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "deadline exceeded")
}

func TestVersionCommand(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, Version)
	assert.Contains(t, out, GitCommit)
}

func TestParseComparer(t *testing.T) {
	tests := []struct {
		spec     string
		a, b     string
		wantSame bool
	}{
		{"", "Key", "key", false},
		{"ordinal", "Key", "Key", true},
		{"IgnoreCase", "Key", "kEY", true},
		{"locale:en", "Key", "key", false},
		{"locale-ignorecase:en", "Key", "key", true},
		{"locale-ignorecase:tr", "Key", "key", true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			cmp, err := parseComparer(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSame, cmp.Equal(tt.a, tt.b))
			if tt.wantSame {
				assert.Equal(t, cmp.Hash(tt.a), cmp.Hash(tt.b))
			}
		})
	}

	for _, bad := range []string{"fuzzy", "ordinal:x", "ignorecase:en", "locale:!!"} {
		_, err := parseComparer(bad)
		assert.Error(t, err, bad)
	}
}

func TestSplitKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "B", "c"}, splitKeys([]string{"a, B", ",c,"}))
	assert.Empty(t, splitKeys([]string{" , ", ""}))
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	yml := `
logLevel: debug
workers: 2
s3:
  bucket: newsroom-mos
  region: eu-west-2
  rps: 50
nats:
  url: nats://localhost:4222
schedules:
  - name: six
    cron: "*/5 17-19 * * *"
    prefix: newsroom/six/
    output: out/six.xml
    policy: non-strict
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mosromgr.yaml"), []byte(yml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 4, cfg.ReadAhead, "unset fields keep their default")
	assert.Equal(t, "newsroom-mos", cfg.S3.Bucket)
	assert.InDelta(t, 50.0, cfg.S3.RPS, 0)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	require.Len(t, cfg.Jobs, 1)
	assert.Equal(t, "newsroom/six/", cfg.Jobs[0].Prefix)
	assert.Equal(t, "non-strict", cfg.Jobs[0].Policy)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mosromgr.yml"), []byte("workers: [\n"), 0o644))
	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mosromgr.yml")
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mosromgr.yml"), []byte("workers: 2\nsuffix: .xml\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MOSROMGR_SUFFIX=.mos\nMOSROMGR_WORKERS=16\n"), 0o644))
	t.Setenv("MOSROMGR_WORKERS", "3")
	t.Setenv("MOSROMGR_NON_STRICT", "true")
	t.Cleanup(func() { _ = os.Unsetenv("MOSROMGR_SUFFIX") })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers, "process environment beats .env")
	assert.Equal(t, ".mos", cfg.Suffix, ".env beats the file")
	assert.True(t, cfg.NonStrict)
}

func TestApplyEnv_BadNumber(t *testing.T) {
	cfg := Defaults()
	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == "MOSROMGR_READ_AHEAD" {
			return "lots", true
		}
		return "", false
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MOSROMGR_READ_AHEAD")
}

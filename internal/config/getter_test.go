package config_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schubergphilis/azureenergylabelerlib/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestParseDefaults(t *testing.T) {
	path := writeConfig(t, `
output:
  destinations:
    - ./reports
`)

	conf, err := config.Parse(path)
	require.NoError(t, err)

	assert.Equal(t, 8, conf.Engine.MaxConcurrency)
	assert.Equal(t, time.Hour, conf.Engine.CacheTTL())
	assert.Equal(t, uint(5), conf.Engine.RetryMaxAttempts)
	assert.Equal(t, 200*time.Millisecond, conf.Engine.RetryBaseDelay())
	assert.Equal(t, 10*time.Second, conf.Engine.RetryMaxDelay())
	assert.Equal(t, 10*time.Minute, conf.Engine.RunTimeout())
	assert.Equal(t, time.Hour, conf.Poll.Interval)
	assert.False(t, conf.Cache.PersistAcrossCycles)
	assert.Equal(t, config.EncoderTypeConsole, conf.Logs.Encoder)
	assert.Equal(t, []string{"Microsoft cloud security benchmark", "Azure CIS 1.1.0"}, conf.Labeler.Frameworks)
	assert.Equal(t, []string{"./reports"}, conf.Output.Destinations)
}

func TestParseFile(t *testing.T) {
	path := writeConfig(t, `
engine:
  maxConcurrency: 2
  cacheTtlSeconds: 60
  retryMaxAttempts: 3
azure:
  tenantId: tenant
  creds:
    clientId: client
    clientSecret: secret
labeler:
  deniedSubscriptions:
    - 11111111-1111-1111-1111-111111111111
output:
  destinations:
    - s3://bucket/prefix
    - kafka://reports
poll:
  interval: 15m
`)

	conf, err := config.Parse(path)
	require.NoError(t, err)

	assert.Equal(t, 2, conf.Engine.MaxConcurrency)
	assert.Equal(t, time.Minute, conf.Engine.CacheTTL())
	assert.Equal(t, uint(3), conf.Engine.RetryMaxAttempts)
	assert.Equal(t, "tenant", conf.Azure.TenantID)
	assert.Equal(t, "client secret set", conf.Azure.Creds.String())
	assert.Equal(t, []string{"11111111-1111-1111-1111-111111111111"}, conf.Labeler.DeniedSubscriptions)
	assert.Equal(t, 15*time.Minute, conf.Poll.Interval)
}

func TestParseEnvironment(t *testing.T) {
	t.Setenv("AZLABELER_ENGINE_MAXCONCURRENCY", "3")
	t.Setenv("AZLABELER_AZURE_TENANTID", "from-env")
	t.Setenv("AZLABELER_OUTPUT_DESTINATIONS", "./a")

	conf, err := config.Parse("")
	require.NoError(t, err)

	assert.Equal(t, 3, conf.Engine.MaxConcurrency)
	assert.Equal(t, "from-env", conf.Azure.TenantID)
	assert.Equal(t, []string{"./a"}, conf.Output.Destinations)
}

func TestParseInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{
			name:    "no destination",
			content: "engine:\n  maxConcurrency: 2\n",
		},
		{
			name:    "zero concurrency",
			content: "engine:\n  maxConcurrency: 0\noutput:\n  destinations: [./r]\n",
		},
		{
			name:    "base delay above max",
			content: "engine:\n  retryBaseDelayMs: 500\n  retryMaxDelayMs: 100\noutput:\n  destinations: [./r]\n",
		},
		{
			name:    "zero poll interval",
			content: "poll:\n  interval: 0s\noutput:\n  destinations: [./r]\n",
		},
		{
			name:    "valkey without persisted cache",
			content: "cache:\n  valkey:\n    url: localhost:6379\noutput:\n  destinations: [./r]\n",
		},
	}

	for i := range cases {
		c := cases[i]

		t.Run(c.name, func(t *testing.T) {
			_, err := config.Parse(writeConfig(t, c.content))
			require.Error(t, err)
		})
	}

	_, err := config.Parse(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseValkeyWithPersistedCache(t *testing.T) {
	path := writeConfig(t, `
cache:
  persistAcrossCycles: true
  valkey:
    url: localhost:6379
output:
  destinations:
    - ./reports
`)

	conf, err := config.Parse(path)
	require.NoError(t, err)

	assert.True(t, conf.Cache.PersistAcrossCycles)
	assert.Equal(t, "localhost:6379", conf.Cache.Valkey.URL)
}

func TestSecretsAreHidden(t *testing.T) {
	t.Parallel()

	creds := config.AzureCreds{ClientID: "id", ClientSecret: "very-secret"}
	assert.NotContains(t, fmt.Sprintf("%v", creds), "very-secret")

	kafka := config.KafkaCreds{User: "user", Password: "very-secret", Mechanism: "SCRAM-SHA-512"}
	assert.NotContains(t, fmt.Sprintf("%v", kafka), "very-secret")

	valkey := config.ValkeyCreds{Password: "very-secret"}
	assert.NotContains(t, fmt.Sprintf("%v", valkey), "very-secret")
}

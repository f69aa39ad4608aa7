package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvConfigGetStringDefault(t *testing.T) {
	os.Unsetenv("GRIDSTORE_TEST_KEY")
	ec := NewEnvConfig("GRIDSTORE_TEST")
	assert.Equal(t, "fallback", ec.GetString("KEY", "fallback"))

	os.Setenv("GRIDSTORE_TEST_KEY", "from-env")
	defer os.Unsetenv("GRIDSTORE_TEST_KEY")
	assert.Equal(t, "from-env", ec.GetString("KEY", "fallback"))
}

func TestEnvConfigMustGetStringPanicsWhenUnset(t *testing.T) {
	os.Unsetenv("GRIDSTORE_TEST_REQUIRED")
	ec := NewEnvConfig("GRIDSTORE_TEST")
	assert.Panics(t, func() { ec.MustGetString("REQUIRED") })

	os.Setenv("GRIDSTORE_TEST_REQUIRED", "set")
	defer os.Unsetenv("GRIDSTORE_TEST_REQUIRED")
	assert.Equal(t, "set", ec.MustGetString("REQUIRED"))
}

func TestEnvConfigGetIntAndBool(t *testing.T) {
	os.Setenv("GRIDSTORE_TEST_COUNT", "7")
	os.Setenv("GRIDSTORE_TEST_FLAG", "yes")
	defer os.Unsetenv("GRIDSTORE_TEST_COUNT")
	defer os.Unsetenv("GRIDSTORE_TEST_FLAG")

	ec := NewEnvConfig("GRIDSTORE_TEST")
	assert.Equal(t, 7, ec.GetInt("COUNT", 0))
	assert.True(t, ec.GetBool("FLAG", false))
	assert.Equal(t, 3, ec.GetInt("MISSING", 3))
}

func TestEnvConfigGetDuration(t *testing.T) {
	os.Setenv("GRIDSTORE_TEST_TTL", "30")
	defer os.Unsetenv("GRIDSTORE_TEST_TTL")

	ec := NewEnvConfig("GRIDSTORE_TEST")
	assert.Equal(t, 30*time.Second, ec.GetDuration("TTL", time.Minute))
	assert.Equal(t, time.Minute, ec.GetDuration("MISSING_TTL", time.Minute))
}

func TestLoadDefaultsToMemoryProviders(t *testing.T) {
	for _, key := range []string{
		"ARTIFACT_SANDBOX_ID", "ARTIFACT_PROVIDER", "SESSION_PROVIDER",
		"ARTIFACT_BUCKET", "ARTIFACT_FS_ROOT", "SESSION_REDIS_URL",
	} {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderMemory, cfg.StorageProvider)
	assert.Equal(t, SessionProviderMemory, cfg.SessionProvider)
	assert.NotEmpty(t, cfg.SandboxID)
}

func TestLoadRejectsRedisProviderWithoutURL(t *testing.T) {
	os.Setenv("SESSION_PROVIDER", string(SessionProviderRedis))
	os.Unsetenv("SESSION_REDIS_URL")
	defer os.Unsetenv("SESSION_PROVIDER")

	_, err := Load()
	require.Error(t, err)
}

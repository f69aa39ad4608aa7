package common

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "<not set>", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("short"))
	assert.Equal(t, "myve...y123", MaskSecret("myverylongsecretkey123"))
}

func TestGetEnvHelpers(t *testing.T) {
	os.Unsetenv("GRIDSTORE_UTILS_TEST")
	assert.Equal(t, "fallback", GetEnv("GRIDSTORE_UTILS_TEST", "fallback"))

	os.Setenv("GRIDSTORE_UTILS_TEST", "42")
	defer os.Unsetenv("GRIDSTORE_UTILS_TEST")
	assert.Equal(t, 42, GetEnvInt("GRIDSTORE_UTILS_TEST", 0))

	os.Setenv("GRIDSTORE_UTILS_TEST_BOOL", "on")
	defer os.Unsetenv("GRIDSTORE_UTILS_TEST_BOOL")
	assert.True(t, GetEnvBool("GRIDSTORE_UTILS_TEST_BOOL", false))
}

func TestMustPanicsOnError(t *testing.T) {
	assert.Panics(t, func() {
		Must("", errors.New("boom"))
	})
	assert.Equal(t, "ok", Must("ok", nil))
}

func TestMustNoErrorPanicsOnError(t *testing.T) {
	assert.Panics(t, func() { MustNoError(errors.New("boom")) })
	assert.NotPanics(t, func() { MustNoError(nil) })
}

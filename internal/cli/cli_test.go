package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGridPathSources(t *testing.T) {
	t.Run("positional argument", func(t *testing.T) {
		var out bytes.Buffer
		overrides, exit, err := Parse([]string{"grid.hcl"}, &out)
		require.NoError(t, err)
		assert.False(t, exit)
		assert.Equal(t, "grid.hcl", overrides["grid_path"])
	})

	t.Run("grid flag", func(t *testing.T) {
		var out bytes.Buffer
		overrides, exit, err := Parse([]string{"--grid", "a.hcl"}, &out)
		require.NoError(t, err)
		assert.False(t, exit)
		assert.Equal(t, "a.hcl", overrides["grid_path"])
	})

	t.Run("shorthand flag wins over positional", func(t *testing.T) {
		var out bytes.Buffer
		overrides, exit, err := Parse([]string{"-g", "a.hcl", "b.hcl"}, &out)
		require.NoError(t, err)
		assert.False(t, exit)
		assert.Equal(t, "a.hcl", overrides["grid_path"])
	})
}

func TestParseNoArgsPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	overrides, exit, err := Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, overrides)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseOptionOverrides(t *testing.T) {
	var out bytes.Buffer
	overrides, exit, err := Parse([]string{
		"--workers", "8",
		"--queue-cap", "32",
		"--log-level", "debug",
		"--log-format", "json",
		"--trace",
		"grid.hcl",
	}, &out)
	require.NoError(t, err)
	assert.False(t, exit)
	assert.Equal(t, 8, overrides["workers"])
	assert.Equal(t, 32, overrides["queue_cap"])
	assert.Equal(t, "debug", overrides["log_level"])
	assert.Equal(t, "json", overrides["log_format"])
	assert.Equal(t, true, overrides["trace"])
}

func TestParseOmitsUnsetOptions(t *testing.T) {
	var out bytes.Buffer
	overrides, _, err := Parse([]string{"grid.hcl"}, &out)
	require.NoError(t, err)
	assert.NotContains(t, overrides, "workers")
	assert.NotContains(t, overrides, "queue_cap")
	assert.NotContains(t, overrides, "log_level")
	assert.NotContains(t, overrides, "trace")
}

func TestParseUnknownFlag(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse([]string{"--bogus"}, &out)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}
